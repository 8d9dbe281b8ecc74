// Package consultation implements the multi-engine vote/fuse decision
// procedure: a roster of backend USI engines is driven in parallel and
// their proposals merged into one move under a configurable policy.
package consultation

import "usiconsult/pkg/engine"

// WinrateRegression is the per-engine sigmoid coefficients fit offline from
// game logs: winrate(cp) = 1 / (1 + exp(-(cp*Weight + Bias))).
type WinrateRegression struct {
	Weight float64 `mapstructure:"weight"`
	Bias   float64 `mapstructure:"bias"`
}

// EngineConfig describes one roster member. Immutable after load.
type EngineConfig struct {
	Exe               string            `mapstructure:"exe"`
	Option            string            `mapstructure:"option"`
	WinrateRegression WinrateRegression `mapstructure:"winrate_regression"`
	Options           []engine.OptionKV `mapstructure:"-"`
}

// Params holds the consultation policy knobs.
type Params struct {
	Method        string             `mapstructure:"method"`
	MaxMoveCount  int                `mapstructure:"max_move_count"`
	EngineWeights []float64          `mapstructure:"engine_weights"`
	TimeOverride  *engine.TimeBudget `mapstructure:"-"`
}

// SessionConfig is the whole configuration tree loaded from the `optionfile`
// path on the first `setoption name optionfile value <path>`. Index 0 of
// Engines is the primary, whose telemetry is forwarded live to the host.
type SessionConfig struct {
	Engines []EngineConfig `mapstructure:"engines"`
	Params  Params         `mapstructure:"params"`
}

// Info is the per-`go` bundle the Fuser consumes: one PV list per engine,
// parallel to SessionConfig.Engines.
type Info struct {
	MoveCount int
	Moves     []string
	SFEN      string
	EnginePVs [][]engine.PV
}

// ScoreTuple is one (move, winrate) pair in fused, rank-descending order.
type ScoreTuple struct {
	Move    string  `json:"move"`
	Winrate float64 `json:"winrate"`
}

// Comment is the diagnostic record attached to a Result, stable enough to
// be tailed by an external visualizer as `info string consult <json>`.
type Comment struct {
	ScoreTuples      []ScoreTuple         `json:"score_tuples"`
	EngineScoreDicts []map[string]float64 `json:"engine_score_dicts"`
	SFEN             string               `json:"sfen"`
	Moves            []string             `json:"moves"`
}

// Result is the Fuser's output for one `go`.
type Result struct {
	BestMove string
	Winrate  float64
	Comment  Comment
}
