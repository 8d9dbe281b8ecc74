package consultation

import "math"

// Winrate maps a centipawn score through engine i's regression:
// winrate(cp) = 1 / (1 + exp(-(cp*w + b))).
func Winrate(cp int, w, b float64) float64 {
	x := float64(cp)*w + b
	return 1.0 / (1.0 + math.Exp(-x))
}

// CPStd is the inverse of the fixed-standard sigmoid 1/(1+exp(-cp/600)),
// used to report a fused winrate back to the host as a centipawn score.
// Returns 0 on math-domain failure (winrate at 0 or 1).
func CPStd(winrate float64) int {
	if winrate <= 0 || winrate >= 1 {
		return 0
	}
	return int(math.Log(1.0/winrate-1.0) * -600.0)
}

// engineDict is one engine's move->winrate map plus the move order its PV
// list presented them in (rank-ascending), since a Go map has no stable
// order and the tie-break rule depends on first-seen PV order.
type engineDict struct {
	winrate map[string]float64
	order   []string
}

func pvToWinrateDicts(cfg SessionConfig, info Info) []engineDict {
	dicts := make([]engineDict, len(info.EnginePVs))
	for i, pvs := range info.EnginePVs {
		reg := cfg.Engines[i].WinrateRegression
		d := engineDict{winrate: make(map[string]float64, len(pvs))}
		for _, pv := range pvs {
			if _, seen := d.winrate[pv.Move]; !seen {
				d.order = append(d.order, pv.Move)
			}
			d.winrate[pv.Move] = Winrate(pv.ScoreCP, reg.Weight, reg.Bias)
		}
		dicts[i] = d
	}
	return dicts
}

func plainDicts(dicts []engineDict) []map[string]float64 {
	out := make([]map[string]float64, len(dicts))
	for i, d := range dicts {
		out[i] = d.winrate
	}
	return out
}

// argmax picks the highest-winrate move in order, breaking ties by order
// (the first engine whose PV list proposed a move wins ties).
func argmax(order []string, merged map[string]float64) (string, float64) {
	bestMove := order[0]
	bestWinrate := merged[order[0]]
	for _, move := range order[1:] {
		if merged[move] > bestWinrate {
			bestMove = move
			bestWinrate = merged[move]
		}
	}
	return bestMove, bestWinrate
}

// sortedTuples returns (move, winrate) pairs in winrate-descending order,
// stable on ties with respect to order.
func sortedTuples(order []string, merged map[string]float64) []ScoreTuple {
	tuples := make([]ScoreTuple, len(order))
	for i, move := range order {
		tuples[i] = ScoreTuple{Move: move, Winrate: merged[move]}
	}
	for i := 1; i < len(tuples); i++ {
		for j := i; j > 0 && tuples[j].Winrate > tuples[j-1].Winrate; j-- {
			tuples[j], tuples[j-1] = tuples[j-1], tuples[j]
		}
	}
	return tuples
}

// Consult runs the configured method over info and returns the fused
// decision. Unknown methods, or blend configurations that are not exactly
// two engines with a length-2 engine_weights vector, fail with ConfigError.
func Consult(cfg SessionConfig, info Info) (Result, error) {
	switch cfg.Params.Method {
	case "max_union":
		return consultMaxUnion(cfg, info)
	case "blend":
		return consultBlend(cfg, info)
	default:
		return Result{}, newConfigError("unknown consultation method " + cfg.Params.Method)
	}
}

func consultMaxUnion(cfg SessionConfig, info Info) (Result, error) {
	dicts := pvToWinrateDicts(cfg, info)

	merged := make(map[string]float64)
	var order []string
	for _, d := range dicts {
		for _, move := range d.order {
			wr := d.winrate[move]
			if cur, ok := merged[move]; !ok {
				merged[move] = wr
				order = append(order, move)
			} else if wr > cur {
				merged[move] = wr
			}
		}
	}

	bestMove, winrate := argmax(order, merged)
	return Result{
		BestMove: bestMove,
		Winrate:  winrate,
		Comment: Comment{
			ScoreTuples:      sortedTuples(order, merged),
			EngineScoreDicts: plainDicts(dicts),
			SFEN:             info.SFEN,
			Moves:            info.Moves,
		},
	}, nil
}

func consultBlend(cfg SessionConfig, info Info) (Result, error) {
	if len(info.EnginePVs) != 2 {
		return Result{}, newConfigError("blend requires exactly two engines")
	}
	weights := cfg.Params.EngineWeights
	if len(weights) != 2 {
		return Result{}, newConfigError("blend requires a length-2 engine_weights vector")
	}

	dicts := pvToWinrateDicts(cfg, info)

	merged := make(map[string]float64, len(dicts[0].winrate))
	order := append([]string(nil), dicts[0].order...)
	for move, wr := range dicts[0].winrate {
		merged[move] = wr
	}
	for _, move := range dicts[1].order {
		wr1 := dicts[1].winrate[move]
		if wr0, ok := merged[move]; ok {
			merged[move] = wr0*weights[0] + wr1*weights[1]
		}
		// Moves present only in engine 1's dictionary are dropped.
	}

	bestMove, winrate := argmax(order, merged)
	return Result{
		BestMove: bestMove,
		Winrate:  winrate,
		Comment: Comment{
			ScoreTuples:      sortedTuples(order, merged),
			EngineScoreDicts: plainDicts(dicts),
			SFEN:             info.SFEN,
			Moves:            info.Moves,
		},
	}, nil
}
