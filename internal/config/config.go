// Package config loads the SessionConfig tree the USI front-end receives as
// a filesystem path via `setoption name optionfile value <path>`.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"usiconsult/internal/consultation"
	"usiconsult/pkg/engine"
)

// rawTimeBudget mirrors the wire-level time_override block, whose fields
// are plain milliseconds integers rather than time.Duration.
type rawTimeBudget struct {
	BTime   int `mapstructure:"btime"`
	WTime   int `mapstructure:"wtime"`
	Byoyomi int `mapstructure:"byoyomi"`
	BInc    int `mapstructure:"binc"`
	WInc    int `mapstructure:"winc"`
}

func (r rawTimeBudget) toTimeBudget() engine.TimeBudget {
	return engine.TimeBudget{
		BlackTime: time.Duration(r.BTime) * time.Millisecond,
		WhiteTime: time.Duration(r.WTime) * time.Millisecond,
		Byoyomi:   time.Duration(r.Byoyomi) * time.Millisecond,
		BlackInc:  time.Duration(r.BInc) * time.Millisecond,
		WhiteInc:  time.Duration(r.WInc) * time.Millisecond,
	}
}

// Load reads the YAML or JSON file at path (viper picks the decoder from
// the extension), unmarshals it into a SessionConfig, tokenizes each
// engine's multi-line `option` string into OptionKV pairs, and validates
// the blend-method engine/weight shape.
func Load(path string) (consultation.SessionConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return consultation.SessionConfig{}, newConfigError("reading " + path + ": " + err.Error())
	}

	var cfg consultation.SessionConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return consultation.SessionConfig{}, newConfigError("unmarshalling " + path + ": " + err.Error())
	}

	for i := range cfg.Engines {
		cfg.Engines[i].Options = parseOptions(cfg.Engines[i].Option)
	}

	if v.IsSet("params.time_override") {
		var raw rawTimeBudget
		if err := v.UnmarshalKey("params.time_override", &raw); err != nil {
			return consultation.SessionConfig{}, newConfigError("unmarshalling params.time_override: " + err.Error())
		}
		tb := raw.toTimeBudget()
		cfg.Params.TimeOverride = &tb
	}

	if err := validate(cfg); err != nil {
		return consultation.SessionConfig{}, err
	}

	return cfg, nil
}

// parseOptions tokenizes each line of a `option: |` block into an OptionKV,
// the same "split on whitespace into <=6 tokens, take positions 2 and 4"
// rule spec.md §6 specifies. Lines yielding fewer than 5 tokens are skipped.
func parseOptions(raw string) []engine.OptionKV {
	var opts []engine.OptionKV
	for _, line := range strings.Split(raw, "\n") {
		fields := strings.SplitN(strings.TrimSpace(line), " ", 6)
		if len(fields) < 5 {
			continue
		}
		opts = append(opts, engine.OptionKV{Name: fields[2], Value: fields[4]})
	}
	return opts
}

func validate(cfg consultation.SessionConfig) error {
	switch cfg.Params.Method {
	case "max_union":
	case "blend":
		if len(cfg.Engines) != 2 {
			return newConfigError("blend requires exactly two engines in the roster")
		}
		if len(cfg.Params.EngineWeights) != 2 {
			return newConfigError("blend requires a length-2 engine_weights vector")
		}
	default:
		return newConfigError("unknown consultation method " + cfg.Params.Method)
	}
	return nil
}
