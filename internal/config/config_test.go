package config

import (
	"os"
	"path/filepath"
	"testing"
)

const maxUnionYAML = `
engines:
  - exe: /usr/bin/engine-a
    option: |
      setoption name USI_Hash value 1024
      setoption name Threads value 4
    winrate_regression:
      weight: 0.0016666
      bias: 0.0
  - exe: /usr/bin/engine-b
    option: |
      setoption name USI_Hash value 512
    winrate_regression:
      weight: 0.002
      bias: 0.1
params:
  method: max_union
  max_move_count: 30
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoadParsesEnginesAndOptions(t *testing.T) {
	path := writeTemp(t, "config.yaml", maxUnionYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Engines) != 2 {
		t.Fatalf("got %d engines, want 2", len(cfg.Engines))
	}
	if cfg.Engines[0].Exe != "/usr/bin/engine-a" {
		t.Errorf("Engines[0].Exe = %q", cfg.Engines[0].Exe)
	}

	opts := cfg.Engines[0].Options
	if len(opts) != 2 {
		t.Fatalf("got %d options, want 2: %+v", len(opts), opts)
	}
	if opts[0].Name != "USI_Hash" || opts[0].Value != "1024" {
		t.Errorf("opts[0] = %+v, want {USI_Hash 1024}", opts[0])
	}
	if opts[1].Name != "Threads" || opts[1].Value != "4" {
		t.Errorf("opts[1] = %+v, want {Threads 4}", opts[1])
	}

	if cfg.Params.Method != "max_union" || cfg.Params.MaxMoveCount != 30 {
		t.Errorf("Params = %+v", cfg.Params)
	}
}

func TestLoadRejectsBlendWithWrongEngineCount(t *testing.T) {
	path := writeTemp(t, "config.yaml", `
engines:
  - exe: /usr/bin/engine-a
params:
  method: blend
  max_move_count: 30
  engine_weights: [0.5, 0.5]
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected ConfigError for single-engine blend, got nil")
	}
}

func TestLoadRejectsBlendMissingWeights(t *testing.T) {
	path := writeTemp(t, "config.yaml", `
engines:
  - exe: /usr/bin/engine-a
  - exe: /usr/bin/engine-b
params:
  method: blend
  max_move_count: 30
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected ConfigError for missing engine_weights, got nil")
	}
}

func TestParseOptionsSkipsShortLines(t *testing.T) {
	got := parseOptions("setoption name Foo value Bar\nsetoption name Baz\n\n")
	if len(got) != 1 {
		t.Fatalf("got %d options, want 1: %+v", len(got), got)
	}
	if got[0].Name != "Foo" || got[0].Value != "Bar" {
		t.Errorf("got %+v, want {Foo Bar}", got[0])
	}
}

func TestLoadUnknownMethod(t *testing.T) {
	path := writeTemp(t, "config.yaml", `
engines:
  - exe: /usr/bin/engine-a
params:
  method: vote
  max_move_count: 10
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected ConfigError for unknown method, got nil")
	}
}
