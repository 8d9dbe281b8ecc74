package engine

import "testing"

func TestExtractPVsRankOrdering(t *testing.T) {
	lines := []string{
		"info depth 1 seldepth 1 multipv 1 score cp 361 nodes 435 nps 435000 time 1 pv 2g2f",
		"info depth 1 seldepth 1 multipv 2 score cp 318 nodes 435 nps 435000 time 1 pv 4i5h",
		"info depth 10 seldepth 10 multipv 1 score cp 341 nodes 1281 nps 1281000 time 1 pv 3g3f 8c8d 2g2f",
		"info depth 10 seldepth 10 multipv 2 score cp 332 nodes 1281 nps 1281000 time 1 pv 2g2f 8c8d",
		"info depth 12 seldepth 12 multipv 1 score cp 376 nodes 10011 nps 3337000 time 3 pv 8h7g 8c8d 2g2f",
		"info depth 12 seldepth 12 multipv 2 score cp 296 nodes 10011 nps 3337000 time 3 pv 4g4f 8c8d 2g2f 4d4e",
		"bestmove 8h7g ponder 8c8d",
	}

	got := ExtractPVs(lines)
	want := []PV{
		{Move: "8h7g", ScoreCP: 376, MultiPVRank: 1},
		{Move: "4g4f", ScoreCP: 296, MultiPVRank: 2},
	}

	if len(got) != len(want) {
		t.Fatalf("got %d PVs, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pv[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

// A multipv>1 entry below depth 5 is a deep-learning engine's shallow
// placeholder, not a real candidate, and must be discarded regardless of
// what the primary's own depth is.
func TestExtractPVsDiscardsShallowPlaceholder(t *testing.T) {
	lines := []string{
		"info depth 1 multipv 1 score cp 361 pv 2g2f",
		"info depth 1 multipv 2 score cp 318 pv 4i5h",
		"info depth 10 multipv 1 score cp 341 pv 3g3f 8c8d 2g2f",
		"info depth 10 multipv 2 score cp 332 pv 2g2f 8c8d",
		"info depth 12 multipv 1 score cp 376 pv 8h7g 8c8d 2g2f",
		"info depth 12 multipv 2 score cp 296 pv 4g4f 8c8d 2g2f 4d4e",
		"info depth 2 multipv 3 score cp 200 pv 9i9h",
		"bestmove 8h7g ponder 8c8d",
	}

	got := ExtractPVs(lines)
	for _, pv := range got {
		if pv.Move == "9i9h" {
			t.Fatalf("shallow placeholder 9i9h leaked into output: %+v", got)
		}
	}
	if len(got) != 2 {
		t.Fatalf("got %d PVs, want 2: %+v", len(got), got)
	}
}

func TestExtractPVsSinglePVTermination(t *testing.T) {
	lines := []string{
		"info depth 1 score cp 10 pv 7g7f",
		"info depth 2 score cp 20 pv 7g7f",
		"bestmove 7g7f",
	}
	got := ExtractPVs(lines)
	if len(got) != 1 {
		t.Fatalf("got %d PVs in single-PV mode, want 1: %+v", len(got), got)
	}
	if got[0].ScoreCP != 20 {
		t.Errorf("ScoreCP = %d, want 20 (latest depth pass)", got[0].ScoreCP)
	}
}

func TestExtractPVsIgnoresNonInfoAndCommentLines(t *testing.T) {
	lines := []string{
		"id name foo",
		"info string hello world",
		"info depth 3 score cp 5 pv 2g2f",
		"bestmove 2g2f",
	}
	got := ExtractPVs(lines)
	if len(got) != 1 || got[0].Move != "2g2f" {
		t.Fatalf("got %+v, want single entry 2g2f", got)
	}
}

func TestMateScore(t *testing.T) {
	cases := []struct {
		tok  string
		want int
	}{
		{"+", 32000},
		{"-", -32000},
		{"3", 31997},
		{"-10", -31990},
	}
	for _, c := range cases {
		if got := mateScore(c.tok); got != c.want {
			t.Errorf("mateScore(%q) = %d, want %d", c.tok, got, c.want)
		}
	}
}

func TestExtractPVsMateScore(t *testing.T) {
	lines := []string{
		"info depth 5 score mate 3 pv 7g7f",
		"bestmove 7g7f",
	}
	got := ExtractPVs(lines)
	if len(got) != 1 || got[0].ScoreCP != 31997 {
		t.Fatalf("got %+v, want ScoreCP=31997", got)
	}
}
