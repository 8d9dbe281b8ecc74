package usifrontend

import (
	"bytes"
	"reflect"
	"testing"
	"time"
)

func TestHandlePositionStartpos(t *testing.T) {
	f := New("n", "a", nil, &bytes.Buffer{}, nil)
	f.handlePosition([]string{"startpos", "moves", "7g7f", "3c3d"})

	if f.position.sfen != "startpos" {
		t.Errorf("sfen = %q, want startpos", f.position.sfen)
	}
	want := []string{"7g7f", "3c3d"}
	if !reflect.DeepEqual(f.position.moves, want) {
		t.Errorf("moves = %v, want %v", f.position.moves, want)
	}
}

func TestHandlePositionSfenWithMoves(t *testing.T) {
	f := New("n", "a", nil, &bytes.Buffer{}, nil)
	sfenTokens := []string{"sfen", "lnsgkgsnl/9/ppppppppp/9/9/9/PPPPPPPPP/9/LNSGKGSNL", "b", "-", "1", "moves", "2g2f"}
	f.handlePosition(sfenTokens)

	wantSfen := "lnsgkgsnl/9/ppppppppp/9/9/9/PPPPPPPPP/9/LNSGKGSNL b - 1"
	if f.position.sfen != wantSfen {
		t.Errorf("sfen = %q, want %q", f.position.sfen, wantSfen)
	}
	if !reflect.DeepEqual(f.position.moves, []string{"2g2f"}) {
		t.Errorf("moves = %v, want [2g2f]", f.position.moves)
	}
}

func TestHandlePositionStartposNoMoves(t *testing.T) {
	f := New("n", "a", nil, &bytes.Buffer{}, nil)
	f.handlePosition([]string{"startpos"})
	if f.position.sfen != "startpos" || f.position.moves != nil {
		t.Errorf("got sfen=%q moves=%v", f.position.sfen, f.position.moves)
	}
}

func TestParseTimeBudget(t *testing.T) {
	tb := parseTimeBudget([]string{"btime", "30000", "wtime", "25000", "byoyomi", "5000"})
	if tb.BlackTime != 30*time.Second {
		t.Errorf("BlackTime = %v, want 30s", tb.BlackTime)
	}
	if tb.WhiteTime != 25*time.Second {
		t.Errorf("WhiteTime = %v, want 25s", tb.WhiteTime)
	}
	if tb.Byoyomi != 5*time.Second {
		t.Errorf("Byoyomi = %v, want 5s", tb.Byoyomi)
	}
}

func TestUnknownCommandIsRecoverable(t *testing.T) {
	var out bytes.Buffer
	f := New("n", "a", nil, &out, nil)
	if err := f.dispatch(nil, "foobar", nil); err != nil {
		t.Fatalf("dispatch returned error for unknown command: %v", err)
	}
	if got := out.String(); got != "info string unknown command foobar\n" {
		t.Errorf("got %q", got)
	}
}

func TestHandshakeEmitsPreambleInOrder(t *testing.T) {
	var out bytes.Buffer
	f := New("usiconsult", "tester", nil, &out, nil)
	if err := f.dispatch(nil, "usi", nil); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	want := "id name usiconsult\nid author tester\noption name optionfile type filename default <empty>\nusiok\n"
	if out.String() != want {
		t.Errorf("got %q, want %q", out.String(), want)
	}
}
