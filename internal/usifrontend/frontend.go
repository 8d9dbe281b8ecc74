// Package usifrontend implements the host-facing USI protocol loop: the
// handshake/session state machine that reads commands from the host and
// drives a consultation.Supervisor underneath.
package usifrontend

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"usiconsult/internal/config"
	"usiconsult/internal/consultation"
	"usiconsult/pkg/engine"
)

// state is the session's position in the handshake/game lifecycle. USI's
// session discipline needs explicit tracking the way a bare line-in/line-out
// loop does not: setoption-before-isready, usinewgame-before-position, and
// so on are all state-gated.
type state int

const (
	stateIdle state = iota
	stateReady
	stateInGame
)

// syncWriter serializes writes across the front-end's own replies and the
// Supervisor's diagnostic/forwarded lines, since both land on the same host
// stdout and must never interleave mid-line.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// Frontend drives the session loop. Name and Author populate the `id`
// preamble; In/Out are the host's stdin/stdout.
type Frontend struct {
	Name   string
	Author string

	In  io.Reader
	out *syncWriter
	log *logrus.Logger

	state      state
	supervisor *consultation.Supervisor
	position   struct {
		sfen  string
		moves []string
	}
}

// New constructs a Frontend. out is wrapped in a serializing writer shared
// with the Supervisor once one is constructed.
func New(name, author string, in io.Reader, out io.Writer, log *logrus.Logger) *Frontend {
	return &Frontend{
		Name:   name,
		Author: author,
		In:     in,
		out:    &syncWriter{w: out},
		log:    log,
	}
}

func (f *Frontend) send(line string) {
	fmt.Fprintln(f.out, line)
}

// Run reads commands from In until `quit` or EOF. It returns nil on a clean
// quit. A fatal error is reported to the host as `info string Error …`
// before being returned for the caller to translate into a non-zero exit.
func (f *Frontend) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(f.In)
	scanner.Buffer(make([]byte, 4096), 1<<20)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		command := fields[0]
		args := fields[1:]

		if command == "quit" {
			f.shutdown()
			return nil
		}

		if err := f.dispatch(ctx, command, args); err != nil {
			f.send("info string Error " + quoteErr(err))
			f.shutdown()
			return err
		}
	}
	f.shutdown()
	return scanner.Err()
}

func (f *Frontend) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "usi":
		f.send("id name " + f.Name)
		f.send("id author " + f.Author)
		f.send("option name optionfile type filename default <empty>")
		f.send("usiok")
		return nil

	case "setoption":
		return f.handleSetOption(args)

	case "isready":
		if f.supervisor == nil {
			return fmt.Errorf("isready before optionfile loaded")
		}
		if err := f.supervisor.IsReady(ctx); err != nil {
			return err
		}
		f.send("readyok")
		f.state = stateReady
		return nil

	case "usinewgame":
		if f.state != stateReady || f.supervisor == nil {
			return fmt.Errorf("usinewgame before isready")
		}
		if err := f.supervisor.UsiNewGame(); err != nil {
			return err
		}
		f.state = stateInGame
		return nil

	case "position":
		if f.state != stateInGame {
			return fmt.Errorf("position before usinewgame")
		}
		f.handlePosition(args)
		return nil

	case "go":
		if f.state != stateInGame || f.supervisor == nil {
			return fmt.Errorf("go before usinewgame")
		}
		return f.handleGo(ctx, args)

	case "gameover":
		if f.state != stateInGame || f.supervisor == nil {
			return fmt.Errorf("gameover before usinewgame")
		}
		result := ""
		if len(args) > 0 {
			result = args[0]
		}
		if err := f.supervisor.GameOver(result); err != nil {
			return err
		}
		f.state = stateReady
		return nil

	default:
		f.send("info string unknown command " + command)
		return nil
	}
}

// handleSetOption implements `setoption name optionfile value <path>`.
// SessionConfig is loaded once; a second optionfile within the same process
// lifetime is ignored (spec.md §3: frozen after first load).
func (f *Frontend) handleSetOption(args []string) error {
	if len(args) < 4 || args[0] != "name" {
		return nil
	}
	name := args[1]
	if name != "optionfile" || args[2] != "value" {
		return nil
	}
	if f.supervisor != nil {
		return nil
	}
	path := strings.Join(args[3:], " ")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	f.supervisor = consultation.NewSupervisor(cfg, f.out, f.log)
	return nil
}

func (f *Frontend) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}
	var sfen string
	var rest []string
	if args[0] == "startpos" {
		sfen = "startpos"
		rest = args[1:]
	} else if args[0] == "sfen" {
		// sfen tokens run until "moves" or end of input.
		i := 1
		for i < len(args) && args[i] != "moves" {
			i++
		}
		sfen = strings.Join(args[1:i], " ")
		rest = args[i:]
	} else {
		return
	}

	var moves []string
	if len(rest) > 0 && rest[0] == "moves" {
		moves = rest[1:]
	}
	f.position.sfen = sfen
	f.position.moves = moves
}

func (f *Frontend) handleGo(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "ponder" {
		return nil
	}

	tb := parseTimeBudget(args)
	bestmove, err := f.supervisor.Go(ctx, f.position.moves, f.position.sfen, tb)
	if err != nil {
		return err
	}
	f.send("bestmove " + bestmove)
	return nil
}

func parseTimeBudget(args []string) engine.TimeBudget {
	var tb engine.TimeBudget
	for i := 0; i+1 < len(args); i++ {
		ms, err := strconv.Atoi(args[i+1])
		if err != nil {
			continue
		}
		d := time.Duration(ms) * time.Millisecond
		switch args[i] {
		case "btime":
			tb.BlackTime = d
		case "wtime":
			tb.WhiteTime = d
		case "byoyomi":
			tb.Byoyomi = d
		case "binc":
			tb.BlackInc = d
		case "winc":
			tb.WhiteInc = d
		}
	}
	return tb
}

func (f *Frontend) shutdown() {
	if f.supervisor != nil {
		f.supervisor.Shutdown()
	}
}

func quoteErr(err error) string {
	return strconv.Quote(err.Error())
}
