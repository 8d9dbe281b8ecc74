package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// lineBufferSize bounds a single stdout line. USI PVs can run long in deep
// searches; Davey-Hughes-uci's OutputStream documents the same overflow
// concern for UCI, so the buffer is sized generously up front rather than
// left at bufio.Scanner's 64KiB default.
const lineBufferSize = 1 << 20

// TimeBudget mirrors the USI `go` command's time-control fields. Exactly one
// of Infinite, MoveTime, or the clock-based fields is meaningful per call;
// the front-end is responsible for picking which.
type TimeBudget struct {
	Infinite  bool
	MoveTime  time.Duration
	BlackTime time.Duration
	WhiteTime time.Duration
	BlackInc  time.Duration
	WhiteInc  time.Duration
	Byoyomi   time.Duration
}

// OptionKV is one `setoption name <Name> value <Value>` pair, applied to a
// Client during IsReady per the session configuration.
type OptionKV struct {
	Name  string
	Value string
}

// Snapshot is the state of a Client's most recent `go`: the final bestmove
// reply, the multi-PV ranking extracted from its info-line backlog, and the
// backlog itself (every non-bestmove line seen during the search, in
// emission order) for callers that need the raw wire record rather than the
// extracted PVs.
type Snapshot struct {
	BestMove string
	Ponder   string
	PVs      []PV
	RawLines []string
}

// Client drives one USI engine subprocess. It is not safe for concurrent
// Go calls against the same position; callers serialize commands the way
// the USI protocol itself requires (one in-flight search per engine).
type Client struct {
	name string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	mu      sync.Mutex
	scanner *bufio.Scanner

	ready  atomic.Bool
	closed atomic.Bool
}

// NewClient spawns the engine binary at path and wires its stdin/stdout
// pipes. The subprocess is running but has not yet been sent `usi`; call
// IsReady to complete the handshake.
func NewClient(name, path string, args ...string) (*Client, error) {
	cmd := exec.Command(path, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("engine %q: stdin pipe: %w", name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("engine %q: stdout pipe: %w", name, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("engine %q: start: %w", name, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 4096), lineBufferSize)

	return &Client{
		name:    name,
		cmd:     cmd,
		stdin:   stdin,
		stdout:  stdout,
		scanner: scanner,
	}, nil
}

// Name is the roster-unique label this client was constructed with, used in
// diagnostics and log correlation.
func (c *Client) Name() string {
	return c.name
}

// SetOption sends `setoption name <name> value <value>`. It must never be
// called while a search is running.
func (c *Client) SetOption(name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(fmt.Sprintf("setoption name %s value %s", name, value))
}

// IsReady performs the `usi`/`usiok` preamble on first call, applies opts,
// then blocks for `isready`/`readyok`. Subsequent calls re-run only the
// isready/readyok round trip.
func (c *Client) IsReady(ctx context.Context, opts []OptionKV) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready.Load() {
		if err := c.send("usi"); err != nil {
			return newProtocolError(c.name, "usi", err)
		}
		if err := c.awaitLine(ctx, "usiok"); err != nil {
			return newProtocolError(c.name, "usiok", err)
		}
		for _, opt := range opts {
			if err := c.send(fmt.Sprintf("setoption name %s value %s", opt.Name, opt.Value)); err != nil {
				return newProtocolError(c.name, "setoption", err)
			}
		}
	}

	if err := c.send("isready"); err != nil {
		return newProtocolError(c.name, "isready", err)
	}
	if err := c.awaitLine(ctx, "readyok"); err != nil {
		return newProtocolError(c.name, "readyok", err)
	}
	c.ready.Store(true)
	return nil
}

// UsiNewGame sends `usinewgame`.
func (c *Client) UsiNewGame() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send("usinewgame")
}

// Position sends `position (startpos|sfen <sfen>) [moves ...]`. An empty
// sfen means startpos.
func (c *Client) Position(sfen string, moves []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	b.WriteString("position ")
	if sfen == "" {
		b.WriteString("startpos")
	} else {
		b.WriteString("sfen ")
		b.WriteString(sfen)
	}
	if len(moves) > 0 {
		b.WriteString(" moves ")
		b.WriteString(strings.Join(moves, " "))
	}
	return c.send(b.String())
}

// Go sends a `go` command built from tb and streams every line the engine
// emits to onLine (which may be nil) until `bestmove` is seen. It returns
// the parsed snapshot of that search. A `resign` or `win` bestmove token is
// returned verbatim as BestMove with no ponder.
func (c *Client) Go(ctx context.Context, tb TimeBudget, onLine func(string)) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send(goCommand(tb)); err != nil {
		return Snapshot{}, newProtocolError(c.name, "go", err)
	}

	var backlog []string
	for {
		select {
		case <-ctx.Done():
			return Snapshot{}, newProtocolError(c.name, "go", ctx.Err())
		default:
		}

		if !c.scanner.Scan() {
			if err := c.scanner.Err(); err != nil {
				return Snapshot{}, newProtocolError(c.name, "go", err)
			}
			return Snapshot{}, newProtocolError(c.name, "go", io.ErrUnexpectedEOF)
		}

		line := strings.TrimSpace(c.scanner.Text())
		if line == "" {
			continue
		}
		if onLine != nil {
			onLine(line)
		}

		if strings.HasPrefix(line, "bestmove") {
			best, ponder := parseBestmove(line)
			return Snapshot{
				BestMove: best,
				Ponder:   ponder,
				PVs:      ExtractPVs(backlog),
				RawLines: backlog,
			}, nil
		}

		backlog = append(backlog, line)
	}
}

// GameOver sends `gameover <result>` where result is one of win/lose/draw.
func (c *Client) GameOver(result string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if result == "" {
		result = "draw"
	}
	return c.send("gameover " + result)
}

// Quit sends `quit`, closes stdin, and waits up to grace for the subprocess
// to exit on its own before killing it.
func (c *Client) Quit(grace time.Duration) error {
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return nil
	}
	c.closed.Store(true)
	_ = c.send("quit")
	_ = c.stdin.Close()
	c.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- c.cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(grace):
		_ = c.cmd.Process.Kill()
		<-done
		return nil
	}
}

func (c *Client) send(cmd string) error {
	_, err := fmt.Fprintln(c.stdin, cmd)
	return err
}

// awaitLine blocks until the scanner yields a line equal to want, ignoring
// everything else (id/option preamble lines, asynchronous info noise).
func (c *Client) awaitLine(ctx context.Context, want string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !c.scanner.Scan() {
			if err := c.scanner.Err(); err != nil {
				return err
			}
			return io.ErrUnexpectedEOF
		}
		if strings.TrimSpace(c.scanner.Text()) == want {
			return nil
		}
	}
}

func parseBestmove(line string) (best, ponder string) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", ""
	}
	best = fields[1]
	if len(fields) >= 4 && fields[2] == "ponder" {
		ponder = fields[3]
	}
	return best, ponder
}

func goCommand(tb TimeBudget) string {
	if tb.Infinite {
		return "go infinite"
	}
	if tb.MoveTime > 0 {
		return fmt.Sprintf("go movetime %d", tb.MoveTime.Milliseconds())
	}

	var b strings.Builder
	b.WriteString("go")
	if tb.BlackTime > 0 {
		b.WriteString(" btime " + strconv.FormatInt(tb.BlackTime.Milliseconds(), 10))
	}
	if tb.WhiteTime > 0 {
		b.WriteString(" wtime " + strconv.FormatInt(tb.WhiteTime.Milliseconds(), 10))
	}
	if tb.BlackInc > 0 {
		b.WriteString(" binc " + strconv.FormatInt(tb.BlackInc.Milliseconds(), 10))
	}
	if tb.WhiteInc > 0 {
		b.WriteString(" winc " + strconv.FormatInt(tb.WhiteInc.Milliseconds(), 10))
	}
	if tb.Byoyomi > 0 {
		b.WriteString(" byoyomi " + strconv.FormatInt(tb.Byoyomi.Milliseconds(), 10))
	}
	return b.String()
}
