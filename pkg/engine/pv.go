package engine

import (
	"sort"
	"strconv"
	"strings"
)

// PV is one entry of a principal-variation snapshot: the move an engine
// proposes, its centipawn score, and its multi-PV rank (0 means the engine
// was not running in multi-PV mode).
type PV struct {
	Move        string
	ScoreCP     int
	MultiPVRank int
}

// mateSentinel is the magnitude assigned to a "score mate" line. Larger
// magnitude means more decisive; a longer path to mate scores closer to
// zero than an immediate one, mirroring morlock's own mate-distance
// handling in pkg/engine/uci/uci.go (printPV/IncrementMateDistance).
const mateSentinel = 32000

// ExtractPVs reconstructs the most recent multi-PV snapshot from the raw
// `info` line backlog one engine emitted during a single `go`. The scan
// runs in reverse so the latest completed depth pass is found without
// having to track depth transitions forward; this mirrors
// original_source/consultation.py's _extract_consultation_info.
//
// The returned slice is rank-ascending (multipv 1 first) and contains at
// most one entry per multipv_rank.
func ExtractPVs(lines []string) []PV {
	var pvs []PV
	seen := make(map[int]bool)

	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] != "info" {
			continue
		}
		fields = fields[1:]

		var (
			depth       int
			haveDepth   bool
			multipvRank int
			scoreCP     int
			haveScore   bool
			firstMove   string
			haveMove    bool
			isComment   bool
		)

		for len(fields) > 0 {
			key := fields[0]
			fields = fields[1:]

			switch key {
			case "seldepth", "time", "nodes", "currmove", "hashfull", "nps":
				if len(fields) > 0 {
					fields = fields[1:]
				}
			case "depth":
				if len(fields) == 0 {
					break
				}
				if v, err := strconv.Atoi(fields[0]); err == nil {
					depth = v
					haveDepth = true
				}
				fields = fields[1:]
			case "multipv":
				if len(fields) == 0 {
					break
				}
				if v, err := strconv.Atoi(fields[0]); err == nil {
					multipvRank = v
				}
				fields = fields[1:]
			case "score":
				if len(fields) < 2 {
					fields = nil
					break
				}
				kind := fields[0]
				tok := fields[1]
				fields = fields[2:]
				switch kind {
				case "cp":
					if v, err := strconv.Atoi(tok); err == nil {
						scoreCP = v
						haveScore = true
					}
				case "mate":
					scoreCP = mateScore(tok)
					haveScore = true
				}
			case "string":
				isComment = true
				fields = nil
			case "pv":
				if len(fields) > 0 {
					firstMove = fields[0]
					haveMove = true
				}
				fields = nil
			default:
				// Unrecognized token (engine-specific extension): skip it alone.
			}
		}

		if isComment || !haveScore || !haveMove {
			continue
		}

		// Noise filter: deep-learning engines emit shallow placeholder PVs
		// for non-principal moves.
		if multipvRank > 1 && haveDepth && depth < 5 {
			continue
		}

		// The reverse scan meets the latest line for a rank first; an
		// earlier line for the same rank is stale.
		if seen[multipvRank] {
			continue
		}
		seen[multipvRank] = true

		pvs = append([]PV{{Move: firstMove, ScoreCP: scoreCP, MultiPVRank: multipvRank}}, pvs...)

		if multipvRank == 0 || multipvRank == 1 {
			break
		}
	}

	sort.SliceStable(pvs, func(a, b int) bool { return pvs[a].MultiPVRank < pvs[b].MultiPVRank })
	return pvs
}

// mateScore converts the token following "score mate" into the asymmetric
// ±32000 convention: "+"/"-" are bare sentinels for an unspecified distance,
// otherwise the magnitude shrinks toward zero as the mate gets longer.
func mateScore(tok string) int {
	switch tok {
	case "+":
		return mateSentinel
	case "-":
		return -mateSentinel
	}
	m, err := strconv.Atoi(tok)
	if err != nil {
		return 0
	}
	if m > 0 {
		return mateSentinel - m
	}
	return -mateSentinel - m
}
