package coordinator

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mnohosten/collage2pc/pkg/walog"
)

// Decision is the outcome of Phase I, once known.
type Decision string

const (
	DecisionYes   Decision = "yes"
	DecisionNo    Decision = "no"
	DecisionAbort Decision = "abort"
)

const (
	linePrefixFileName = "File Name: "
	linePrefixSources  = "Sources: "
	linePhaseOne       = "Phase One"
	linePrefixPhaseTwo = "Phase Two: "
	lineDone           = "DONE"
)

// commitLog is the per-commit append-only log described in spec 4.5: an
// ordered sequence of lines drawn from {File Name, Sources, Phase One,
// Phase Two, DONE}, each fsynced before the caller proceeds (I7).
type commitLog struct {
	log *walog.Log
}

// logPath returns log/log_<basename>.txt, basename being fileName with its
// extension stripped (spec section 6).
func logPath(dir, fileName string) string {
	base := filepath.Base(fileName)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "log_"+base+".txt")
}

func openCommitLog(dir, fileName string) (*commitLog, error) {
	l, err := walog.Open(logPath(dir, fileName))
	if err != nil {
		return nil, err
	}
	return &commitLog{log: l}, nil
}

func (c *commitLog) appendFileName(fileName string) error {
	return c.log.Append(linePrefixFileName + fileName)
}

func (c *commitLog) appendSources(sources []string) error {
	return c.log.Append(linePrefixSources + strings.Join(sources, ","))
}

func (c *commitLog) appendPhaseOne() error {
	return c.log.Append(linePhaseOne)
}

func (c *commitLog) appendPhaseTwo(d Decision) error {
	return c.log.Append(linePrefixPhaseTwo + string(d))
}

func (c *commitLog) appendDone() error {
	return c.log.Append(lineDone)
}

func (c *commitLog) close() error {
	return c.log.Close()
}

// replayState is what recovery reconstructs from one commit's log file.
type replayState struct {
	fileName   string
	sources    []string
	phaseOne   bool
	decision   Decision
	hasDecided bool
	done       bool
}

// replayCommitLog parses every line of a commit log, recovering exactly
// the markers spec 4.2 step 1 asks for.
func replayCommitLog(lines []string) (replayState, error) {
	var st replayState
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, linePrefixFileName):
			st.fileName = strings.TrimPrefix(line, linePrefixFileName)
		case strings.HasPrefix(line, linePrefixSources):
			raw := strings.TrimPrefix(line, linePrefixSources)
			if raw != "" {
				st.sources = strings.Split(raw, ",")
			}
		case line == linePhaseOne:
			st.phaseOne = true
		case strings.HasPrefix(line, linePrefixPhaseTwo):
			d := Decision(strings.TrimPrefix(line, linePrefixPhaseTwo))
			switch d {
			case DecisionYes, DecisionNo, DecisionAbort:
				st.decision = d
				st.hasDecided = true
			default:
				return replayState{}, fmt.Errorf("coordinator: malformed Phase Two line: %q", line)
			}
		case line == lineDone:
			st.done = true
		default:
			return replayState{}, fmt.Errorf("coordinator: malformed log line: %q", line)
		}
	}
	return st, nil
}
