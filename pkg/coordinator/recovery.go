package coordinator

import (
	"fmt"
	"sync"

	"github.com/mnohosten/collage2pc/pkg/walog"
)

// recover scans c.config.LogDir for commit log files and reconstructs
// in-flight commits per spec 4.2. All recovery drivers are joined on a
// single sync.WaitGroup barrier before Start returns and the coordinator
// accepts new traffic, replacing the source system's double
// recovery-finished flag (REDESIGN FLAGS).
func (c *Coordinator) recover() error {
	paths, err := walog.ListLogFiles(c.config.LogDir, "log_*.txt")
	if err != nil {
		return fmt.Errorf("coordinator: list log files: %w", err)
	}

	var wg sync.WaitGroup
	for _, path := range paths {
		lines, err := walog.ReadLines(path)
		if err != nil {
			return fmt.Errorf("coordinator: read %s: %w", path, err)
		}
		st, err := replayCommitLog(lines)
		if err != nil {
			return fmt.Errorf("coordinator: replay %s: %w", path, err)
		}
		if st.done || st.fileName == "" {
			continue
		}

		rec, err := c.reconstructRecord(st)
		if err != nil {
			return fmt.Errorf("coordinator: reconstruct %s: %w", path, err)
		}

		c.mu.Lock()
		c.commits[rec.fileName] = rec
		c.mu.Unlock()

		wg.Add(1)
		go func(st replayState, rec *commitRecord) {
			defer wg.Done()
			d := &driver{c: c, rec: rec}
			switch {
			case st.hasDecided:
				c.logger.Printf("[coordinator] recovering %s from Phase Two: %s", rec.fileName, st.decision)
				d.runPhaseTwoRecover(st.decision)
			case st.phaseOne:
				c.logger.Printf("[coordinator] recovering %s from Phase One: aborting", rec.fileName)
				d.runPhaseOneAbort()
			default:
				c.logger.Printf("[coordinator] recovering %s: died before any outbound effect, aborting quietly", rec.fileName)
				d.runDeadInit()
			}
		}(st, rec)
	}

	wg.Wait()
	return nil
}

func (c *Coordinator) reconstructRecord(st replayState) (*commitRecord, error) {
	perNode, participants, err := parseSources(st.sources)
	if err != nil {
		return nil, err
	}
	log, err := openCommitLog(c.config.LogDir, st.fileName)
	if err != nil {
		return nil, err
	}
	return newCommitRecord(st.fileName, nil, st.sources, perNode, participants, log), nil
}
