package participant

import (
	"fmt"
	"os"

	"github.com/mnohosten/collage2pc/pkg/walog"
)

type fileCommitKey struct {
	file     string
	commitID string
}

// recover replays logPath to rebuild the lock table (spec 4.4): for each
// (source_file, commit_id) pair, PREPARED counts +1 and ABORTED/COMMITTED
// count -1; a positive net count whose file still exists on disk becomes a
// lock entry. Line order is preserved in firstSeen order so that, in the
// bugs-preserved-not-reinvented case of a file with positive net count
// under more than one commit id (should not happen absent a bug, I4), the
// first one encountered in the log wins deterministically (spec 9).
func (p *Participant) recover(logPath string) error {
	lines, err := walog.ReadLines(logPath)
	if err != nil {
		return fmt.Errorf("participant: read log: %w", err)
	}

	netCount := make(map[fileCommitKey]int)
	var order []fileCommitKey

	for _, line := range lines {
		t, err := parseLogLine(line)
		if err != nil {
			return fmt.Errorf("participant: %w", err)
		}
		key := fileCommitKey{file: t.sourceFile, commitID: t.commitID}
		if _, seen := netCount[key]; !seen {
			order = append(order, key)
		}
		switch t.status {
		case StatusPrepared:
			netCount[key]++
		case StatusAborted, StatusCommitted:
			netCount[key]--
		}
	}

	installed := make(map[string]bool, len(order))
	for _, key := range order {
		if netCount[key] <= 0 {
			continue
		}
		if installed[key.file] {
			p.logger.Printf("[participant %s] recovery: %s has positive net count under multiple commits, keeping first-seen lock",
				p.config.NodeID, key.file)
			continue
		}
		if _, err := os.Stat(p.sourcePath(key.file)); err != nil {
			continue
		}
		p.locks.lock(key.file, key.commitID)
		installed[key.file] = true
	}

	return nil
}
