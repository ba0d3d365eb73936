package participant

import (
	"fmt"
	"strings"

	"github.com/mnohosten/collage2pc/pkg/walog"
)

// Status is a source file's durable state for one commit, drawn from the
// log alphabet in spec section 3.
type Status string

const (
	StatusPrepared  Status = "PREPARED"
	StatusAborted   Status = "ABORTED"
	StatusCommitted Status = "COMMITTED"
)

// participantLog is the single append-only log described in spec 4.5:
// lines of "<source_file>:<commit_id>:<STATUS>", each fsynced before the
// caller proceeds (I7).
type participantLog struct {
	log *walog.Log
}

func openParticipantLog(path string) (*participantLog, error) {
	l, err := walog.Open(path)
	if err != nil {
		return nil, err
	}
	return &participantLog{log: l}, nil
}

func (p *participantLog) record(sourceFile, commitID string, status Status) error {
	return p.log.Append(fmt.Sprintf("%s:%s:%s", sourceFile, commitID, status))
}

func (p *participantLog) close() error {
	return p.log.Close()
}

// logTransition is one parsed line of the log.
type logTransition struct {
	sourceFile string
	commitID   string
	status     Status
}

// parseLogLine enforces the strict three-field grammar. A malformed line
// is rejected with a wrapped error rather than silently skipped, per
// REDESIGN FLAGS: a corrupted log must never be mistaken for a clean one.
func parseLogLine(line string) (logTransition, error) {
	fields := strings.Split(line, ":")
	if len(fields) != 3 {
		return logTransition{}, fmt.Errorf("%w: %q", ErrMalformedLogLine, line)
	}
	sourceFile, commitID, statusField := fields[0], fields[1], fields[2]
	if sourceFile == "" || commitID == "" {
		return logTransition{}, fmt.Errorf("%w: %q", ErrMalformedLogLine, line)
	}

	status := Status(statusField)
	switch status {
	case StatusPrepared, StatusAborted, StatusCommitted:
	default:
		return logTransition{}, fmt.Errorf("%w: %q in %q", ErrUnknownStatus, statusField, line)
	}

	return logTransition{sourceFile: sourceFile, commitID: commitID, status: status}, nil
}
