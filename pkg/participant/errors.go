package participant

import "errors"

var (
	// ErrMalformedLogLine is returned by log replay when a line does not
	// match the strict "<source_file>:<commit_id>:<STATUS>" grammar. The
	// source system's parser silently tolerated only well-formed lines;
	// this reimplementation rejects a malformed one loudly instead
	// (REDESIGN FLAGS).
	ErrMalformedLogLine = errors.New("participant: malformed log line")

	// ErrUnknownStatus is returned when a log line's status field is not
	// one of PREPARED, ABORTED, COMMITTED.
	ErrUnknownStatus = errors.New("participant: unknown source file status")
)
