package coordinator

import "errors"

var (
	// ErrCommitExists is returned by StartCommit when a live commit
	// already owns the requested file name (spec 4.1 step 1).
	ErrCommitExists = errors.New("coordinator: a live commit already owns this file name")

	// ErrNoSources is returned by StartCommit when sources is empty.
	ErrNoSources = errors.New("coordinator: commit has no sources")

	// ErrUnknownParticipant is returned when sources names a node id not
	// present in the coordinator's Participants table.
	ErrUnknownParticipant = errors.New("coordinator: unknown participant node id")

	// errUnknownCommit is the internal signal used when routing an
	// inbound message whose commit id has no live record (spec 4.1,
	// "message routing").
	errUnknownCommit = errors.New("coordinator: message for unknown or already-done commit")
)
