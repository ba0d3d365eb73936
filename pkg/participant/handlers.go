package participant

import (
	"os"

	"github.com/mnohosten/collage2pc/pkg/wire"
)

// handleQuery implements spec 4.3's commit_query handler. The oracle is
// consulted first, but the per-file scan runs regardless of its verdict:
// only a missing or conflicting file stops the scan early. This is
// deliberate (spec 9's open question) — a false oracle verdict still lets
// already-clean files get tentatively prepared, and the subsequent abort
// branch releases exactly what this query locked.
func (p *Participant) handleQuery(env wire.Envelope) {
	commitID := env.CommitID
	files := env.Files

	mu := p.locks.commitLock(commitID)
	mu.Lock()
	defer mu.Unlock()

	ok := p.oracle(env.Image, files)

	for _, f := range files {
		if _, err := os.Stat(p.sourcePath(f)); err != nil {
			ok = false
			break
		}
		// tryLock checks and sets byFile[f] under one critical section, so
		// two commit_query handlers for different commit ids racing on the
		// same file cannot both win (I4): the per-commit-id mutex above only
		// serializes handlers that share a commit id, not ones that don't.
		if !p.locks.tryLock(f, commitID) {
			ok = false
			break
		}
		if err := p.log.record(f, commitID, StatusPrepared); err != nil {
			p.logger.Printf("[participant %s] %s: record prepared for %s: %v", p.config.NodeID, commitID, f, err)
			p.locks.unlock(f, commitID)
			ok = false
			break
		}
		p.metrics.IncFilesLocked()
	}

	if !ok {
		p.releaseAllLocked(commitID)
	}

	p.reply(wire.Envelope{
		Type:      wire.CommitAgreement,
		CommitID:  commitID,
		Sender:    p.config.NodeID,
		ReplyAddr: p.config.listenAddr(),
		Agreement: ok,
	})
}

// handleCommitMsg implements spec 4.3's commit_msg handler. A retried
// message from the coordinator re-runs this handler safely: deleting an
// already-deleted file is a no-op, and a repeated COMMITTED line only drives
// the net count read back by recovery below zero, which recovery treats
// like zero: the file is not locked (R1).
func (p *Participant) handleCommitMsg(env wire.Envelope) {
	commitID := env.CommitID

	mu := p.locks.commitLock(commitID)
	mu.Lock()
	defer mu.Unlock()

	if env.Agreement {
		for _, f := range env.Files {
			if err := os.Remove(p.sourcePath(f)); err != nil && !os.IsNotExist(err) {
				p.logger.Printf("[participant %s] %s: delete %s: %v", p.config.NodeID, commitID, f, err)
			}
			if err := p.log.record(f, commitID, StatusCommitted); err != nil {
				p.logger.Printf("[participant %s] %s: record committed for %s: %v", p.config.NodeID, commitID, f, err)
			}
			p.locks.unlock(f, commitID)
			p.metrics.IncFilesCommitted()
		}
	} else {
		p.releaseFiles(commitID, env.Files)
	}

	p.reply(wire.Envelope{Type: wire.CommitAck, CommitID: commitID, Sender: p.config.NodeID, ReplyAddr: p.config.listenAddr()})
}

// handleAbort implements spec 4.3's commit_abort handler.
func (p *Participant) handleAbort(env wire.Envelope) {
	commitID := env.CommitID

	mu := p.locks.commitLock(commitID)
	mu.Lock()
	defer mu.Unlock()

	p.releaseFiles(commitID, env.Files)

	p.reply(wire.Envelope{Type: wire.CommitAck, CommitID: commitID, Sender: p.config.NodeID, ReplyAddr: p.config.listenAddr()})
}

// releaseAllLocked releases every file currently locked by commitID
// (used by the commit_query abort branch, which may have locked only a
// prefix of the requested files before stopping).
func (p *Participant) releaseAllLocked(commitID string) {
	p.releaseFiles(commitID, p.locks.filesLockedBy(commitID))
}

// releaseFiles releases files currently locked by commitID, skipping any
// that are not (so repeated/late abort/deny traffic is a no-op).
func (p *Participant) releaseFiles(commitID string, files []string) {
	for _, f := range files {
		if owner, locked := p.locks.ownerOf(f); !locked || owner != commitID {
			continue
		}
		if err := p.log.record(f, commitID, StatusAborted); err != nil {
			p.logger.Printf("[participant %s] %s: record aborted for %s: %v", p.config.NodeID, commitID, f, err)
		}
		p.locks.unlock(f, commitID)
		p.metrics.IncFilesReleased()
	}
}
