package coordinator

import (
	"os"
	"path/filepath"
	"time"

	"github.com/mnohosten/collage2pc/pkg/wire"
)

// driver runs one commit to completion. Four run methods share this one
// struct, differing only in what runs before the shared Phase II routine
// (spec 9, "Polymorphic commit drivers"): runFull does the whole protocol,
// runPhaseTwoRecover resumes a commit whose decision was already logged,
// runPhaseOneAbort resumes a commit that never got past Phase One, and
// runDeadInit closes out a commit whose log never reached Phase One.
type driver struct {
	c   *Coordinator
	rec *commitRecord
}

// runFull drives a freshly started commit through Phase I, decision
// persistence, and Phase II.
func (d *driver) runFull() {
	rec := d.rec
	rec.setPhase(phasePhaseOne)

	decision := d.phaseOneVote()
	decision = d.persistDecision(decision)

	rec.mu.Lock()
	rec.decision = decision
	rec.phase = phasePhaseTwo
	rec.mu.Unlock()

	d.broadcastAndAwaitAcks(decision)

	if err := rec.log.appendDone(); err != nil {
		d.c.logger.Printf("[coordinator] %s: append DONE: %v", rec.fileName, err)
	}
	d.finish()
}

// runPhaseTwoRecover resumes a commit whose decision is already durable
// (spec 4.2 step 3): skip Phase I, re-broadcast, await acks, then DONE.
func (d *driver) runPhaseTwoRecover(decision Decision) {
	rec := d.rec
	rec.mu.Lock()
	rec.decision = decision
	rec.phase = phasePhaseTwo
	rec.mu.Unlock()

	d.broadcastAndAwaitAcks(decision)

	if err := rec.log.appendDone(); err != nil {
		d.c.logger.Printf("[coordinator] %s: append DONE: %v", rec.fileName, err)
	}
	d.finish()
}

// runPhaseOneAbort resumes a commit that logged Phase One but never a
// decision (spec 4.2 step 4): the composite may be partially written, so
// delete it, broadcast abort, await acks, and only then log the decision
// marker and DONE.
func (d *driver) runPhaseOneAbort() {
	rec := d.rec
	rec.mu.Lock()
	rec.phase = phasePhaseTwo
	rec.mu.Unlock()

	if err := os.Remove(rec.fileName); err != nil && !os.IsNotExist(err) {
		d.c.logger.Printf("[coordinator] %s: remove partial composite: %v", rec.fileName, err)
	}

	d.broadcastAndAwaitAcks(DecisionAbort)

	rec.mu.Lock()
	rec.decision = DecisionAbort
	rec.mu.Unlock()

	if err := rec.log.appendPhaseTwo(DecisionAbort); err != nil {
		d.c.logger.Printf("[coordinator] %s: append Phase Two: %v", rec.fileName, err)
	}
	if err := rec.log.appendDone(); err != nil {
		d.c.logger.Printf("[coordinator] %s: append DONE: %v", rec.fileName, err)
	}
	d.finish()
}

// runDeadInit resumes a commit log that has neither a Phase One nor a
// Phase Two marker (spec 4.2 step 5): no participant was ever contacted, so
// abort without any protocol traffic.
func (d *driver) runDeadInit() {
	rec := d.rec
	rec.mu.Lock()
	rec.decision = DecisionAbort
	rec.phase = phasePhaseTwo
	rec.mu.Unlock()

	if err := rec.log.appendPhaseTwo(DecisionAbort); err != nil {
		d.c.logger.Printf("[coordinator] %s: append Phase Two: %v", rec.fileName, err)
	}
	if err := rec.log.appendDone(); err != nil {
		d.c.logger.Printf("[coordinator] %s: append DONE: %v", rec.fileName, err)
	}
	d.finish()
}

// phaseOneVote sends commit_query to every distinct participant and
// aggregates votes until every participant has replied or the cumulative
// Phase I window elapses (spec 4.1, "Phase I (query/vote)").
func (d *driver) phaseOneVote() Decision {
	rec := d.rec
	c := d.c

	for _, node := range rec.participants {
		env := wire.Envelope{
			Type:      wire.CommitQuery,
			CommitID:  rec.fileName,
			Sender:    "coordinator",
			ReplyAddr: c.config.listenAddr(),
			Image:     rec.image,
			Files:     rec.perNodeFiles[node],
		}
		if err := c.network.Send(c.config.Participants[node], env); err != nil {
			c.logger.Printf("[coordinator] %s: commit_query to %s: %v", rec.fileName, node, err)
		}
	}

	approvals := make(map[string]bool)
	denials := make(map[string]bool)
	deadline := time.Now().Add(c.config.PhaseOneTimeout)

	for len(approvals)+len(denials) < len(rec.participants) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return DecisionAbort
		}
		select {
		case v := <-rec.voteCh:
			if v.approve {
				approvals[v.node] = true
			} else {
				denials[v.node] = true
			}
		case <-time.After(remaining):
			return DecisionAbort
		}
	}

	if len(denials) == 0 {
		return DecisionYes
	}
	return DecisionNo
}

// persistDecision writes the composite for a yes decision and durably logs
// the Phase Two marker (spec 4.1, "Persist decision & composite"). Ordering
// is load-bearing: the composite write must land before the log append, so
// that a crash between the two is recovered as an abort (I3) rather than a
// half-committed yes.
func (d *driver) persistDecision(decision Decision) Decision {
	rec := d.rec
	c := d.c

	if decision == DecisionYes {
		if dir := filepath.Dir(rec.fileName); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				c.logger.Printf("[coordinator] %s: create composite directory: %v; downgrading to abort", rec.fileName, err)
				decision = DecisionAbort
			}
		}
		if decision == DecisionYes {
			if err := os.WriteFile(rec.fileName, rec.image, 0o644); err != nil {
				c.logger.Printf("[coordinator] %s: write composite: %v; downgrading to abort", rec.fileName, err)
				decision = DecisionAbort
			}
		}
	}

	if err := rec.log.appendPhaseTwo(decision); err != nil {
		c.logger.Printf("[coordinator] %s: append Phase Two: %v", rec.fileName, err)
	}
	return decision
}

// broadcastAndAwaitAcks sends decision to every distinct participant and
// collects acks, resending to the still-missing subset on every timeout
// until all have acked (spec 4.1, "Phase II (decide/ack)"). The decision
// itself never changes across retries (I2).
func (d *driver) broadcastAndAwaitAcks(decision Decision) {
	rec := d.rec
	c := d.c

	pending := make(map[string]bool, len(rec.participants))
	for _, node := range rec.participants {
		pending[node] = true
	}

	send := func() {
		for node := range pending {
			env := wire.Envelope{
				CommitID:  rec.fileName,
				Sender:    "coordinator",
				ReplyAddr: c.config.listenAddr(),
				Files:     rec.perNodeFiles[node],
			}
			switch decision {
			case DecisionYes:
				env.Type = wire.CommitMsg
				env.Agreement = true
			case DecisionNo:
				env.Type = wire.CommitMsg
				env.Agreement = false
			case DecisionAbort:
				env.Type = wire.CommitAbort
			}
			if err := c.network.Send(c.config.Participants[node], env); err != nil {
				c.logger.Printf("[coordinator] %s: phase two send to %s: %v", rec.fileName, node, err)
			}
		}
	}

	send()
	for len(pending) > 0 {
		select {
		case node := <-rec.ackCh:
			delete(pending, node)
		case <-time.After(c.config.PhaseTwoTimeout):
			if len(pending) == 0 {
				continue
			}
			c.metrics.IncPhaseTwoResends()
			send()
		}
	}
}

// finish retires the commit record: close its log, mark it done, and
// remove it from the coordinator's live table.
func (d *driver) finish() {
	rec := d.rec
	c := d.c

	if err := rec.log.close(); err != nil {
		c.logger.Printf("[coordinator] %s: close log: %v", rec.fileName, err)
	}
	rec.setPhase(phaseDone)

	switch rec.decision {
	case DecisionYes:
		c.metrics.IncCommitsCommitted()
	case DecisionNo:
		c.metrics.IncCommitsDenied()
	case DecisionAbort:
		c.metrics.IncCommitsAborted()
	}

	c.mu.Lock()
	delete(c.commits, rec.fileName)
	c.mu.Unlock()

	c.logger.Printf("[coordinator] %s: done, decision=%s", rec.fileName, rec.decision)
}
