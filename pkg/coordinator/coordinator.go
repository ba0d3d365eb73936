// Package coordinator implements the 2PC coordinator side of the commit
// protocol: the commit state machine, its durable log, and its startup
// recovery driver (spec sections 4.1, 4.2).
package coordinator

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"github.com/mnohosten/collage2pc/pkg/metrics"
	"github.com/mnohosten/collage2pc/pkg/transport"
	"github.com/mnohosten/collage2pc/pkg/wire"
)

// Coordinator holds the process-wide mutable state described in spec 9,
// "Global state": the live commit table, wrapped in a struct constructed at
// process start (possibly populated by recovery) and torn down at exit,
// rather than package-level globals.
type Coordinator struct {
	config  *Config
	logger  *log.Logger
	metrics *metrics.Registry
	network transport.Network

	mu      sync.Mutex
	commits map[string]*commitRecord

	ready    atomic.Bool
	listener io.Closer
}

// New constructs a Coordinator. network is the messaging substrate (spec
// section 6); a *transport.TCPNetwork for production use, a
// *transport.MemNetwork in tests.
func New(config *Config, network transport.Network, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.New(os.Stdout, "", log.LstdFlags)
	}
	return &Coordinator{
		config:  config,
		logger:  logger,
		metrics: metrics.NewRegistry("collage2pc_coordinator"),
		network: network,
		commits: make(map[string]*commitRecord),
	}
}

// Start opens the listener, then runs recovery (spec 4.2) to completion;
// inbound messages for the commits being recovered are routed while it
// runs. Only after every recovery driver has finished does Start mark the
// coordinator ready for StartCommit calls and return.
func (c *Coordinator) Start() error {
	ln, err := c.network.Listen(c.config.listenAddr(), c.handleEnvelope)
	if err != nil {
		return fmt.Errorf("coordinator: listen: %w", err)
	}
	c.listener = ln

	if err := c.recover(); err != nil {
		return fmt.Errorf("coordinator: recovery: %w", err)
	}
	c.ready.Store(true)
	c.logger.Printf("[coordinator] recovery complete, listening on %s", c.config.listenAddr())
	return nil
}

// Stop closes the listener. In-flight drivers are not cancelled; they will
// finish or, on next process start, be picked up by recovery again.
func (c *Coordinator) Stop() error {
	if c.listener == nil {
		return nil
	}
	return c.listener.Close()
}

// Metrics exposes the registry for the admin HTTP surface.
func (c *Coordinator) Metrics() *metrics.Registry { return c.metrics }

// StartCommit begins a new commit (spec 4.1, "Initiation"). sources
// elements must each match "<node_id>:<source_file>" and name only node ids
// present in Config.Participants.
func (c *Coordinator) StartCommit(fileName string, image []byte, sources []string) error {
	if !c.ready.Load() {
		return errors.New("coordinator: still recovering, try again shortly")
	}
	if len(sources) == 0 {
		return ErrNoSources
	}

	perNodeFiles, participants, err := parseSources(sources)
	if err != nil {
		return err
	}
	for _, node := range participants {
		if _, ok := c.config.Participants[node]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownParticipant, node)
		}
	}

	c.mu.Lock()
	if _, exists := c.commits[fileName]; exists {
		c.mu.Unlock()
		return ErrCommitExists
	}
	// Reserve the slot before releasing the lock so a concurrent
	// StartCommit for the same file name cannot race past this check.
	c.commits[fileName] = nil
	c.mu.Unlock()

	commitLog, err := openCommitLog(c.config.LogDir, fileName)
	if err == nil {
		err = commitLog.appendFileName(fileName)
	}
	if err == nil {
		err = commitLog.appendSources(sources)
	}
	if err == nil {
		err = commitLog.appendPhaseOne()
	}
	if err != nil {
		c.mu.Lock()
		delete(c.commits, fileName)
		c.mu.Unlock()
		return err
	}

	rec := newCommitRecord(fileName, image, sources, perNodeFiles, participants, commitLog)
	c.mu.Lock()
	c.commits[fileName] = rec
	c.mu.Unlock()

	c.metrics.IncCommitsStarted()
	go (&driver{c: c, rec: rec}).runFull()
	return nil
}

// handleEnvelope routes an inbound message to the owning commit's vote or
// ack queue (spec 4.1, "Message routing"). Unknown commit ids are dropped
// with a log line.
func (c *Coordinator) handleEnvelope(env wire.Envelope) {
	c.mu.Lock()
	rec, ok := c.commits[env.CommitID]
	c.mu.Unlock()

	if !ok || rec == nil {
		c.logger.Printf("[coordinator] %s: %s %q", errUnknownCommit, env.Type, env.CommitID)
		return
	}

	switch env.Type {
	case wire.CommitAgreement:
		select {
		case rec.voteCh <- vote{node: env.Sender, approve: env.Agreement}:
		default:
			c.logger.Printf("[coordinator] %s: vote queue full, dropping vote from %s", env.CommitID, env.Sender)
		}
	case wire.CommitAck:
		select {
		case rec.ackCh <- env.Sender:
		default:
			c.logger.Printf("[coordinator] %s: ack queue full, dropping ack from %s", env.CommitID, env.Sender)
		}
	default:
		c.logger.Printf("[coordinator] unexpected message type %s for commit %s", env.Type, env.CommitID)
	}
}

// Status is a read-only snapshot of one live commit, for the admin /status
// endpoint.
type Status struct {
	FileName string   `json:"file_name"`
	Phase    string   `json:"phase"`
	Decision string   `json:"decision,omitempty"`
	Nodes    []string `json:"nodes"`
}

// Statuses returns a snapshot of every live (not-yet-done) commit.
func (c *Coordinator) Statuses() []Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Status, 0, len(c.commits))
	for name, rec := range c.commits {
		if rec == nil {
			continue
		}
		rec.mu.Lock()
		s := Status{
			FileName: name,
			Phase:    phaseName(rec.phase),
			Decision: string(rec.decision),
			Nodes:    append([]string(nil), rec.participants...),
		}
		rec.mu.Unlock()
		out = append(out, s)
	}
	return out
}

func phaseName(p commitPhase) string {
	switch p {
	case phaseInit:
		return "init"
	case phasePhaseOne:
		return "phase_one"
	case phasePhaseTwo:
		return "phase_two"
	case phaseDone:
		return "done"
	default:
		return "unknown"
	}
}
