// Package participant implements the 2PC participant side: the per-file
// lock table, its handlers for the three inbound message kinds, the
// durable lock-transition log, and startup recovery (spec sections 4.3,
// 4.4).
package participant

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/mnohosten/collage2pc/pkg/metrics"
	"github.com/mnohosten/collage2pc/pkg/transport"
	"github.com/mnohosten/collage2pc/pkg/wire"
)

// recoveryPollInterval is how often dispatch re-checks the recovered flag
// while a message arrives mid-recovery (spec section 5, "a spin-wait with a
// small sleep").
const recoveryPollInterval = 50 * time.Millisecond

// Oracle is the operator decision function assumed by spec section 6:
// ask_user(image, file_names) -> bool. A nil Oracle is never valid; callers
// pass one explicitly (AlwaysApprove/AlwaysDeny in tests, a real prompt in
// production).
type Oracle func(image []byte, files []string) bool

// AlwaysApprove is an Oracle that approves every request.
func AlwaysApprove([]byte, []string) bool { return true }

// AlwaysDeny is an Oracle that denies every request.
func AlwaysDeny([]byte, []string) bool { return false }

// Participant holds the process-wide mutable state described in spec 9,
// "Global state": the lock table, constructed at process start (possibly
// populated by recovery) and mutated only via the documented handlers.
type Participant struct {
	config  *Config
	oracle  Oracle
	logger  *log.Logger
	metrics *metrics.Registry
	network transport.Network

	locks *lockTable
	log   *participantLog

	recovered atomic.Bool
	listener  io.Closer
}

// New constructs a Participant. network is the messaging substrate; oracle
// is the operator decision function for incoming commit_query messages.
func New(config *Config, network transport.Network, oracle Oracle, logger *log.Logger) *Participant {
	if logger == nil {
		logger = log.New(os.Stdout, "", log.LstdFlags)
	}
	return &Participant{
		config:  config,
		oracle:  oracle,
		logger:  logger,
		metrics: metrics.NewRegistry("collage2pc_participant"),
		network: network,
		locks:   newLockTable(),
	}
}

// Metrics exposes the registry for the admin HTTP surface.
func (p *Participant) Metrics() *metrics.Registry { return p.metrics }

// Start opens the listener immediately, then replays the local log to
// rebuild the lock table (spec 4.4). Messages that arrive while recovery is
// still running are held in dispatch's spin-wait (spec section 5) rather
// than dropped.
func (p *Participant) Start() error {
	logPath := filepath.Join(p.config.LogDir, "log.txt")
	l, err := openParticipantLog(logPath)
	if err != nil {
		return err
	}
	p.log = l

	ln, err := p.network.Listen(p.config.listenAddr(), p.dispatch)
	if err != nil {
		return err
	}
	p.listener = ln

	if err := p.recover(logPath); err != nil {
		return err
	}
	p.recovered.Store(true)
	p.logger.Printf("[participant %s] recovery complete, listening on %s", p.config.NodeID, p.config.listenAddr())
	return nil
}

// Stop closes the listener and the log file.
func (p *Participant) Stop() error {
	var err error
	if p.listener != nil {
		err = p.listener.Close()
	}
	if p.log != nil {
		if cerr := p.log.close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// dispatch is the demultiplexer for inbound envelopes. It spin-waits for
// recovery to finish (spec section 5) before routing to a handler; handlers
// for a single commit id then serialize via lockTable's coarse per-commit
// mutex.
func (p *Participant) dispatch(env wire.Envelope) {
	for !p.recovered.Load() {
		time.Sleep(recoveryPollInterval)
	}

	switch env.Type {
	case wire.CommitQuery:
		p.handleQuery(env)
	case wire.CommitMsg:
		p.handleCommitMsg(env)
	case wire.CommitAbort:
		p.handleAbort(env)
	default:
		p.logger.Printf("[participant %s] unexpected message type %s", p.config.NodeID, env.Type)
	}
}

func (p *Participant) sourcePath(name string) string {
	if p.config.SourceDir == "" {
		return name
	}
	return filepath.Join(p.config.SourceDir, name)
}

func (p *Participant) reply(env wire.Envelope) {
	if err := p.network.Send(env.ReplyAddr, env); err != nil {
		p.logger.Printf("[participant %s] reply to %s failed: %v", p.config.NodeID, env.ReplyAddr, err)
	}
}

// Status is a read-only snapshot of this participant's lock table, for the
// admin /status endpoint.
type Status struct {
	Locks map[string]string `json:"locks"`
}

func (p *Participant) StatusSnapshot() Status {
	return Status{Locks: p.locks.snapshot()}
}
