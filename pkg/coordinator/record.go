package coordinator

import (
	"fmt"
	"strings"
	"sync"
)

// commitPhase is the coordinator-side phase of a live commit (spec 3,
// `phase: one of {init, phase_one, phase_two(decision), done}`).
type commitPhase int

const (
	phaseInit commitPhase = iota
	phasePhaseOne
	phasePhaseTwo
	phaseDone
)

// vote is one participant's Phase I reply, delivered on a commit's vote
// queue.
type vote struct {
	node    string
	approve bool
}

// commitRecord is the coordinator's in-memory state for one live commit
// (spec 3, "Commit record (coordinator)").
type commitRecord struct {
	fileName     string
	sources      []string // raw "node:file" pairs, order preserved
	perNodeFiles map[string][]string
	participants []string // distinct node ids, first-seen order
	image        []byte

	mu       sync.Mutex
	phase    commitPhase
	decision Decision

	voteCh chan vote
	ackCh  chan string

	log *commitLog
}

// parseSources splits "<node_id>:<source_file>" pairs into a per-node file
// map and the distinct participant list in first-seen order (spec 4.1 step
// 2).
func parseSources(sources []string) (map[string][]string, []string, error) {
	perNode := make(map[string][]string)
	var order []string
	for _, s := range sources {
		node, file, ok := strings.Cut(s, ":")
		if !ok || node == "" || file == "" {
			return nil, nil, fmt.Errorf("coordinator: malformed source %q, want <node_id>:<source_file>", s)
		}
		if _, seen := perNode[node]; !seen {
			order = append(order, node)
		}
		perNode[node] = append(perNode[node], file)
	}
	return perNode, order, nil
}

func newCommitRecord(fileName string, image []byte, sources []string, perNodeFiles map[string][]string, participants []string, log *commitLog) *commitRecord {
	return &commitRecord{
		fileName:     fileName,
		sources:      sources,
		perNodeFiles: perNodeFiles,
		participants: participants,
		image:        image,
		phase:        phaseInit,
		voteCh:       make(chan vote, len(participants)+1),
		ackCh:        make(chan string, len(participants)+1),
		log:          log,
	}
}

func (r *commitRecord) setPhase(p commitPhase) {
	r.mu.Lock()
	r.phase = p
	r.mu.Unlock()
}
