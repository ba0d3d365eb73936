// Package metrics hand-rolls a small Prometheus text exporter, the same
// idiom as laura-db's pkg/metrics/prometheus.go: no client_golang
// dependency appears anywhere in that module's go.mod, so none appears
// here either.
package metrics

import (
	"fmt"
	"io"
	"sync/atomic"
)

// Registry is the set of counters/gauges a coordinator or participant
// process exposes on /metrics. All fields are safe for concurrent use.
type Registry struct {
	namespace string

	commitsStarted   uint64
	commitsCommitted uint64
	commitsAborted   uint64
	commitsDenied    uint64
	phaseTwoResends  uint64

	filesLocked    uint64
	filesCommitted uint64
	filesReleased  uint64
}

// NewRegistry creates a Registry whose metric names are prefixed with
// namespace (e.g. "collage2pc_coordinator").
func NewRegistry(namespace string) *Registry {
	return &Registry{namespace: namespace}
}

func (r *Registry) IncCommitsStarted()   { atomic.AddUint64(&r.commitsStarted, 1) }
func (r *Registry) IncCommitsCommitted() { atomic.AddUint64(&r.commitsCommitted, 1) }
func (r *Registry) IncCommitsAborted()   { atomic.AddUint64(&r.commitsAborted, 1) }
func (r *Registry) IncCommitsDenied()    { atomic.AddUint64(&r.commitsDenied, 1) }
func (r *Registry) IncPhaseTwoResends()  { atomic.AddUint64(&r.phaseTwoResends, 1) }

func (r *Registry) IncFilesLocked()    { atomic.AddUint64(&r.filesLocked, 1) }
func (r *Registry) IncFilesCommitted() { atomic.AddUint64(&r.filesCommitted, 1) }
func (r *Registry) IncFilesReleased()  { atomic.AddUint64(&r.filesReleased, 1) }

// WriteMetrics renders every counter in Prometheus text exposition format.
func (r *Registry) WriteMetrics(w io.Writer) error {
	counters := []struct {
		name  string
		help  string
		value uint64
	}{
		{"commits_started_total", "Total number of commits started", atomic.LoadUint64(&r.commitsStarted)},
		{"commits_committed_total", "Total number of commits that reached a yes decision", atomic.LoadUint64(&r.commitsCommitted)},
		{"commits_aborted_total", "Total number of commits that reached an abort decision", atomic.LoadUint64(&r.commitsAborted)},
		{"commits_denied_total", "Total number of commits that reached a no decision", atomic.LoadUint64(&r.commitsDenied)},
		{"phase_two_resends_total", "Total number of Phase II decision resends", atomic.LoadUint64(&r.phaseTwoResends)},
		{"files_locked_total", "Total number of source files tentatively locked", atomic.LoadUint64(&r.filesLocked)},
		{"files_committed_total", "Total number of source files deleted by a successful commit", atomic.LoadUint64(&r.filesCommitted)},
		{"files_released_total", "Total number of source file locks released without commit", atomic.LoadUint64(&r.filesReleased)},
	}

	for _, c := range counters {
		if err := r.writeCounter(w, c.name, c.help, c.value); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) writeCounter(w io.Writer, name, help string, value uint64) error {
	metricName := r.namespace + "_" + name
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n",
		metricName, help, metricName, metricName, value)
	return err
}
