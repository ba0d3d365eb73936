package coordinator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mnohosten/collage2pc/pkg/transport"
)

func writeRawLog(t *testing.T, dir, fileName string, lines []string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := logPath(dir, fileName)
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRecoveryPhaseTwoRecoverResumesAndCompletes(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "log")
	compositeDir := t.TempDir()
	composite := filepath.Join(compositeDir, "1.jpg")

	// A decided-yes commit whose composite was already written before the
	// crash (spec 4.1's ordering guarantee): recovery must not touch it,
	// only re-broadcast Phase Two and collect acks.
	if err := os.WriteFile(composite, []byte("already committed"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeRawLog(t, logDir, composite, []string{
		linePrefixFileName + composite,
		linePrefixSources + "a:1.jpg",
		linePhaseOne,
		linePrefixPhaseTwo + string(DecisionYes),
	})

	net := transport.NewMemNetwork()
	fp := newFakeParticipant(net, "a", "node-a", true)

	config := &Config{
		Host:            "coordinator-addr",
		LogDir:          logDir,
		Participants:    map[string]string{"a": "node-a"},
		PhaseOneTimeout: 300 * time.Millisecond,
		PhaseTwoTimeout: 100 * time.Millisecond,
	}
	c := newTestCoordinator(t, config, net)

	waitForNoCommit(t, c, composite, 2*time.Second)

	if fp.seenCount() == 0 {
		t.Fatal("expected the recovered commit to re-broadcast Phase Two to the participant")
	}
	data, err := os.ReadFile(composite)
	if err != nil || string(data) != "already committed" {
		t.Fatalf("composite should be untouched by phase-two-recover, got %q, err=%v", data, err)
	}

	// The resumed log must end with DONE.
	lines, err := os.ReadFile(logPath(logDir, composite))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.HasSuffix(string(lines), lineDone+"\n") {
		t.Fatalf("expected log to end with DONE, got:\n%s", lines)
	}
}

func TestRecoveryPhaseOneAbortDeletesPartialComposite(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "log")
	compositeDir := t.TempDir()
	composite := filepath.Join(compositeDir, "1.jpg")

	if err := os.WriteFile(composite, []byte("partial write"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeRawLog(t, logDir, composite, []string{
		linePrefixFileName + composite,
		linePrefixSources + "a:1.jpg",
		linePhaseOne,
	})

	net := transport.NewMemNetwork()
	fp := newFakeParticipant(net, "a", "node-a", true)

	config := &Config{
		Host:            "coordinator-addr",
		LogDir:          logDir,
		Participants:    map[string]string{"a": "node-a"},
		PhaseOneTimeout: 300 * time.Millisecond,
		PhaseTwoTimeout: 100 * time.Millisecond,
	}
	c := newTestCoordinator(t, config, net)

	waitForNoCommit(t, c, composite, 2*time.Second)

	if _, err := os.Stat(composite); !os.IsNotExist(err) {
		t.Fatal("expected the partial composite to be deleted during phase-one-abort recovery")
	}
	if fp.seenCount() == 0 {
		t.Fatal("expected an abort broadcast to the participant")
	}
}

func TestRecoveryDeadInitNeverContactsParticipants(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "log")
	composite := filepath.Join(t.TempDir(), "1.jpg")

	writeRawLog(t, logDir, composite, []string{
		linePrefixFileName + composite,
		linePrefixSources + "a:1.jpg",
	})

	net := transport.NewMemNetwork()
	fp := newFakeParticipant(net, "a", "node-a", true)

	config := &Config{
		Host:            "coordinator-addr",
		LogDir:          logDir,
		Participants:    map[string]string{"a": "node-a"},
		PhaseOneTimeout: 300 * time.Millisecond,
		PhaseTwoTimeout: 100 * time.Millisecond,
	}
	c := newTestCoordinator(t, config, net)

	waitForNoCommit(t, c, composite, 2*time.Second)

	if fp.seenCount() != 0 {
		t.Fatalf("dead-init recovery must never contact participants, saw %d messages", fp.seenCount())
	}
}

func TestRecoverySkipsDoneCommits(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "log")
	composite := filepath.Join(t.TempDir(), "1.jpg")

	writeRawLog(t, logDir, composite, []string{
		linePrefixFileName + composite,
		linePrefixSources + "a:1.jpg",
		linePhaseOne,
		linePrefixPhaseTwo + string(DecisionYes),
		lineDone,
	})

	net := transport.NewMemNetwork()
	config := &Config{
		Host:            "coordinator-addr",
		LogDir:          logDir,
		Participants:    map[string]string{"a": "node-a"},
		PhaseOneTimeout: 300 * time.Millisecond,
		PhaseTwoTimeout: 100 * time.Millisecond,
	}
	c := newTestCoordinator(t, config, net)

	c.mu.Lock()
	_, live := c.commits[composite]
	c.mu.Unlock()
	if live {
		t.Fatal("a DONE commit must not be resurrected by recovery")
	}
}

func TestRecoveryRejectsCorruptLogFile(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "log")
	composite := filepath.Join(t.TempDir(), "1.jpg")
	writeRawLog(t, logDir, composite, []string{linePrefixFileName + composite, "not a recognized line"})

	net := transport.NewMemNetwork()
	config := &Config{
		Host:         "coordinator-addr",
		LogDir:       logDir,
		Participants: map[string]string{"a": "node-a"},
	}
	c := New(config, net, nil)
	if err := c.Start(); err == nil {
		t.Fatal("expected Start to fail on a corrupt commit log")
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}
