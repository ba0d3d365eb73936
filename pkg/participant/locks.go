package participant

import "sync"

// lockTable is the in-memory mapping from source file name to the commit
// id currently holding its tentative lock (spec 3, "Per-file lock entry").
// A file absent from byFile is free. commitMu hands out a coarse
// per-commit-id mutex so handlers for the same commit serialize (I4)
// while disjoint commits still proceed concurrently (spec section 5).
type lockTable struct {
	mu       sync.Mutex
	byFile   map[string]string
	commitMu map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{
		byFile:   make(map[string]string),
		commitMu: make(map[string]*sync.Mutex),
	}
}

func (t *lockTable) commitLock(commitID string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.commitMu[commitID]
	if !ok {
		m = &sync.Mutex{}
		t.commitMu[commitID] = m
	}
	return m
}

// ownerOf reports the commit id currently locking file, if any.
func (t *lockTable) ownerOf(file string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.byFile[file]
	return id, ok
}

// tryLock locks file for commitID and reports true if file was free or
// already locked by commitID; reports false, leaving the table unchanged,
// if file is locked by a different commit. The check and the set happen
// under a single critical section, so two concurrent commit_query handlers
// for different commit ids racing on the same file cannot both win (I4):
// whichever calls tryLock second observes the first's owner and fails.
func (t *lockTable) tryLock(file, commitID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if owner, ok := t.byFile[file]; ok && owner != commitID {
		return false
	}
	t.byFile[file] = commitID
	return true
}

func (t *lockTable) lock(file, commitID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byFile[file] = commitID
}

// unlock removes file's lock only if it is still held by commitID, so a
// stale or repeated unlock for a different commit is a no-op.
func (t *lockTable) unlock(file, commitID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.byFile[file] == commitID {
		delete(t.byFile, file)
	}
}

// filesLockedBy returns every file currently locked by commitID.
func (t *lockTable) filesLockedBy(commitID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for f, id := range t.byFile {
		if id == commitID {
			out = append(out, f)
		}
	}
	return out
}

// snapshot returns a copy of the full lock table, for the admin /status
// endpoint.
func (t *lockTable) snapshot() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]string, len(t.byFile))
	for f, id := range t.byFile {
		out[f] = id
	}
	return out
}
