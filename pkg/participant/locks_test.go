package participant

import "testing"

func TestLockTableLockAndOwner(t *testing.T) {
	lt := newLockTable()

	if _, locked := lt.ownerOf("a.jpg"); locked {
		t.Fatal("a fresh table must report no owner")
	}

	lt.lock("a.jpg", "commit-1")
	owner, locked := lt.ownerOf("a.jpg")
	if !locked || owner != "commit-1" {
		t.Fatalf("ownerOf = (%q, %v), want (commit-1, true)", owner, locked)
	}
}

func TestLockTableUnlockOnlyByOwner(t *testing.T) {
	lt := newLockTable()
	lt.lock("a.jpg", "commit-1")

	lt.unlock("a.jpg", "commit-2") // not the owner: no-op
	if _, locked := lt.ownerOf("a.jpg"); !locked {
		t.Fatal("unlock by a non-owner must not release the lock")
	}

	lt.unlock("a.jpg", "commit-1")
	if _, locked := lt.ownerOf("a.jpg"); locked {
		t.Fatal("unlock by the owner must release the lock")
	}
}

func TestLockTableFilesLockedBy(t *testing.T) {
	lt := newLockTable()
	lt.lock("a.jpg", "commit-1")
	lt.lock("b.jpg", "commit-1")
	lt.lock("c.jpg", "commit-2")

	got := lt.filesLockedBy("commit-1")
	if len(got) != 2 {
		t.Fatalf("filesLockedBy(commit-1) = %v, want 2 entries", got)
	}
}

func TestLockTableCommitLockIsStablePerCommit(t *testing.T) {
	lt := newLockTable()
	m1 := lt.commitLock("commit-1")
	m2 := lt.commitLock("commit-1")
	if m1 != m2 {
		t.Fatal("commitLock must return the same mutex for the same commit id")
	}
	m3 := lt.commitLock("commit-2")
	if m1 == m3 {
		t.Fatal("commitLock must return distinct mutexes for distinct commit ids")
	}
}

func TestLockTableSnapshot(t *testing.T) {
	lt := newLockTable()
	lt.lock("a.jpg", "commit-1")

	snap := lt.snapshot()
	snap["b.jpg"] = "commit-2" // mutating the snapshot must not affect the table

	if _, locked := lt.ownerOf("b.jpg"); locked {
		t.Fatal("snapshot must be a copy, not a live view")
	}
}
