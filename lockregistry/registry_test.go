package lockregistry

import (
	"testing"

	"github.com/quillfs/quillfs/document"
)

func TestAddIsIdempotentForSameUser(t *testing.T) {
	r := New(4)
	d := document.New([]byte("Hi. Bye."))
	id0, _ := d.SentenceByIndex(0)

	e1, err := r.Add("a.txt", "alice", 0, id0, d, 2, []byte("Hi."))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	e2, err := r.Add("a.txt", "alice", 0, id0, d, 2, []byte("Hi."))
	if err != nil {
		t.Fatalf("idempotent add: %v", err)
	}
	if e1 != e2 {
		t.Fatalf("expected the same entry back on idempotent add")
	}
}

func TestRegistryFull(t *testing.T) {
	r := New(1)
	d := document.New([]byte("Hi."))
	id0, _ := d.SentenceByIndex(0)

	if _, err := r.Add("a.txt", "alice", 0, id0, d, 1, []byte("Hi.")); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := r.Add("b.txt", "bob", 0, id0, d, 1, []byte("Hi.")); err != ErrRegistryFull {
		t.Fatalf("expected ErrRegistryFull, got %v", err)
	}
}

func TestCheckIndexBased(t *testing.T) {
	r := New(4)
	d := document.New([]byte("Hi. Bye."))
	id0, _ := d.SentenceByIndex(0)
	if _, err := r.Add("a.txt", "alice", 0, id0, d, 2, []byte("Hi.")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := r.Check("a.txt", 0, "alice"); got != Owned {
		t.Fatalf("expected Owned, got %v", got)
	}
	if got := r.Check("a.txt", 0, "bob"); got != OwnedByOther {
		t.Fatalf("expected OwnedByOther, got %v", got)
	}
	if got := r.Check("a.txt", 1, "bob"); got != NotLocked {
		t.Fatalf("expected NotLocked, got %v", got)
	}
}

func TestCheckByContentSurvivesIndexShift(t *testing.T) {
	r := New(4)
	d := document.New([]byte("Hi. Bye."))
	id0, _ := d.SentenceByIndex(0)
	if _, err := r.Add("a.txt", "alice", 0, id0, d, 2, []byte("Hi.")); err != nil {
		t.Fatalf("add: %v", err)
	}
	// simulate the sentence having moved to index 1 on disk by the time
	// another process reloads the file: content-based check must still
	// find the lock by original_text regardless of SentenceIndexAtLock.
	if got := r.CheckByContent("a.txt", []byte("Hi."), "bob"); got != OwnedByOther {
		t.Fatalf("expected OwnedByOther via content match, got %v", got)
	}
}

func TestCleanupUserReleasesAllEntries(t *testing.T) {
	r := New(4)
	d := document.New([]byte("Hi. Bye."))
	id0, _ := d.SentenceByIndex(0)
	id1, _ := d.SentenceByIndex(1)
	if err := d.Lock(id0, "alice"); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, err := r.Add("a.txt", "alice", 0, id0, d, 2, []byte("Hi.")); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if _, err := r.Add("b.txt", "alice", 1, id1, d, 2, []byte("Bye.")); err != nil {
		t.Fatalf("add b: %v", err)
	}
	if n := r.CleanupUser("alice"); n != 2 {
		t.Fatalf("expected 2 released, got %d", n)
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
}

func TestRemoveByNode(t *testing.T) {
	r := New(4)
	d := document.New([]byte("Hi."))
	id0, _ := d.SentenceByIndex(0)
	e, err := r.Add("a.txt", "alice", 0, id0, d, 1, []byte("Hi."))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := r.RemoveByNode("a.txt", e.SessionID()); err != nil {
		t.Fatalf("remove by node: %v", err)
	}
	if _, ok := r.Find("a.txt", "alice"); ok {
		t.Fatalf("expected entry to be removed")
	}
}
