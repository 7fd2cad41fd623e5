/*
Copyright (C) 2026  quillfs contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package lockregistry tracks the process-wide table of active write
// sessions, keyed by (filename, user), carrying the identity of the
// locked sentence and the original text captured at LOCK time.
//
// The identity rule: once a LockEntry is created, the sentence it
// guards is identified by its NodeIdentity within the session's private
// sentence list (ListHead) and, across a disk reload, by the
// NFC-normalized bytes of OriginalText — never by numeric index alone. Concurrent
// inserts, deletes, or reverts elsewhere in the file do not invalidate
// an already-admitted lock.
package lockregistry

import (
	"bytes"
	"errors"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/quillfs/quillfs/document"
)

// NormalizeText applies Unicode NFC normalization so that two byte
// sequences which render identically but differ in combining-mark
// composition still compare equal when matching a session's captured
// original text against freshly re-parsed sentence text.
func NormalizeText(b []byte) []byte {
	return norm.NFC.Bytes(b)
}

var (
	ErrRegistryFull = errors.New("lockregistry: registry full")
	ErrNotFound     = errors.New("lockregistry: entry not found")
)

// CheckStatus is the result of an index-based or content-based lock check.
type CheckStatus int

const (
	NotLocked CheckStatus = iota
	Owned
	OwnedByOther
)

// LockEntry is one admitted write session.
type LockEntry struct {
	Filename            string
	Username            string
	SentenceIndexAtLock int
	NodeIdentity        document.NodeID
	ListHead            *document.Document
	SentenceCountAtLock int
	OriginalText        []byte
	UndoSaved           bool

	sessionID uuid.UUID // opaque handle used by remove_by_node's "node" parameter
}

// SessionID returns the opaque handle identifying this admitted session,
// independent of the filename/user key, for use with RemoveByNode.
func (e *LockEntry) SessionID() uuid.UUID { return e.sessionID }

type key struct {
	filename string
	username string
}

// Registry is a bounded, mutex-guarded table of active LockEntries.
type Registry struct {
	mu       sync.Mutex
	maxLocks int
	entries  map[key]*LockEntry
}

// New creates a Registry admitting at most maxLocks concurrent entries.
func New(maxLocks int) *Registry {
	return &Registry{maxLocks: maxLocks, entries: make(map[key]*LockEntry)}
}

// Add admits a new LockEntry. Fails with ErrRegistryFull once maxLocks
// entries are held (unless the session is already present, since LOCK is
// idempotent for the same (filename, user) pair at the session-engine
// layer — callers should check Find first).
func (r *Registry) Add(filename, username string, idx int, node document.NodeID, head *document.Document, count int, originalText []byte) (*LockEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{filename, username}
	if e, ok := r.entries[k]; ok {
		return e, nil
	}
	if len(r.entries) >= r.maxLocks {
		return nil, ErrRegistryFull
	}
	e := &LockEntry{
		Filename:            filename,
		Username:            username,
		SentenceIndexAtLock: idx,
		NodeIdentity:        node,
		ListHead:            head,
		SentenceCountAtLock: count,
		OriginalText:        NormalizeText(append([]byte(nil), originalText...)),
		sessionID:           newNodeIdentity(),
	}
	r.entries[k] = e
	return e, nil
}

// Find returns the active entry for (filename, user), if any.
func (r *Registry) Find(filename, username string) (*LockEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key{filename, username}]
	return e, ok
}

// Check reports the index-based lock status of (filename, idx) with
// respect to user.
func (r *Registry) Check(filename string, idx int, username string) CheckStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, e := range r.entries {
		if k.filename != filename || e.SentenceIndexAtLock != idx {
			continue
		}
		if e.Username == username {
			return Owned
		}
		return OwnedByOther
	}
	return NotLocked
}

// CheckByContent reports the content-based lock status: it matches the
// entry whose stored OriginalText equals the argument.
func (r *Registry) CheckByContent(filename string, originalText []byte, username string) CheckStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	normalized := NormalizeText(originalText)
	for k, e := range r.entries {
		if k.filename != filename || !bytes.Equal(e.OriginalText, normalized) {
			continue
		}
		if e.Username == username {
			return Owned
		}
		return OwnedByOther
	}
	return NotLocked
}

// RemoveByNode releases the entry for (filename, sessionID), tearing
// down the session's private sentence list.
func (r *Registry) RemoveByNode(filename string, sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, e := range r.entries {
		if k.filename != filename || e.sessionID != sessionID {
			continue
		}
		delete(r.entries, k)
		e.ListHead = nil
		return nil
	}
	return ErrNotFound
}

// Remove releases the entry keyed by (filename, user) directly; this is
// the common UNLOCK/cleanup path where the caller already knows the key.
func (r *Registry) Remove(filename, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{filename, username}
	e, ok := r.entries[k]
	if !ok {
		return ErrNotFound
	}
	delete(r.entries, k)
	e.ListHead = nil
	return nil
}

// MarkUndoSaved records that the first WORD of a session has already
// snapshotted the on-disk file to .undo.
func (r *Registry) MarkUndoSaved(filename, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key{filename, username}]; ok {
		e.UndoSaved = true
	}
}

// CleanupUser releases all entries owned by user (invoked on client
// disconnect) and returns the number released.
func (r *Registry) CleanupUser(username string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, e := range r.entries {
		if k.username != username {
			continue
		}
		if e.ListHead != nil {
			if _, holder, err := e.ListHead.LockInfo(e.NodeIdentity); err == nil && holder == username {
				_ = e.ListHead.Unlock(e.NodeIdentity, username)
			}
		}
		delete(r.entries, k)
		n++
	}
	return n
}

// Len returns the number of active entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
