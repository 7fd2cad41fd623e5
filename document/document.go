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

// Package document layers sentence boundaries and per-sentence write
// locks on top of a piece table.
package document

import (
	"bytes"
	"errors"
	"os"
	"sync"

	"github.com/google/btree"

	"github.com/quillfs/quillfs/piecetable"
)

var (
	ErrInvalidPosition = errors.New("document: invalid sentence position")
	ErrAlreadyLocked   = errors.New("document: sentence already locked by another user")
	ErrNotHolder       = errors.New("document: caller does not hold this sentence's lock")
	ErrLockedSentences = errors.New("document: cannot restore while sentences are locked")
)

// NodeID identifies a sentence boundary. IDs are allocated from a
// monotonically increasing counter at parse time. A held lock's id
// survives re-parse (see reparseWithCarry); every other boundary is
// reassigned a fresh id.
type NodeID uint64

// delimiters that end a sentence.
func isDelimiter(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// boundary is the mutable state of one sentence.
type boundary struct {
	id       NodeID
	start    int
	end      int
	mu       sync.Mutex
	locked   bool
	lockedBy string
}

// Document owns one piece table plus an ordered, mutex-guarded sentence
// view over it.
type Document struct {
	mu         sync.RWMutex
	pt         *piecetable.PT
	boundaries []*boundary // ordered by position, index == sentence ordinal
	byID       map[NodeID]*boundary
	byStart    *btree.BTreeG[*boundary] // ordered by start offset
	nextID     uint64
}

func startLess(a, b *boundary) bool {
	if a.start != b.start {
		return a.start < b.start
	}
	return a.id < b.id
}

// New builds a Document from content, parsing sentences and assigning
// IDs starting from 1.
func New(content []byte) *Document {
	d := &Document{
		pt:      piecetable.New(content),
		byID:    make(map[NodeID]*boundary),
		byStart: btree.NewG[*boundary](8, startLess),
	}
	d.reparseLocked(content)
	return d
}

// parseSentences scans text for sentence-ending delimiters. Inter-
// sentence whitespace is stripped and owned by neither neighboring
// sentence. A non-empty trailing run without a delimiter becomes a
// final sentence. Empty input yields zero sentences.
func parseSentences(text []byte, startID uint64) []struct {
	start, end int
	id         uint64
} {
	type span struct {
		start, end int
		id         uint64
	}
	var spans []span
	nextID := startID
	i := 0
	n := len(text)
	sentStart := -1
	for i < n {
		if sentStart == -1 {
			if isWhitespace(text[i]) {
				i++
				continue
			}
			sentStart = i
		}
		if isDelimiter(text[i]) {
			spans = append(spans, span{start: sentStart, end: i + 1, id: nextID})
			nextID++
			sentStart = -1
			i++
			// skip inter-sentence whitespace run
			for i < n && isWhitespace(text[i]) {
				i++
			}
			continue
		}
		i++
	}
	if sentStart != -1 && sentStart < n {
		spans = append(spans, span{start: sentStart, end: n, id: nextID})
		nextID++
	}
	out := make([]struct {
		start, end int
		id         uint64
	}, len(spans))
	for i, s := range spans {
		out[i] = struct {
			start, end int
			id         uint64
		}{s.start, s.end, s.id}
	}
	return out
}

// reparseLocked rebuilds the boundary list from content. Caller must
// hold d.mu for writing.
func (d *Document) reparseLocked(content []byte) {
	if d.nextID == 0 {
		d.nextID = 1
	}
	spans := parseSentences(content, d.nextID)
	d.boundaries = make([]*boundary, 0, len(spans))
	d.byID = make(map[NodeID]*boundary, len(spans))
	d.byStart = btree.NewG[*boundary](8, startLess)
	for _, s := range spans {
		b := &boundary{id: NodeID(s.id), start: s.start, end: s.end}
		d.boundaries = append(d.boundaries, b)
		d.byID[b.id] = b
		d.byStart.ReplaceOrInsert(b)
		d.nextID = s.id + 1
	}
}

// Reparse re-derives the sentence list from the document's current
// text. Every sentence gets a fresh id and starts unlocked; no held
// lock is carried over (Edit is the path that carries its own lock
// across the re-parse it triggers).
func (d *Document) Reparse() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reparseWithCarry(nil)
}

// carry threads a held lock across reparseLocked. id is the stable
// NodeID the holder already knows about; it is re-keyed onto whichever
// post-reparse boundary is judged to be the same sentence, so the
// holder's id never goes stale even though every other boundary gets a
// freshly allocated id.
type carryLock struct {
	id       NodeID
	start    int
	user     string
	original []byte
}

func (d *Document) reparseWithCarry(carry *carryLock) {
	content := d.pt.Materialize()
	d.reparseLocked(content)
	if carry == nil {
		return
	}
	var candidates []*boundary
	d.byStart.AscendRange(&boundary{start: carry.start}, &boundary{start: carry.start + 1},
		func(b *boundary) bool {
			candidates = append(candidates, b)
			return true
		})
	var target *boundary
	if len(candidates) == 1 {
		target = candidates[0]
	} else if len(candidates) > 1 {
		for _, b := range candidates {
			if bytes.Equal(d.sentenceTextLocked(b), carry.original) {
				target = b
				break
			}
		}
	}
	if target == nil {
		return
	}
	// Re-key the matched boundary under the pre-edit stable id, since
	// reparseLocked assigned it a fresh one.
	delete(d.byID, target.id)
	d.byStart.Delete(target)
	target.id = carry.id
	target.locked = true
	target.lockedBy = carry.user
	d.byID[target.id] = target
	d.byStart.ReplaceOrInsert(target)
}

// Text returns the full materialized document content.
func (d *Document) Text() []byte {
	return d.pt.Materialize()
}

// SentenceCount returns the number of parsed sentences.
func (d *Document) SentenceCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.boundaries)
}

// SentenceByIndex returns the id of the sentence at ordinal position i.
func (d *Document) SentenceByIndex(i int) (NodeID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i < 0 || i >= len(d.boundaries) {
		return 0, ErrInvalidPosition
	}
	return d.boundaries[i].id, nil
}

// Sentence returns the current bytes of the sentence identified by id.
func (d *Document) Sentence(id NodeID) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.byID[id]
	if !ok {
		return nil, ErrInvalidPosition
	}
	return d.sentenceTextLocked(b), nil
}

func (d *Document) sentenceTextLocked(b *boundary) []byte {
	return d.pt.Range(b.start, b.end-b.start)
}

// LockInfo reports whether a sentence is locked and by whom.
func (d *Document) LockInfo(id NodeID) (locked bool, holder string, err error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.byID[id]
	if !ok {
		return false, "", ErrInvalidPosition
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked, b.lockedBy, nil
}

// Lock acquires the sentence mutex for id on behalf of user. Re-locking
// by the current holder is idempotent.
func (d *Document) Lock(id NodeID, user string) error {
	d.mu.RLock()
	b, ok := d.byID[id]
	d.mu.RUnlock()
	if !ok {
		return ErrInvalidPosition
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.locked {
		if b.lockedBy == user {
			return nil
		}
		return ErrAlreadyLocked
	}
	b.locked = true
	b.lockedBy = user
	return nil
}

// Unlock releases the sentence lock. Only the holder may unlock.
func (d *Document) Unlock(id NodeID, user string) error {
	d.mu.RLock()
	b, ok := d.byID[id]
	d.mu.RUnlock()
	if !ok {
		return ErrInvalidPosition
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.locked {
		return nil
	}
	if b.lockedBy != user {
		return ErrNotHolder
	}
	b.locked = false
	b.lockedBy = ""
	return nil
}

// Edit splices new_text into the sentence identified by id (holder
// only), then re-parses the document, carrying the lock forward to the
// sentence at the edit's start offset (or, if that is ambiguous, to the
// sentence whose text still equals the pre-edit original).
func (d *Document) Edit(id NodeID, newText []byte, user string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.byID[id]
	if !ok {
		return ErrInvalidPosition
	}
	b.mu.Lock()
	if !b.locked || b.lockedBy != user {
		b.mu.Unlock()
		return ErrNotHolder
	}
	original := d.sentenceTextLocked(b)
	start, end := b.start, b.end
	b.mu.Unlock()

	if err := d.pt.Delete(start, end-start); err != nil {
		return err
	}
	if err := d.pt.Insert(start, newText); err != nil {
		return err
	}

	d.reparseWithCarry(&carryLock{id: id, start: start, user: user, original: original})
	return nil
}

// AppendEmptySentence appends a new, empty sentence at the end of the
// document and locks it for user in one step. Used by the write-session
// engine for append-mode LOCK and for locking sentence 0 of an empty
// file, where the ordinary parse yields no sentence to lock.
func (d *Document) AppendEmptySentence(user string) NodeID {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pt.Length() > 0 {
		// separating whitespace, owned by neither neighboring sentence
		_ = d.pt.Insert(d.pt.Length(), []byte(" "))
	}
	pos := d.pt.Length()
	if d.nextID == 0 {
		d.nextID = 1
	}
	id := NodeID(d.nextID)
	d.nextID++
	b := &boundary{id: id, start: pos, end: pos, locked: true, lockedBy: user}
	d.boundaries = append(d.boundaries, b)
	d.byID[id] = b
	d.byStart.ReplaceOrInsert(b)
	return id
}

// Save materializes the document and writes it to path.
func (d *Document) Save(path string) error {
	return os.WriteFile(path, d.Text(), 0644)
}

// Load reads path and returns a new Document parsed from its content
// (no lock carry: this is a fresh load).
func Load(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return New(content), nil
}

// Snapshot captures the underlying piece table's state.
type Snapshot struct {
	pt piecetable.Snapshot
}

func (d *Document) Snapshot() Snapshot {
	return Snapshot{pt: d.pt.Snapshot()}
}

// Restore replaces the document's content with a prior snapshot. Refused
// while any sentence is locked.
func (d *Document) Restore(s Snapshot) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range d.boundaries {
		b.mu.Lock()
		locked := b.locked
		b.mu.Unlock()
		if locked {
			return ErrLockedSentences
		}
	}
	d.pt.Restore(s.pt)
	d.reparseLocked(d.pt.Materialize())
	return nil
}
