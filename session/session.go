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

// Package session implements the per-file write-session state machine:
// LOCK acquires a sentence, zero or more WORDs mutate it in memory only,
// and UNLOCK re-reads the file, rebinds by original text, and commits
// atomically. It coordinates the document, lockregistry and filestore
// packages; it knows nothing about wire framing or replication.
package session

import (
	"bytes"
	"strings"

	"github.com/quillfs/quillfs/document"
	"github.com/quillfs/quillfs/errcode"
	"github.com/quillfs/quillfs/filestore"
	"github.com/quillfs/quillfs/lockregistry"
)

const defaultMaxWords = 4096

// Engine runs the LOCK/WORD/UNLOCK state machine for one storage
// server's file shard.
type Engine struct {
	store    *filestore.Store
	registry *lockregistry.Registry
	maxWords int
}

// New builds an Engine over store and registry. maxWords bounds the
// token count a sentence may hold after a WORD edit; zero selects a
// default.
func New(store *filestore.Store, registry *lockregistry.Registry, maxWords int) *Engine {
	if maxWords <= 0 {
		maxWords = defaultMaxWords
	}
	return &Engine{store: store, registry: registry, maxWords: maxWords}
}

// Tokenize splits text on the WORD-level whitespace set (space, tab,
// newline). Exported for read-only consumers such as the STREAM op,
// which walks a file's words without opening a write session.
func Tokenize(text []byte) []string { return tokenize(text) }

func isSentenceDelimiter(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

// tokenize splits on the WORD-level whitespace set (space, tab,
// newline), distinct from the sentence parser's CR-inclusive set.
func tokenize(text []byte) []string {
	return strings.FieldsFunc(string(text), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n'
	})
}

// Lock runs the LOCK(file, idx, user) step. It is idempotent: a second
// LOCK from the same (file, user) pair returns the already-held node.
func (e *Engine) Lock(filename string, idx int, user string) (document.NodeID, error) {
	if existing, ok := e.registry.Find(filename, user); ok {
		return existing.NodeIdentity, nil
	}
	switch e.registry.Check(filename, idx, user) {
	case lockregistry.OwnedByOther:
		return 0, errcode.ErrSentenceLocked
	}

	content, err := e.store.Read(filename)
	if err != nil {
		return 0, err
	}
	doc := document.New(content)
	n := doc.SentenceCount()

	var id document.NodeID
	switch {
	case n == 0 && idx == 0:
		id = doc.AppendEmptySentence(user)
	case idx == n:
		if n == 0 {
			return 0, errcode.ErrInvalidSentence
		}
		lastID, _ := doc.SentenceByIndex(n - 1)
		lastText, _ := doc.Sentence(lastID)
		if len(lastText) == 0 || !isSentenceDelimiter(lastText[len(lastText)-1]) {
			return 0, errcode.ErrInvalidSentence
		}
		id = doc.AppendEmptySentence(user)
	case idx < 0 || idx >= n:
		return 0, errcode.ErrInvalidSentence
	default:
		id, err = doc.SentenceByIndex(idx)
		if err != nil {
			return 0, errcode.ErrInvalidSentence
		}
		if err := doc.Lock(id, user); err != nil {
			return 0, errcode.ErrSentenceLocked
		}
	}

	originalText, err := doc.Sentence(id)
	if err != nil {
		_ = doc.Unlock(id, user)
		return 0, errcode.ErrInvalidSentence
	}
	if _, err := e.registry.Add(filename, user, idx, id, doc, doc.SentenceCount(), originalText); err != nil {
		_ = doc.Unlock(id, user)
		return 0, errcode.ErrRegistryFull
	}
	return id, nil
}

// Word runs one WORD(file, word_idx, new_word, user) step against the
// in-memory session only; the primary file is not written. The first
// WORD of a session copies the on-disk file to its .undo sidecar.
func (e *Engine) Word(filename, user string, wordIdx int, newWord string) error {
	entry, ok := e.registry.Find(filename, user)
	if !ok {
		return errcode.ErrPermissionDenied
	}

	if !entry.UndoSaved {
		if err := e.store.SaveUndo(filename); err != nil {
			return err
		}
		e.registry.MarkUndoSaved(filename, user)
	}

	doc := entry.ListHead
	if wordIdx == -1 {
		if err := doc.Edit(entry.NodeIdentity, []byte(newWord), user); err != nil {
			return errcode.ErrPermissionDenied
		}
		return nil
	}

	current, err := doc.Sentence(entry.NodeIdentity)
	if err != nil {
		return errcode.ErrInvalidSentence
	}
	tokens := tokenize(current)
	w := len(tokens)
	if wordIdx < 0 || wordIdx > w {
		return errcode.ErrInvalidWord
	}
	newTokens := tokenize([]byte(newWord))
	if w+len(newTokens) > e.maxWords {
		return errcode.ErrInvalidWord
	}

	merged := make([]string, 0, w+len(newTokens))
	merged = append(merged, tokens[:wordIdx]...)
	merged = append(merged, newTokens...)
	merged = append(merged, tokens[wordIdx:]...)

	if err := doc.Edit(entry.NodeIdentity, []byte(strings.Join(merged, " ")), user); err != nil {
		return errcode.ErrPermissionDenied
	}
	return nil
}

// decodeNewlines replaces the client's literal <NL> escape with a real
// newline, applied once at UNLOCK commit time.
func decodeNewlines(content []byte) []byte {
	return bytes.ReplaceAll(content, []byte("<NL>"), []byte("\n"))
}

// Unlock runs UNLOCK(file, user): re-reads the on-disk file, rebinds the
// held lock by original text (or as an append), commits the edited
// sentence atomically, updates metadata and stats, and releases the
// session.
func (e *Engine) Unlock(filename, user string) error {
	entry, ok := e.registry.Find(filename, user)
	if !ok {
		return errcode.ErrPermissionDenied
	}

	content, err := e.store.Read(filename)
	if err != nil {
		return err
	}
	current := document.New(content)
	m := current.SentenceCount()

	var targetID document.NodeID
	found := false
	for i := 0; i < m; i++ {
		id, _ := current.SentenceByIndex(i)
		text, _ := current.Sentence(id)
		if bytes.Equal(lockregistry.NormalizeText(text), entry.OriginalText) {
			targetID, found = id, true
			break
		}
	}
	if !found && len(entry.OriginalText) == 0 {
		if m == 0 {
			targetID = current.AppendEmptySentence(user)
			found = true
		} else {
			lastID, _ := current.SentenceByIndex(m - 1)
			lastText, _ := current.Sentence(lastID)
			if len(lastText) == 0 || !isSentenceDelimiter(lastText[len(lastText)-1]) {
				return errcode.ErrInvalidSentence
			}
			targetID = current.AppendEmptySentence(user)
			found = true
		}
	}
	if !found {
		return errcode.ErrInvalidSentence
	}
	if err := current.Lock(targetID, user); err != nil {
		return errcode.ErrInvalidSentence
	}

	editedText, err := entry.ListHead.Sentence(entry.NodeIdentity)
	if err != nil {
		return errcode.ErrInvalidSentence
	}
	if err := current.Edit(targetID, editedText, user); err != nil {
		return errcode.ErrInvalidSentence
	}

	finalContent := decodeNewlines(current.Text())
	if err := e.store.WriteAtomic(filename, finalContent); err != nil {
		return err
	}
	if err := e.store.TouchModified(filename); err != nil {
		return err
	}
	if err := e.store.IncrementStats(filename, user); err != nil {
		return err
	}

	_ = entry.ListHead.Unlock(entry.NodeIdentity, user)
	_ = e.registry.Remove(filename, user)
	return nil
}

// Undo restores filename from its .undo snapshot. It does not require an
// active write session: any reader may issue UNDO, matching the source
// system's file-scoped (not session-scoped) rollback.
func (e *Engine) Undo(filename string) error {
	return e.store.Undo(filename)
}

// CleanupUser releases every write session held by user without
// committing, as happens when the owning connection closes mid-session.
func (e *Engine) CleanupUser(user string) int {
	return e.registry.CleanupUser(user)
}
