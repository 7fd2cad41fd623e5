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

package filestore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/quillfs/quillfs/errcode"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestCreateWritesEmptyFileAndMeta(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create("doc.txt", "alice"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !s.Exists("doc.txt") {
		t.Fatal("expected file to exist")
	}
	m, err := s.ReadMeta("doc.txt")
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	if m.Owner != "alice" || m.Created == 0 || m.Modified != m.Created {
		t.Fatalf("unexpected meta: %+v", m)
	}
	if err := s.Create("doc.txt", "bob"); !errors.Is(err, errcode.ErrFileExists) {
		t.Fatalf("expected ErrFileExists, got %v", err)
	}
}

func TestWriteAtomicLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	if err := s.WriteAtomic("a.txt", []byte("hello world")); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	got, err := s.Read("a.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("unexpected content: %q", got)
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if ok, _ := filepath.Match(".tmp-*", e.Name()); ok {
			t.Fatalf("leftover temp file: %s", e.Name())
		}
	}
}

func TestReadMissingFileReturnsFileNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Read("nope.txt"); !errors.Is(err, errcode.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestDeleteRemovesAllSiblings(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "doc.txt", "alice")
	mustWrite(t, s, "doc.txt", []byte("one two three."))
	if err := s.Checkpoint("doc.txt", "v1"); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if err := s.SaveUndo("doc.txt"); err != nil {
		t.Fatalf("SaveUndo: %v", err)
	}
	if err := s.IncrementStats("doc.txt", "alice"); err != nil {
		t.Fatalf("IncrementStats: %v", err)
	}

	if err := s.Delete("doc.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Exists("doc.txt") {
		t.Fatal("primary should be gone")
	}
	if s.HasUndo("doc.txt") {
		t.Fatal("undo sidecar should be gone")
	}
	if cps, _ := s.ListCheckpoints("doc.txt"); len(cps) != 0 {
		t.Fatalf("expected no checkpoints, got %v", cps)
	}
	if err := s.Delete("doc.txt"); !errors.Is(err, errcode.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound on second delete, got %v", err)
	}
}

func TestMoveRenamesPrimaryAndMeta(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "old.txt", "alice")
	mustWrite(t, s, "old.txt", []byte("content"))

	if err := s.Move("old.txt", "new.txt"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if s.Exists("old.txt") {
		t.Fatal("old name should no longer exist")
	}
	if !s.Exists("new.txt") {
		t.Fatal("new name should exist")
	}
	m, err := s.ReadMeta("new.txt")
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	if m.Owner != "alice" {
		t.Fatalf("meta should carry over, got %+v", m)
	}

	mustCreate(t, s, "taken.txt", "bob")
	if err := s.Move("new.txt", "taken.txt"); !errors.Is(err, errcode.ErrFileExists) {
		t.Fatalf("expected ErrFileExists, got %v", err)
	}
}

func TestMetaCacheInvalidatedOnMoveAndDelete(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "doc.txt", "alice")
	if _, err := s.ReadMeta("doc.txt"); err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	if err := s.Move("doc.txt", "doc2.txt"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if _, err := s.ReadMeta("doc.txt"); !errors.Is(err, errcode.ErrFileNotFound) {
		t.Fatalf("expected stale cache entry to be gone, got %v", err)
	}
	if _, err := s.ReadMeta("doc2.txt"); err != nil {
		t.Fatalf("ReadMeta after move: %v", err)
	}
	if err := s.Delete("doc2.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.ReadMeta("doc2.txt"); !errors.Is(err, errcode.ErrFileNotFound) {
		t.Fatalf("expected cache entry to be gone after delete, got %v", err)
	}
}

func TestStatsIncrementAccumulatesPerUser(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "doc.txt", "alice")
	for i := 0; i < 3; i++ {
		if err := s.IncrementStats("doc.txt", "alice"); err != nil {
			t.Fatalf("IncrementStats: %v", err)
		}
	}
	if err := s.IncrementStats("doc.txt", "bob"); err != nil {
		t.Fatalf("IncrementStats: %v", err)
	}
	st, err := s.ReadStats("doc.txt")
	if err != nil {
		t.Fatalf("ReadStats: %v", err)
	}
	if st.TotalEdits != 4 || st.PerUser["alice"] != 3 || st.PerUser["bob"] != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestUndoRoundTrip(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "doc.txt", "alice")
	mustWrite(t, s, "doc.txt", []byte("version one"))

	if err := s.Undo("doc.txt"); !errors.Is(err, errcode.ErrUndoNotAvailable) {
		t.Fatalf("expected ErrUndoNotAvailable, got %v", err)
	}

	if err := s.SaveUndo("doc.txt"); err != nil {
		t.Fatalf("SaveUndo: %v", err)
	}
	mustWrite(t, s, "doc.txt", []byte("version two"))

	if err := s.Undo("doc.txt"); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	got, _ := s.Read("doc.txt")
	if string(got) != "version one" {
		t.Fatalf("expected undo to restore version one, got %q", got)
	}
}

func TestCheckpointLifecycle(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "doc.txt", "alice")
	mustWrite(t, s, "doc.txt", []byte("first draft"))

	if err := s.Checkpoint("doc.txt", "v1"); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if err := s.Checkpoint("doc.txt", "v1"); !errors.Is(err, errcode.ErrCheckpointExists) {
		t.Fatalf("expected ErrCheckpointExists, got %v", err)
	}

	mustWrite(t, s, "doc.txt", []byte("second draft"))
	if err := s.Checkpoint("doc.txt", "v2"); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}

	content, err := s.ViewCheckpoint("doc.txt", "v1")
	if err != nil || string(content) != "first draft" {
		t.Fatalf("ViewCheckpoint v1: %q, %v", content, err)
	}

	if _, err := s.ViewCheckpoint("doc.txt", "missing"); !errors.Is(err, errcode.ErrCheckpointNotFound) {
		t.Fatalf("expected ErrCheckpointNotFound, got %v", err)
	}

	cps, err := s.ListCheckpoints("doc.txt")
	if err != nil {
		t.Fatalf("ListCheckpoints: %v", err)
	}
	if len(cps) != 2 || cps[0].Tag != "v1" || cps[1].Tag != "v2" {
		t.Fatalf("unexpected checkpoint list: %+v", cps)
	}
	for _, cp := range cps {
		if cp.CreatedAt == 0 {
			t.Fatalf("expected non-zero CreatedAt for %s", cp.Tag)
		}
	}

	if err := s.Revert("doc.txt", "v1"); err != nil {
		t.Fatalf("Revert: %v", err)
	}
	got, _ := s.Read("doc.txt")
	if string(got) != "first draft" {
		t.Fatalf("expected revert to restore v1 content, got %q", got)
	}
	if !s.HasUndo("doc.txt") {
		t.Fatal("Revert should snapshot prior content to .undo")
	}
	undone, _ := s.Read("doc.txt")
	if err := s.Undo("doc.txt"); err != nil {
		t.Fatalf("Undo after revert: %v", err)
	}
	got, _ = s.Read("doc.txt")
	if string(got) != "second draft" {
		t.Fatalf("expected undo-after-revert to restore second draft, got %q (pre-undo was %q)", got, undone)
	}
}

type fakeArchive struct {
	puts map[string][]byte
}

func (f *fakeArchive) Name() string { return "fake" }
func (f *fakeArchive) Put(filename, tag string, compressed []byte) error {
	if f.puts == nil {
		f.puts = make(map[string][]byte)
	}
	f.puts[filename+"/"+tag] = compressed
	return nil
}

func TestArchiveCheckpointIsNoopWithoutBackend(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "doc.txt", "alice")
	mustWrite(t, s, "doc.txt", []byte("content"))
	if err := s.Checkpoint("doc.txt", "v1"); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if err := s.ArchiveCheckpoint("doc.txt", "v1"); err != nil {
		t.Fatalf("ArchiveCheckpoint with no backend should be a no-op, got %v", err)
	}
}

func TestArchiveCheckpointUploadsCompressedBytes(t *testing.T) {
	s := newTestStore(t)
	fa := &fakeArchive{}
	s.SetArchive(fa)
	mustCreate(t, s, "doc.txt", "alice")
	mustWrite(t, s, "doc.txt", []byte("content to archive"))
	if err := s.Checkpoint("doc.txt", "v1"); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if err := s.ArchiveCheckpoint("doc.txt", "v1"); err != nil {
		t.Fatalf("ArchiveCheckpoint: %v", err)
	}
	if _, ok := fa.puts["doc.txt/v1"]; !ok {
		t.Fatal("expected archive backend to receive the checkpoint")
	}
}

func TestPathTraversalRejected(t *testing.T) {
	s := newTestStore(t)
	bad := []string{
		"../escape.txt",
		"../../etc/passwd",
		"a/../../b.txt",
		"/etc/passwd",
		"",
		".",
		"..",
	}
	for _, name := range bad {
		if _, err := s.Read(name); !errors.Is(err, errcode.ErrInvalidPath) {
			t.Errorf("Read(%q): expected ErrInvalidPath, got %v", name, err)
		}
		if err := s.Create(name, "alice"); !errors.Is(err, errcode.ErrInvalidPath) {
			t.Errorf("Create(%q): expected ErrInvalidPath, got %v", name, err)
		}
		if err := s.WriteAtomic(name, []byte("x")); !errors.Is(err, errcode.ErrInvalidPath) {
			t.Errorf("WriteAtomic(%q): expected ErrInvalidPath, got %v", name, err)
		}
		if err := s.Delete(name); !errors.Is(err, errcode.ErrInvalidPath) {
			t.Errorf("Delete(%q): expected ErrInvalidPath, got %v", name, err)
		}
		if err := s.Move(name, "dest.txt"); !errors.Is(err, errcode.ErrInvalidPath) {
			t.Errorf("Move(%q, dest): expected ErrInvalidPath, got %v", name, err)
		}
		if s.Exists(name) {
			t.Errorf("Exists(%q): expected false for an invalid path", name)
		}
	}

	mustCreate(t, s, "legit.txt", "alice")
	if err := s.Move("legit.txt", "../escape.txt"); !errors.Is(err, errcode.ErrInvalidPath) {
		t.Fatalf("Move to escaping destination: expected ErrInvalidPath, got %v", err)
	}

	// Confirm the traversal attempt never reached outside the store root.
	if _, err := os.Stat(filepath.Join(filepath.Dir(s.root), "escape.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected no file written outside the store root, stat err = %v", err)
	}
}

func mustCreate(t *testing.T, s *Store, filename, owner string) {
	t.Helper()
	if err := s.Create(filename, owner); err != nil {
		t.Fatalf("Create(%s): %v", filename, err)
	}
}

func mustWrite(t *testing.T, s *Store, filename string, content []byte) {
	t.Helper()
	if err := s.WriteAtomic(filename, content); err != nil {
		t.Fatalf("WriteAtomic(%s): %v", filename, err)
	}
}
