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
	"time"

	"github.com/quillfs/quillfs/errcode"
)

// Read returns the current primary content of filename.
func (s *Store) Read(filename string) ([]byte, error) {
	path, err := s.primaryPath(filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errcode.ErrFileNotFound
	}
	if err != nil {
		return nil, errcode.New(errcode.FileOperationFailed, err.Error())
	}
	return data, nil
}

// Exists reports whether filename's primary file is present. An
// unresolvable filename (escaping the store root) is reported absent
// rather than erroring, since Exists has no error return; mutating
// entry points validate filename explicitly and return
// errcode.ErrInvalidPath before ever consulting Exists.
func (s *Store) Exists(filename string) bool {
	path, err := s.primaryPath(filename)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// WriteAtomic writes content to filename via a temp file in the same
// directory followed by os.Rename, so a crash mid-write never leaves a
// torn primary file.
func (s *Store) WriteAtomic(filename string, content []byte) error {
	path, err := s.primaryPath(filename)
	if err != nil {
		return err
	}
	if err := ensureParentDir(path); err != nil {
		return errcode.New(errcode.FileOperationFailed, err.Error())
	}
	tmp, err := os.CreateTemp(filepathDir(path), ".tmp-*")
	if err != nil {
		return errcode.New(errcode.FileOperationFailed, err.Error())
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errcode.New(errcode.FileOperationFailed, err.Error())
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errcode.New(errcode.FileOperationFailed, err.Error())
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errcode.New(errcode.FileOperationFailed, err.Error())
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errcode.New(errcode.FileOperationFailed, err.Error())
	}
	return nil
}

// Create makes a new, empty file owned by owner, with an initial .meta.
// Fails with errcode.ErrFileExists if the primary already exists.
func (s *Store) Create(filename, owner string) error {
	if _, err := s.primaryPath(filename); err != nil {
		return err
	}
	if s.Exists(filename) {
		return errcode.ErrFileExists
	}
	if err := s.WriteAtomic(filename, nil); err != nil {
		return err
	}
	now := time.Now().Unix()
	return s.writeMeta(filename, Meta{Owner: owner, Created: now, Modified: now})
}

// Delete removes filename and all of its siblings (.meta, .undo,
// .stats, .checkpoint.*).
func (s *Store) Delete(filename string) error {
	primary, err := s.primaryPath(filename)
	if err != nil {
		return err
	}
	if !s.Exists(filename) {
		return errcode.ErrFileNotFound
	}
	s.meta.invalidate(filename)
	metaP, err := s.metaPath(filename)
	if err != nil {
		return err
	}
	undoP, err := s.undoPath(filename)
	if err != nil {
		return err
	}
	statsP, err := s.statsPath(filename)
	if err != nil {
		return err
	}
	for _, p := range []string{primary, metaP, undoP, statsP} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return errcode.New(errcode.FileOperationFailed, err.Error())
		}
	}
	glob, err := s.checkpointGlob(filename)
	if err != nil {
		return err
	}
	matches, _ := globCheckpoints(glob)
	for _, m := range matches {
		os.Remove(m)
	}
	return nil
}

// Move renames filename and its .meta sidecar to newFilename. The
// .undo, .stats and .checkpoint.* siblings are not moved and stay under
// the old name.
func (s *Store) Move(filename, newFilename string) error {
	oldPrimary, err := s.primaryPath(filename)
	if err != nil {
		return err
	}
	newPrimary, err := s.primaryPath(newFilename)
	if err != nil {
		return err
	}
	if !s.Exists(filename) {
		return errcode.ErrFileNotFound
	}
	if s.Exists(newFilename) {
		return errcode.ErrFileExists
	}
	if err := ensureParentDir(newPrimary); err != nil {
		return errcode.New(errcode.FileOperationFailed, err.Error())
	}
	oldMeta, err := s.metaPath(filename)
	if err != nil {
		return err
	}
	newMeta, err := s.metaPath(newFilename)
	if err != nil {
		return err
	}
	renamePairs := [][2]string{
		{oldPrimary, newPrimary},
		{oldMeta, newMeta},
	}
	for _, p := range renamePairs {
		if _, err := os.Stat(p[0]); err != nil {
			continue
		}
		if err := os.Rename(p[0], p[1]); err != nil {
			return errcode.New(errcode.FileOperationFailed, err.Error())
		}
	}
	s.meta.invalidate(filename)
	return nil
}
