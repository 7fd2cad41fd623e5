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
	"os"

	"github.com/quillfs/quillfs/errcode"
)

// SaveUndo copies filename's current on-disk content to filename.undo,
// overwriting any prior snapshot (single-level undo).
func (s *Store) SaveUndo(filename string) error {
	content, err := s.Read(filename)
	if err != nil {
		return err
	}
	path, err := s.undoPath(filename)
	if err != nil {
		return err
	}
	if err := ensureParentDir(path); err != nil {
		return errcode.New(errcode.FileOperationFailed, err.Error())
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return errcode.New(errcode.FileOperationFailed, err.Error())
	}
	return nil
}

// Undo overwrites filename with its .undo snapshot. Fails with
// errcode.ErrUndoNotAvailable if no snapshot exists. The .undo sidecar
// is not itself undoable (single-level only).
func (s *Store) Undo(filename string) error {
	path, err := s.undoPath(filename)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errcode.ErrUndoNotAvailable
	}
	return s.WriteAtomic(filename, data)
}

// HasUndo reports whether a .undo snapshot currently exists.
func (s *Store) HasUndo(filename string) bool {
	path, err := s.undoPath(filename)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}
