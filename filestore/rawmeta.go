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

// ReadMetaBytes returns the raw, undecoded content of filename's .meta
// sidecar, for transfer during a sync exchange.
func (s *Store) ReadMetaBytes(filename string) ([]byte, error) {
	path, err := s.metaPath(filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errcode.ErrFileNotFound
	}
	return data, nil
}

// WriteMetaBytes installs raw .meta sidecar content received from a
// sync peer, invalidating the decoded-meta cache so the next ReadMeta
// re-parses it from disk.
func (s *Store) WriteMetaBytes(filename string, data []byte) error {
	path, err := s.metaPath(filename)
	if err != nil {
		return err
	}
	if err := ensureParentDir(path); err != nil {
		return errcode.New(errcode.FileOperationFailed, err.Error())
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errcode.New(errcode.FileOperationFailed, err.Error())
	}
	s.meta.invalidate(filename)
	return nil
}
