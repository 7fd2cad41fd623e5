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
	"bytes"

	"github.com/ulikunitz/xz"
)

// ArchiveBackend is an optional, additive offsite target for checkpoint
// backups. It is never authoritative: ViewCheckpoint, Revert and
// ListCheckpoints always consult local disk first and never fall back
// to the archive.
type ArchiveBackend interface {
	// Put uploads the (already compressed) checkpoint bytes for
	// filename/tag.
	Put(filename, tag string, compressed []byte) error
	Name() string
}

// ArchiveCheckpoint xz-compresses a local checkpoint and uploads it to
// the configured archive backend, if any. A nil backend makes this a
// no-op so archival is purely additive.
func (s *Store) ArchiveCheckpoint(filename, tag string) error {
	if s.archive == nil {
		return nil
	}
	content, err := s.ViewCheckpoint(filename, tag)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return err
	}
	if _, err := w.Write(content); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return s.archive.Put(filename, tag, buf.Bytes())
}
