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
	"io/fs"
	"path/filepath"
	"strings"
)

// ManifestEntry is one file's identity for sync comparison.
type ManifestEntry struct {
	Filename string
	Modified int64
}

// siblingSuffixes are sidecar files that never appear as primaries in a
// manifest walk.
var siblingSuffixes = []string{".meta", ".undo", ".stats"}

func isSidecar(rel string) bool {
	for _, suf := range siblingSuffixes {
		if strings.HasSuffix(rel, suf) {
			return true
		}
	}
	return strings.Contains(rel, ".checkpoint.")
}

// Manifest walks the store's root and returns every primary file with
// its last-modified timestamp, for use as the basis of a sync exchange.
func (s *Store) Manifest() ([]ManifestEntry, error) {
	var out []ManifestEntry
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if isSidecar(rel) {
			return nil
		}
		m, err := s.ReadMeta(rel)
		if err != nil {
			return nil // no .meta sidecar yet, skip rather than fail the whole walk
		}
		out = append(out, ManifestEntry{Filename: rel, Modified: m.Modified})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
