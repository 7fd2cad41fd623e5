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

// Package filestore implements the on-disk representation of a storage
// server's file shard: the primary file plus its .meta, .undo, .stats
// and .checkpoint.<tag> siblings, with write-to-temp-plus-rename commits.
package filestore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/quillfs/quillfs/errcode"
)

// Store owns one storage server's root directory. Logical filenames may
// contain slashes; parent directories are created automatically.
type Store struct {
	root    string
	meta    *metaCache
	archive ArchiveBackend // optional, nil disables offsite checkpoint archival
}

// New creates a Store rooted at dir (created if missing).
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, err
	}
	return &Store{root: dir, meta: newMetaCache()}, nil
}

// SetArchive installs an optional offsite checkpoint archival backend.
func (s *Store) SetArchive(a ArchiveBackend) { s.archive = a }

// cleanRelFilename validates filename as a clean, relative path that
// cannot reach outside a store's root: no empty string, no absolute
// path, no "." or ".." segments surviving filepath.Clean.
func cleanRelFilename(filename string) (string, error) {
	if filename == "" {
		return "", errcode.New(errcode.InvalidPath, "empty filename")
	}
	norm := filepath.FromSlash(filename)
	if filepath.IsAbs(norm) {
		return "", errcode.New(errcode.InvalidPath, "absolute path")
	}
	if filepath.Clean(norm) != norm {
		return "", errcode.New(errcode.InvalidPath, "path must be clean")
	}
	if norm == "." || norm == ".." || strings.HasPrefix(norm, ".."+string(filepath.Separator)) {
		return "", errcode.New(errcode.InvalidPath, "path escapes store root")
	}
	return norm, nil
}

// primaryPath resolves filename to its absolute location under s.root,
// rejecting anything that would resolve outside of it.
func (s *Store) primaryPath(filename string) (string, error) {
	norm, err := cleanRelFilename(filename)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.root, norm)
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errcode.New(errcode.InvalidPath, "path escapes store root")
	}
	return full, nil
}

func (s *Store) metaPath(filename string) (string, error) {
	p, err := s.primaryPath(filename)
	if err != nil {
		return "", err
	}
	return p + ".meta", nil
}

func (s *Store) undoPath(filename string) (string, error) {
	p, err := s.primaryPath(filename)
	if err != nil {
		return "", err
	}
	return p + ".undo", nil
}

func (s *Store) statsPath(filename string) (string, error) {
	p, err := s.primaryPath(filename)
	if err != nil {
		return "", err
	}
	return p + ".stats", nil
}

func (s *Store) checkpointPath(filename, tag string) (string, error) {
	p, err := s.primaryPath(filename)
	if err != nil {
		return "", err
	}
	return p + ".checkpoint." + tag, nil
}

func (s *Store) checkpointMetaPath(filename, tag string) (string, error) {
	p, err := s.checkpointPath(filename, tag)
	if err != nil {
		return "", err
	}
	return p + ".meta", nil
}

func (s *Store) checkpointGlob(filename string) (string, error) {
	p, err := s.primaryPath(filename)
	if err != nil {
		return "", err
	}
	return p + ".checkpoint.*", nil
}

// checkpointTag extracts the tag from a sibling path produced by
// checkpointGlob, excluding the ".meta" auxiliary files.
func checkpointTag(primary, path string) (tag string, isMeta bool, ok bool) {
	prefix := primary + ".checkpoint."
	if !strings.HasPrefix(path, prefix) {
		return "", false, false
	}
	rest := path[len(prefix):]
	if strings.HasSuffix(rest, ".meta") {
		return strings.TrimSuffix(rest, ".meta"), true, true
	}
	return rest, false, true
}

func ensureParentDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0750)
}
