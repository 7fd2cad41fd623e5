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
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	nlrm "github.com/launix-de/NonLockingReadMap"

	"github.com/quillfs/quillfs/errcode"
)

// Meta is the decoded content of a file's .meta sidecar.
type Meta struct {
	Owner    string
	Created  int64
	Modified int64
}

// metaCacheEntry adapts Meta into NonLockingReadMap's KeyGetter contract.
// The cache is read on every metadata lookup (INFO, CHECK_MTIME, sync
// manifests) and written only when a .meta is first read from disk or
// rewritten on create or commit — exactly the read-mostly, write-rare
// shape the map is built for.
type metaCacheEntry struct {
	filename string
	meta     Meta
}

func (e *metaCacheEntry) ComputeSize() uint { return uint(len(e.filename)) + 32 }
func (e *metaCacheEntry) GetKey() string    { return e.filename }

type metaCache struct {
	m nlrm.NonLockingReadMap[metaCacheEntry, string]
}

func newMetaCache() *metaCache {
	return &metaCache{m: nlrm.New[metaCacheEntry, string]()}
}

func (c *metaCache) get(filename string) (Meta, bool) {
	e := c.m.Get(filename)
	if e == nil {
		return Meta{}, false
	}
	return e.meta, true
}

func (c *metaCache) set(filename string, meta Meta) {
	c.m.Set(&metaCacheEntry{filename: filename, meta: meta})
}

func (c *metaCache) invalidate(filename string) {
	c.m.Remove(filename)
}

func encodeMeta(m Meta) string {
	return fmt.Sprintf("owner:%s\ncreated:%d\nmodified:%d\n", m.Owner, m.Created, m.Modified)
}

func decodeMeta(data []byte) Meta {
	var m Meta
	for _, line := range strings.Split(string(data), "\n") {
		kv := strings.SplitN(line, ":", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "owner":
			m.Owner = kv[1]
		case "created":
			m.Created, _ = strconv.ParseInt(kv[1], 10, 64)
		case "modified":
			m.Modified, _ = strconv.ParseInt(kv[1], 10, 64)
		}
	}
	return m
}

func (s *Store) writeMeta(filename string, m Meta) error {
	path, err := s.metaPath(filename)
	if err != nil {
		return err
	}
	if err := ensureParentDir(path); err != nil {
		return errcode.New(errcode.FileOperationFailed, err.Error())
	}
	if err := os.WriteFile(path, []byte(encodeMeta(m)), 0644); err != nil {
		return errcode.New(errcode.FileOperationFailed, err.Error())
	}
	s.meta.set(filename, m)
	return nil
}

// ReadMeta returns filename's owner/created/modified metadata, preferring
// the in-memory cache and falling back to disk on a cache miss.
func (s *Store) ReadMeta(filename string) (Meta, error) {
	if m, ok := s.meta.get(filename); ok {
		return m, nil
	}
	path, err := s.metaPath(filename)
	if err != nil {
		return Meta{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Meta{}, errcode.ErrFileNotFound
	}
	m := decodeMeta(data)
	s.meta.set(filename, m)
	return m, nil
}

// TouchModified preserves owner/created and rewrites modified to now.
func (s *Store) TouchModified(filename string) error {
	m, err := s.ReadMeta(filename)
	if err != nil {
		return err
	}
	m.Modified = time.Now().Unix()
	return s.writeMeta(filename, m)
}
