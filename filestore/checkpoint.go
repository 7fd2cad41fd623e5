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
	"sort"
	"strconv"
	"time"

	"github.com/quillfs/quillfs/errcode"
)

// CheckpointInfo describes one named checkpoint sibling.
type CheckpointInfo struct {
	Tag       string
	CreatedAt int64
}

// Checkpoint copies filename's current content to a named sibling.
// Fails with errcode.ErrCheckpointExists if the tag is already taken.
func (s *Store) Checkpoint(filename, tag string) error {
	cpPath, err := s.checkpointPath(filename, tag)
	if err != nil {
		return err
	}
	if _, err := os.Stat(cpPath); err == nil {
		return errcode.ErrCheckpointExists
	}
	content, err := s.Read(filename)
	if err != nil {
		return err
	}
	if err := ensureParentDir(cpPath); err != nil {
		return errcode.New(errcode.FileOperationFailed, err.Error())
	}
	if err := os.WriteFile(cpPath, content, 0644); err != nil {
		return errcode.New(errcode.FileOperationFailed, err.Error())
	}
	metaPath, err := s.checkpointMetaPath(filename, tag)
	if err != nil {
		return err
	}
	created := fmt.Sprintf("created:%d\n", time.Now().Unix())
	if err := os.WriteFile(metaPath, []byte(created), 0644); err != nil {
		return errcode.New(errcode.FileOperationFailed, err.Error())
	}
	return nil
}

// ViewCheckpoint returns the bytes of a named checkpoint.
func (s *Store) ViewCheckpoint(filename, tag string) ([]byte, error) {
	cpPath, err := s.checkpointPath(filename, tag)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(cpPath)
	if err != nil {
		return nil, errcode.ErrCheckpointNotFound
	}
	return data, nil
}

// Revert snapshots the current content to .undo, then atomically
// replaces filename with the named checkpoint's content.
func (s *Store) Revert(filename, tag string) error {
	content, err := s.ViewCheckpoint(filename, tag)
	if err != nil {
		return err
	}
	if s.Exists(filename) {
		if err := s.SaveUndo(filename); err != nil {
			return err
		}
	}
	return s.WriteAtomic(filename, content)
}

// ListCheckpoints scans filename's sibling directory entries matching
// file.checkpoint.* (excluding the .meta auxiliaries), pairing each tag
// with its recorded creation timestamp.
func (s *Store) ListCheckpoints(filename string) ([]CheckpointInfo, error) {
	glob, err := s.checkpointGlob(filename)
	if err != nil {
		return nil, err
	}
	matches, err := globCheckpoints(glob)
	if err != nil {
		return nil, errcode.New(errcode.FileOperationFailed, err.Error())
	}
	primary, err := s.primaryPath(filename)
	if err != nil {
		return nil, err
	}
	var out []CheckpointInfo
	for _, m := range matches {
		tag, isMeta, ok := checkpointTag(primary, m)
		if !ok || isMeta {
			continue
		}
		info := CheckpointInfo{Tag: tag}
		if cpMetaPath, err := s.checkpointMetaPath(filename, tag); err == nil {
			if data, err := os.ReadFile(cpMetaPath); err == nil {
				info.CreatedAt = parseCreatedAt(data)
			}
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out, nil
}

func parseCreatedAt(data []byte) int64 {
	const prefix = "created:"
	s := string(data)
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		end := len(s)
		for i := len(prefix); i < len(s); i++ {
			if s[i] == '\n' {
				end = i
				break
			}
		}
		if n, err := strconv.ParseInt(s[len(prefix):end], 10, 64); err == nil {
			return n
		}
	}
	return 0
}
