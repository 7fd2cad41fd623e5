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
	"strings"

	"github.com/quillfs/quillfs/errcode"
)

// Stats is the decoded content of a file's .stats sidecar.
type Stats struct {
	TotalEdits int
	PerUser    map[string]int
}

func decodeStats(data []byte) Stats {
	s := Stats{PerUser: make(map[string]int)}
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "total_edits:") {
			s.TotalEdits, _ = strconv.Atoi(strings.TrimPrefix(line, "total_edits:"))
			continue
		}
		if strings.HasPrefix(line, "user:") {
			rest := strings.TrimPrefix(line, "user:")
			idx := strings.LastIndex(rest, ":")
			if idx < 0 {
				continue
			}
			name := rest[:idx]
			n, _ := strconv.Atoi(rest[idx+1:])
			s.PerUser[name] = n
		}
	}
	return s
}

func encodeStats(s Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "total_edits:%d\n", s.TotalEdits)
	users := make([]string, 0, len(s.PerUser))
	for u := range s.PerUser {
		users = append(users, u)
	}
	sort.Strings(users)
	for _, u := range users {
		fmt.Fprintf(&b, "user:%s:%d\n", u, s.PerUser[u])
	}
	return b.String()
}

// ReadStats returns filename's edit statistics, zero-valued if the
// .stats sidecar does not yet exist.
func (s *Store) ReadStats(filename string) (Stats, error) {
	path, err := s.statsPath(filename)
	if err != nil {
		return Stats{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Stats{PerUser: make(map[string]int)}, nil
		}
		return Stats{}, errcode.New(errcode.FileOperationFailed, err.Error())
	}
	return decodeStats(data), nil
}

// IncrementStats bumps total_edits and the per-user counter for user by
// one and persists the result.
func (s *Store) IncrementStats(filename, user string) error {
	st, err := s.ReadStats(filename)
	if err != nil {
		return err
	}
	st.TotalEdits++
	st.PerUser[user]++
	path, err := s.statsPath(filename)
	if err != nil {
		return err
	}
	if err := ensureParentDir(path); err != nil {
		return errcode.New(errcode.FileOperationFailed, err.Error())
	}
	if err := os.WriteFile(path, []byte(encodeStats(st)), 0644); err != nil {
		return errcode.New(errcode.FileOperationFailed, err.Error())
	}
	return nil
}
