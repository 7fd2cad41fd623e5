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

package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Permissions maps a filename to the username allowed to create/own it;
// an empty owner means any user may create that file. The name server
// consults this table on CREATE only: a CREATE for a listed path from
// any user other than its owner is refused.
type Permissions map[string]string

// PermWatcher holds a hot-reloadable Permissions table backed by a JSON
// file on disk, refreshed whenever fsnotify reports the file changed.
type PermWatcher struct {
	path string

	mu    sync.RWMutex
	table Permissions

	watcher *fsnotify.Watcher
}

// NewPermWatcher loads path once and starts watching it for changes.
// Call Close to stop the background watch goroutine.
func NewPermWatcher(path string) (*PermWatcher, error) {
	w := &PermWatcher{path: path}
	if err := w.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: permission watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.watcher = watcher

	go w.run()
	return w, nil
}

func (w *PermWatcher) reload() error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("config: read permission file %s: %w", w.path, err)
	}
	var table Permissions
	if err := json.Unmarshal(data, &table); err != nil {
		return fmt.Errorf("config: parse permission file %s: %w", w.path, err)
	}
	w.mu.Lock()
	w.table = table
	w.mu.Unlock()
	return nil
}

func (w *PermWatcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := w.reload(); err != nil {
				log.Printf("config: reload permission file: %v", err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("config: permission watcher: %v", err)
		}
	}
}

// Owner returns the configured owner of filename, or "" if the file has
// no entry (any user may create/claim it).
func (w *PermWatcher) Owner(filename string) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.table[filename]
}

// Close stops the background watch goroutine.
func (w *PermWatcher) Close() error {
	if w.watcher == nil {
		return nil
	}
	return w.watcher.Close()
}
