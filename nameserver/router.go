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

// Package nameserver proxies client REQUEST frames to the storage
// server that owns a given filename, failing over to a configured
// replica when the primary is unreachable. It never touches a file's
// piece table, document, lock registry or on-disk layout directly.
package nameserver

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Route names the primary and, optionally, replica address owning a
// shard of files. Addresses are storage-server websocket URLs, e.g.
// "ws://10.0.0.1:9100/ss".
type Route struct {
	Primary string `json:"primary"`
	Replica string `json:"replica,omitempty"`
}

// routingDoc is the on-disk shape: a default route for filenames with
// no specific entry (new CREATEs land on whichever shard is default),
// plus per-filename overrides.
type routingDoc struct {
	Default Route            `json:"default"`
	Files   map[string]Route `json:"files"`
}

// RoutingTable is a hot-reloadable filename -> Route table, refreshed
// whenever its backing JSON file changes on disk.
type RoutingTable struct {
	path string

	mu      sync.RWMutex
	def     Route
	files   map[string]Route
	watcher *fsnotify.Watcher
}

// NewRoutingTable loads path once and starts watching it for changes.
func NewRoutingTable(path string) (*RoutingTable, error) {
	t := &RoutingTable{path: path}
	if err := t.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("nameserver: routing watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("nameserver: watch %s: %w", path, err)
	}
	t.watcher = watcher
	go t.run()
	return t, nil
}

func (t *RoutingTable) reload() error {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return fmt.Errorf("nameserver: read routing file %s: %w", t.path, err)
	}
	var doc routingDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("nameserver: parse routing file %s: %w", t.path, err)
	}
	t.mu.Lock()
	t.def = doc.Default
	t.files = doc.Files
	t.mu.Unlock()
	return nil
}

func (t *RoutingTable) run() {
	for {
		select {
		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := t.reload(); err != nil {
				log.Printf("nameserver: reload routing file: %v", err)
			}
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("nameserver: routing watcher: %v", err)
		}
	}
}

// Lookup returns the Route for filename, falling back to the table's
// default entry when no specific route is configured.
func (t *RoutingTable) Lookup(filename string) Route {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if r, ok := t.files[filename]; ok {
		return r
	}
	return t.def
}

// Close stops the background watch goroutine.
func (t *RoutingTable) Close() error {
	if t.watcher == nil {
		return nil
	}
	return t.watcher.Close()
}
