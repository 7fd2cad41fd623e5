//go:build ceph

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
	"path"
	"strings"
	"sync"

	"github.com/ceph/go-ceph/rados"
)

// CephArchiveConfig addresses a RADOS pool used for offsite checkpoint
// archival.
type CephArchiveConfig struct {
	UserName    string
	ClusterName string
	ConfFile    string
	Pool        string
	Prefix      string
}

type CephArchive struct {
	cfg CephArchiveConfig

	mu     sync.Mutex
	conn   *rados.Conn
	ioctx  *rados.IOContext
	opened bool
}

func NewCephArchive(cfg CephArchiveConfig) *CephArchive {
	return &CephArchive{cfg: cfg}
}

func (a *CephArchive) Name() string { return "ceph" }

func (a *CephArchive) ensureOpen() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.opened {
		return nil
	}

	conn, err := rados.NewConnWithClusterAndUser(a.cfg.ClusterName, a.cfg.UserName)
	if err != nil {
		return fmt.Errorf("ceph archive: new conn: %w", err)
	}
	if a.cfg.ConfFile != "" {
		if err := conn.ReadConfigFile(a.cfg.ConfFile); err != nil {
			return fmt.Errorf("ceph archive: read config: %w", err)
		}
	} else {
		_ = conn.ReadDefaultConfigFile()
	}
	if err := conn.Connect(); err != nil {
		return fmt.Errorf("ceph archive: connect: %w", err)
	}
	ioctx, err := conn.OpenIOContext(a.cfg.Pool)
	if err != nil {
		conn.Shutdown()
		return fmt.Errorf("ceph archive: open pool %s: %w", a.cfg.Pool, err)
	}

	a.conn = conn
	a.ioctx = ioctx
	a.opened = true
	return nil
}

func (a *CephArchive) obj(filename, tag string) string {
	name := filename + "." + tag + ".xz"
	pfx := strings.TrimSuffix(a.cfg.Prefix, "/")
	if pfx == "" {
		return name
	}
	return path.Join(pfx, name)
}

// Put writes the xz-compressed checkpoint as a single RADOS object,
// overwriting any prior archive copy for the same tag.
func (a *CephArchive) Put(filename, tag string, compressed []byte) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	if err := a.ioctx.WriteFull(a.obj(filename, tag), compressed); err != nil {
		return fmt.Errorf("ceph archive: write %s/%s: %w", filename, tag, err)
	}
	return nil
}
