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

// Package config loads the JSON server configuration that the storage
// server binary reads at startup, parses its human-readable resource
// limits, and wires graceful-shutdown hooks the way the teacher's
// storage/settings.go registers its trace-file cleanup.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	units "github.com/docker/go-units"

	"github.com/quillfs/quillfs/filestore"
)

// S3ArchiveSettings mirrors filestore.S3ArchiveConfig for JSON loading.
type S3ArchiveSettings struct {
	AccessKeyID     string `json:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty"`
	Region          string `json:"region,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"`
	Bucket          string `json:"bucket,omitempty"`
	Prefix          string `json:"prefix,omitempty"`
	ForcePathStyle  bool   `json:"force_path_style,omitempty"`
}

// CephArchiveSettings mirrors filestore.CephArchiveConfig for JSON loading.
type CephArchiveSettings struct {
	UserName    string `json:"user_name,omitempty"`
	ClusterName string `json:"cluster_name,omitempty"`
	ConfFile    string `json:"conf_file,omitempty"`
	Pool        string `json:"pool,omitempty"`
	Prefix      string `json:"prefix,omitempty"`
}

// Limits holds resource bounds. MaxFileSize is a human-readable string
// on disk (e.g. "8MB"), resolved to bytes by Resolve; the other bounds
// are plain integers.
type Limits struct {
	MaxLocks       int    `json:"max_locks"`
	MaxFiles       int    `json:"max_files"`
	MaxLockedFiles int    `json:"max_locked_files"`
	MaxWords       int    `json:"max_words"`
	MaxFileSize    string `json:"max_file_size"`

	maxFileSizeBytes int64
}

// Resolve parses MaxFileSize ("8MB", "512KiB", ...) via go-units,
// matching the size/unit parsing idiom the ecosystem uses for
// human-facing resource configuration.
func (l *Limits) Resolve() error {
	if l.MaxFileSize == "" {
		l.maxFileSizeBytes = 0
		return nil
	}
	n, err := units.RAMInBytes(l.MaxFileSize)
	if err != nil {
		return fmt.Errorf("config: max_file_size %q: %w", l.MaxFileSize, err)
	}
	l.maxFileSizeBytes = n
	return nil
}

// MaxFileSizeBytes returns the resolved byte bound. Call Resolve first.
func (l *Limits) MaxFileSizeBytes() int64 { return l.maxFileSizeBytes }

// ReplicaConfig names an optional peer a storage server forwards
// mutations to and pull-syncs from at startup.
type ReplicaConfig struct {
	Addr    string `json:"addr,omitempty"`    // e.g. "ws://10.0.0.2:9100/ss"
	Timeout string `json:"timeout,omitempty"` // e.g. "2s", parsed with time.ParseDuration
}

// ServerConfig is the JSON document the storage server binary loads at
// startup (its -config flag), in the shape memcp loads schema.json. The
// name server binary does not load it; it takes its routing and
// permission files as flags.
type ServerConfig struct {
	ServerID     string              `json:"server_id"`
	DataDir      string              `json:"data_dir"`
	NMAddr       string              `json:"nm_addr"`
	ClientPort   int                 `json:"client_port"`
	Replica      ReplicaConfig       `json:"replica"`
	Limits       Limits              `json:"limits"`
	S3Archive    *S3ArchiveSettings  `json:"s3_archive,omitempty"`
	CephArchive  *CephArchiveSettings `json:"ceph_archive,omitempty"`
	PermFile     string              `json:"permission_file,omitempty"` // not read by either binary
}

// S3Config converts the JSON settings to filestore's archive config, or
// returns ok=false when no S3 archive was configured.
func (c *ServerConfig) S3Config() (filestore.S3ArchiveConfig, bool) {
	if c.S3Archive == nil {
		return filestore.S3ArchiveConfig{}, false
	}
	s := c.S3Archive
	return filestore.S3ArchiveConfig{
		AccessKeyID:     s.AccessKeyID,
		SecretAccessKey: s.SecretAccessKey,
		Region:          s.Region,
		Endpoint:        s.Endpoint,
		Bucket:          s.Bucket,
		Prefix:          s.Prefix,
		ForcePathStyle:  s.ForcePathStyle,
	}, true
}

// CephConfig converts the JSON settings to filestore's archive config, or
// returns ok=false when no Ceph archive was configured.
func (c *ServerConfig) CephConfig() (filestore.CephArchiveConfig, bool) {
	if c.CephArchive == nil {
		return filestore.CephArchiveConfig{}, false
	}
	a := c.CephArchive
	return filestore.CephArchiveConfig{
		UserName:    a.UserName,
		ClusterName: a.ClusterName,
		ConfFile:    a.ConfFile,
		Pool:        a.Pool,
		Prefix:      a.Prefix,
	}, true
}

// Load reads and parses a ServerConfig from path, resolving its Limits.
func Load(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg ServerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Limits.Resolve(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
