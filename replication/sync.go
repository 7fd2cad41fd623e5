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

package replication

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/quillfs/quillfs/filestore"
	"github.com/quillfs/quillfs/wire"
)

// metaSuffix marks a sync response frame as carrying a .meta
// sidecar rather than primary file content.
const metaSuffix = ".meta"

// BuildManifest renders store's manifest as the "<filename>:<mtime>\n"
// payload a SYNC request carries.
func BuildManifest(store *filestore.Store) ([]byte, error) {
	entries, err := store.Manifest()
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s:%d\n", e.Filename, e.Modified)
	}
	return []byte(b.String()), nil
}

func parseManifest(payload []byte) map[string]int64 {
	out := make(map[string]int64)
	for _, line := range strings.Split(string(payload), "\n") {
		if line == "" {
			continue
		}
		idx := strings.LastIndex(line, ":")
		if idx < 0 {
			continue
		}
		ts, err := strconv.ParseInt(line[idx+1:], 10, 64)
		if err != nil {
			continue
		}
		out[line[:idx]] = ts
	}
	return out
}

// Pull performs the recovery-pull half of version-based sync: connect to
// peerAddr, send the local manifest, and write every file the peer
// judges newer. Called when a server starts up with a configured peer.
func Pull(store *filestore.Store, peerAddr string, timeout time.Duration) error {
	manifest, err := BuildManifest(store)
	if err != nil {
		return fmt.Errorf("replication: build manifest: %w", err)
	}

	conn, err := wire.Dial(peerAddr)
	if err != nil {
		return fmt.Errorf("replication: dial peer %s: %w", peerAddr, err)
	}
	defer conn.Close()

	if timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}

	if err := conn.Send(wire.Frame{
		Header:  wire.Header{MsgType: wire.MsgRequest, OpCode: wire.OpSync},
		Payload: manifest,
	}); err != nil {
		return fmt.Errorf("replication: send SYNC: %w", err)
	}

	written := 0
	for {
		frame, err := conn.Recv()
		if err != nil {
			return fmt.Errorf("replication: recv sync stream: %w", err)
		}
		if frame.Header.MsgType == wire.MsgAck {
			break
		}
		if frame.Header.MsgType != wire.MsgResponse {
			return fmt.Errorf("replication: unexpected sync frame type %s", frame.Header.MsgType)
		}
		name, content, ok := splitSyncPayload(frame.Payload)
		if !ok {
			continue
		}
		if strings.HasSuffix(name, metaSuffix) {
			if err := store.WriteMetaBytes(strings.TrimSuffix(name, metaSuffix), content); err != nil {
				log.Printf("replication: write synced meta %s: %v", name, err)
				continue
			}
		} else {
			if err := store.WriteAtomic(name, content); err != nil {
				log.Printf("replication: write synced file %s: %v", name, err)
				continue
			}
		}
		written++
	}
	log.Printf("replication: pull sync from %s wrote %d objects", peerAddr, written)
	return nil
}

func splitSyncPayload(payload []byte) (name string, content []byte, ok bool) {
	idx := strings.IndexByte(string(payload), '\n')
	if idx < 0 {
		return "", nil, false
	}
	return string(payload[:idx]), payload[idx+1:], true
}

// HandleSyncRequest is the responder half of version-based sync: for
// every local file newer than (or absent from) the requester's
// manifest, stream its content and .meta sidecar, terminated by ACK.
// Equal timestamps are treated as "requester already up to date".
func HandleSyncRequest(conn *wire.Conn, req wire.Frame, store *filestore.Store) error {
	remote := parseManifest(req.Payload)
	entries, err := store.Manifest()
	if err != nil {
		return err
	}

	for _, e := range entries {
		remoteTS, present := remote[e.Filename]
		if present && e.Modified <= remoteTS {
			continue
		}
		content, err := store.Read(e.Filename)
		if err != nil {
			log.Printf("replication: sync read %s: %v", e.Filename, err)
			continue
		}
		metaBytes, err := store.ReadMetaBytes(e.Filename)
		if err != nil {
			log.Printf("replication: sync read meta %s: %v", e.Filename, err)
			continue
		}
		if err := conn.Send(wire.Frame{
			Header:  wire.Header{MsgType: wire.MsgResponse, OpCode: wire.OpSync, Filename: e.Filename},
			Payload: append([]byte(e.Filename+"\n"), content...),
		}); err != nil {
			return err
		}
		if err := conn.Send(wire.Frame{
			Header:  wire.Header{MsgType: wire.MsgResponse, OpCode: wire.OpSync, Filename: e.Filename},
			Payload: append([]byte(e.Filename+metaSuffix+"\n"), metaBytes...),
		}); err != nil {
			return err
		}
	}

	return conn.Send(wire.Frame{Header: wire.Header{MsgType: wire.MsgAck, OpCode: wire.OpSync}})
}
