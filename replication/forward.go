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

// Package replication forwards mutations from a primary storage server
// to its configured replica, and drives the version-based recovery sync
// a restarting server runs against its peer.
package replication

import (
	"log"
	"time"

	"github.com/quillfs/quillfs/wire"
)

// mutatingOps is the set of op codes that trigger a forward after a
// successful local commit.
var mutatingOps = map[wire.OpCode]bool{
	wire.OpCreate:      true,
	wire.OpDelete:      true,
	wire.OpMove:        true,
	wire.OpWriteLock:   true,
	wire.OpWriteWord:   true,
	wire.OpWriteUnlock: true,
	wire.OpUndo:        true,
	wire.OpCheckpoint:  true,
	wire.OpRevert:      true,
}

// IsMutating reports whether op is one of the operations that gets
// forwarded to a replica after a successful commit.
func IsMutating(op wire.OpCode) bool { return mutatingOps[op] }

// Forwarder sends a copy of every successful mutation to one configured
// replica. A zero-value Forwarder (empty Addr) is a no-op.
type Forwarder struct {
	Addr    string // replica websocket URL, e.g. "ws://host:port/ss"
	Timeout time.Duration
}

// NewForwarder builds a Forwarder targeting addr. An empty addr disables
// forwarding. timeout <= 0 selects a 2 second default.
func NewForwarder(addr string, timeout time.Duration) *Forwarder {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Forwarder{Addr: addr, Timeout: timeout}
}

// Forward re-sends req to the replica with the IS_REPLICATION flag set,
// unless req is itself replication traffic or no replica is configured.
// Failure to reach the replica or to receive an ACK is logged and
// swallowed: replication is best-effort, and the recovery sync repairs
// any resulting divergence.
func (f *Forwarder) Forward(req wire.Frame) {
	if f == nil || f.Addr == "" {
		return
	}
	if req.Header.IsReplication() {
		return
	}
	if !IsMutating(req.Header.OpCode) {
		return
	}

	conn, err := wire.Dial(f.Addr)
	if err != nil {
		log.Printf("replication: dial %s: %v", f.Addr, err)
		return
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(f.Timeout)); err != nil {
		log.Printf("replication: set deadline: %v", err)
		return
	}

	fwd := req
	fwd.Header.Flags |= wire.FlagReplication
	compressed, err := wire.CompressPayload(fwd.Payload)
	if err != nil {
		log.Printf("replication: compress payload for %s %s: %v", req.Header.OpCode, req.Header.Filename, err)
		return
	}
	fwd.Payload = compressed
	if err := conn.Send(fwd); err != nil {
		log.Printf("replication: forward %s %s: %v", req.Header.OpCode, req.Header.Filename, err)
		return
	}

	reply, err := conn.Recv()
	if err != nil {
		log.Printf("replication: no ack for %s %s: %v", req.Header.OpCode, req.Header.Filename, err)
		return
	}
	if reply.Header.MsgType != wire.MsgAck {
		log.Printf("replication: unexpected reply %s for %s %s", reply.Header.MsgType, req.Header.OpCode, req.Header.Filename)
	}
}
