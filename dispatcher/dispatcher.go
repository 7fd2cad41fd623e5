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

// Package dispatcher runs the storage server's per-connection accept
// loop: one goroutine per client, decoding frames, routing them by
// op_code to the session engine or file store, and applying the
// keep_alive rule that holds a connection open across LOCK/WORD/UNLOCK.
package dispatcher

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/jtolds/gls"

	"github.com/quillfs/quillfs/document"
	"github.com/quillfs/quillfs/errcode"
	"github.com/quillfs/quillfs/filestore"
	"github.com/quillfs/quillfs/replication"
	"github.com/quillfs/quillfs/session"
	"github.com/quillfs/quillfs/wire"
)

// recvTimeout bounds each blocking Recv so the accept loop periodically
// wakes to notice a closed Dispatcher (graceful shutdown) even on an
// otherwise idle connection.
const recvTimeout = 30 * time.Second

const streamWordDelay = 100 * time.Millisecond

// Dispatcher wires the wire protocol to the session engine, file store
// and replication forwarder.
type Dispatcher struct {
	engine    *session.Engine
	store     *filestore.Store
	forwarder *replication.Forwarder
	closing   chan struct{}
}

// New builds a Dispatcher. forwarder may be nil to disable replication.
func New(engine *session.Engine, store *filestore.Store, forwarder *replication.Forwarder) *Dispatcher {
	return &Dispatcher{engine: engine, store: store, forwarder: forwarder, closing: make(chan struct{})}
}

// Shutdown signals every running accept-loop goroutine to stop at its
// next recv timeout.
func (d *Dispatcher) Shutdown() { close(d.closing) }

// ServeHTTP upgrades the connection to a websocket and spawns its
// handler goroutine. It returns immediately; the handler owns the
// connection's lifetime.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := wire.Upgrade(w, r)
	if err != nil {
		log.Printf("dispatcher: upgrade: %v", err)
		return
	}
	gls.Go(func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("dispatcher: panic in connection handler: %v\n%s", rec, debug.Stack())
			}
		}()
		d.handleConn(conn)
	})
}

func (d *Dispatcher) handleConn(conn *wire.Conn) {
	defer conn.Close()
	var sessionUser string

	for {
		select {
		case <-d.closing:
			return
		default:
		}

		if err := conn.SetDeadline(time.Now().Add(recvTimeout)); err != nil {
			return
		}
		frame, err := conn.Recv()
		if err != nil {
			if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
				continue
			}
			if !wire.IsCloseError(err) {
				log.Printf("dispatcher: recv from %s: %v", conn.RemoteID, err)
			}
			break
		}

		if frame.Header.Username != "" {
			sessionUser = frame.Header.Username
		}

		if frame.Header.IsReplication() {
			payload, err := wire.DecompressPayload(frame.Payload)
			if err != nil {
				log.Printf("dispatcher: decompress replicated payload from %s: %v", conn.RemoteID, err)
				break
			}
			frame.Payload = payload
		}

		keepAlive := d.dispatch(conn, frame)
		if !keepAlive {
			break
		}
	}

	if sessionUser != "" {
		if n := d.engine.CleanupUser(sessionUser); n > 0 {
			log.Printf("dispatcher: released %d session(s) for %s on disconnect", n, sessionUser)
		}
	}
}

// dispatch handles one frame and reports whether the connection should
// stay open for a following frame.
func (d *Dispatcher) dispatch(conn *wire.Conn, frame wire.Frame) bool {
	h := frame.Header
	switch h.OpCode {
	case wire.OpCreate:
		return d.handleCreate(conn, frame)
	case wire.OpDelete:
		return d.handleDelete(conn, frame)
	case wire.OpRead, wire.OpExec:
		return d.handleRead(conn, frame)
	case wire.OpMove:
		return d.handleMove(conn, frame)
	case wire.OpInfo:
		return d.handleInfo(conn, frame)
	case wire.OpStream:
		return d.handleStream(conn, frame)
	case wire.OpUndo:
		return d.handleUndo(conn, frame)
	case wire.OpCheckpoint:
		return d.handleCheckpoint(conn, frame)
	case wire.OpViewCheckpoint:
		return d.handleViewCheckpoint(conn, frame)
	case wire.OpRevert:
		return d.handleRevert(conn, frame)
	case wire.OpListCheckpoints:
		return d.handleListCheckpoints(conn, frame)
	case wire.OpCheckMTime:
		return d.handleCheckMTime(conn, frame)
	case wire.OpSync:
		return d.handleSync(conn, frame)
	case wire.OpWriteLock:
		return d.handleLock(conn, frame)
	case wire.OpWriteWord:
		return d.handleWord(conn, frame)
	case wire.OpWriteUnlock:
		return d.handleUnlock(conn, frame)
	default:
		conn.SendError(frame, errcode.InvalidCommand, fmt.Sprintf("unknown op_code %q", h.OpCode))
		return false
	}
}

func replyErr(conn *wire.Conn, frame wire.Frame, err error) {
	var sendErr error
	var pe *errcode.Error
	if errors.As(err, &pe) {
		sendErr = conn.SendError(frame, pe.Code, pe.Msg)
	} else {
		sendErr = conn.SendError(frame, errcode.FileOperationFailed, err.Error())
	}
	if sendErr != nil {
		log.Printf("dispatcher: send ERROR to %s: %v", conn.RemoteID, sendErr)
	}
}

func ack(conn *wire.Conn, frame wire.Frame) {
	if err := conn.Send(wire.Frame{Header: wire.Header{MsgType: wire.MsgAck, OpCode: frame.Header.OpCode, Filename: frame.Header.Filename}}); err != nil {
		log.Printf("dispatcher: send ACK to %s: %v", conn.RemoteID, err)
	}
}

func respond(conn *wire.Conn, frame wire.Frame, payload []byte) {
	err := conn.Send(wire.Frame{
		Header:  wire.Header{MsgType: wire.MsgResponse, OpCode: frame.Header.OpCode, Filename: frame.Header.Filename},
		Payload: payload,
	})
	if err != nil {
		log.Printf("dispatcher: send RESPONSE to %s: %v", conn.RemoteID, err)
	}
}

func (d *Dispatcher) forward(frame wire.Frame) {
	if d.forwarder != nil {
		d.forwarder.Forward(frame)
	}
}

func (d *Dispatcher) handleCreate(conn *wire.Conn, frame wire.Frame) bool {
	owner := string(frame.Payload)
	if owner == "" {
		owner = frame.Header.Username
	}
	if err := d.store.Create(frame.Header.Filename, owner); err != nil {
		replyErr(conn, frame, err)
		return false
	}
	d.forward(frame)
	ack(conn, frame)
	return false
}

func (d *Dispatcher) handleDelete(conn *wire.Conn, frame wire.Frame) bool {
	if err := d.store.Delete(frame.Header.Filename); err != nil {
		replyErr(conn, frame, err)
		return false
	}
	d.forward(frame)
	ack(conn, frame)
	return false
}

func (d *Dispatcher) handleRead(conn *wire.Conn, frame wire.Frame) bool {
	content, err := d.store.Read(frame.Header.Filename)
	if err != nil {
		replyErr(conn, frame, err)
		return false
	}
	respond(conn, frame, content)
	return false
}

func (d *Dispatcher) handleMove(conn *wire.Conn, frame wire.Frame) bool {
	newName := string(frame.Payload)
	if err := d.store.Move(frame.Header.Filename, newName); err != nil {
		replyErr(conn, frame, err)
		return false
	}
	d.forward(frame)
	ack(conn, frame)
	return false
}

func (d *Dispatcher) handleInfo(conn *wire.Conn, frame wire.Frame) bool {
	meta, err := d.store.ReadMeta(frame.Header.Filename)
	if err != nil {
		replyErr(conn, frame, err)
		return false
	}
	stats, err := d.store.ReadStats(frame.Header.Filename)
	if err != nil {
		replyErr(conn, frame, err)
		return false
	}
	content, err := d.store.Read(frame.Header.Filename)
	if err != nil {
		replyErr(conn, frame, err)
		return false
	}
	sentences := document.New(content).SentenceCount()
	payload := fmt.Sprintf("owner:%s\ncreated:%d\nmodified:%d\ntotal_edits:%d\nsentences:%d\n",
		meta.Owner, meta.Created, meta.Modified, stats.TotalEdits, sentences)
	respond(conn, frame, []byte(payload))
	return false
}

func (d *Dispatcher) handleStream(conn *wire.Conn, frame wire.Frame) bool {
	content, err := d.store.Read(frame.Header.Filename)
	if err != nil {
		replyErr(conn, frame, err)
		return false
	}
	for _, word := range session.Tokenize(content) {
		respond(conn, frame, []byte(word))
		time.Sleep(streamWordDelay)
	}
	if err := conn.Send(wire.Frame{Header: wire.Header{MsgType: wire.MsgStop, OpCode: frame.Header.OpCode, Filename: frame.Header.Filename}}); err != nil {
		log.Printf("dispatcher: send STOP to %s: %v", conn.RemoteID, err)
	}
	return false
}

func (d *Dispatcher) handleUndo(conn *wire.Conn, frame wire.Frame) bool {
	if err := d.engine.Undo(frame.Header.Filename); err != nil {
		replyErr(conn, frame, err)
		return false
	}
	d.forward(frame)
	ack(conn, frame)
	return false
}

func (d *Dispatcher) handleCheckpoint(conn *wire.Conn, frame wire.Frame) bool {
	if err := d.store.Checkpoint(frame.Header.Filename, frame.Header.CheckpointTag); err != nil {
		replyErr(conn, frame, err)
		return false
	}
	d.forward(frame)
	ack(conn, frame)
	return false
}

func (d *Dispatcher) handleViewCheckpoint(conn *wire.Conn, frame wire.Frame) bool {
	content, err := d.store.ViewCheckpoint(frame.Header.Filename, frame.Header.CheckpointTag)
	if err != nil {
		replyErr(conn, frame, err)
		return false
	}
	respond(conn, frame, content)
	return false
}

func (d *Dispatcher) handleRevert(conn *wire.Conn, frame wire.Frame) bool {
	if err := d.store.Revert(frame.Header.Filename, frame.Header.CheckpointTag); err != nil {
		replyErr(conn, frame, err)
		return false
	}
	d.forward(frame)
	ack(conn, frame)
	return false
}

func (d *Dispatcher) handleListCheckpoints(conn *wire.Conn, frame wire.Frame) bool {
	infos, err := d.store.ListCheckpoints(frame.Header.Filename)
	if err != nil {
		replyErr(conn, frame, err)
		return false
	}
	payload := ""
	for _, info := range infos {
		payload += fmt.Sprintf("%s:%d\n", info.Tag, info.CreatedAt)
	}
	respond(conn, frame, []byte(payload))
	return false
}

func (d *Dispatcher) handleCheckMTime(conn *wire.Conn, frame wire.Frame) bool {
	meta, err := d.store.ReadMeta(frame.Header.Filename)
	if err != nil {
		replyErr(conn, frame, err)
		return false
	}
	respond(conn, frame, []byte(fmt.Sprintf("%s:%d", frame.Header.Filename, meta.Modified)))
	return false
}

func (d *Dispatcher) handleSync(conn *wire.Conn, frame wire.Frame) bool {
	if err := replication.HandleSyncRequest(conn, frame, d.store); err != nil {
		log.Printf("dispatcher: sync with %s: %v", conn.RemoteID, err)
	}
	return false
}

func (d *Dispatcher) handleLock(conn *wire.Conn, frame wire.Frame) bool {
	_, err := d.engine.Lock(frame.Header.Filename, frame.Header.SentenceIndex, frame.Header.Username)
	if err != nil {
		replyErr(conn, frame, err)
		return false // ERROR on LOCK closes the connection
	}
	d.forward(frame)
	ack(conn, frame)
	return true
}

func (d *Dispatcher) handleWord(conn *wire.Conn, frame wire.Frame) bool {
	wordIdx, newWord, err := parseWordPayload(frame.Payload)
	if err != nil {
		conn.SendError(frame, errcode.InvalidWord, err.Error())
		return true // ERROR on WORD leaves the session open
	}
	if err := d.engine.Word(frame.Header.Filename, frame.Header.Username, wordIdx, newWord); err != nil {
		replyErr(conn, frame, err)
		return true
	}
	d.forward(frame)
	ack(conn, frame)
	return true
}

func (d *Dispatcher) handleUnlock(conn *wire.Conn, frame wire.Frame) bool {
	if err := d.engine.Unlock(frame.Header.Filename, frame.Header.Username); err != nil {
		replyErr(conn, frame, err)
		return false
	}
	d.forward(frame)
	ack(conn, frame)
	return false
}
