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

package nameserver

import (
	"log"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/jtolds/gls"

	"github.com/quillfs/quillfs/config"
	"github.com/quillfs/quillfs/errcode"
	"github.com/quillfs/quillfs/wire"
)

const recvTimeout = 30 * time.Second

// dialTimeout bounds how long the NM waits to open or re-open a
// backend connection before trying the replica address.
const dialTimeout = 3 * time.Second

// streamingOps terminate with a STOP (STREAM) or ACK (SYNC) frame
// instead of a single RESPONSE/ACK/ERROR; the proxy relays every frame
// on the backend connection until it sees the terminator.
var streamingOps = map[wire.OpCode]wire.MsgType{
	wire.OpStream: wire.MsgStop,
	wire.OpSync:   wire.MsgAck,
}

// Server proxies client connections to the storage server shard that
// owns each request's filename.
type Server struct {
	routes *RoutingTable
	perms  *config.PermWatcher // nil disables owner enforcement on CREATE
}

// New builds a Server. perms may be nil to skip permission checks.
func New(routes *RoutingTable, perms *config.PermWatcher) *Server {
	return &Server{routes: routes, perms: perms}
}

// ServeHTTP upgrades the client connection and spawns its proxy loop.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := wire.Upgrade(w, r)
	if err != nil {
		log.Printf("nameserver: upgrade: %v", err)
		return
	}
	gls.Go(func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("nameserver: panic in proxy handler: %v\n%s", rec, debug.Stack())
			}
		}()
		s.handleClient(conn)
	})
}

// handleClient relays frames between one client and the backend shards
// its requests target, reusing one backend connection per filename
// across a LOCK/WORD/UNLOCK session and closing it once the session
// ends.
func (s *Server) handleClient(client *wire.Conn) {
	defer client.Close()
	backends := map[string]*wire.Conn{}
	defer func() {
		for _, b := range backends {
			b.Close()
		}
	}()

	for {
		if err := client.SetDeadline(time.Now().Add(recvTimeout)); err != nil {
			return
		}
		frame, err := client.Recv()
		if err != nil {
			if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
				continue
			}
			if !wire.IsCloseError(err) {
				log.Printf("nameserver: recv from %s: %v", client.RemoteID, err)
			}
			return
		}

		if frame.Header.OpCode == wire.OpCreate && s.perms != nil {
			if owner := s.perms.Owner(frame.Header.Filename); owner != "" && owner != frame.Header.Username {
				client.SendError(frame, errcode.PermissionDenied, "file reserved for "+owner)
				continue
			}
		}

		backend, err := s.backendFor(backends, frame.Header.Filename)
		if err != nil {
			client.SendError(frame, errcode.StorageServerDown, err.Error())
			continue
		}

		keepBackend, ok := s.relay(client, backend, frame)
		if !ok {
			backend.Close()
			delete(backends, frame.Header.Filename)
			continue
		}
		if !keepBackend {
			backend.Close()
			delete(backends, frame.Header.Filename)
		}
	}
}

// backendFor returns the open backend connection for filename, dialing
// the primary (falling back to the replica) if none is cached yet.
func (s *Server) backendFor(backends map[string]*wire.Conn, filename string) (*wire.Conn, error) {
	if b, ok := backends[filename]; ok {
		return b, nil
	}

	route := s.routes.Lookup(filename)
	conn, err := dialWithTimeout(route.Primary)
	if err != nil {
		if route.Replica == "" {
			return nil, err
		}
		log.Printf("nameserver: primary %s unreachable for %s, trying replica %s: %v", route.Primary, filename, route.Replica, err)
		conn, err = dialWithTimeout(route.Replica)
		if err != nil {
			return nil, err
		}
	}
	backends[filename] = conn
	return conn, nil
}

func dialWithTimeout(addr string) (*wire.Conn, error) {
	if addr == "" {
		return nil, errcode.ErrStorageServerDown
	}
	conn, err := wire.Dial(addr)
	if err != nil {
		return nil, err
	}
	if err := conn.SetDeadline(time.Now().Add(dialTimeout)); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// relay forwards one client request to backend and streams back every
// response frame, reporting (keepBackend, ok): ok is false on a
// transport failure that invalidates the backend connection;
// keepBackend is false once the write session this frame belongs to
// has ended.
func (s *Server) relay(client *wire.Conn, backend *wire.Conn, frame wire.Frame) (keepBackend bool, ok bool) {
	if err := backend.Send(frame); err != nil {
		log.Printf("nameserver: forward %s %s: %v", frame.Header.OpCode, frame.Header.Filename, err)
		client.SendError(frame, errcode.StorageServerDown, err.Error())
		return false, false
	}

	terminator, streamed := streamingOps[frame.Header.OpCode]
	for {
		reply, err := backend.Recv()
		if err != nil {
			log.Printf("nameserver: recv from backend for %s %s: %v", frame.Header.OpCode, frame.Header.Filename, err)
			client.SendError(frame, errcode.StorageServerDown, err.Error())
			return false, false
		}
		if err := client.Send(reply); err != nil {
			log.Printf("nameserver: relay to client %s: %v", client.RemoteID, err)
			return false, false
		}
		if !streamed || reply.Header.MsgType == terminator {
			return keepAliveFor(frame, reply), true
		}
	}
}

// keepAliveFor mirrors the storage server's own keep_alive rule: the
// backend connection for a filename stays open across a write session
// (LOCK through UNLOCK) and is torn down on any other outcome.
func keepAliveFor(req wire.Frame, reply wire.Frame) bool {
	switch req.Header.OpCode {
	case wire.OpWriteLock:
		return reply.Header.MsgType != wire.MsgError
	case wire.OpWriteWord:
		return true
	case wire.OpWriteUnlock:
		return false
	default:
		return false
	}
}
