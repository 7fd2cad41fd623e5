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

package wire

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quillfs/quillfs/errcode"
)

// Upgrader accepts any origin; storage-server and name-server traffic
// is never proxied through a browser, so CORS checks add nothing.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Conn wraps one websocket connection with frame-level Send/Recv. Writes
// are serialized with a mutex: gorilla/websocket forbids concurrent
// writers on the same connection.
type Conn struct {
	ws       *websocket.Conn
	writeMu  sync.Mutex
	RemoteID string // peer address or hostname, for logging
}

// NewConn wraps an already-established websocket connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws, RemoteID: ws.RemoteAddr().String()}
}

// Dial opens a client-side websocket connection to url and wraps it.
func Dial(url string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("wire: dial %s: %w", url, err)
	}
	return NewConn(ws), nil
}

// Upgrade upgrades an incoming HTTP request to a websocket connection.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("wire: upgrade: %w", err)
	}
	return NewConn(ws), nil
}

// Send encodes and writes one frame as a binary websocket message.
func (c *Conn) Send(f Frame) error {
	raw, err := Encode(f)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.BinaryMessage, raw)
}

// Recv blocks for the next binary websocket message and decodes it.
func (c *Conn) Recv() (Frame, error) {
	msgType, raw, err := c.ws.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	if msgType != websocket.BinaryMessage {
		return Frame{}, fmt.Errorf("wire: unexpected websocket message type %d", msgType)
	}
	return Decode(raw)
}

// IsCloseError reports whether err signals a normal or abnormal
// websocket close, as opposed to a decoding or transport failure.
func IsCloseError(err error) bool {
	_, ok := err.(*websocket.CloseError)
	return ok
}

// Close closes the underlying websocket connection.
func (c *Conn) Close() error {
	return c.ws.Close()
}

// SetDeadline bounds the next Send and Recv call, used for the recv
// timeout that lets the accept loop poll for shutdown signals and for
// replication forwarding's send/acknowledge timeout (set once the dial
// has completed, so it does not bound the dial itself).
func (c *Conn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

// SendError replies to req with an ERROR frame carrying code and msg.
func (c *Conn) SendError(req Frame, code errcode.Code, msg string) error {
	return c.Send(Frame{
		Header: Header{
			MsgType:   MsgError,
			OpCode:    req.Header.OpCode,
			Username:  req.Header.Username,
			Filename:  req.Header.Filename,
			ErrorCode: code,
		},
		Payload: []byte(msg),
	})
}
