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

package client

import (
	"fmt"

	"github.com/quillfs/quillfs/wire"
)

// terminators names the final frame MsgType for ops whose response is
// a sequence of frames rather than a single ACK/RESPONSE/ERROR.
var terminators = map[wire.OpCode]wire.MsgType{
	wire.OpStream: wire.MsgStop,
	wire.OpSync:   wire.MsgAck,
}

// Session wraps one wire connection to a name server or storage
// server, keyed to a single logged-in username for the Header.Username
// field every outgoing frame carries.
type Session struct {
	Conn *wire.Conn
	User string
}

// Dial opens a Session against addr (a ws:// URL).
func Dial(addr, user string) (*Session, error) {
	conn, err := wire.Dial(addr)
	if err != nil {
		return nil, err
	}
	return &Session{Conn: conn, User: user}, nil
}

// Close releases the underlying connection.
func (s *Session) Close() error { return s.Conn.Close() }

// Send transmits req and collects every reply frame until the op's
// terminal frame (a single ACK/RESPONSE/ERROR for most ops; a run of
// RESPONSE frames ended by STOP for STREAM or by ACK for SYNC).
func (s *Session) Send(req wire.Frame) ([]wire.Frame, error) {
	if err := s.Conn.Send(req); err != nil {
		return nil, fmt.Errorf("client: send: %w", err)
	}

	terminator, streamed := terminators[req.Header.OpCode]
	var replies []wire.Frame
	for {
		reply, err := s.Conn.Recv()
		if err != nil {
			return replies, fmt.Errorf("client: recv: %w", err)
		}
		replies = append(replies, reply)
		if !streamed || reply.Header.MsgType == terminator || reply.Header.MsgType == wire.MsgError {
			return replies, nil
		}
	}
}

// Run parses and sends one REPL line, returning every reply frame it
// received (more than one only for STREAM and SYNC).
func (s *Session) Run(line string) ([]wire.Frame, error) {
	cmd, err := ParseCommand(line)
	if err != nil {
		return nil, err
	}
	req, ok, err := BuildFrame(s.User, cmd)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return s.Send(req)
}
