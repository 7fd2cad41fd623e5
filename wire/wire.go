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

// Package wire defines the framed request/response protocol spoken
// between clients, the name server and storage servers, carried over
// gorilla/websocket binary frames.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/quillfs/quillfs/errcode"
)

// MsgType classifies a Header.
type MsgType string

const (
	MsgRequest  MsgType = "REQUEST"
	MsgResponse MsgType = "RESPONSE"
	MsgAck      MsgType = "ACK"
	MsgError    MsgType = "ERROR"
	MsgStop     MsgType = "STOP"
)

// OpCode identifies the operation a REQUEST carries. Names are protocol
// identifiers, not Go identifiers, and are shared verbatim with the
// client and name server.
type OpCode string

const (
	OpCreate          OpCode = "SS_CREATE"
	OpDelete          OpCode = "SS_DELETE"
	OpRead            OpCode = "SS_READ"
	OpWriteLock       OpCode = "SS_WRITE_LOCK"
	OpWriteWord       OpCode = "SS_WRITE_WORD"
	OpWriteUnlock     OpCode = "SS_WRITE_UNLOCK"
	OpInfo            OpCode = "INFO"
	OpStream          OpCode = "STREAM"
	OpUndo            OpCode = "UNDO"
	OpMove            OpCode = "SS_MOVE"
	OpCheckpoint      OpCode = "SS_CHECKPOINT"
	OpViewCheckpoint  OpCode = "SS_VIEWCHECKPOINT"
	OpRevert          OpCode = "SS_REVERT"
	OpListCheckpoints OpCode = "SS_LISTCHECKPOINTS"
	OpSync            OpCode = "SS_SYNC"
	OpCheckMTime      OpCode = "SS_CHECK_MTIME"
	OpExec            OpCode = "EXEC"
)

// FlagReplication marks a frame as replica-forwarded traffic, so the
// receiving server does not re-forward it (preventing forwarding loops).
const FlagReplication uint8 = 1 << 0

// Header carries every field of a framed message except its payload.
type Header struct {
	MsgType       MsgType     `json:"msg_type"`
	OpCode        OpCode      `json:"op_code,omitempty"`
	Username      string      `json:"username,omitempty"`
	Filename      string      `json:"filename,omitempty"`
	Foldername    string      `json:"foldername,omitempty"`
	SentenceIndex int         `json:"sentence_index,omitempty"`
	CheckpointTag string      `json:"checkpoint_tag,omitempty"`
	ErrorCode     errcode.Code `json:"error_code,omitempty"`
	Flags         uint8       `json:"flags,omitempty"`
	DataLength    uint32      `json:"data_length,omitempty"`
}

// IsReplication reports whether the FlagReplication bit is set.
func (h Header) IsReplication() bool { return h.Flags&FlagReplication != 0 }

// Frame is one wire message: a header plus its payload bytes.
type Frame struct {
	Header  Header
	Payload []byte
}

// Encode serializes f as a length-prefixed JSON header followed by the
// raw payload, suitable as the body of one websocket binary message.
func Encode(f Frame) ([]byte, error) {
	f.Header.DataLength = uint32(len(f.Payload))
	headerJSON, err := json.Marshal(f.Header)
	if err != nil {
		return nil, fmt.Errorf("wire: encode header: %w", err)
	}
	buf := make([]byte, 4+len(headerJSON)+len(f.Payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(headerJSON)))
	copy(buf[4:], headerJSON)
	copy(buf[4+len(headerJSON):], f.Payload)
	return buf, nil
}

// Decode parses a websocket binary message previously produced by Encode.
func Decode(raw []byte) (Frame, error) {
	if len(raw) < 4 {
		return Frame{}, fmt.Errorf("wire: truncated frame: %d bytes", len(raw))
	}
	hlen := binary.BigEndian.Uint32(raw[0:4])
	if int(hlen) > len(raw)-4 {
		return Frame{}, fmt.Errorf("wire: truncated header: want %d have %d", hlen, len(raw)-4)
	}
	var h Header
	if err := json.Unmarshal(raw[4:4+hlen], &h); err != nil {
		return Frame{}, fmt.Errorf("wire: decode header: %w", err)
	}
	payload := raw[4+hlen:]
	return Frame{Header: h, Payload: payload}, nil
}
