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
	"strconv"

	"github.com/quillfs/quillfs/wire"
)

// BuildFrame translates a parsed Command, issued by user, into the
// REQUEST frame the wire protocol expects. An empty Verb (a blank
// line) yields a zero Frame with ok=false and no error.
func BuildFrame(user string, cmd Command) (frame wire.Frame, ok bool, err error) {
	if cmd.Verb == "" {
		return wire.Frame{}, false, nil
	}

	h := wire.Header{MsgType: wire.MsgRequest, Username: user}
	var payload []byte

	switch cmd.Verb {
	case "create":
		if len(cmd.Args) < 1 {
			return frame, false, fmt.Errorf("usage: create <file> [owner]")
		}
		h.OpCode = wire.OpCreate
		h.Filename = cmd.Args[0]
		owner := user
		if len(cmd.Args) > 1 {
			owner = cmd.Args[1]
		}
		payload = []byte(owner)

	case "delete":
		if len(cmd.Args) < 1 {
			return frame, false, fmt.Errorf("usage: delete <file>")
		}
		h.OpCode = wire.OpDelete
		h.Filename = cmd.Args[0]

	case "read":
		if len(cmd.Args) < 1 {
			return frame, false, fmt.Errorf("usage: read <file>")
		}
		h.OpCode = wire.OpRead
		h.Filename = cmd.Args[0]

	case "exec":
		if len(cmd.Args) < 1 {
			return frame, false, fmt.Errorf("usage: exec <file>")
		}
		h.OpCode = wire.OpExec
		h.Filename = cmd.Args[0]

	case "move":
		if len(cmd.Args) < 2 {
			return frame, false, fmt.Errorf("usage: move <file> <new_name>")
		}
		h.OpCode = wire.OpMove
		h.Filename = cmd.Args[0]
		payload = []byte(cmd.Args[1])

	case "info":
		if len(cmd.Args) < 1 {
			return frame, false, fmt.Errorf("usage: info <file>")
		}
		h.OpCode = wire.OpInfo
		h.Filename = cmd.Args[0]

	case "stream":
		if len(cmd.Args) < 1 {
			return frame, false, fmt.Errorf("usage: stream <file>")
		}
		h.OpCode = wire.OpStream
		h.Filename = cmd.Args[0]

	case "undo":
		if len(cmd.Args) < 1 {
			return frame, false, fmt.Errorf("usage: undo <file>")
		}
		h.OpCode = wire.OpUndo
		h.Filename = cmd.Args[0]

	case "checkpoint":
		if len(cmd.Args) < 2 {
			return frame, false, fmt.Errorf("usage: checkpoint <file> <tag>")
		}
		h.OpCode = wire.OpCheckpoint
		h.Filename = cmd.Args[0]
		h.CheckpointTag = cmd.Args[1]

	case "viewcheckpoint":
		if len(cmd.Args) < 2 {
			return frame, false, fmt.Errorf("usage: viewcheckpoint <file> <tag>")
		}
		h.OpCode = wire.OpViewCheckpoint
		h.Filename = cmd.Args[0]
		h.CheckpointTag = cmd.Args[1]

	case "revert":
		if len(cmd.Args) < 2 {
			return frame, false, fmt.Errorf("usage: revert <file> <tag>")
		}
		h.OpCode = wire.OpRevert
		h.Filename = cmd.Args[0]
		h.CheckpointTag = cmd.Args[1]

	case "listcheckpoints":
		if len(cmd.Args) < 1 {
			return frame, false, fmt.Errorf("usage: listcheckpoints <file>")
		}
		h.OpCode = wire.OpListCheckpoints
		h.Filename = cmd.Args[0]

	case "checkmtime":
		if len(cmd.Args) < 1 {
			return frame, false, fmt.Errorf("usage: checkmtime <file>")
		}
		h.OpCode = wire.OpCheckMTime
		h.Filename = cmd.Args[0]

	case "lock":
		if len(cmd.Args) < 2 {
			return frame, false, fmt.Errorf("usage: lock <file> <sentence_idx>")
		}
		idx, err := strconv.Atoi(cmd.Args[1])
		if err != nil {
			return frame, false, fmt.Errorf("lock: invalid sentence index %q", cmd.Args[1])
		}
		h.OpCode = wire.OpWriteLock
		h.Filename = cmd.Args[0]
		h.SentenceIndex = idx

	case "word":
		if len(cmd.Args) < 3 {
			return frame, false, fmt.Errorf("usage: word <file> <word_idx> <new_word...>")
		}
		wordIdx, err := strconv.Atoi(cmd.Args[1])
		if err != nil {
			return frame, false, fmt.Errorf("word: invalid word index %q", cmd.Args[1])
		}
		h.OpCode = wire.OpWriteWord
		h.Filename = cmd.Args[0]
		payload = []byte(fmt.Sprintf("%d %s", wordIdx, Rest(cmd.Args, 2)))

	case "unlock":
		if len(cmd.Args) < 1 {
			return frame, false, fmt.Errorf("usage: unlock <file>")
		}
		h.OpCode = wire.OpWriteUnlock
		h.Filename = cmd.Args[0]

	case "sync":
		h.OpCode = wire.OpSync

	default:
		return frame, false, fmt.Errorf("unknown command %q (type 'help' for a list)", cmd.Verb)
	}

	return wire.Frame{Header: h, Payload: payload}, true, nil
}
