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
	"strings"

	"github.com/quillfs/quillfs/wire"
)

// FormatReplies renders a sequence of reply frames the way the REPL
// prints them: one line per RESPONSE payload, a summary line for
// ACK/ERROR, STREAM words joined on a single line.
func FormatReplies(op wire.OpCode, replies []wire.Frame) string {
	if len(replies) == 0 {
		return "(no reply)"
	}

	if op == wire.OpStream {
		var words []string
		for _, r := range replies {
			if r.Header.MsgType == wire.MsgResponse {
				words = append(words, string(r.Payload))
			}
		}
		return strings.Join(words, " ")
	}

	var lines []string
	for _, r := range replies {
		switch r.Header.MsgType {
		case wire.MsgAck:
			lines = append(lines, "ok")
		case wire.MsgError:
			lines = append(lines, fmt.Sprintf("error: %s: %s", r.Header.ErrorCode, string(r.Payload)))
		case wire.MsgResponse:
			lines = append(lines, string(r.Payload))
		case wire.MsgStop:
			// no-op terminator, nothing to print
		}
	}
	return strings.Join(lines, "\n")
}
