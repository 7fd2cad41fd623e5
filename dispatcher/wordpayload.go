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

package dispatcher

import (
	"fmt"
	"strconv"
	"strings"
)

// parseWordPayload decodes a WRITE_WORD payload of the form
// "<word_idx> <new_word...>", trimming a trailing CR/LF.
func parseWordPayload(payload []byte) (wordIdx int, newWord string, err error) {
	s := strings.TrimRight(string(payload), "\r\n")
	idx := strings.IndexByte(s, ' ')
	if idx < 0 {
		return 0, "", fmt.Errorf("dispatcher: malformed WRITE_WORD payload %q", s)
	}
	wordIdx, err = strconv.Atoi(s[:idx])
	if err != nil {
		return 0, "", fmt.Errorf("dispatcher: malformed word_idx in %q: %w", s, err)
	}
	return wordIdx, s[idx+1:], nil
}
