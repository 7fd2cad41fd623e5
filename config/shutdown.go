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

package config

import (
	"log"

	"github.com/dc0d/onexit"
)

// OnShutdown registers name to run when the process exits, logging
// panics from the hook instead of letting them escape onexit's handler.
func OnShutdown(name string, fn func()) {
	onexit.Register(func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("config: shutdown hook %s panicked: %v", name, r)
			}
		}()
		fn()
	})
}
