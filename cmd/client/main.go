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

// Command client is the interactive terminal front-end: a readline REPL
// that turns typed commands into wire requests against a name server
// or, for direct testing, a single storage server.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/chzyer/readline"

	"github.com/quillfs/quillfs/client"
)

const help = `commands:
  create <file> [owner]
  delete <file>
  read <file>
  move <file> <new_name>
  info <file>
  stream <file>
  undo <file>
  checkpoint <file> <tag>
  viewcheckpoint <file> <tag>
  revert <file> <tag>
  listcheckpoints <file>
  checkmtime <file>
  lock <file> <sentence_idx>
  word <file> <word_idx> <new_word...>
  unlock <file>
  sync
  help
  quit`

func main() {
	addr := flag.String("addr", "ws://localhost:9000/nm", "name server (or storage server) websocket URL")
	user := flag.String("user", "", "username attached to every request")
	flag.Parse()

	if *user == "" {
		log.Fatal("client: -user is required")
	}

	sess, err := client.Dial(*addr, *user)
	if err != nil {
		log.Fatalf("client: %v", err)
	}
	defer sess.Close()

	rl, err := readline.New(fmt.Sprintf("%s@%s> ", *user, *addr))
	if err != nil {
		log.Fatalf("client: readline: %v", err)
	}
	defer rl.Close()

	fmt.Println("connected. type 'help' for commands, 'quit' to exit.")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		verb := strings.ToLower(strings.Fields(line)[0])
		switch verb {
		case "help":
			fmt.Println(help)
			continue
		case "quit", "exit":
			return
		}

		cmd, err := client.ParseCommand(line)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		req, ok, err := client.BuildFrame(*user, cmd)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		if !ok {
			continue
		}

		replies, err := sess.Send(req)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		fmt.Println(client.FormatReplies(req.Header.OpCode, replies))
	}
}
