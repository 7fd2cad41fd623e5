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

// Command nameserver proxies client connections to the storage server
// shard that owns each request's filename, hot-reloading its routing
// and permission tables from JSON files on disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quillfs/quillfs/config"
	"github.com/quillfs/quillfs/nameserver"
)

func main() {
	port := flag.Int("port", 9000, "client-facing listen port")
	routesPath := flag.String("routes", "routes.json", "JSON routing table (default + per-file SS addresses)")
	permsPath := flag.String("perms", "", "optional JSON owner permission table")
	flag.Parse()

	routes, err := nameserver.NewRoutingTable(*routesPath)
	if err != nil {
		log.Fatalf("nameserver: %v", err)
	}
	defer routes.Close()

	var perms *config.PermWatcher
	if *permsPath != "" {
		perms, err = config.NewPermWatcher(*permsPath)
		if err != nil {
			log.Fatalf("nameserver: %v", err)
		}
		defer perms.Close()
	}

	nm := nameserver.New(routes, perms)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      nm,
		ReadTimeout:  300 * time.Second,
		WriteTimeout: 300 * time.Second,
	}

	config.OnShutdown("nameserver", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.Printf("nameserver: received %s, shutting down", s)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("nameserver: listening on :%d, routes=%s", *port, *routesPath)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("nameserver: %v", err)
	}
}
