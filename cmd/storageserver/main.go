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

// Command storageserver runs one shard of the document store: it owns a
// directory of files under data/ss_<id>, serves clients on client_port,
// and optionally forwards mutations to a replica and pull-syncs from it
// at startup.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/quillfs/quillfs/config"
	"github.com/quillfs/quillfs/dispatcher"
	"github.com/quillfs/quillfs/filestore"
	"github.com/quillfs/quillfs/lockregistry"
	"github.com/quillfs/quillfs/replication"
	"github.com/quillfs/quillfs/session"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-config file.json] <nm_ip> <nm_port> <client_port> <server_id>\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "", "optional JSON config with replica, limits and archive settings")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 4 {
		usage()
		os.Exit(2)
	}
	nmIP := flag.Arg(0)
	nmPort := flag.Arg(1)
	clientPort, err := strconv.Atoi(flag.Arg(2))
	if err != nil {
		log.Fatalf("storageserver: invalid client_port %q: %v", flag.Arg(2), err)
	}
	serverID := flag.Arg(3)

	var cfg *config.ServerConfig
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("storageserver: %v", err)
		}
	}

	dataDir := fmt.Sprintf("data/ss_%s", serverID)
	if cfg != nil && cfg.DataDir != "" {
		dataDir = cfg.DataDir
	}

	store, err := filestore.New(dataDir)
	if err != nil {
		log.Fatalf("storageserver: open store %s: %v", dataDir, err)
	}
	if cfg != nil {
		if s3cfg, ok := cfg.S3Config(); ok {
			store.SetArchive(filestore.NewS3Archive(s3cfg))
		} else if cephCfg, ok := cfg.CephConfig(); ok {
			store.SetArchive(filestore.NewCephArchive(cephCfg))
		}
	}

	maxLocks, maxWords := 256, 0
	if cfg != nil {
		if cfg.Limits.MaxLocks > 0 {
			maxLocks = cfg.Limits.MaxLocks
		}
		maxWords = cfg.Limits.MaxWords
	}
	registry := lockregistry.New(maxLocks)
	engine := session.New(store, registry, maxWords)

	var forwarder *replication.Forwarder
	if cfg != nil && cfg.Replica.Addr != "" {
		timeout := 2 * time.Second
		if cfg.Replica.Timeout != "" {
			if d, err := time.ParseDuration(cfg.Replica.Timeout); err == nil {
				timeout = d
			} else {
				log.Printf("storageserver: invalid replica timeout %q: %v", cfg.Replica.Timeout, err)
			}
		}
		forwarder = replication.NewForwarder(cfg.Replica.Addr, timeout)

		log.Printf("storageserver: pulling recovery sync from %s", cfg.Replica.Addr)
		if err := replication.Pull(store, cfg.Replica.Addr, timeout); err != nil {
			log.Printf("storageserver: recovery pull from %s: %v", cfg.Replica.Addr, err)
		}
	}

	d := dispatcher.New(engine, store, forwarder)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", clientPort),
		Handler:      d,
		ReadTimeout:  300 * time.Second,
		WriteTimeout: 300 * time.Second,
	}

	config.OnShutdown("storageserver-"+serverID, func() {
		d.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.Printf("storageserver: received %s, shutting down", s)
		d.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("storageserver: shard %s serving %s, nm=%s:%s", serverID, dataDir, nmIP, nmPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("storageserver: %v", err)
	}
}
