// Package main starts the broadcast hub service and handles termination.
//
// The process is a transport adapter around session lifecycle, ensemble
// broadcast and the oracle query pipeline.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	hubcmd "github.com/halcyonic/ensemble.space/internal/cmd/hub"
)

func main() {
	cfg, err := hubcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[HUB] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := hubcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
