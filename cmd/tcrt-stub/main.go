// Command tcrt-stub serves a local TCRT-compatible authentication API.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/tcrt-authprobe/internal/platform/cmd"
	"github.com/louisbranch/tcrt-authprobe/internal/tools/tcrtstub"
)

func main() {
	cfg, err := tcrtstub.ParseConfig(flag.CommandLine, os.Args[1:], nil)
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix(cmd.LogPrefix(cmd.ServiceTCRTStub))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.RunWithTelemetry(ctx, cmd.ServiceTCRTStub, func(ctx context.Context) error {
		return tcrtstub.Run(ctx, cfg)
	}); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
