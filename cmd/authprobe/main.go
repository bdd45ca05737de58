// Command authprobe checks that TCRT users can log in through the TCRT
// authentication API. It exits 1 when any check fails.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/tcrt-authprobe/internal/platform/cmd"
	"github.com/louisbranch/tcrt-authprobe/internal/platform/config"
	"github.com/louisbranch/tcrt-authprobe/internal/tools/authprobe"
)

func main() {
	cfg, err := authprobe.ParseConfig(flag.CommandLine, os.Args[1:], nil)
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	log.SetPrefix(cmd.LogPrefix(cmd.ServiceAuthProbe))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.RunWithTelemetry(ctx, cmd.ServiceAuthProbe, func(ctx context.Context) error {
		return authprobe.Run(ctx, cfg, os.Stdin, os.Stdout, os.Stderr)
	}); err != nil {
		config.Exitf("Error: %v", err)
	}
}
