package authprobe

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/louisbranch/tcrt-authprobe/internal/tcrt"
)

// Run executes the probe against cfg.APIBaseURL. Progress text goes to out,
// or to errOut when cfg.JSONOutput is set and out receives the JSON report.
// A failed check is returned as an error.
func Run(ctx context.Context, cfg Config, in io.Reader, out, errOut io.Writer) error {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	client, err := tcrt.NewClient(cfg.APIBaseURL)
	if err != nil {
		return fmt.Errorf("create tcrt client: %w", err)
	}
	d := deps{
		openUsers:    openUserDB,
		api:          client,
		now:          time.Now,
		readPassword: terminalPasswordReader(in),
	}
	return run(ctx, cfg, d, in, out, errOut)
}

func run(ctx context.Context, cfg Config, d deps, in io.Reader, out, errOut io.Writer) error {
	progress := out
	if cfg.JSONOutput {
		progress = errOut
	}
	result, err := runProbe(ctx, cfg, d, in, progress)
	if cfg.JSONOutput {
		if writeErr := writeJSON(out, result); writeErr != nil && err == nil {
			return fmt.Errorf("write report: %w", writeErr)
		}
	}
	return err
}
