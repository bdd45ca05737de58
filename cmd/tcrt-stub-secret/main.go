// Command tcrt-stub-secret prints a random TCRT_STUB_SECRET value.
package main

import (
	"flag"
	"os"

	"github.com/louisbranch/tcrt-authprobe/internal/platform/config"
	"github.com/louisbranch/tcrt-authprobe/internal/tools/stubsecret"
)

func main() {
	cfg, err := stubsecret.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	if err := stubsecret.Run(cfg, os.Stdout, nil); err != nil {
		config.Exitf("Error: %v", err)
	}
}
