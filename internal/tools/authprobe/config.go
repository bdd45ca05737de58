package authprobe

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/tcrt-authprobe/internal/platform/config"
	"github.com/louisbranch/tcrt-authprobe/internal/platform/timeouts"
	"github.com/louisbranch/tcrt-authprobe/internal/tcrt"
)

const defaultDBPath = "test_case_repo.db"

// Config holds probe configuration.
type Config struct {
	DBPath     string
	APIBaseURL string
	Username   string
	Password   string
	Locale     string
	Timeout    time.Duration
	JSONOutput bool
	SkipTeams  bool
}

type envConfig struct {
	DBPath     string        `env:"TCRT_DB_PATH"`
	APIBaseURL string        `env:"TCRT_API_BASE_URL"`
	Username   string        `env:"TCRT_AUTHPROBE_USERNAME"`
	Password   string        `env:"TCRT_AUTHPROBE_PASSWORD"`
	Locale     string        `env:"TCRT_AUTHPROBE_LOCALE" envDefault:"en-US"`
	Timeout    time.Duration `env:"TCRT_AUTHPROBE_TIMEOUT"`
}

// ParseConfig reads env defaults from environ (nil reads the process
// environment) and then parses flags.
func ParseConfig(fs *flag.FlagSet, args []string, environ map[string]string) (Config, error) {
	var envCfg envConfig
	if err := config.ParseEnvFrom(&envCfg, environ); err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     envCfg.DBPath,
		APIBaseURL: envCfg.APIBaseURL,
		Username:   envCfg.Username,
		Password:   envCfg.Password,
		Locale:     envCfg.Locale,
		Timeout:    envCfg.Timeout,
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = tcrt.DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeouts.ProbeRun
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to the TCRT sqlite database (default: TCRT_DB_PATH or test_case_repo.db)")
	fs.StringVar(&cfg.APIBaseURL, "api-base-url", cfg.APIBaseURL, "TCRT API base url (default: TCRT_API_BASE_URL or "+tcrt.DefaultBaseURL+")")
	fs.StringVar(&cfg.Username, "username", cfg.Username, "log in as this user instead of prompting")
	fs.StringVar(&cfg.Password, "password", cfg.Password, "password for -username")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "output language (en-US, zh-TW)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "write a JSON report to stdout; progress goes to stderr")
	fs.BoolVar(&cfg.SkipTeams, "skip-teams", false, "skip the accessible teams step")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return cfg, nil
}
