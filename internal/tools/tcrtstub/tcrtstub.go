// Package tcrtstub runs the local TCRT-compatible auth server used to
// rehearse the probe without a real TCRT deployment.
package tcrtstub

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/louisbranch/tcrt-authprobe/internal/platform/config"
	"github.com/louisbranch/tcrt-authprobe/internal/platform/timeouts"
	"github.com/louisbranch/tcrt-authprobe/internal/tcrt"
	"github.com/louisbranch/tcrt-authprobe/internal/tcrt/stub"
	"github.com/louisbranch/tcrt-authprobe/internal/tcrt/userdb"
)

const (
	defaultAddr   = "127.0.0.1:9999"
	defaultDBPath = "test_case_repo.db"
	seedPassword  = "123"
)

// Config holds stub server configuration.
type Config struct {
	Addr     string
	DBPath   string
	Secret   string
	TokenTTL time.Duration
	Seed     bool
}

type envConfig struct {
	Addr     string        `env:"TCRT_STUB_ADDR" envDefault:"127.0.0.1:9999"`
	DBPath   string        `env:"TCRT_DB_PATH"`
	Secret   string        `env:"TCRT_STUB_SECRET"`
	TokenTTL time.Duration `env:"TCRT_STUB_TOKEN_TTL" envDefault:"1h"`
}

// ParseConfig reads env defaults from environ (nil reads the process
// environment) and then parses flags.
func ParseConfig(fs *flag.FlagSet, args []string, environ map[string]string) (Config, error) {
	var envCfg envConfig
	if err := config.ParseEnvFrom(&envCfg, environ); err != nil {
		return Config{}, err
	}
	cfg := Config{
		Addr:     envCfg.Addr,
		DBPath:   envCfg.DBPath,
		Secret:   envCfg.Secret,
		TokenTTL: envCfg.TokenTTL,
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address (default: TCRT_STUB_ADDR or "+defaultAddr+")")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to the users database; created when missing")
	fs.StringVar(&cfg.Secret, "secret", cfg.Secret, "HMAC secret for access tokens (default: random per run)")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", cfg.TokenTTL, "access token lifetime")
	fs.BoolVar(&cfg.Seed, "seed", false, "create admin and testuser (password 123) when missing")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return Config{}, errors.New("addr is required")
	}
	if cfg.TokenTTL <= 0 {
		return Config{}, errors.New("token-ttl must be positive")
	}
	return cfg, nil
}

// Server hosts the stub API.
type Server struct {
	store      *userdb.Store
	httpServer *http.Server
}

// NewServer opens the users database, seeds it when asked and builds the
// HTTP server.
func NewServer(ctx context.Context, cfg Config) (*Server, error) {
	store, err := userdb.OpenWritable(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open users db: %w", err)
	}
	if cfg.Seed {
		if err := seedUsers(ctx, store); err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		generated, err := randomSecret()
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		secret = generated
	}
	api, err := stub.New(store, stub.Config{Secret: secret, TokenTTL: cfg.TokenTTL})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init stub: %w", err)
	}

	return &Server{
		store: store,
		httpServer: &http.Server{
			Handler:           api.Handler(),
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
	}, nil
}

// Serve accepts connections on ln until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	serveErr := make(chan error, 1)
	log.Printf("tcrt stub listening on %s", ln.Addr())
	go func() {
		serveErr <- s.httpServer.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases the users database.
func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	return s.store.Close()
}

// Run serves the stub on cfg.Addr until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := NewServer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init tcrt stub: %w", err)
	}
	defer server.Close()

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}
	if err := server.Serve(ctx, ln); err != nil {
		return fmt.Errorf("serve tcrt stub: %w", err)
	}
	return nil
}

func seedUsers(ctx context.Context, store *userdb.Store) error {
	for _, u := range []userdb.NewUser{
		{Username: "admin", FullName: "Administrator", Password: seedPassword, Role: tcrt.RoleSuperAdmin, IsActive: true},
		{Username: "testuser", FullName: "Test User", Password: seedPassword, Role: tcrt.RoleUser, IsActive: true},
	} {
		_, err := store.UserByLogin(ctx, u.Username)
		if err == nil {
			continue
		}
		if !errors.Is(err, userdb.ErrNotFound) {
			return fmt.Errorf("look up %s: %w", u.Username, err)
		}
		if _, err := store.PutUser(ctx, u); err != nil {
			return fmt.Errorf("seed %s: %w", u.Username, err)
		}
		log.Printf("seeded user %s", u.Username)
	}
	return nil
}
