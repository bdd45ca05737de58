package tcrtstub

import (
	"bytes"
	"context"
	"flag"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/tcrt-authprobe/internal/tcrt"
	"github.com/louisbranch/tcrt-authprobe/internal/tcrt/userdb"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("tcrt-stub", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil, map[string]string{})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != defaultAddr {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.DBPath != defaultDBPath {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.TokenTTL != time.Hour {
		t.Fatalf("expected 1h token ttl, got %v", cfg.TokenTTL)
	}
	if cfg.Seed || cfg.Secret != "" {
		t.Fatalf("expected no seed and no secret, got %+v", cfg)
	}
}

func TestParseConfigEnvAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("tcrt-stub", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-addr", "127.0.0.1:7000", "-seed"}, map[string]string{
		"TCRT_STUB_ADDR":      "0.0.0.0:9999",
		"TCRT_STUB_SECRET":    "s3cret",
		"TCRT_STUB_TOKEN_TTL": "15m",
		"TCRT_DB_PATH":        "/tmp/users.db",
	})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != "127.0.0.1:7000" {
		t.Fatalf("expected flag addr, got %q", cfg.Addr)
	}
	if cfg.Secret != "s3cret" || cfg.TokenTTL != 15*time.Minute || cfg.DBPath != "/tmp/users.db" {
		t.Fatalf("expected env values, got %+v", cfg)
	}
	if !cfg.Seed {
		t.Fatal("expected seed flag")
	}
}

func TestParseConfigRejectsBadInput(t *testing.T) {
	tests := map[string][]string{
		"unknown flag": {"-invalid"},
		"positional":   {"extra"},
		"empty addr":   {"-addr", " "},
		"zero ttl":     {"-token-ttl", "0s"},
	}
	for name, args := range tests {
		fs := flag.NewFlagSet("tcrt-stub", flag.ContinueOnError)
		fs.SetOutput(&bytes.Buffer{})
		if _, err := ParseConfig(fs, args, map[string]string{}); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestNewServerSeedsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test_case_repo.db")
	cfg := Config{DBPath: path, Secret: "s3cret", TokenTTL: time.Hour, Seed: true}

	for i := 0; i < 2; i++ {
		server, err := NewServer(context.Background(), cfg)
		if err != nil {
			t.Fatalf("new server: %v", err)
		}
		if err := server.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}

	store, err := userdb.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	users, err := store.ActiveUsers(context.Background())
	if err != nil {
		t.Fatalf("active users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 seeded users, got %d", len(users))
	}
	if users[0].Username != "admin" || users[0].Role != tcrt.RoleSuperAdmin {
		t.Fatalf("expected admin first, got %+v", users[0])
	}
}

func TestServeLogsInAndShutsDown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test_case_repo.db")
	server, err := NewServer(context.Background(), Config{DBPath: path, TokenTTL: time.Hour, Seed: true})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer server.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, ln) }()

	client, err := tcrt.NewClient("http://" + ln.Addr().String() + "/api")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	login, err := client.Login(context.Background(), "testuser", seedPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.AccessToken == "" {
		t.Fatal("expected access token")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for shutdown")
	}
}
