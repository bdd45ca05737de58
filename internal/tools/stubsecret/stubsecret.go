// Package stubsecret generates token signing secrets for the TCRT stub.
package stubsecret

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
)

// DefaultBytes is the secret length used when none is given.
const DefaultBytes = 32

// Config holds configuration for secret generation.
type Config struct {
	Bytes int
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Bytes: DefaultBytes}
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random bytes (default: 32)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Generate reads n random bytes from reader, or crypto/rand when reader is nil.
func Generate(n int, reader io.Reader) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("bytes must be greater than zero")
	}
	if reader == nil {
		reader = rand.Reader
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return nil, fmt.Errorf("generate random bytes: %w", err)
	}
	return buf, nil
}

// Run writes a TCRT_STUB_SECRET assignment to out.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if out == nil {
		return errors.New("output is required")
	}
	secret, err := Generate(cfg.Bytes, reader)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "TCRT_STUB_SECRET=%s\n", hex.EncodeToString(secret))
	return err
}
