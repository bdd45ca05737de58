package tcrtstub

import (
	"log"

	"github.com/louisbranch/tcrt-authprobe/internal/tools/stubsecret"
)

// randomSecret makes a per-run signing key; tokens do not survive a restart.
func randomSecret() ([]byte, error) {
	secret, err := stubsecret.Generate(stubsecret.DefaultBytes, nil)
	if err != nil {
		return nil, err
	}
	log.Printf("TCRT_STUB_SECRET not set, using a random signing key")
	return secret, nil
}
