package authprobe

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// selectAccount returns configured credentials, or asks which account to use.
func (p *probe) selectAccount() (string, string, error) {
	if p.cfg.Username != "" {
		if p.cfg.Password != "" {
			return p.cfg.Username, p.cfg.Password, nil
		}
		password, err := p.askPassword()
		return p.cfg.Username, password, err
	}

	p.line("")
	p.say("probe.account.prompt")
	p.say("probe.account.admin")
	p.say("probe.account.testuser")
	p.say("probe.account.custom")
	p.ask("probe.account.choice")
	choice, err := p.readLine()
	if err != nil {
		return "", "", fmt.Errorf("read account choice: %w", err)
	}

	switch choice {
	case "1":
		return "admin", presetPassword, nil
	case "2":
		return "testuser", presetPassword, nil
	}

	p.ask("probe.account.username")
	username, err := p.readLine()
	if err != nil {
		return "", "", fmt.Errorf("read username: %w", err)
	}
	password, err := p.askPassword()
	return username, password, err
}

func (p *probe) askPassword() (string, error) {
	p.ask("probe.account.password")
	if p.deps.readPassword != nil {
		password, err := p.deps.readPassword()
		p.line("")
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return password, nil
	}
	password, err := p.readLine()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return password, nil
}

func (p *probe) ask(key string) {
	fmt.Fprint(p.out, p.printer.Sprintf(key))
}

// readLine returns the next trimmed input line. A final line without a
// newline is accepted; an empty stream is an error.
func (p *probe) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// terminalPasswordReader reads without echo when in is a terminal.
func terminalPasswordReader(in io.Reader) func() (string, error) {
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return func() (string, error) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
