package authprobe

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/text/message"

	apperrors "github.com/louisbranch/tcrt-authprobe/internal/platform/errors"
	"github.com/louisbranch/tcrt-authprobe/internal/platform/i18n/catalog"
	"github.com/louisbranch/tcrt-authprobe/internal/platform/timeouts"
	"github.com/louisbranch/tcrt-authprobe/internal/tcrt"
)

const (
	rule            = "============================================================"
	challengePrefix = 20
	tokenPrefix     = 50
	presetPassword  = "123"
)

type probe struct {
	cfg     Config
	deps    deps
	in      *bufio.Reader
	out     io.Writer
	locale  string
	printer *message.Printer

	result  Result
	token   string
	me      tcrt.UserInfo
	warning string
}

func newProbe(cfg Config, d deps, in io.Reader, out io.Writer) *probe {
	if d.now == nil {
		d.now = time.Now
	}
	locale := catalog.Default().Resolve(cfg.Locale)
	return &probe{
		cfg:     cfg,
		deps:    d,
		in:      bufio.NewReader(in),
		out:     out,
		locale:  locale,
		printer: catalog.Default().Printer(locale),
		result: Result{
			DBPath:     cfg.DBPath,
			APIBaseURL: cfg.APIBaseURL,
			Steps:      []StepResult{},
		},
	}
}

// runProbe executes the steps in order and stops at the first failure.
func runProbe(ctx context.Context, cfg Config, d deps, in io.Reader, out io.Writer) (Result, error) {
	p := newProbe(cfg, d, in, out)
	ctx, span := otel.Tracer("github.com/louisbranch/tcrt-authprobe/internal/tools/authprobe").Start(ctx, "authprobe.Run")
	defer span.End()

	err := p.run(ctx)
	p.result.Passed = err == nil
	span.SetAttributes(attribute.Bool("authprobe.passed", p.result.Passed))
	if err != nil {
		if failed, ok := p.result.FailedStep(); ok {
			span.SetAttributes(attribute.String("authprobe.failed_step", failed.Name))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.line("")
		p.say("probe.failed", apperrors.Localize(err, p.locale))
		return p.result, err
	}
	p.conclude()
	return p.result, nil
}

func (p *probe) run(ctx context.Context) error {
	p.result.StartedAt = p.deps.now()
	p.banner(p.printer.Sprintf("probe.title"))
	p.line("")
	p.say("probe.header.database", p.cfg.DBPath)
	p.say("probe.header.api", p.cfg.APIBaseURL)
	p.say("probe.header.started", p.result.StartedAt.Format(time.RFC3339))

	if err := p.step(StepDatabase, func() error { return p.checkDatabase(ctx) }); err != nil {
		return err
	}

	var username, password string
	if err := p.step(StepAccount, func() error {
		var err error
		username, password, err = p.selectAccount()
		return err
	}); err != nil {
		return err
	}
	p.result.Username = username

	steps := []struct {
		name string
		fn   func() error
	}{
		{StepLogin, func() error { return p.login(ctx, username, password) }},
		{StepVerify, func() error { return p.verify(ctx) }},
		{StepValidate, func() error { return p.validate(ctx) }},
		{StepTeams, func() error { return p.teams(ctx) }},
		{StepLogout, func() error { return p.logout(ctx) }},
		{StepSummary, p.summarize},
	}
	for _, s := range steps {
		if s.name == StepTeams && p.cfg.SkipTeams {
			continue
		}
		if err := p.step(s.name, s.fn); err != nil {
			return err
		}
	}
	return nil
}

func (p *probe) step(name string, fn func() error) error {
	start := p.deps.now()
	err := fn()
	res := StepResult{
		Name:       name,
		Passed:     err == nil,
		DurationMS: p.deps.now().Sub(start).Milliseconds(),
		Warning:    p.warning,
	}
	p.warning = ""
	if err != nil {
		res.Code = string(apperrors.GetCode(err))
		res.Error = apperrors.Localize(err, p.locale)
	}
	p.result.Steps = append(p.result.Steps, res)
	return err
}

func (p *probe) checkDatabase(ctx context.Context) error {
	p.banner(p.printer.Sprintf("probe.section.database"))

	openCtx, cancel := context.WithTimeout(ctx, timeouts.DatabaseOpen)
	store, err := p.deps.openUsers(openCtx, p.cfg.DBPath)
	cancel()
	if err != nil {
		p.say("probe.database.failed", err.Error())
		return apperrors.Wrap(apperrors.CodeDatabaseUnavailable, "open user database", err)
	}
	defer store.Close()

	users, err := store.ActiveUsers(ctx)
	if err != nil {
		p.say("probe.database.failed", err.Error())
		return apperrors.Wrap(apperrors.CodeDatabaseUnavailable, "list active users", err)
	}
	p.result.UserCount = len(users)

	p.say("probe.database.connected", p.cfg.DBPath)
	p.say("probe.database.found", strconv.Itoa(len(users)))
	p.line("")
	for _, u := range users {
		p.line("  ID: %d", u.ID)
		p.line("  Username: %s", u.Username)
		p.line("  Email: %s", p.orDefault(u.Email, "core.na"))
		p.line("  Role: %s", u.Role)
		p.line("  Full Name: %s", p.orDefault(u.FullName, "core.na"))
		p.line("  Created: %s", u.CreatedAt)
		p.line("  Last Login: %s", p.orDefault(u.LastLoginAt, "core.never"))
		p.line("")
	}
	return nil
}

func (p *probe) login(ctx context.Context, username, password string) error {
	p.banner(p.printer.Sprintf("probe.section.login", username))

	p.say("probe.login.challenge_step")
	challenge, err := p.deps.api.Challenge(ctx, username)
	if err != nil {
		p.reportFailure("probe.login.challenge_failed", err)
		return stepError(apperrors.CodeChallengeFailed, "request challenge", "/auth/challenge", err)
	}
	p.say("probe.login.challenge_ok", truncate(challenge.Challenge, challengePrefix))
	p.line("  Supports encryption: %t", challenge.SupportsEncryption)

	p.line("")
	p.say("probe.login.password_step")
	resp, err := p.deps.api.Login(ctx, username, password)
	if err != nil {
		p.reportFailure("probe.login.failed", err)
		return stepError(apperrors.CodeLoginFailed, "log in", "/auth/login", err)
	}
	p.token = resp.AccessToken

	p.say("probe.login.ok")
	p.line("  Token: %s...", truncate(resp.AccessToken, tokenPrefix))
	p.line("  Token Type: %s", resp.TokenType)
	p.say("probe.login.expires", strconv.FormatInt(resp.ExpiresIn, 10))
	if claims, err := tcrt.InspectToken(resp.AccessToken); err != nil {
		p.say("probe.login.not_jwt", err.Error())
	} else {
		expires := p.printer.Sprintf("core.na")
		if !claims.ExpiresAt.IsZero() {
			expires = claims.ExpiresAt.Format(time.RFC3339)
		}
		p.say("probe.login.claims", p.orDefault(claims.Subject, "core.na"), p.orDefault(claims.ID, "core.na"), expires)
	}
	p.line("  User Info:")
	keys := make([]string, 0, len(resp.UserInfo))
	for key := range resp.UserInfo {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		p.line("    %s: %v", key, resp.UserInfo[key])
	}
	return nil
}

func (p *probe) verify(ctx context.Context) error {
	p.banner(p.printer.Sprintf("probe.section.verify"))
	if err := p.requireToken(); err != nil {
		return err
	}

	me, err := p.deps.api.Me(ctx, p.token)
	if err != nil {
		p.reportFailure("probe.verify.failed", err)
		return stepError(apperrors.CodeTokenVerifyFailed, "verify token", "/auth/me", err)
	}
	p.me = me

	p.say("probe.verify.ok")
	p.say("probe.verify.user_info")
	p.line("    User ID: %d", me.UserID)
	p.line("    Username: %s", me.Username)
	p.line("    Email: %s", p.orDefault(me.Email, "core.na"))
	p.line("    Full Name: %s", p.orDefault(me.FullName, "core.na"))
	p.line("    Role: %s (%s)", me.Role, tcrt.MapRole(me.Role))
	p.line("    Active: %t", me.IsActive)
	p.line("    Can Edit: %t, Can View: %t", tcrt.CanEdit(me.Role), tcrt.CanView(me.Role))
	if me.LarkName != "" {
		p.line("    Lark Name: %s", me.LarkName)
	}
	if me.HasPermissions() {
		var indented bytes.Buffer
		if err := json.Indent(&indented, me.Permissions, "    ", "  "); err != nil {
			p.line("    Permissions: %s", string(me.Permissions))
		} else {
			p.line("    Permissions: %s", indented.String())
		}
		if perms, err := me.DecodePermissions(); err == nil {
			p.line("    Super Admin: %t, Admin: %t", perms.IsSuperAdmin, perms.IsAdmin)
		}
	}
	if len(me.AccessibleTeams) > 0 {
		p.line("    Accessible Teams: %v", me.AccessibleTeams)
	}
	return nil
}

func (p *probe) validate(ctx context.Context) error {
	p.banner(p.printer.Sprintf("probe.section.validate"))
	if err := p.requireToken(); err != nil {
		return err
	}

	v, err := p.deps.api.ValidateToken(ctx, p.token)
	if err != nil {
		p.reportFailure("probe.validate.failed", err)
		return stepError(apperrors.CodeTokenValidateFailed, "validate token", "/auth/validate-token", err)
	}
	p.say("probe.validate.ok")
	p.line("  Valid: %t", v.Valid)
	p.line("  User ID: %d", v.UserID)
	p.line("  Username: %s", v.Username)
	p.line("  Role: %s", v.Role)
	p.line("  JTI: %s", v.JTI)
	return nil
}

// teams never fails the run: when the endpoint is unavailable the accessible
// team ids from /auth/me stand in.
func (p *probe) teams(ctx context.Context) error {
	p.banner(p.printer.Sprintf("probe.section.teams"))
	if p.token == "" {
		p.say("probe.no_token")
		p.warning = apperrors.Localize(apperrors.New(apperrors.CodeNoAccessToken, "no access token"), p.locale)
		return nil
	}

	teams, err := p.deps.api.Teams(ctx, p.token)
	if err != nil {
		reason := err.Error()
		if status := tcrt.StatusCode(err); status != 0 {
			reason = strconv.Itoa(status)
		}
		p.say("probe.teams.fallback", reason)
		p.warning = err.Error()
		teams = tcrt.TeamsFromIDs(p.me.AccessibleTeams)
	} else if len(p.me.AccessibleTeams) > 0 {
		teams = tcrt.FilterAccessibleTeams(teams, p.me.AccessibleTeams)
	}
	p.result.Teams = teams

	p.say("probe.teams.ok", strconv.Itoa(len(teams)))
	for _, team := range teams {
		p.line("  - %s: %s", team.ID, team.Name)
	}
	return nil
}

func (p *probe) logout(ctx context.Context) error {
	p.banner(p.printer.Sprintf("probe.section.logout"))
	if err := p.requireToken(); err != nil {
		return err
	}

	resp, err := p.deps.api.Logout(ctx, p.token)
	if err != nil {
		p.reportFailure("probe.logout.failed", err)
		return stepError(apperrors.CodeLogoutFailed, "log out", "/auth/logout", err)
	}
	p.say("probe.logout.ok", resp.Message)

	p.line("")
	p.say("probe.logout.checking")
	_, err = p.deps.api.Me(ctx, p.token)
	switch {
	case tcrt.IsUnauthorized(err):
		p.say("probe.logout.revoked")
		return nil
	case err == nil:
		p.say("probe.logout.still_valid", "200")
		return apperrors.WithMetadata(apperrors.CodeTokenNotRevoked, "token accepted after logout", map[string]string{"Status": "200"})
	case tcrt.StatusCode(err) != 0:
		status := strconv.Itoa(tcrt.StatusCode(err))
		p.say("probe.logout.still_valid", status)
		return apperrors.WrapWithMetadata(apperrors.CodeTokenNotRevoked, "check revocation", map[string]string{"Status": status}, err)
	default:
		p.say("probe.error", err.Error())
		return stepError(apperrors.CodeLogoutFailed, "check revocation", "/auth/me", err)
	}
}

func (p *probe) summarize() error {
	p.banner(p.printer.Sprintf("probe.section.summary"))
	summary := integrationSummary(p.printer)
	p.result.Summary = &summary
	if err := writeJSON(p.out, summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

func (p *probe) conclude() {
	p.line("")
	p.line(rule)
	p.line("  %s", p.printer.Sprintf("probe.passed"))
	p.line(rule)
	p.line("")
	p.say("probe.conclusion.title")
	for _, key := range []string{
		"probe.conclusion.api",
		"probe.conclusion.login",
		"probe.conclusion.verify",
		"probe.conclusion.revoke",
		"probe.conclusion.users",
	} {
		p.say(key)
	}
	p.line("")
	p.say("probe.conclusion.advice")
	p.line("")
}

func (p *probe) requireToken() error {
	if p.token != "" {
		return nil
	}
	p.say("probe.no_token")
	return apperrors.New(apperrors.CodeNoAccessToken, "no access token")
}

// reportFailure prints the status and raw body of an API error, or the error
// itself when no response arrived.
func (p *probe) reportFailure(key string, err error) {
	var apiErr *tcrt.APIError
	if errors.As(err, &apiErr) {
		p.say(key, strconv.Itoa(apiErr.StatusCode))
		p.say("probe.response", apiErr.Body)
		return
	}
	p.say("probe.error", err.Error())
}

// stepError codes err by HTTP status, or as an invalid response when the
// request produced no status.
func stepError(code apperrors.Code, message, path string, err error) error {
	if status := tcrt.StatusCode(err); status != 0 {
		return apperrors.WrapWithMetadata(code, message, map[string]string{"Status": strconv.Itoa(status)}, err)
	}
	return apperrors.WrapWithMetadata(apperrors.CodeInvalidResponse, message, map[string]string{"Path": path}, err)
}

func (p *probe) banner(title string) {
	p.line("")
	p.line(rule)
	p.line("  %s", title)
	p.line(rule)
}

func (p *probe) say(key string, args ...any) {
	fmt.Fprintln(p.out, p.printer.Sprintf(key, args...))
}

func (p *probe) line(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
	fmt.Fprintln(p.out)
}

func (p *probe) orDefault(value, key string) string {
	if strings.TrimSpace(value) == "" {
		return p.printer.Sprintf(key)
	}
	return value
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
