package tcrt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/publicsuffix"

	"github.com/louisbranch/tcrt-authprobe/internal/platform/timeouts"
)

const (
	userAgent        = "StoryMapTool/1.0"
	maxErrorBodySize = 64 << 10
	tracerName       = "github.com/louisbranch/tcrt-authprobe/internal/tcrt"
)

// Client calls the TCRT auth API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tracer  trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient makes requests with a copy of c. The copy gets its own
// cookie jar when c has none; c itself is left unchanged.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		if c != nil {
			copied := *c
			client.http = &copied
		}
	}
}

// NewClient returns a client for the API rooted at baseURL
// (e.g. http://localhost:9999/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if raw == "" {
		return nil, fmt.Errorf("base url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", baseURL)
	}

	c := &Client{
		baseURL: parsed,
		http:    &http.Client{Timeout: timeouts.HTTPRequest},
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	return c, nil
}

// BaseURL returns the API root the client calls.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

type loginRequest struct {
	UsernameOrEmail string `json:"username_or_email"`
	Password        string `json:"password,omitempty"`
}

// Challenge requests a login challenge for a user.
func (c *Client) Challenge(ctx context.Context, usernameOrEmail string) (ChallengeResponse, error) {
	var out ChallengeResponse
	err := c.do(ctx, "Challenge", http.MethodPost, "/auth/challenge", "", loginRequest{UsernameOrEmail: usernameOrEmail}, &out)
	return out, err
}

// Login logs in with a plaintext password (TCRT's compatibility mode).
func (c *Client) Login(ctx context.Context, usernameOrEmail, password string) (LoginResponse, error) {
	var out LoginResponse
	err := c.do(ctx, "Login", http.MethodPost, "/auth/login", "", loginRequest{UsernameOrEmail: usernameOrEmail, Password: password}, &out)
	if err == nil && out.AccessToken == "" {
		return out, fmt.Errorf("login response has no access token")
	}
	return out, err
}

// Me returns the user behind token.
func (c *Client) Me(ctx context.Context, token string) (UserInfo, error) {
	var out UserInfo
	err := c.do(ctx, "Me", http.MethodGet, "/auth/me", token, nil, &out)
	return out, err
}

// ValidateToken asks TCRT whether token is still valid.
func (c *Client) ValidateToken(ctx context.Context, token string) (TokenValidation, error) {
	var out TokenValidation
	err := c.do(ctx, "ValidateToken", http.MethodPost, "/auth/validate-token", token, nil, &out)
	return out, err
}

// Logout revokes token.
func (c *Client) Logout(ctx context.Context, token string) (LogoutResponse, error) {
	var out LogoutResponse
	err := c.do(ctx, "Logout", http.MethodPost, "/auth/logout", token, nil, &out)
	return out, err
}

// Teams lists the teams visible to token.
func (c *Client) Teams(ctx context.Context, token string) ([]Team, error) {
	var out []Team
	err := c.do(ctx, "Teams", http.MethodGet, "/teams", token, nil, &out)
	return out, err
}

func (c *Client) endpoint(path string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

func (c *Client) do(ctx context.Context, op, method, path, token string, body any, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "tcrt."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", op, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}
