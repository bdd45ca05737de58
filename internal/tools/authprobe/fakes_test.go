package authprobe

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/louisbranch/tcrt-authprobe/internal/tcrt"
	"github.com/louisbranch/tcrt-authprobe/internal/tcrt/userdb"
)

type fakeUsers struct {
	users  []userdb.User
	err    error
	closed bool
}

func (f *fakeUsers) ActiveUsers(context.Context) ([]userdb.User, error) {
	return f.users, f.err
}

func (f *fakeUsers) Close() error {
	f.closed = true
	return nil
}

// fakeAPI answers like a healthy TCRT until an error field is set.
type fakeAPI struct {
	challengeErr error
	loginErr     error
	emptyToken   bool
	meErr        error
	validateErr  error
	teamsErr     error
	logoutErr    error
	// afterLogoutErr is returned by Me once Logout succeeded; nil means the
	// token still works.
	afterLogoutErr error

	loggedOut bool
	calls     []string
}

const fakeToken = "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOjEsImp0aSI6ImFiYyJ9.c2ln"

func (f *fakeAPI) Challenge(_ context.Context, username string) (tcrt.ChallengeResponse, error) {
	f.calls = append(f.calls, "challenge:"+username)
	if f.challengeErr != nil {
		return tcrt.ChallengeResponse{}, f.challengeErr
	}
	return tcrt.ChallengeResponse{Challenge: "0123456789abcdef0123456789abcdef"}, nil
}

func (f *fakeAPI) Login(_ context.Context, username, password string) (tcrt.LoginResponse, error) {
	f.calls = append(f.calls, "login:"+username+":"+password)
	if f.loginErr != nil {
		return tcrt.LoginResponse{}, f.loginErr
	}
	token := fakeToken
	if f.emptyToken {
		token = ""
	}
	return tcrt.LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   3600,
		UserInfo:    map[string]any{"username": username, "role": "USER"},
	}, nil
}

func (f *fakeAPI) Me(_ context.Context, _ string) (tcrt.UserInfo, error) {
	f.calls = append(f.calls, "me")
	if f.loggedOut {
		if f.afterLogoutErr != nil {
			return tcrt.UserInfo{}, f.afterLogoutErr
		}
	} else if f.meErr != nil {
		return tcrt.UserInfo{}, f.meErr
	}
	return tcrt.UserInfo{
		UserID:          2,
		Username:        "testuser",
		Role:            "USER",
		IsActive:        true,
		Permissions:     json.RawMessage(`{"role":"USER","is_super_admin":false,"is_admin":false}`),
		LarkName:        "Test User",
		AccessibleTeams: []int64{3, 5},
	}, nil
}

func (f *fakeAPI) ValidateToken(context.Context, string) (tcrt.TokenValidation, error) {
	f.calls = append(f.calls, "validate")
	if f.validateErr != nil {
		return tcrt.TokenValidation{}, f.validateErr
	}
	return tcrt.TokenValidation{Valid: true, UserID: 2, Username: "testuser", Role: "USER", JTI: "abc"}, nil
}

func (f *fakeAPI) Logout(context.Context, string) (tcrt.LogoutResponse, error) {
	f.calls = append(f.calls, "logout")
	if f.logoutErr != nil {
		return tcrt.LogoutResponse{}, f.logoutErr
	}
	f.loggedOut = true
	return tcrt.LogoutResponse{Message: "Successfully logged out"}, nil
}

func (f *fakeAPI) Teams(context.Context, string) ([]tcrt.Team, error) {
	f.calls = append(f.calls, "teams")
	if f.teamsErr != nil {
		return nil, f.teamsErr
	}
	return []tcrt.Team{
		{ID: "3", Name: "Payments", Active: true},
		{ID: "9", Name: "Hidden", Active: true},
	}, nil
}

func unauthorized(path string) error {
	return &tcrt.APIError{Method: http.MethodGet, Path: path, StatusCode: http.StatusUnauthorized, Body: `{"detail":"Invalid token"}`}
}

func statusError(path string, status int) error {
	return &tcrt.APIError{Method: http.MethodPost, Path: path, StatusCode: status, Body: `{"detail":"nope"}`}
}

func fixedClock() func() time.Time {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time { return now }
}

func healthyDeps(api *fakeAPI, users *fakeUsers) deps {
	return deps{
		openUsers: func(context.Context, string) (userSource, error) { return users, nil },
		api:       api,
		now:       fixedClock(),
	}
}

func sampleUsers() *fakeUsers {
	return &fakeUsers{users: []userdb.User{
		{ID: 1, Username: "admin", Email: "admin@example.com", Role: "SUPER_ADMIN", IsActive: true, CreatedAt: "2026-01-01T00:00:00Z", FullName: "Admin"},
		{ID: 2, Username: "testuser", Role: "USER", IsActive: true, CreatedAt: "2026-01-01T00:00:00Z"},
	}}
}
