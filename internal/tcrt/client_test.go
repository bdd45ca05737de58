package tcrt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL+"/api", WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestWithHTTPClientKeepsCallerClientAndSession(t *testing.T) {
	var sawCookie bool
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/challenge", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		_ = json.NewEncoder(w).Encode(ChallengeResponse{Challenge: "c"})
	})
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err == nil && c.Value == "abc" {
			sawCookie = true
		}
		_ = json.NewEncoder(w).Encode(UserInfo{UserID: 1, Username: "admin"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	caller := srv.Client()
	client, err := NewClient(srv.URL+"/api", WithHTTPClient(caller))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if caller.Jar != nil {
		t.Fatal("expected caller client to keep a nil jar")
	}
	if _, err := client.Challenge(context.Background(), "admin"); err != nil {
		t.Fatalf("challenge: %v", err)
	}
	if _, err := client.Me(context.Background(), "token"); err != nil {
		t.Fatalf("me: %v", err)
	}
	if !sawCookie {
		t.Fatal("expected session cookie to be sent back")
	}
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	for _, raw := range []string{"", "  ", "ftp://host/api", "http://", "://bad"} {
		if _, err := NewClient(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
	client, err := NewClient("http://localhost:9999/api/")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if got := client.BaseURL(); got != "http://localhost:9999/api" {
		t.Fatalf("expected trimmed base url, got %q", got)
	}
}

func TestChallengeAndLoginSendJSON(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/challenge", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode challenge body: %v", err)
		}
		if body["username_or_email"] != "admin" {
			t.Errorf("expected username_or_email admin, got %v", body)
		}
		if _, ok := body["password"]; ok {
			t.Error("challenge must not send a password")
		}
		if got := r.Header.Get("User-Agent"); got != "StoryMapTool/1.0" {
			t.Errorf("expected user agent, got %q", got)
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		io.WriteString(w, `{"challenge":"0123456789abcdef0123456789","supports_encryption":true}`)
	})
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err != nil || c.Value != "abc" {
			t.Errorf("expected session cookie to be replayed, got %v", err)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("expected json content type, got %q", got)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "123" {
			t.Errorf("expected password 123, got %v", body)
		}
		io.WriteString(w, `{"access_token":"tok","token_type":"bearer","expires_in":3600,"user_info":{"user_id":7,"username":"admin"}}`)
	})
	client := newTestClient(t, mux)

	challenge, err := client.Challenge(context.Background(), "admin")
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}
	if !challenge.SupportsEncryption || !strings.HasPrefix(challenge.Challenge, "0123") {
		t.Fatalf("unexpected challenge %+v", challenge)
	}

	login, err := client.Login(context.Background(), "admin", "123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.AccessToken != "tok" || login.ExpiresIn != 3600 {
		t.Fatalf("unexpected login %+v", login)
	}
	if id, ok := login.UserInfo["user_id"].(json.Number); !ok || id.String() != "7" {
		t.Fatalf("expected json.Number user id, got %#v", login.UserInfo["user_id"])
	}
}

func TestLoginRejectsEmptyToken(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"token_type":"bearer"}`)
	}))
	if _, err := client.Login(context.Background(), "admin", "123"); err == nil {
		t.Fatal("expected missing token error")
	}
}

func TestBearerCalls(t *testing.T) {
	mux := http.NewServeMux()
	requireBearer := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"detail":"Not authenticated"}`)
			return false
		}
		return true
	}
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if requireBearer(w, r) {
			io.WriteString(w, `{"user_id":1,"username":"admin","role":"ADMIN","is_active":true,"permissions":{"is_admin":true,"accessible_teams":[1,2]},"accessible_teams":[1,2]}`)
		}
	})
	mux.HandleFunc("POST /api/auth/validate-token", func(w http.ResponseWriter, r *http.Request) {
		if requireBearer(w, r) {
			io.WriteString(w, `{"valid":true,"user_id":1,"username":"admin","role":"ADMIN","jti":"j-1"}`)
		}
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		if requireBearer(w, r) {
			io.WriteString(w, `{"message":"Successfully logged out"}`)
		}
	})
	mux.HandleFunc("GET /api/teams", func(w http.ResponseWriter, r *http.Request) {
		if requireBearer(w, r) {
			io.WriteString(w, `[{"id":1,"name":"QA","active":true},{"id":"ops","name":"Ops","active":false}]`)
		}
	})
	client := newTestClient(t, mux)
	ctx := context.Background()

	me, err := client.Me(ctx, "tok")
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.UserID != 1 || !me.HasPermissions() || len(me.AccessibleTeams) != 2 {
		t.Fatalf("unexpected me %+v", me)
	}
	perms, err := me.DecodePermissions()
	if err != nil || !perms.IsAdmin {
		t.Fatalf("unexpected permissions %+v (%v)", perms, err)
	}

	validation, err := client.ValidateToken(ctx, "tok")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !validation.Valid || validation.JTI != "j-1" {
		t.Fatalf("unexpected validation %+v", validation)
	}

	teams, err := client.Teams(ctx, "tok")
	if err != nil {
		t.Fatalf("teams: %v", err)
	}
	if len(teams) != 2 || teams[0].ID != "1" || teams[1].ID != "ops" {
		t.Fatalf("unexpected teams %+v", teams)
	}

	logout, err := client.Logout(ctx, "tok")
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	if logout.Message != "Successfully logged out" {
		t.Fatalf("unexpected logout %+v", logout)
	}

	_, err = client.Me(ctx, "stale")
	if !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Body != `{"detail":"Not authenticated"}` || apiErr.Method != http.MethodGet || apiErr.Path != "/auth/me" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestMeWithoutOptionalFields(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"user_id":2,"username":"viewer","role":"VIEWER","is_active":true,"permissions":null}`)
	}))
	me, err := client.Me(context.Background(), "tok")
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.HasPermissions() {
		t.Fatal("expected null permissions to read as absent")
	}
	if me.AccessibleTeams != nil {
		t.Fatalf("expected absent accessible teams, got %v", me.AccessibleTeams)
	}
	if _, err := me.DecodePermissions(); err == nil {
		t.Fatal("expected decode error for absent permissions")
	}
}

func TestDecodeErrorIsNotAPIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `not json`)
	}))
	_, err := client.ValidateToken(context.Background(), "tok")
	if err == nil {
		t.Fatal("expected decode error")
	}
	if StatusCode(err) != 0 {
		t.Fatalf("expected no status for decode error, got %d", StatusCode(err))
	}
}

func TestTransportErrorIsNotAPIError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := NewClient(url + "/api")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Challenge(context.Background(), "admin")
	if err == nil {
		t.Fatal("expected transport error")
	}
	if IsUnauthorized(err) {
		t.Fatal("transport error must not read as unauthorized")
	}
}

func TestTeamIDRejectsObjects(t *testing.T) {
	var id TeamID
	if err := json.Unmarshal([]byte(`{"x":1}`), &id); err == nil {
		t.Fatal("expected error for object team id")
	}
}

func TestTeamsFromIDs(t *testing.T) {
	teams := TeamsFromIDs([]int64{3, 5})
	if len(teams) != 2 || teams[0].ID != "3" || teams[1].Name != "Team 5" || !teams[1].Active {
		t.Fatalf("unexpected teams %+v", teams)
	}
}
