// Package stub serves a TCRT-compatible authentication API backed by a local
// users database. It stands in for a real TCRT when developing or
// rehearsing the probe.
package stub

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/louisbranch/tcrt-authprobe/internal/tcrt"
	"github.com/louisbranch/tcrt-authprobe/internal/tcrt/userdb"
)

// DefaultTokenTTL matches TCRT's default access token lifetime.
const DefaultTokenTTL = time.Hour

// UserStore is the user lookup the server needs.
type UserStore interface {
	UserByLogin(ctx context.Context, usernameOrEmail string) (userdb.Credential, error)
	UserByID(ctx context.Context, id int64) (userdb.Credential, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

// Config controls token issuance.
type Config struct {
	Secret   []byte
	TokenTTL time.Duration
	Issuer   string
	Teams    []tcrt.Team
	Now      func() time.Time
}

type accessClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Server implements the TCRT auth endpoints.
type Server struct {
	store UserStore
	cfg   Config

	mu      sync.Mutex
	revoked map[string]time.Time
}

// New builds a server. Secret is required.
func New(store UserStore, cfg Config) (*Server, error) {
	if store == nil {
		return nil, errors.New("user store is required")
	}
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "tcrt-stub"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Teams == nil {
		cfg.Teams = []tcrt.Team{{ID: "1", Name: "Default", Active: true}}
	}
	return &Server{
		store:   store,
		cfg:     cfg,
		revoked: map[string]time.Time{},
	}, nil
}

// Handler routes the API under /api.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/challenge", s.handleChallenge)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/auth/me", s.requireToken(s.handleMe))
	mux.HandleFunc("POST /api/auth/validate-token", s.requireToken(s.handleValidate))
	mux.HandleFunc("POST /api/auth/logout", s.requireToken(s.handleLogout))
	mux.HandleFunc("GET /api/teams", s.requireToken(s.handleTeams))
	return mux
}

type loginRequest struct {
	UsernameOrEmail string `json:"username_or_email"`
	Password        string `json:"password"`
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.UsernameOrEmail) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "username_or_email is required")
		return
	}
	challenge, err := randomHex(32)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "challenge unavailable")
		return
	}
	// Unknown users still get a challenge so the endpoint does not reveal
	// which accounts exist.
	writeJSON(w, http.StatusOK, tcrt.ChallengeResponse{
		Challenge:          challenge,
		SupportsEncryption: false,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid login body")
		return
	}
	cred, err := s.store.UserByLogin(r.Context(), req.UsernameOrEmail)
	if err != nil && !errors.Is(err, userdb.ErrNotFound) {
		log.Printf("login lookup %q: %v", req.UsernameOrEmail, err)
		writeDetail(w, http.StatusInternalServerError, "login unavailable")
		return
	}
	if err != nil || !cred.IsActive || !userdb.VerifyPassword(cred.PasswordHash, req.Password) {
		log.Printf("login rejected for %q", req.UsernameOrEmail)
		writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	now := s.cfg.Now()
	token, err := s.issueToken(cred.User, now)
	if err != nil {
		log.Printf("issue token for %s: %v", cred.Username, err)
		writeDetail(w, http.StatusInternalServerError, "login unavailable")
		return
	}
	firstLogin := cred.LastLoginAt == ""
	if err := s.store.TouchLastLogin(r.Context(), cred.ID, now); err != nil {
		log.Printf("record last login for %s: %v", cred.Username, err)
	}
	log.Printf("login succeeded for %s", cred.Username)

	writeJSON(w, http.StatusOK, tcrt.LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.cfg.TokenTTL / time.Second),
		UserInfo: map[string]any{
			"user_id":   cred.ID,
			"username":  cred.Username,
			"email":     cred.Email,
			"full_name": cred.FullName,
			"role":      cred.Role,
			"is_active": cred.IsActive,
		},
		FirstLogin: &firstLogin,
	})
}

func (s *Server) issueToken(u userdb.User, now time.Time) (string, error) {
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   strconv.FormatInt(u.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
		Username: u.Username,
		Role:     u.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
}

type session struct {
	user   userdb.User
	claims accessClaims
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess session)

func (s *Server) requireToken(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		claims, err := s.parseToken(raw)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		if s.isRevoked(claims.ID) {
			writeDetail(w, http.StatusUnauthorized, "Token has been revoked")
			return
		}
		id, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		cred, err := s.store.UserByID(r.Context(), id)
		if err != nil || !cred.IsActive {
			writeDetail(w, http.StatusUnauthorized, "Inactive or unknown user")
			return
		}
		next(w, r, session{user: cred.User, claims: claims})
	}
}

func (s *Server) parseToken(raw string) (accessClaims, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return s.cfg.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.cfg.Now),
	)
	if err != nil {
		return accessClaims{}, fmt.Errorf("parse access token: %w", err)
	}
	if claims.ID == "" {
		return accessClaims{}, errors.New("access token has no jti")
	}
	return claims, nil
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, sess session) {
	teamIDs := s.accessibleTeamIDs()
	permissions, err := json.Marshal(tcrt.Permissions{
		UserID:          sess.user.ID,
		Role:            sess.user.Role,
		AccessibleTeams: teamIDs,
		TeamPermissions: map[string]json.RawMessage{},
		IsSuperAdmin:    tcrt.IsSuperAdmin(sess.user.Role),
		IsAdmin:         tcrt.IsAdmin(sess.user.Role),
	})
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "permissions unavailable")
		return
	}
	writeJSON(w, http.StatusOK, tcrt.UserInfo{
		UserID:          sess.user.ID,
		Username:        sess.user.Username,
		Email:           sess.user.Email,
		FullName:        sess.user.FullName,
		Role:            sess.user.Role,
		IsActive:        sess.user.IsActive,
		Permissions:     permissions,
		AccessibleTeams: teamIDs,
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, _ *http.Request, sess session) {
	writeJSON(w, http.StatusOK, tcrt.TokenValidation{
		Valid:    true,
		UserID:   sess.user.ID,
		Username: sess.user.Username,
		Role:     sess.user.Role,
		JTI:      sess.claims.ID,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request, sess session) {
	s.revoke(sess.claims.ID, sess.claims.ExpiresAt.Time)
	log.Printf("logout for %s", sess.user.Username)
	writeJSON(w, http.StatusOK, tcrt.LogoutResponse{Message: "Successfully logged out"})
}

func (s *Server) handleTeams(w http.ResponseWriter, _ *http.Request, _ session) {
	writeJSON(w, http.StatusOK, s.cfg.Teams)
}

func (s *Server) accessibleTeamIDs() []int64 {
	ids := make([]int64, 0, len(s.cfg.Teams))
	for _, team := range s.cfg.Teams {
		if id, err := strconv.ParseInt(string(team.ID), 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// revoke records jti until its expiry and drops entries that have expired.
func (s *Server) revoke(jti string, expiresAt time.Time) {
	now := s.cfg.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, id)
		}
	}
	s.revoked[jti] = expiresAt
}

func (s *Server) isRevoked(jti string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[jti]
	return ok
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}
