package tcrt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultBaseURL is where a local TCRT serves its API.
const DefaultBaseURL = "http://localhost:9999/api"

// ChallengeResponse is returned by POST /auth/challenge.
type ChallengeResponse struct {
	Challenge          string `json:"challenge"`
	SupportsEncryption bool   `json:"supports_encryption"`
}

// LoginResponse is returned by POST /auth/login. UserInfo keeps every key
// the server sent; numbers decode as json.Number.
type LoginResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int64          `json:"expires_in"`
	UserInfo    map[string]any `json:"user_info"`
	FirstLogin  *bool          `json:"first_login,omitempty"`
}

// UserInfo is returned by GET /auth/me.
type UserInfo struct {
	UserID          int64           `json:"user_id"`
	Username        string          `json:"username"`
	Email           string          `json:"email,omitempty"`
	FullName        string          `json:"full_name,omitempty"`
	Role            string          `json:"role"`
	IsActive        bool            `json:"is_active"`
	Permissions     json.RawMessage `json:"permissions,omitempty"`
	AccessibleTeams []int64         `json:"accessible_teams,omitempty"`
	LarkName        string          `json:"lark_name,omitempty"`
}

// HasPermissions reports whether the server included a permissions object.
func (u UserInfo) HasPermissions() bool {
	trimmed := bytes.TrimSpace(u.Permissions)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Permissions is the permissions object TCRT attaches to /auth/me.
type Permissions struct {
	UserID          int64                      `json:"user_id"`
	Role            string                     `json:"role"`
	AccessibleTeams []int64                    `json:"accessible_teams"`
	TeamPermissions map[string]json.RawMessage `json:"team_permissions"`
	IsSuperAdmin    bool                       `json:"is_super_admin"`
	IsAdmin         bool                       `json:"is_admin"`
}

// DecodePermissions parses the raw permissions object.
func (u UserInfo) DecodePermissions() (Permissions, error) {
	if !u.HasPermissions() {
		return Permissions{}, fmt.Errorf("permissions not present")
	}
	var p Permissions
	if err := json.Unmarshal(u.Permissions, &p); err != nil {
		return Permissions{}, fmt.Errorf("decode permissions: %w", err)
	}
	return p, nil
}

// TokenValidation is returned by POST /auth/validate-token.
type TokenValidation struct {
	Valid    bool   `json:"valid"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	JTI      string `json:"jti"`
}

// LogoutResponse is returned by POST /auth/logout.
type LogoutResponse struct {
	Message string `json:"message"`
}

// TeamID accepts either a JSON string or number.
type TeamID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *TeamID) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "\"") {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TeamID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("team id must be a string or number: %w", err)
	}
	*id = TeamID(n.String())
	return nil
}

// Team is one entry of GET /teams.
type Team struct {
	ID          TeamID `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
	Color       string `json:"color,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// TeamsFromIDs builds placeholder teams for ids when the teams endpoint is
// unavailable.
func TeamsFromIDs(ids []int64) []Team {
	teams := make([]Team, 0, len(ids))
	for _, id := range ids {
		teams = append(teams, Team{
			ID:     TeamID(fmt.Sprint(id)),
			Name:   fmt.Sprintf("Team %d", id),
			Active: true,
		})
	}
	return teams
}

// FilterAccessibleTeams keeps the teams whose id is in ids.
func FilterAccessibleTeams(teams []Team, ids []int64) []Team {
	allowed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		allowed[fmt.Sprint(id)] = struct{}{}
	}
	out := make([]Team, 0, len(teams))
	for _, team := range teams {
		if _, ok := allowed[strings.TrimSpace(string(team.ID))]; ok {
			out = append(out, team)
		}
	}
	return out
}
