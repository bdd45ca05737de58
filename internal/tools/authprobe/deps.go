package authprobe

import (
	"context"
	"time"

	"github.com/louisbranch/tcrt-authprobe/internal/tcrt"
	"github.com/louisbranch/tcrt-authprobe/internal/tcrt/userdb"
)

// authAPI is the slice of the TCRT client the probe drives.
type authAPI interface {
	Challenge(ctx context.Context, usernameOrEmail string) (tcrt.ChallengeResponse, error)
	Login(ctx context.Context, usernameOrEmail, password string) (tcrt.LoginResponse, error)
	Me(ctx context.Context, token string) (tcrt.UserInfo, error)
	ValidateToken(ctx context.Context, token string) (tcrt.TokenValidation, error)
	Logout(ctx context.Context, token string) (tcrt.LogoutResponse, error)
	Teams(ctx context.Context, token string) ([]tcrt.Team, error)
}

// userSource reads active users and releases its database on Close.
type userSource interface {
	ActiveUsers(ctx context.Context) ([]userdb.User, error)
	Close() error
}

type deps struct {
	openUsers    func(ctx context.Context, path string) (userSource, error)
	api          authAPI
	now          func() time.Time
	readPassword func() (string, error)
}

func openUserDB(ctx context.Context, path string) (userSource, error) {
	store, err := userdb.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return store, nil
}
