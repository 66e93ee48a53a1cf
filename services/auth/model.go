package auth

import (
	"time"

	"legion-prm/pkg/session"
)

type Credentials struct {
	Username string
	Password string
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Identity describes the logged in user as far as the token tells.
type Identity struct {
	UserID    string
	ExpiresAt time.Time
	Expired   bool
}

func identityFrom(c session.Claims, now time.Time) Identity {
	return Identity{
		UserID:    c.Subject,
		ExpiresAt: c.Expiry,
		Expired:   c.Expired(now),
	}
}
