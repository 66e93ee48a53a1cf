package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"legion-prm/pkg/client"
	"legion-prm/pkg/errutil"
	"legion-prm/pkg/session"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrCredentialsRequired = errutil.ValidationFailed("phone number and password are required", nil)
	ErrNoAccessToken       = errutil.BadGateway("login response did not contain an access token", nil)
)

type Service struct {
	client  *client.Client
	session *session.Session
	now     func() time.Time
}

type ServiceParams struct {
	fx.In

	Client *client.Client
}

func NewService(p ServiceParams) *Service {
	return &Service{client: p.Client, session: p.Client.Session(), now: time.Now}
}

// Login exchanges credentials for an access token and stores it in the
// session. A failed login leaves any existing session untouched.
func (s *Service) Login(ctx context.Context, creds Credentials) error {
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" || creds.Password == "" {
		return ErrCredentialsRequired
	}

	var tok tokenResponse
	err := s.client.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   "/auth/login/access-token",
		Form: map[string]string{
			"username": creds.Username,
			"password": creds.Password,
		},
		Anonymous: true,
	}, &tok)
	if err != nil {
		return err
	}
	if tok.AccessToken == "" {
		return ErrNoAccessToken
	}

	if err := s.session.Set(ctx, tok.AccessToken); err != nil {
		return errutil.Internal("failed to store session", err)
	}

	zap.L().Info("logged in", zap.String("username", creds.Username))
	return nil
}

// Logout forgets the stored token. Logging out without a session is not an
// error.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.session.Clear(ctx); err != nil {
		return errutil.Internal("failed to clear session", err)
	}
	return nil
}

// WhoAmI decodes the stored token. It does not contact the API.
func (s *Service) WhoAmI(ctx context.Context) (Identity, error) {
	claims, err := s.session.Claims(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNoToken) {
			return Identity{}, client.ErrNotLoggedIn
		}
		return Identity{}, errutil.Unauthorized("stored token is not readable", err)
	}
	return identityFrom(claims, s.now()), nil
}
