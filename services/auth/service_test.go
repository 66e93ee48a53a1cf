package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"legion-prm/pkg/client"
	"legion-prm/pkg/errutil"
	"legion-prm/services/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestLogin(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	token := testutil.SignedToken(t, "u1")
	api.JSON("POST /auth/login/access-token", http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
	require.NoError(t, api.Session.Clear(context.Background()))

	svc := NewService(ServiceParams{Client: api.Client})
	require.NoError(t, svc.Login(context.Background(), Credentials{Username: " 628123 ", Password: "s3cret"}))

	call := api.CallsTo("POST /auth/login/access-token")[0]
	require.Empty(t, call.Auth)
	require.True(t, strings.HasPrefix(call.ContentType, "application/x-www-form-urlencoded"))
	form, err := url.ParseQuery(string(call.Body))
	require.NoError(t, err)
	require.Equal(t, "628123", form.Get("username"))
	require.Equal(t, "s3cret", form.Get("password"))

	got, err := api.Session.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, token, got)

	id, err := svc.WhoAmI(context.Background())
	require.NoError(t, err)
	require.Equal(t, "u1", id.UserID)
	require.False(t, id.Expired)
}

func TestLoginRequiresCredentials(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	svc := NewService(ServiceParams{Client: api.Client})

	require.ErrorIs(t, svc.Login(context.Background(), Credentials{Username: "  ", Password: "x"}), ErrCredentialsRequired)
	require.ErrorIs(t, svc.Login(context.Background(), Credentials{Username: "628123"}), ErrCredentialsRequired)
	require.Empty(t, api.Calls())
}

func TestLoginRejectedKeepsSession(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.Detail("POST /auth/login/access-token", http.StatusBadRequest, "Incorrect email or password")
	svc := NewService(ServiceParams{Client: api.Client})

	err := svc.Login(context.Background(), Credentials{Username: "628123", Password: "wrong"})
	require.Error(t, err)
	require.Equal(t, "Incorrect email or password", errutil.Message(err))
	require.True(t, api.Session.LoggedIn(context.Background()))
}

func TestLoginUnauthorizedDoesNotFireHook(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.Detail("POST /auth/login/access-token", http.StatusUnauthorized, "Inactive user")

	fired := 0
	api.Session.OnAuthFailure(func() { fired++ })
	svc := NewService(ServiceParams{Client: api.Client})

	err := svc.Login(context.Background(), Credentials{Username: "628123", Password: "pw"})
	require.True(t, errutil.IsAuth(err))
	require.Zero(t, fired)
	require.True(t, api.Session.LoggedIn(context.Background()))
}

func TestLoginWithoutToken(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.JSON("POST /auth/login/access-token", http.StatusOK, map[string]string{"token_type": "bearer"})
	svc := NewService(ServiceParams{Client: api.Client})

	err := svc.Login(context.Background(), Credentials{Username: "628123", Password: "pw"})
	require.ErrorIs(t, err, ErrNoAccessToken)
}

func TestLogout(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	svc := NewService(ServiceParams{Client: api.Client})

	require.NoError(t, svc.Logout(context.Background()))
	require.False(t, api.Session.LoggedIn(context.Background()))
	require.NoError(t, svc.Logout(context.Background()))

	_, err := svc.WhoAmI(context.Background())
	require.ErrorIs(t, err, client.ErrNotLoggedIn)
}

func TestWhoAmIExpired(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	require.NoError(t, api.Session.Set(context.Background(), testutil.SignedToken(t, "u9")))

	svc := NewService(ServiceParams{Client: api.Client})
	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	id, err := svc.WhoAmI(context.Background())
	require.NoError(t, err)
	require.Equal(t, "u9", id.UserID)
	require.True(t, id.Expired)
}

func TestWhoAmIOpaqueToken(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	svc := NewService(ServiceParams{Client: api.Client})

	_, err := svc.WhoAmI(context.Background())
	require.True(t, errutil.IsAuth(err))
}
