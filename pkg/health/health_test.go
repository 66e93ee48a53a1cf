package health

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"legion-prm/pkg/session"
	"legion-prm/services/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newChecker(api *testutil.FakeAPI, store session.TokenStore) *Checker {
	api.Config.Session.Store = "memory"
	return New(Params{Config: api.Config, Client: api.Client, Store: store})
}

func TestCheckHealthy(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.HandleRoot("GET /", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Distributed Agent Platform API", "status": "running"})
	})

	h := newChecker(api, session.NewMemoryStore("tok")).Check(context.Background())
	require.True(t, h.Healthy())
	require.Len(t, h.Deps, 3)
	require.Equal(t, StatusHealthy, h.Deps[0].Status)
	require.Equal(t, "OK", h.Deps[1].Message)
	require.Equal(t, StatusSkipped, h.Deps[2].Status)

	calls := api.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "/", calls[0].Path)
	require.Empty(t, calls[0].Auth)
}

func TestCheckAPINotRunning(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.HandleRoot("GET /", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "maintenance"})
	})

	h := newChecker(api, session.NewMemoryStore("")).Check(context.Background())
	require.False(t, h.Healthy())
	require.Equal(t, StatusUnhealthy, h.Deps[0].Status)
	require.Contains(t, h.Deps[0].Message, "maintenance")
	require.Equal(t, "no token stored", h.Deps[1].Message)
}

func TestCheckStoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := session.NewMockTokenStore(ctrl)
	store.EXPECT().Load(gomock.Any()).Return("", errors.New("connection refused"))

	api := testutil.NewFakeAPI(t)
	api.HandleRoot("GET /", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "running"})
	})

	h := newChecker(api, store).Check(context.Background())
	require.Equal(t, StatusUnhealthy, h.Status)
	require.Equal(t, StatusHealthy, h.Deps[0].Status)
	require.Equal(t, StatusUnhealthy, h.Deps[1].Status)
	require.Equal(t, "connection refused", h.Deps[1].Message)
}
