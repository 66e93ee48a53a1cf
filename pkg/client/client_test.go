package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"legion-prm/pkg/config"
	"legion-prm/pkg/errutil"
	"legion-prm/pkg/gen"
	"legion-prm/pkg/session"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, token string) (*Client, *session.Session) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.API.BaseURL = srv.URL
	cfg.API.Prefix = "/api/v1"
	cfg.Snowflake.Node = 1

	ids, err := gen.NewSnowflakeNode(cfg)
	require.NoError(t, err)

	sess := session.New(session.NewMemoryStore(token))
	c := New(cfg, sess, ids)
	t.Cleanup(c.Close)
	return c, sess
}

func TestGetSendsTokenAndDecodes(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/admin/agents", r.URL.Path)
		require.Equal(t, "PENDING", r.URL.Query().Get("status"))
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = io.WriteString(w, `[{"id":"a1","name":"Rina"}]`)
	}, "tok")

	var out []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	err := c.Get(context.Background(), "/admin/agents", url.Values{"status": {"PENDING"}}, &out)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "Rina", out[0].Name)
}

func TestPostSendsJSON(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Contains(t, r.Header.Get("Content-Type"), "application/json")
		body, _ := io.ReadAll(r.Body)
		require.JSONEq(t, `{"agent_id":"x"}`, string(body))
		w.WriteHeader(http.StatusCreated)
	}, "tok")

	err := c.Post(context.Background(), "/assign", map[string]string{"agent_id": "x"}, nil)
	require.NoError(t, err)
}

func TestNotLoggedInSendsNothing(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}, "")

	err := c.Get(context.Background(), "/agent/dashboard", nil, nil)
	require.ErrorIs(t, err, ErrNotLoggedIn)
	require.Zero(t, hits.Load())
}

func TestAuthFailureClearsSessionOnce(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		var hits atomic.Int32
		c, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(code)
			_, _ = io.WriteString(w, `{"detail":"Could not validate credentials"}`)
		}, "stale")

		var redirects int
		sess.OnAuthFailure(func() { redirects++ })

		err := c.Get(context.Background(), "/agent/dashboard", nil, nil)
		require.True(t, errutil.IsAuth(err))
		require.Equal(t, "Could not validate credentials", errutil.Message(err))
		require.False(t, sess.LoggedIn(context.Background()))

		err = c.Get(context.Background(), "/agent/leaderboard", nil, nil)
		require.ErrorIs(t, err, ErrNotLoggedIn)

		require.Equal(t, 1, redirects)
		require.Equal(t, int32(1), hits.Load())
	}
}

func TestAnonymousAuthErrorKeepsSession(t *testing.T) {
	c, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		require.Equal(t, "0812", r.PostForm.Get("username"))
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"detail":"Incorrect email or password"}`)
	}, "")

	var fired bool
	sess.OnAuthFailure(func() { fired = true })

	err := c.Do(context.Background(), Request{
		Method:    http.MethodPost,
		Path:      "/auth/login/access-token",
		Form:      map[string]string{"username": "0812", "password": "x"},
		Anonymous: true,
	}, nil)
	require.Error(t, err)
	require.Equal(t, errutil.StatusBadRequest, errutil.Code(err))
	require.Equal(t, "Incorrect email or password", errutil.Message(err))
	require.False(t, fired)
}

func TestErrorDetailVariants(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		code   errutil.CoreStatus
		want   string
	}{
		{"string detail", http.StatusBadRequest, `{"detail":"Already joined this campaign"}`, errutil.StatusBadRequest, "Already joined this campaign"},
		{"validation list", http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","name"],"msg":"field required"},{"msg":"too short"}]}`, errutil.StatusUnprocessableEntity, "field required; too short"},
		{"no detail", http.StatusInternalServerError, `<html>oops</html>`, errutil.StatusInternal, "request failed with status 500"},
		{"not found", http.StatusNotFound, `{"detail":"Batch not found"}`, errutil.StatusNotFound, "Batch not found"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}, "tok")

			err := c.Get(context.Background(), "/x", nil, nil)
			require.Equal(t, tc.code, errutil.Code(err))
			require.Equal(t, tc.want, errutil.Message(err))
			require.True(t, sess.LoggedIn(context.Background()))
		})
	}
}

func TestUndecodableBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"total_contacts":`)
	}, "tok")

	var out map[string]any
	err := c.Get(context.Background(), "/x", nil, &out)
	require.Equal(t, errutil.StatusBadGateway, errutil.Code(err))
}

func TestTransportFailure(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {}, "tok")
	c.http.SetBaseURL("http://127.0.0.1:1")

	err := c.Get(context.Background(), "/x", nil, nil)
	require.Equal(t, errutil.StatusBadGateway, errutil.Code(err))
	require.NotNil(t, errors.Unwrap(err))
}

func TestCanceledContext(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {}, "tok")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Get(ctx, "/x", nil, nil)
	require.Equal(t, errutil.StatusClientClosedRequest, errutil.Code(err))
}

func TestUploadMultipart(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "leads.xlsx", header.Filename)
		body, _ := io.ReadAll(file)
		require.Equal(t, "sheet", string(body))
		_, _ = io.WriteString(w, `{"new_contacts":480}`)
	}, "tok")

	var out struct {
		NewContacts int `json:"new_contacts"`
	}
	err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/contacts/admin/contacts/upload",
		File:   &Upload{Param: "file", FileName: "leads.xlsx", Reader: strings.NewReader("sheet")},
	}, &out)
	require.NoError(t, err)
	require.Equal(t, 480, out.NewContacts)
}

func TestDownload(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/contacts/agent/vcf/download/b1", r.URL.Path)
		w.Header().Set("Content-Type", "text/vcard")
		w.Header().Set("Content-Disposition", `attachment; filename="LEG_0001.vcf"`)
		_, _ = io.WriteString(w, "BEGIN:VCARD\nEND:VCARD\n")
	}, "tok")

	var buf bytes.Buffer
	name, err := c.Download(context.Background(), "/contacts/agent/vcf/download/b1", &buf)
	require.NoError(t, err)
	require.Equal(t, "LEG_0001.vcf", name)
	require.Equal(t, "BEGIN:VCARD\nEND:VCARD\n", buf.String())
}

func TestDownloadError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"Batch not found"}`)
	}, "tok")

	var buf bytes.Buffer
	_, err := c.Download(context.Background(), "/contacts/agent/vcf/download/b1", &buf)
	require.Equal(t, "Batch not found", errutil.Message(err))
	require.Zero(t, buf.Len())
}

func TestParseTime(t *testing.T) {
	cases := map[string]time.Time{
		"2025-01-15T08:30:00":        time.Date(2025, 1, 15, 8, 30, 0, 0, time.UTC),
		"2025-01-15T08:30:00.123456": time.Date(2025, 1, 15, 8, 30, 0, 123456000, time.UTC),
		"2025-01-15T08:30:00+07:00":  time.Date(2025, 1, 15, 1, 30, 0, 0, time.UTC),
		"2025-01-15":                 time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		"2025-01-15T08:30:00.5Z":     time.Date(2025, 1, 15, 8, 30, 0, 500000000, time.UTC),
	}
	for raw, want := range cases {
		got, err := ParseTime(raw)
		require.NoError(t, err, raw)
		require.True(t, want.Equal(got), raw)
	}

	_, err := ParseTime("yesterday")
	require.Error(t, err)

	var ts struct {
		At Time `json:"at"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"at":null}`), &ts))
	require.True(t, ts.At.IsZero())
}
