package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"legion-prm/pkg/client"
	"legion-prm/pkg/config"
	"legion-prm/pkg/gen"
	"legion-prm/pkg/session"
)

const (
	Prefix = "/api/v1"
	Token  = "test-token"
)

// Call is one request received by a FakeAPI.
type Call struct {
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string
	Auth        string
}

// DecodeBody decodes the JSON request body into out.
func (c Call) DecodeBody(t *testing.T, out any) {
	t.Helper()
	if err := json.Unmarshal(c.Body, out); err != nil {
		t.Fatalf("failed to decode request body %q: %v", c.Body, err)
	}
}

// FakeAPI is an httptest server standing in for the legion API, with a client
// logged in as Token. Unregistered routes answer 404.
type FakeAPI struct {
	Client  *client.Client
	Session *session.Session
	Config  *config.Config

	mux   *http.ServeMux
	mu    sync.Mutex
	calls []Call
}

// NewFakeAPI starts the server and closes it when the test finishes.
func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()

	f := &FakeAPI{mux: http.NewServeMux()}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.API.BaseURL = srv.URL
	cfg.API.Prefix = Prefix
	cfg.Snowflake.Node = 1

	ids, err := gen.NewSnowflakeNode(cfg)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	f.Config = cfg
	f.Session = session.New(session.NewMemoryStore(Token))
	f.Client = client.New(cfg, f.Session, ids)
	t.Cleanup(f.Client.Close)

	return f
}

func (f *FakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))

	f.mu.Lock()
	f.calls = append(f.calls, Call{
		Method:      r.Method,
		Path:        strings.TrimPrefix(r.URL.Path, Prefix),
		Query:       r.URL.Query(),
		Body:        body,
		ContentType: r.Header.Get("Content-Type"),
		Auth:        r.Header.Get("Authorization"),
	})
	f.mu.Unlock()

	f.mux.ServeHTTP(w, r)
}

// Handle registers h for "METHOD /path", path relative to the API prefix.
func (f *FakeAPI) Handle(route string, h http.HandlerFunc) {
	method, path, ok := strings.Cut(route, " ")
	if !ok {
		path, method = route, ""
	}
	pattern := Prefix + path
	if method != "" {
		pattern = method + " " + pattern
	}
	f.mux.HandleFunc(pattern, h)
}

// HandleRoot registers h for an exact path outside the API prefix, such as
// the service banner at "GET /".
func (f *FakeAPI) HandleRoot(route string, h http.HandlerFunc) {
	if strings.HasSuffix(route, "/") {
		route += "{$}"
	}
	f.mux.HandleFunc(route, h)
}

// JSON registers a route that always answers status with body encoded as JSON.
func (f *FakeAPI) JSON(route string, status int, body any) {
	f.Handle(route, func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, status, body)
	})
}

// Detail registers a route answering status with a {"detail": msg} body.
func (f *FakeAPI) Detail(route string, status int, msg string) {
	f.JSON(route, status, map[string]string{"detail": msg})
}

func (f *FakeAPI) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the calls made to "METHOD /path".
func (f *FakeAPI) CallsTo(route string) []Call {
	method, path, _ := strings.Cut(route, " ")

	var out []Call
	for _, c := range f.Calls() {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
