package session

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Session is the bearer token of the current operator. It is set on login,
// cleared on logout, and cleared on the first auth failure seen with a token.
type Session struct {
	store TokenStore

	mu        sync.Mutex
	token     string
	loaded    bool
	failed    bool
	onFailure func()
}

func New(store TokenStore) *Session {
	return &Session{store: store}
}

// OnAuthFailure registers the callback run when a stored token is rejected.
func (s *Session) OnAuthFailure(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFailure = fn
}

// Token returns the current token, loading it from the store on first use.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return s.token, nil
	}

	token, err := s.store.Load(ctx)
	if err != nil {
		return "", err
	}
	s.token = token
	s.loaded = true
	return s.token, nil
}

func (s *Session) LoggedIn(ctx context.Context) bool {
	token, err := s.Token(ctx)
	return err == nil && token != ""
}

// Set stores a freshly issued token and re-arms the auth failure callback.
func (s *Session) Set(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Save(ctx, token); err != nil {
		return err
	}
	s.token = token
	s.loaded = true
	s.failed = false
	return nil
}

func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.loaded = true
	return s.store.Delete(ctx)
}

// HandleAuthFailure clears the token after a 401 or 403. The callback runs once
// per token no matter how many in-flight requests were rejected.
func (s *Session) HandleAuthFailure(ctx context.Context) {
	s.mu.Lock()
	if s.failed {
		s.mu.Unlock()
		return
	}
	s.failed = true
	s.token = ""
	s.loaded = true
	fn := s.onFailure
	err := s.store.Delete(ctx)
	s.mu.Unlock()

	if err != nil {
		zap.L().Warn("failed to delete rejected token", zap.Error(err))
	}
	if fn != nil {
		fn()
	}
}
