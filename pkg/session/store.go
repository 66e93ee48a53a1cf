package session

//go:generate mockgen -source=store.go -destination=mock_store.go -package=session

import "context"

// TokenStore persists the single bearer token of this operator. Load returns
// an empty token and a nil error when nothing is stored.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Delete(ctx context.Context) error
}
