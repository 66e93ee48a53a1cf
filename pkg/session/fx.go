package session

import (
	"fmt"

	"legion-prm/pkg/config"
	"legion-prm/pkg/redis"
	"legion-prm/pkg/rediskey"

	"go.uber.org/fx"
)

var Module = fx.Module("session",
	fx.Provide(
		NewStore,
		New,
	),
)

// NewStore selects the token store named by SESSION.STORE.
func NewStore(lc fx.Lifecycle, cfg *config.Config) (TokenStore, error) {
	switch cfg.Session.Store {
	case config.SessionStoreFile, "":
		return NewFileStore(cfg.Session.Path), nil
	case config.SessionStoreRedis:
		return NewRedisStore(redis.New(lc, cfg), rediskey.BuildSessionKey(cfg.Session.Key)), nil
	case config.SessionStoreMemory:
		return NewMemoryStore(""), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}
}
