package health

import (
	"context"

	"legion-prm/pkg/client"
	"legion-prm/pkg/config"
	"legion-prm/pkg/minio"
	"legion-prm/pkg/session"

	"go.uber.org/fx"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusSkipped   = "skipped"
)

var Module = fx.Module("health", fx.Provide(New))

type Dependency struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Health struct {
	Status string       `json:"status"`
	Deps   []Dependency `json:"deps"`
}

func (h Health) Healthy() bool {
	return h.Status == StatusHealthy
}

type Checker struct {
	client  *client.Client
	store   session.TokenStore
	archive *minio.Archiver
	cfg     *config.Config
}

type Params struct {
	fx.In
	Config  *config.Config
	Client  *client.Client
	Store   session.TokenStore
	Archive *minio.Archiver `optional:"true"`
}

func New(p Params) *Checker {
	return &Checker{
		client:  p.Client,
		store:   p.Store,
		archive: p.Archive,
		cfg:     p.Config,
	}
}

// Check probes the API, the session store and, when configured, the archive
// bucket. Each dependency is checked even if an earlier one failed.
func (c *Checker) Check(ctx context.Context) Health {
	this := Health{Status: StatusHealthy}

	api := Dependency{Name: "api " + c.cfg.API.BaseURL, Status: StatusHealthy, Message: "OK"}
	if err := c.client.Ping(ctx); err != nil {
		api.Status = StatusUnhealthy
		api.Message = err.Error()
	}
	this.Deps = append(this.Deps, api)

	store := Dependency{Name: "session store " + c.cfg.Session.Store, Status: StatusHealthy, Message: "OK"}
	if token, err := c.store.Load(ctx); err != nil {
		store.Status = StatusUnhealthy
		store.Message = err.Error()
	} else if token == "" {
		store.Message = "no token stored"
	}
	this.Deps = append(this.Deps, store)

	archive := Dependency{Name: "archive", Status: StatusSkipped, Message: "MINIO_ENDPOINT not set"}
	if c.archive != nil {
		archive.Name = "archive " + c.archive.Bucket()
		archive.Status = StatusHealthy
		archive.Message = "OK"
		if err := c.archive.Ping(ctx); err != nil {
			archive.Status = StatusUnhealthy
			archive.Message = err.Error()
		}
	}
	this.Deps = append(this.Deps, archive)

	for _, dep := range this.Deps {
		if dep.Status == StatusUnhealthy {
			this.Status = StatusUnhealthy
		}
	}
	return this
}
