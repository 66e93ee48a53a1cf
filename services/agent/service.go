package agent

import (
	"context"
	"sort"
	"strings"

	"legion-prm/pkg/client"
	"legion-prm/pkg/errutil"
	"legion-prm/services/batch"
	"legion-prm/services/monitoring"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type PoolSource interface {
	PoolStats(ctx context.Context) (batch.PoolStats, error)
}

type StatusSource interface {
	Statuses(ctx context.Context) ([]monitoring.AgentStatus, error)
}

type Service struct {
	client   *client.Client
	pool     PoolSource
	statuses StatusSource
}

type ServiceParams struct {
	fx.In

	Client   *client.Client
	Pool     PoolSource
	Statuses StatusSource
}

func NewService(p ServiceParams) *Service {
	return &Service{client: p.Client, pool: p.Pool, statuses: p.Statuses}
}

// ========================================================
// Admin
// ========================================================

// Directory lists every agent of the tenant, sorted by name.
func (s *Service) Directory(ctx context.Context) ([]Agent, error) {
	var agents []Agent
	if err := s.client.Get(ctx, "/admin/agents", nil, &agents); err != nil {
		return nil, err
	}
	sort.SliceStable(agents, func(i, j int) bool {
		return strings.ToLower(agents[i].Name) < strings.ToLower(agents[j].Name)
	})
	return agents, nil
}

func (s *Service) AdminStats(ctx context.Context) (AdminStats, error) {
	var stats AdminStats
	if err := s.client.Get(ctx, "/admin/dashboard/stats", nil, &stats); err != nil {
		return AdminStats{}, err
	}
	return stats, nil
}

// Overview loads the admin home page in parallel. The first failure cancels
// the other requests and is returned.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	var (
		out      Overview
		statuses []monitoring.AgentStatus
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := s.AdminStats(gctx)
		out.Stats = stats
		return err
	})
	g.Go(func() error {
		pool, err := s.pool.PoolStats(gctx)
		out.Pool = pool
		return err
	})
	g.Go(func() error {
		var err error
		statuses, err = s.statuses.Statuses(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		zap.L().Warn("failed to load overview", zap.Error(err))
		return Overview{}, err
	}

	out.Monitoring = monitoring.Summarize(statuses)
	return out, nil
}

// ========================================================
// Agent
// ========================================================

func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	if err := s.client.Get(ctx, "/agent/dashboard", nil, &d); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

// Leaderboard returns the tenant's top agents ranked by score.
func (s *Service) Leaderboard(ctx context.Context) ([]Standing, error) {
	var agents []Agent
	if err := s.client.Get(ctx, "/agent/leaderboard", nil, &agents); err != nil {
		return nil, err
	}
	return Rank(agents), nil
}

// Me returns the caller's own standing, identified by the token subject.
func (s *Service) Me(ctx context.Context, standings []Standing) (Standing, bool, error) {
	claims, err := s.client.Session().Claims(ctx)
	if err != nil {
		return Standing{}, false, errutil.Unauthorized("cannot identify the current agent", err)
	}
	st, ok := Find(standings, claims.Subject)
	return st, ok, nil
}

// Rank orders agents by score, highest first, using competition ranking:
// scores 90, 80, 80, 70 rank 1, 2, 2, 4.
func Rank(agents []Agent) []Standing {
	sorted := append([]Agent(nil), agents...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CurrentScore > sorted[j].CurrentScore
	})

	out := make([]Standing, len(sorted))
	for i, a := range sorted {
		rank := i + 1
		if i > 0 && a.CurrentScore == sorted[i-1].CurrentScore {
			rank = out[i-1].Rank
		}
		out[i] = Standing{Rank: rank, Agent: a}
	}
	return out
}

func Find(standings []Standing, agentID string) (Standing, bool) {
	for _, st := range standings {
		if st.Agent.ID == agentID {
			return st, true
		}
	}
	return Standing{}, false
}
