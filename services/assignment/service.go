package assignment

import (
	"context"
	"net/url"
	"strings"

	"legion-prm/pkg/client"
	"legion-prm/pkg/errutil"
	"legion-prm/pkg/refresh"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrAssignmentRequired = errutil.ValidationFailed("assignment id is required", nil)
	ErrInvalidDecision    = errutil.ValidationFailed("review decision must be VERIFIED or REJECTED", nil)
	ErrAlreadyReviewed    = errutil.ValidationFailed("assignment was already reviewed", nil)
)

type Service struct {
	client *client.Client
}

type ServiceParams struct {
	fx.In

	Client *client.Client
}

func NewService(p ServiceParams) *Service {
	return &Service{client: p.Client}
}

// List returns the tenant's assignments. An empty status lists all.
func (s *Service) List(ctx context.Context, status Status) ([]Assignment, error) {
	var query url.Values
	if status != "" {
		query = url.Values{"status": {string(status)}}
	}

	var assignments []Assignment
	if err := s.client.Get(ctx, "/admin/assignments", query, &assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}

// Review records the admin decision on a pending assignment. Verifying also
// credits the agent's score, so agents and the dashboard are invalidated too.
func (s *Service) Review(ctx context.Context, a Assignment, decision Status) (refresh.Result[Assignment], error) {
	if strings.TrimSpace(a.ID) == "" {
		return refresh.Result[Assignment]{}, ErrAssignmentRequired
	}
	if !decision.Terminal() {
		return refresh.Result[Assignment]{}, ErrInvalidDecision
	}
	if a.Status.Terminal() {
		return refresh.Result[Assignment]{}, ErrAlreadyReviewed
	}

	if err := s.client.Put(ctx, "/admin/assignments/"+url.PathEscape(a.ID), reviewBody{Status: decision}, nil); err != nil {
		return refresh.Result[Assignment]{}, err
	}

	zap.L().Info("assignment reviewed",
		zap.String("assignment_id", a.ID),
		zap.String("agent_id", a.Agent.ID),
		zap.String("decision", string(decision)),
	)

	a.Status = decision
	if decision == StatusVerified {
		return refresh.Invalidate(a, refresh.Assignments, refresh.Agents, refresh.Dashboard), nil
	}
	return refresh.Invalidate(a, refresh.Assignments), nil
}

// Pending keeps the assignments still waiting for review.
func Pending(assignments []Assignment) []Assignment {
	out := make([]Assignment, 0, len(assignments))
	for _, a := range assignments {
		if !a.Status.Terminal() {
			out = append(out, a)
		}
	}
	return out
}

func Find(assignments []Assignment, id string) (Assignment, bool) {
	for _, a := range assignments {
		if a.ID == id {
			return a, true
		}
	}
	return Assignment{}, false
}
