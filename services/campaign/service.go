package campaign

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"legion-prm/pkg/client"
	"legion-prm/pkg/errutil"
	"legion-prm/pkg/refresh"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrNameAndURLRequired = errutil.ValidationFailed("campaign name and target URL are required", nil)
	ErrStatusNotSettable  = errutil.ValidationFailed("campaign status can only be set to ACTIVE or PAUSED", nil)
	ErrCampaignRequired   = errutil.ValidationFailed("campaign id is required", nil)
	ErrInvalidBudget      = errutil.ValidationFailed("payout and budget must not be negative", nil)
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

// ========================================================
// Admin
// ========================================================

// List returns all campaigns of the tenant. An empty status lists all.
func (s *Service) List(ctx context.Context, status CampaignStatus) ([]Campaign, error) {
	var query url.Values
	if status != "" {
		query = url.Values{"status": {string(status)}}
	}

	var campaigns []Campaign
	if err := s.client.Get(ctx, "/campaigns/admin/campaigns", query, &campaigns); err != nil {
		return nil, err
	}
	return campaigns, nil
}

// Create validates req locally and creates the campaign. Zero payout, points
// and budget fall back to the defaults.
func (s *Service) Create(ctx context.Context, req CreateRequest) (refresh.Result[Campaign], error) {
	req.Name = strings.TrimSpace(req.Name)
	req.TargetURL = strings.TrimSpace(req.TargetURL)
	req.Description = strings.TrimSpace(req.Description)
	if req.Name == "" || req.TargetURL == "" {
		return refresh.Result[Campaign]{}, ErrNameAndURLRequired
	}
	if req.PayoutPerView < 0 || req.BudgetCap < 0 || req.PointsPerView < 0 {
		return refresh.Result[Campaign]{}, ErrInvalidBudget
	}
	if req.PayoutPerView == 0 {
		req.PayoutPerView = DefaultPayoutPerView
	}
	if req.PointsPerView == 0 {
		req.PointsPerView = DefaultPointsPerView
	}
	if req.BudgetCap == 0 {
		req.BudgetCap = DefaultBudgetCap
	}

	var created Campaign
	if err := s.client.Post(ctx, "/campaigns/admin/campaigns", req, &created); err != nil {
		return refresh.Result[Campaign]{}, err
	}

	zap.L().Info("campaign created", zap.String("campaign_id", created.ID), zap.String("name", created.Name))
	return refresh.Invalidate(created, refresh.Campaigns), nil
}

// SetStatus switches a campaign to ACTIVE or PAUSED. Nothing is updated
// locally; callers re-fetch the list to see the new status.
func (s *Service) SetStatus(ctx context.Context, id string, status CampaignStatus) (refresh.Result[CampaignStatus], error) {
	if strings.TrimSpace(id) == "" {
		return refresh.Result[CampaignStatus]{}, ErrCampaignRequired
	}
	if !status.Settable() {
		return refresh.Result[CampaignStatus]{}, ErrStatusNotSettable
	}

	path := "/campaigns/admin/campaigns/" + url.PathEscape(id) + "/status"
	query := url.Values{"status": {string(status)}}
	if err := s.client.Patch(ctx, path, query, nil); err != nil {
		return refresh.Result[CampaignStatus]{}, err
	}

	zap.L().Info("campaign status changed", zap.String("campaign_id", id), zap.String("status", string(status)))
	return refresh.Invalidate(status, refresh.Campaigns), nil
}

// Toggle pauses an active campaign or resumes a paused one.
func (s *Service) Toggle(ctx context.Context, c Campaign) (refresh.Result[CampaignStatus], error) {
	target, ok := c.Status.ToggleTarget()
	if !ok {
		return refresh.Result[CampaignStatus]{}, ErrStatusNotSettable
	}
	return s.SetStatus(ctx, c.ID, target)
}

// Stats returns the campaign with its per agent performance.
func (s *Service) Stats(ctx context.Context, id string) (Stats, error) {
	if strings.TrimSpace(id) == "" {
		return Stats{}, ErrCampaignRequired
	}

	var stats Stats
	if err := s.client.Get(ctx, "/campaigns/admin/campaigns/"+url.PathEscape(id)+"/stats", nil, &stats); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// ========================================================
// Agent
// ========================================================

// Available lists active campaigns together with the caller's link, if any.
func (s *Service) Available(ctx context.Context) ([]AgentCampaign, error) {
	var campaigns []AgentCampaign
	if err := s.client.Get(ctx, "/campaigns/agent/campaigns", nil, &campaigns); err != nil {
		return nil, err
	}
	return campaigns, nil
}

// Join requests a tracking link for the caller. Joining twice is rejected by
// the API and its message is returned as is.
func (s *Service) Join(ctx context.Context, id string) (refresh.Result[JoinReceipt], error) {
	if strings.TrimSpace(id) == "" {
		return refresh.Result[JoinReceipt]{}, ErrCampaignRequired
	}

	var receipt JoinReceipt
	err := s.client.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   "/campaigns/agent/campaigns/" + url.PathEscape(id) + "/join",
	}, &receipt)
	if err != nil {
		return refresh.Result[JoinReceipt]{}, err
	}

	zap.L().Info("campaign joined", zap.String("campaign_id", id), zap.String("short_code", receipt.ShortCode))
	return refresh.Invalidate(receipt, refresh.AgentCampaigns), nil
}

// ========================================================
// Derived views
// ========================================================

// AgentTotals sums the caller's earnings and views over joined campaigns.
func AgentTotals(campaigns []AgentCampaign) Totals {
	var t Totals
	for _, c := range campaigns {
		t.Earnings += c.MyEarnings
		t.Views += c.MyViews
		if c.LinkState() == LinkIssued {
			t.Links++
		}
	}
	return t
}

// StatsTotals sums the per agent rows of a stats report.
func StatsTotals(stats Stats) Totals {
	t := Totals{Links: len(stats.Agents)}
	for _, a := range stats.Agents {
		t.Earnings += a.Earnings
		t.Views += a.Views
	}
	return t
}

func Find(campaigns []Campaign, id string) (Campaign, bool) {
	for _, c := range campaigns {
		if c.ID == id {
			return c, true
		}
	}
	return Campaign{}, false
}
