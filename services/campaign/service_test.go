package campaign

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"legion-prm/pkg/errutil"
	"legion-prm/pkg/refresh"
	"legion-prm/services/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// campaignServer keeps campaign state the way the API would.
type campaignServer struct {
	mu        sync.Mutex
	campaigns map[string]map[string]any
	links     map[string]map[string]any
}

func newCampaignServer(api *testutil.FakeAPI) *campaignServer {
	s := &campaignServer{
		campaigns: map[string]map[string]any{
			"c1": {"id": "c1", "name": "Promo Lebaran", "target_url": "https://shop.example/lebaran", "status": "ACTIVE", "payout_per_view": 0.01, "points_per_view": 1, "budget_cap": 100.0, "spent": 12.5},
		},
		links: map[string]map[string]any{},
	}

	api.Handle("GET /campaigns/admin/campaigns", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := []map[string]any{}
		for _, c := range s.campaigns {
			out = append(out, c)
		}
		testutil.WriteJSON(w, http.StatusOK, out)
	})
	api.Handle("PATCH /campaigns/admin/campaigns/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		c, ok := s.campaigns[r.PathValue("id")]
		if !ok {
			testutil.WriteJSON(w, http.StatusNotFound, map[string]string{"detail": "Campaign not found"})
			return
		}
		c["status"] = r.URL.Query().Get("status")
		testutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	})
	api.Handle("GET /campaigns/agent/campaigns", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := []map[string]any{}
		for id, c := range s.campaigns {
			row := map[string]any{"campaign": c, "my_link": nil, "my_earnings": 0, "my_views": 0}
			if link, ok := s.links[id]; ok {
				row["my_link"] = link
			}
			out = append(out, row)
		}
		testutil.WriteJSON(w, http.StatusOK, out)
	})
	api.Handle("POST /campaigns/agent/campaigns/{id}/join", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		id := r.PathValue("id")
		if _, ok := s.links[id]; ok {
			testutil.WriteJSON(w, http.StatusBadRequest, map[string]string{"detail": "Already joined this campaign"})
			return
		}
		s.links[id] = map[string]any{"short_code": "aB3xY9", "full_url": "https://l.example/aB3xY9", "campaign_name": "Promo Lebaran", "view_count": 0, "unique_view_count": 0, "earnings": 0}
		testutil.WriteJSON(w, http.StatusOK, map[string]any{"status": "joined", "short_code": "aB3xY9", "tracking_url": "https://l.example/aB3xY9", "campaign_name": "Promo Lebaran", "payout_per_view": 0.01, "points_per_view": 1})
	})
	return s
}

func TestToggleStatusShowsOnNextFetch(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	newCampaignServer(api)
	svc := NewService(ServiceParams{Client: api.Client})
	ctx := context.Background()

	campaigns, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	require.Equal(t, CampaignStatusActive, campaigns[0].Status)

	res, err := svc.Toggle(ctx, campaigns[0])
	require.NoError(t, err)
	require.Equal(t, CampaignStatusPaused, res.Value)
	require.Equal(t, []refresh.Collection{refresh.Campaigns}, res.Refresh)
	require.Equal(t, "PAUSED", api.CallsTo("PATCH /campaigns/admin/campaigns/c1/status")[0].Query.Get("status"))

	campaigns, err = svc.List(ctx, "")
	require.NoError(t, err)
	require.Equal(t, CampaignStatusPaused, campaigns[0].Status)

	_, err = svc.Toggle(ctx, campaigns[0])
	require.NoError(t, err)
	campaigns, err = svc.List(ctx, "")
	require.NoError(t, err)
	require.Equal(t, CampaignStatusActive, campaigns[0].Status)
}

func TestSetStatusRejectsOtherTargets(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	svc := NewService(ServiceParams{Client: api.Client})

	for _, st := range []CampaignStatus{CampaignStatusDraft, CampaignStatusCompleted, ""} {
		_, err := svc.SetStatus(context.Background(), "c1", st)
		require.ErrorIs(t, err, ErrStatusNotSettable)
	}

	_, err := svc.Toggle(context.Background(), Campaign{ID: "c1", Status: CampaignStatusDraft})
	require.ErrorIs(t, err, ErrStatusNotSettable)
	require.Empty(t, api.Calls())
}

func TestSetStatusUnknownCampaign(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	newCampaignServer(api)
	svc := NewService(ServiceParams{Client: api.Client})

	_, err := svc.SetStatus(context.Background(), "missing", CampaignStatusPaused)
	require.Error(t, err)
	require.Equal(t, errutil.StatusNotFound, errutil.Code(err))
	require.Equal(t, "Campaign not found", errutil.Message(err))
}

func TestJoinIssuesLink(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	newCampaignServer(api)
	svc := NewService(ServiceParams{Client: api.Client})
	ctx := context.Background()

	before, err := svc.Available(ctx)
	require.NoError(t, err)
	require.Len(t, before, 1)
	require.Nil(t, before[0].MyLink)
	require.Equal(t, LinkMissing, before[0].LinkState())
	require.Equal(t, "Get My Link", before[0].LinkState().String())

	res, err := svc.Join(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "aB3xY9", res.Value.ShortCode)
	require.Equal(t, []refresh.Collection{refresh.AgentCampaigns}, res.Refresh)

	after, err := svc.Available(ctx)
	require.NoError(t, err)
	require.NotNil(t, after[0].MyLink)
	require.Equal(t, LinkIssued, after[0].LinkState())
	require.Equal(t, "aB3xY9", after[0].MyLink.ShortCode)
	require.Zero(t, after[0].MyLink.ViewCount)
	require.Zero(t, after[0].MyLink.Earnings)
}

func TestJoinTwiceSurfacesServerMessage(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	newCampaignServer(api)
	svc := NewService(ServiceParams{Client: api.Client})

	_, err := svc.Join(context.Background(), "c1")
	require.NoError(t, err)

	_, err = svc.Join(context.Background(), "c1")
	require.Error(t, err)
	require.Equal(t, "Already joined this campaign", errutil.Message(err))
	require.True(t, api.Session.LoggedIn(context.Background()))
}

func TestCreateValidatesBeforeSending(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	svc := NewService(ServiceParams{Client: api.Client})

	_, err := svc.Create(context.Background(), CreateRequest{Name: "  ", TargetURL: "https://x.example"})
	require.ErrorIs(t, err, ErrNameAndURLRequired)

	_, err = svc.Create(context.Background(), CreateRequest{Name: "Promo"})
	require.ErrorIs(t, err, ErrNameAndURLRequired)

	_, err = svc.Create(context.Background(), CreateRequest{Name: "Promo", TargetURL: "https://x.example", BudgetCap: -1})
	require.ErrorIs(t, err, ErrInvalidBudget)

	require.Empty(t, api.Calls())
}

func TestCreateAppliesDefaults(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.JSON("POST /campaigns/admin/campaigns", http.StatusOK, map[string]any{"id": "c9", "name": "Promo", "status": "ACTIVE", "target_url": "https://x.example"})
	svc := NewService(ServiceParams{Client: api.Client})

	res, err := svc.Create(context.Background(), CreateRequest{Name: " Promo ", TargetURL: "https://x.example"})
	require.NoError(t, err)
	require.Equal(t, "c9", res.Value.ID)
	require.Equal(t, []refresh.Collection{refresh.Campaigns}, res.Refresh)

	var sent CreateRequest
	api.CallsTo("POST /campaigns/admin/campaigns")[0].DecodeBody(t, &sent)
	require.Equal(t, CreateRequest{
		Name:          "Promo",
		TargetURL:     "https://x.example",
		PayoutPerView: DefaultPayoutPerView,
		PointsPerView: DefaultPointsPerView,
		BudgetCap:     DefaultBudgetCap,
	}, sent)
}

func TestBudgetPercent(t *testing.T) {
	tests := []struct {
		spent, cap float64
		want       int
	}{
		{0, 100, 0},
		{12.5, 100, 13},
		{12.4, 100, 12},
		{50, 200, 25},
		{100, 100, 100},
		{250, 100, 100},
		{1, 3, 33},
		{2, 3, 67},
		{10, 0, 0},
		{10, -5, 0},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, BudgetPercent(tt.spent, tt.cap), "spent=%v cap=%v", tt.spent, tt.cap)
	}

	require.Equal(t, 13, Campaign{Spent: 12.5, BudgetCap: 100}.BudgetPercent())
}

func TestStatusDecodeKeepsUnknownValues(t *testing.T) {
	var c Campaign
	require.NoError(t, json.Unmarshal([]byte(`{"status":"paused","created_at":"2025-01-10T08:00:00"}`), &c))
	require.Equal(t, CampaignStatusPaused, c.Status)

	require.NoError(t, json.Unmarshal([]byte(`{"status":"SUSPENDED"}`), &c))
	require.Equal(t, CampaignStatus("SUSPENDED"), c.Status)
	require.Equal(t, CampaignStatusOther, c.Status.Kind())
	require.False(t, c.Status.Settable())

	require.Error(t, json.Unmarshal([]byte(`{"status":7}`), &c))

	_, err := ParseStatus("suspended")
	require.Error(t, err)
	st, err := ParseStatus("archived")
	require.NoError(t, err)
	require.Equal(t, CampaignStatusArchived, st)
}

func TestListKeepsArchivedAndUnknownCampaigns(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.JSON("GET /campaigns/admin/campaigns", http.StatusOK, []map[string]any{
		{"id": "c1", "name": "Promo", "status": "ACTIVE", "budget_cap": 100, "spent": 10},
		{"id": "c2", "name": "Old", "status": "ARCHIVED", "budget_cap": 100, "spent": 100},
		{"id": "c3", "name": "Odd", "status": "SUSPENDED"},
	})
	svc := NewService(ServiceParams{Client: api.Client})

	list, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, CampaignStatusActive, list[0].Status)
	require.Equal(t, CampaignStatusArchived, list[1].Status)
	require.Equal(t, CampaignStatusOther, list[2].Status.Kind())
	require.Equal(t, "SUSPENDED", string(list[2].Status))

	for _, c := range list[1:] {
		_, err := svc.Toggle(context.Background(), c)
		require.ErrorIs(t, err, ErrStatusNotSettable)
	}
	require.Empty(t, api.CallsTo("PATCH /campaigns/admin/campaigns/c2/status"))
	require.Empty(t, api.CallsTo("PATCH /campaigns/admin/campaigns/c3/status"))
}

func TestTotals(t *testing.T) {
	agent := AgentTotals([]AgentCampaign{
		{MyLink: &TrackingLink{ShortCode: "a"}, MyEarnings: 1.5, MyViews: 150},
		{MyEarnings: 0, MyViews: 0},
		{MyLink: &TrackingLink{ShortCode: "b"}, MyEarnings: 0.25, MyViews: 25},
	})
	require.Equal(t, Totals{Earnings: 1.75, Views: 175, Links: 2}, agent)

	stats := StatsTotals(Stats{Agents: []AgentStat{
		{AgentName: "Rina", Views: 100, Earnings: 1},
		{AgentName: "Budi", Views: 40, Earnings: 0.4},
	}})
	require.Equal(t, 140, stats.Views)
	require.Equal(t, 2, stats.Links)
	require.InDelta(t, 1.4, stats.Earnings, 1e-9)
}
