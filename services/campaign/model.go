package campaign

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"legion-prm/pkg/client"
)

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "DRAFT"
	CampaignStatusActive    CampaignStatus = "ACTIVE"
	CampaignStatusPaused    CampaignStatus = "PAUSED"
	CampaignStatusCompleted CampaignStatus = "COMPLETED"
	CampaignStatusArchived  CampaignStatus = "ARCHIVED"

	// CampaignStatusOther is the kind of any status the API sends that is not
	// listed above. The campaign keeps the raw value for display.
	CampaignStatusOther CampaignStatus = "OTHER"
)

var CampaignStatuses = []CampaignStatus{
	CampaignStatusDraft,
	CampaignStatusActive,
	CampaignStatusPaused,
	CampaignStatusCompleted,
	CampaignStatusArchived,
}

const (
	DefaultPayoutPerView = 0.01
	DefaultPointsPerView = 1
	DefaultBudgetCap     = 100.0
)

func ParseStatus(raw string) (CampaignStatus, error) {
	s := CampaignStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case CampaignStatusDraft, CampaignStatusActive, CampaignStatusPaused, CampaignStatusCompleted, CampaignStatusArchived:
		return s, nil
	default:
		return "", fmt.Errorf("unknown campaign status %q", raw)
	}
}

// Kind folds statuses outside the known set into CampaignStatusOther.
func (s CampaignStatus) Kind() CampaignStatus {
	switch s {
	case CampaignStatusDraft, CampaignStatusActive, CampaignStatusPaused, CampaignStatusCompleted, CampaignStatusArchived:
		return s
	default:
		return CampaignStatusOther
	}
}

// Settable reports whether an admin can switch a campaign to s.
func (s CampaignStatus) Settable() bool {
	switch s.Kind() {
	case CampaignStatusActive, CampaignStatusPaused:
		return true
	case CampaignStatusDraft, CampaignStatusCompleted, CampaignStatusArchived, CampaignStatusOther:
		return false
	default:
		return false
	}
}

// ToggleTarget returns the status a pause/resume toggle moves s to.
func (s CampaignStatus) ToggleTarget() (CampaignStatus, bool) {
	switch s.Kind() {
	case CampaignStatusActive:
		return CampaignStatusPaused, true
	case CampaignStatusPaused:
		return CampaignStatusActive, true
	case CampaignStatusDraft, CampaignStatusCompleted, CampaignStatusArchived, CampaignStatusOther:
		return "", false
	default:
		return "", false
	}
}

// UnmarshalJSON accepts any string. Unknown values are kept as sent and
// report CampaignStatusOther from Kind, so one odd campaign does not hide
// the rest of a listing.
func (s *CampaignStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if parsed, err := ParseStatus(raw); err == nil {
		*s = parsed
		return nil
	}
	*s = CampaignStatus(strings.TrimSpace(raw))
	return nil
}

// Campaign is a payout campaign. Spent is meant to stay within BudgetCap; the
// API enforces it.
type Campaign struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	TargetURL        string         `json:"target_url"`
	Status           CampaignStatus `json:"status"`
	PayoutPerView    float64        `json:"payout_per_view"`
	PointsPerView    int            `json:"points_per_view"`
	BudgetCap        float64        `json:"budget_cap"`
	Spent            float64        `json:"spent"`
	TotalViews       int            `json:"total_views"`
	TotalUniqueViews int            `json:"total_unique_views"`
	CreatedAt        client.Time    `json:"created_at"`
}

func (c Campaign) BudgetPercent() int {
	return BudgetPercent(c.Spent, c.BudgetCap)
}

// BudgetPercent returns min(100, round(spent/cap*100)), or 0 without a cap.
func BudgetPercent(spent, cap float64) int {
	if cap <= 0 {
		return 0
	}
	p := math.Round(spent / cap * 100)
	switch {
	case p > 100:
		return 100
	case p < 0:
		return 0
	default:
		return int(p)
	}
}

// TrackingLink is the referral link issued to one agent for one campaign.
type TrackingLink struct {
	ShortCode       string  `json:"short_code"`
	FullURL         string  `json:"full_url"`
	CampaignName    string  `json:"campaign_name"`
	ViewCount       int     `json:"view_count"`
	UniqueViewCount int     `json:"unique_view_count"`
	Earnings        float64 `json:"earnings"`
}

type LinkState int

const (
	LinkMissing LinkState = iota
	LinkIssued
)

func (s LinkState) String() string {
	switch s {
	case LinkMissing:
		return "Get My Link"
	case LinkIssued:
		return "Link issued"
	default:
		return "unknown"
	}
}

// AgentCampaign is an active campaign as seen by the calling agent.
type AgentCampaign struct {
	Campaign   Campaign      `json:"campaign"`
	MyLink     *TrackingLink `json:"my_link"`
	MyEarnings float64       `json:"my_earnings"`
	MyViews    int           `json:"my_views"`
}

func (a AgentCampaign) LinkState() LinkState {
	if a.MyLink == nil {
		return LinkMissing
	}
	return LinkIssued
}

type CreateRequest struct {
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	TargetURL     string  `json:"target_url"`
	PayoutPerView float64 `json:"payout_per_view"`
	PointsPerView int     `json:"points_per_view"`
	BudgetCap     float64 `json:"budget_cap"`
}

type JoinReceipt struct {
	Status        string  `json:"status"`
	ShortCode     string  `json:"short_code"`
	TrackingURL   string  `json:"tracking_url"`
	CampaignName  string  `json:"campaign_name"`
	PayoutPerView float64 `json:"payout_per_view"`
	PointsPerView int     `json:"points_per_view"`
}

type AgentStat struct {
	AgentID     string  `json:"agent_id"`
	AgentName   string  `json:"agent_name"`
	ShortCode   string  `json:"short_code"`
	Views       int     `json:"views"`
	UniqueViews int     `json:"unique_views"`
	Earnings    float64 `json:"earnings"`
}

type Stats struct {
	Campaign Campaign    `json:"campaign"`
	Agents   []AgentStat `json:"agents"`
}

type Totals struct {
	Earnings float64
	Views    int
	Links    int
}
