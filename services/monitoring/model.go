package monitoring

import (
	"encoding/json"
	"fmt"
	"strings"

	"legion-prm/pkg/client"
	"legion-prm/services/progress"
)

// AgentHealth is the activity classification computed by the API. The client
// never derives it from counts.
type AgentHealth string

const (
	HealthActive   AgentHealth = "ACTIVE"
	HealthWarning  AgentHealth = "WARNING"
	HealthInactive AgentHealth = "INACTIVE"
)

var Healths = []AgentHealth{HealthActive, HealthWarning, HealthInactive}

func ParseHealth(raw string) (AgentHealth, error) {
	h := AgentHealth(strings.ToUpper(strings.TrimSpace(raw)))
	switch h {
	case HealthActive, HealthWarning, HealthInactive:
		return h, nil
	default:
		return "", fmt.Errorf("unknown agent health %q", raw)
	}
}

// order sorts healthy agents first.
func (h AgentHealth) order() int {
	switch h {
	case HealthActive:
		return 0
	case HealthWarning:
		return 1
	case HealthInactive:
		return 2
	default:
		return 3
	}
}

func (h *AgentHealth) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseHealth(raw)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

type AgentStatus struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	Phone             string      `json:"phone"`
	Status            AgentHealth `json:"status"`
	StatusIcon        string      `json:"status_icon"`
	InactiveDays      int         `json:"inactive_days"`
	LastActivity      client.Time `json:"last_activity"`
	TodayMorning      int         `json:"today_morning"`
	TodayEvening      int         `json:"today_evening"`
	TodayTotal        int         `json:"today_total"`
	TotalAdded        int         `json:"total_added"`
	HasActiveBatch    bool        `json:"has_active_batch"`
	BatchContacts     int         `json:"batch_contacts"`
	TutorialCompleted bool        `json:"tutorial_completed"`
}

// NeedsAttention flags agents idle for more than a day.
func NeedsAttention(s AgentStatus) bool {
	return s.InactiveDays > 1
}

// TodayPercent is the agent's share of the daily goal, capped at 100.
func (s AgentStatus) TodayPercent() int {
	return progress.Percent(s.TodayTotal, progress.GoalPerDay)
}

// Attributes exposes the status to filter expressions.
func (s AgentStatus) Attributes() map[string]any {
	return map[string]any{
		"id":                 s.ID,
		"name":               s.Name,
		"phone":              s.Phone,
		"status":             string(s.Status),
		"inactive_days":      int64(s.InactiveDays),
		"today_morning":      int64(s.TodayMorning),
		"today_evening":      int64(s.TodayEvening),
		"today_total":        int64(s.TodayTotal),
		"total_added":        int64(s.TotalAdded),
		"has_active_batch":   s.HasActiveBatch,
		"batch_contacts":     int64(s.BatchContacts),
		"tutorial_completed": s.TutorialCompleted,
		"needs_attention":    NeedsAttention(s),
	}
}

type Summary struct {
	Agents         int
	ActiveToday    int
	ByHealth       map[AgentHealth]int
	TodayTotal     int
	TotalAdded     int
	NeedsAttention int
}

type exportBody struct {
	Report string `json:"report"`
}
