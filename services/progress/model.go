package progress

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"legion-prm/pkg/client"
)

// Session is one of the two daily reporting windows.
type Session string

const (
	SessionMorning Session = "morning"
	SessionEvening Session = "evening"
)

var Sessions = []Session{SessionMorning, SessionEvening}

const (
	GoalPerSession = 25
	GoalPerDay     = 2 * GoalPerSession
	MaxReportCount = GoalPerDay
)

func ParseSession(raw string) (Session, error) {
	s := Session(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case SessionMorning, SessionEvening:
		return s, nil
	default:
		return "", fmt.Errorf("session must be %q or %q, got %q", SessionMorning, SessionEvening, raw)
	}
}

func (s Session) Label() string {
	switch s {
	case SessionMorning:
		return "Morning"
	case SessionEvening:
		return "Evening"
	default:
		return string(s)
	}
}

// Today is the calling agent's progress for the current day.
type Today struct {
	Date            client.Time `json:"date"`
	MorningCount    int         `json:"morning_count"`
	EveningCount    int         `json:"evening_count"`
	Total           int         `json:"total"`
	Goal            int         `json:"goal"`
	ProgressPercent int         `json:"progress_percent"`
}

// UnmarshalJSON keeps Total equal to the sum of both sessions whatever the
// server sent.
func (t *Today) UnmarshalJSON(b []byte) error {
	type alias Today
	var raw alias
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*t = Today(raw).normalize()
	return nil
}

func (t Today) normalize() Today {
	t.Total = t.MorningCount + t.EveningCount
	if t.Goal <= 0 {
		t.Goal = GoalPerDay
	}
	t.ProgressPercent = Percent(t.Total, t.Goal)
	return t
}

// Count returns the reported count of session s.
func (t Today) Count(s Session) int {
	switch s {
	case SessionMorning:
		return t.MorningCount
	case SessionEvening:
		return t.EveningCount
	default:
		return 0
	}
}

// CanReport reports whether session s is still open for today. A session is
// reported at most once a day.
func (t Today) CanReport(s Session) bool {
	switch s {
	case SessionMorning, SessionEvening:
		return t.Count(s) == 0
	default:
		return false
	}
}

func (t Today) Remaining() int {
	if t.Total >= t.Goal {
		return 0
	}
	return t.Goal - t.Total
}

// Percent returns min(100, round(total/goal*100)), rounding halves up.
func Percent(total, goal int) int {
	if goal <= 0 {
		return 0
	}
	p := int(math.Floor(float64(total)/float64(goal)*100 + 0.5))
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}

type ReportRequest struct {
	BatchID     string  `json:"batch_id"`
	SessionType Session `json:"session_type"`
	Count       int     `json:"count"`
	Notes       string  `json:"notes,omitempty"`
}

type ReportReceipt struct {
	Status           string      `json:"status"`
	Date             client.Time `json:"date"`
	MorningCount     int         `json:"morning_count"`
	EveningCount     int         `json:"evening_count"`
	TotalToday       int         `json:"total_today"`
	XPEarned         int         `json:"xp_earned"`
	TotalXP          int         `json:"total_xp"`
	StreakMultiplier float64     `json:"streak_multiplier"`
}
