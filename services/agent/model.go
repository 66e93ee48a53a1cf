package agent

import (
	"legion-prm/pkg/client"
	"legion-prm/services/batch"
	"legion-prm/services/campaign"
	"legion-prm/services/monitoring"
)

// Agent is a field agent as listed by the admin API. Score and balance are
// only ever changed by the API.
type Agent struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Phone         string      `json:"phone"`
	Role          string      `json:"role"`
	CurrentScore  int         `json:"current_score"`
	WalletBalance float64     `json:"wallet_balance"`
	CreatedAt     client.Time `json:"created_at"`
}

type TopAgent struct {
	Name    string  `json:"name"`
	Score   int     `json:"score"`
	Balance float64 `json:"balance"`
}

type AdminStats struct {
	TotalAgents    int        `json:"total_agents"`
	TotalCampaigns int        `json:"total_campaigns"`
	TotalClicks    int        `json:"total_clicks"`
	TopAgents      []TopAgent `json:"top_agents"`
}

type Profile struct {
	Name    string  `json:"name"`
	Score   int     `json:"score"`
	Balance float64 `json:"balance"`
}

// Dashboard is the calling agent's profile with the campaigns they can work on.
type Dashboard struct {
	User  Profile             `json:"user"`
	Tasks []campaign.Campaign `json:"tasks"`
}

// Standing is one leaderboard row. Agents with equal scores share a rank.
type Standing struct {
	Rank  int
	Agent Agent
}

// Overview is the admin home page: headline numbers, pool state and the
// monitoring summary, loaded together.
type Overview struct {
	Stats      AdminStats
	Pool       batch.PoolStats
	Monitoring monitoring.Summary
}
