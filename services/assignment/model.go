package assignment

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusVerified Status = "VERIFIED"
	StatusRejected Status = "REJECTED"
)

var Statuses = []Status{StatusPending, StatusVerified, StatusRejected}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusPending, StatusVerified, StatusRejected:
		return s, nil
	default:
		return "", fmt.Errorf("unknown assignment status %q", raw)
	}
}

// Terminal reports whether the review of an assignment is final. A rejected
// proof cannot be reviewed again.
func (s Status) Terminal() bool {
	switch s {
	case StatusVerified, StatusRejected:
		return true
	case StatusPending:
		return false
	default:
		return false
	}
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type Agent struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CurrentScore int    `json:"current_score"`
}

type CampaignRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Assignment is proof submitted by an agent for one campaign.
type Assignment struct {
	ID        string         `json:"id"`
	Status    Status         `json:"status"`
	ProofData map[string]any `json:"proof_data"`
	Agent     Agent          `json:"agent"`
	Campaign  CampaignRef    `json:"campaign"`
}

// ProofSummary renders proof data as sorted key=value pairs.
func (a Assignment) ProofSummary() string {
	if len(a.ProofData) == 0 {
		return ""
	}
	keys := make([]string, 0, len(a.ProofData))
	for k := range a.ProofData {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, a.ProofData[k]))
	}
	return strings.Join(parts, " ")
}

type reviewBody struct {
	Status Status `json:"status"`
}
