package batch

import (
	"encoding/json"
	"fmt"
	"strings"

	"legion-prm/pkg/client"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusAssigned   Status = "ASSIGNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

var Statuses = []Status{StatusPending, StatusAssigned, StatusInProgress, StatusCompleted}

const (
	DefaultPrefix     = "LEG"
	DefaultBatchSize  = 1500
	ContactsPerSerial = 25
)

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown batch status %q", raw)
	}
	return s, nil
}

func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusAssigned:
		return 1
	case StatusInProgress:
		return 2
	case StatusCompleted:
		return 3
	default:
		return -1
	}
}

func (s Status) Valid() bool {
	return s.rank() >= 0
}

// Advances reports whether moving from s to next goes forward. Batches never
// move back to an earlier status.
func (s Status) Advances(next Status) bool {
	return s.Valid() && next.Valid() && next.rank() > s.rank()
}

// Open reports whether the batch still has contacts to add.
func (s Status) Open() bool {
	return s != StatusCompleted
}

// Workable reports whether an agent can report progress against the batch.
func (s Status) Workable() bool {
	return s == StatusAssigned || s == StatusInProgress
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

// Batch is a fixed-size slice of the contact pool packaged as a VCF file.
type Batch struct {
	ID           string      `json:"id"`
	FileName     string      `json:"file_name"`
	ContactCount int         `json:"contact_count"`
	Prefix       string      `json:"prefix"`
	StartSerial  int         `json:"start_serial"`
	Status       Status      `json:"status"`
	AgentID      string      `json:"agent_id"`
	AgentName    string      `json:"agent_name"`
	AssignedAt   client.Time `json:"assigned_at"`
	CreatedAt    client.Time `json:"created_at"`
}

// Serials returns the first and last contact names in the batch, e.g. LEG001
// and LEG060 for 1500 contacts starting at serial 1.
func (b Batch) Serials() (first, last string) {
	count := (b.ContactCount + ContactsPerSerial - 1) / ContactsPerSerial
	if count < 1 {
		count = 1
	}
	return serialName(b.Prefix, b.StartSerial), serialName(b.Prefix, b.StartSerial+count-1)
}

func serialName(prefix string, serial int) string {
	return fmt.Sprintf("%s%03d", prefix, serial)
}

type Source struct {
	File  string `json:"file"`
	Count int    `json:"count"`
}

type PoolStats struct {
	TotalContacts  int      `json:"total_contacts"`
	Assigned       int      `json:"assigned"`
	Unassigned     int      `json:"unassigned"`
	AssignmentRate float64  `json:"assignment_rate"`
	Sources        []Source `json:"sources"`
}

// CanGenerate reports whether the pool has contacts left for a new batch.
func (p PoolStats) CanGenerate() bool {
	return p.Unassigned > 0
}

type UploadSummary struct {
	FileName       string   `json:"file_name"`
	TotalRows      int      `json:"total_rows"`
	ValidPhones    int      `json:"valid_phones"`
	NewContacts    int      `json:"new_contacts"`
	Duplicates     int      `json:"duplicates"`
	InvalidEntries int      `json:"invalid_entries"`
	InvalidSamples []string `json:"invalid_samples"`
}

type GenerateRequest struct {
	Prefix    string
	BatchSize int
}

type generateBody struct {
	Prefix            string `json:"prefix"`
	ContactsPerBatch  int    `json:"contacts_per_batch"`
	ContactsPerSerial int    `json:"contacts_per_serial"`
	MaxBatches        int    `json:"max_batches"`
}

type assignBody struct {
	AgentID string `json:"agent_id"`
}
