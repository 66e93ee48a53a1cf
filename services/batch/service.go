package batch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"legion-prm/pkg/client"
	"legion-prm/pkg/errutil"
	"legion-prm/pkg/minio"
	"legion-prm/pkg/refresh"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrUnsupportedFile  = errutil.ValidationFailed("only Excel files (.xlsx, .xls) are supported", nil)
	ErrPoolEmpty        = errutil.ValidationFailed("contact pool is empty, upload contacts first", nil)
	ErrInvalidBatchSize = errutil.ValidationFailed("batch size must be positive", nil)
	ErrAgentRequired    = errutil.ValidationFailed("select an agent first", nil)
	ErrInvalidAgentID   = errutil.ValidationFailed("agent id must be a UUID", nil)
	ErrBatchNotPending  = errutil.ValidationFailed("only pending batches can be assigned", nil)
	ErrBatchRequired    = errutil.ValidationFailed("batch id is required", nil)
)

// Archiver stores a copy of downloaded VCF files.
type Archiver interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

type Service struct {
	client  *client.Client
	archive Archiver
}

type ServiceParams struct {
	fx.In

	Client  *client.Client
	Archive *minio.Archiver `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	s := &Service{client: p.Client}
	if p.Archive != nil {
		s.archive = p.Archive
	}
	return s
}

// WithArchiver returns a copy of s that archives downloads to a.
func (s *Service) WithArchiver(a Archiver) *Service {
	return &Service{client: s.client, archive: a}
}

// ========================================================
// Admin
// ========================================================

func (s *Service) PoolStats(ctx context.Context) (PoolStats, error) {
	var stats PoolStats
	if err := s.client.Get(ctx, "/contacts/admin/contacts/pool/stats", nil, &stats); err != nil {
		return PoolStats{}, err
	}
	return stats, nil
}

// CheckUploadName accepts Excel workbooks only (.xlsx, .xls, any case).
func CheckUploadName(fileName string) error {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xls":
		return nil
	default:
		return ErrUnsupportedFile
	}
}

// Upload imports a contact spreadsheet into the pool.
func (s *Service) Upload(ctx context.Context, fileName string, r io.Reader) (refresh.Result[UploadSummary], error) {
	if err := CheckUploadName(fileName); err != nil {
		return refresh.Result[UploadSummary]{}, err
	}

	var summary UploadSummary
	err := s.client.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   "/contacts/admin/contacts/upload",
		File:   &client.Upload{Param: "file", FileName: filepath.Base(fileName), Reader: r},
	}, &summary)
	if err != nil {
		return refresh.Result[UploadSummary]{}, err
	}

	zap.L().Info("contacts uploaded",
		zap.String("file", summary.FileName),
		zap.Int("new_contacts", summary.NewContacts),
		zap.Int("duplicates", summary.Duplicates),
	)
	return refresh.Invalidate(summary, refresh.PoolStats), nil
}

// Generate draws one batch from the unassigned pool. pool is the last fetched
// pool state; generation is refused while it shows no unassigned contacts.
func (s *Service) Generate(ctx context.Context, pool PoolStats, req GenerateRequest) (refresh.Result[[]Batch], error) {
	if !pool.CanGenerate() {
		return refresh.Result[[]Batch]{}, ErrPoolEmpty
	}

	body := generateBody{
		Prefix:            strings.ToUpper(strings.TrimSpace(req.Prefix)),
		ContactsPerBatch:  req.BatchSize,
		ContactsPerSerial: ContactsPerSerial,
		MaxBatches:        1,
	}
	if body.Prefix == "" {
		body.Prefix = DefaultPrefix
	}
	if body.ContactsPerBatch == 0 {
		body.ContactsPerBatch = DefaultBatchSize
	}
	if body.ContactsPerBatch < 0 {
		return refresh.Result[[]Batch]{}, ErrInvalidBatchSize
	}

	var batches []Batch
	if err := s.client.Post(ctx, "/contacts/admin/vcf/generate", body, &batches); err != nil {
		return refresh.Result[[]Batch]{}, err
	}
	return refresh.Invalidate(batches, refresh.Batches, refresh.PoolStats), nil
}

// Assign hands a pending batch to one agent. On failure the caller's copy of
// the batch is unchanged.
func (s *Service) Assign(ctx context.Context, b Batch, agentID string) (refresh.Result[Batch], error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return refresh.Result[Batch]{}, ErrAgentRequired
	}
	if _, err := uuid.Parse(agentID); err != nil {
		return refresh.Result[Batch]{}, errutil.Wrap(ErrInvalidAgentID, err)
	}
	if b.ID == "" {
		return refresh.Result[Batch]{}, ErrBatchRequired
	}
	if b.Status != StatusPending {
		return refresh.Result[Batch]{}, ErrBatchNotPending
	}

	var assigned Batch
	path := "/contacts/admin/vcf/batches/" + url.PathEscape(b.ID) + "/assign"
	if err := s.client.Post(ctx, path, assignBody{AgentID: agentID}, &assigned); err != nil {
		return refresh.Result[Batch]{}, err
	}

	zap.L().Info("batch assigned", zap.String("batch_id", assigned.ID), zap.String("agent_id", agentID))
	return refresh.Invalidate(assigned, refresh.Batches), nil
}

// List returns the admin batch list, newest first. An empty status lists all.
func (s *Service) List(ctx context.Context, status Status) ([]Batch, error) {
	var query url.Values
	if status != "" {
		query = url.Values{"status": {string(status)}}
	}

	var batches []Batch
	if err := s.client.Get(ctx, "/contacts/admin/vcf/batches", query, &batches); err != nil {
		return nil, err
	}
	return batches, nil
}

// Find returns the batch with id from the admin list.
func (s *Service) Find(ctx context.Context, id string) (Batch, error) {
	batches, err := s.List(ctx, "")
	if err != nil {
		return Batch{}, err
	}
	for _, b := range batches {
		if b.ID == id {
			return b, nil
		}
	}
	return Batch{}, errutil.NotFound("batch not found", nil)
}

// ========================================================
// Agent
// ========================================================

func (s *Service) MyBatches(ctx context.Context) ([]Batch, error) {
	var batches []Batch
	if err := s.client.Get(ctx, "/contacts/agent/vcf/batches", nil, &batches); err != nil {
		return nil, err
	}
	return batches, nil
}

// Download writes the VCF of b to w and returns the server file name. When an
// archiver is configured the file is also stored under vcf/<agent>/<file>.
func (s *Service) Download(ctx context.Context, b Batch, w io.Writer) (string, error) {
	if b.ID == "" {
		return "", ErrBatchRequired
	}

	var buf bytes.Buffer
	dst := w
	if s.archive != nil {
		dst = io.MultiWriter(w, &buf)
	}

	name, err := s.client.Download(ctx, "/contacts/agent/vcf/download/"+url.PathEscape(b.ID), dst)
	if err != nil {
		return "", err
	}
	if name == "" {
		name = b.FileName
	}
	if name == "" {
		name = "contacts_" + b.ID + ".vcf"
	}

	if s.archive != nil {
		owner := b.AgentName
		if owner == "" {
			owner = b.AgentID
		}
		key := minio.ObjectKey("vcf", owner, name)
		if err := s.archive.Put(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "text/vcard"); err != nil {
			return name, errutil.BadGateway("failed to archive batch", err)
		}
	}
	return name, nil
}

// ========================================================
// Derived views
// ========================================================

// Filter returns the batches with status; an empty status keeps all.
func Filter(batches []Batch, status Status) []Batch {
	if status == "" {
		return batches
	}
	out := make([]Batch, 0, len(batches))
	for _, b := range batches {
		if b.Status == status {
			out = append(out, b)
		}
	}
	return out
}

// OpenCount counts batches that are not completed.
func OpenCount(batches []Batch) int {
	var n int
	for _, b := range batches {
		if b.Status.Open() {
			n++
		}
	}
	return n
}

// Active picks the batch an agent reports against: the most recently assigned
// batch that is ASSIGNED or IN_PROGRESS. Ties fall back to creation time.
func Active(batches []Batch) (Batch, bool) {
	candidates := make([]Batch, 0, len(batches))
	for _, b := range batches {
		if b.Status.Workable() {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return Batch{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.AssignedAt.Equal(b.AssignedAt.Time) {
			return a.AssignedAt.After(b.AssignedAt.Time)
		}
		return a.CreatedAt.After(b.CreatedAt.Time)
	})
	return candidates[0], true
}

// CountByStatus tallies batches per status.
func CountByStatus(batches []Batch) map[Status]int {
	counts := make(map[Status]int, len(Statuses))
	for _, st := range Statuses {
		counts[st] = 0
	}
	for _, b := range batches {
		counts[b.Status]++
	}
	return counts
}
