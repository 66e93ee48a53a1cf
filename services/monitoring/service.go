package monitoring

import (
	"context"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"legion-prm/pkg/celengine"
	"legion-prm/pkg/client"
	"legion-prm/pkg/errutil"
	"legion-prm/pkg/minio"

	"go.uber.org/fx"
)

var (
	ErrInvalidFilter   = errutil.ValidationFailed("invalid filter expression", nil)
	ErrArchiveDisabled = errutil.ValidationFailed("archive is not configured, set MINIO_ENDPOINT", nil)
)

// Archiver stores exported reports.
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

// WithArchiver returns a copy of s that archives reports to a.
func (s *Service) WithArchiver(a Archiver) *Service {
	return &Service{client: s.client, archive: a}
}

func (s *Service) Statuses(ctx context.Context) ([]AgentStatus, error) {
	var statuses []AgentStatus
	if err := s.client.Get(ctx, "/contacts/admin/agents/status", nil, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

// Inactive lists agents idle for at least days days, as judged by the API.
func (s *Service) Inactive(ctx context.Context, days int) ([]AgentStatus, error) {
	if days < 0 {
		days = 0
	}

	var statuses []AgentStatus
	query := url.Values{"days": {strconv.Itoa(days)}}
	if err := s.client.Get(ctx, "/contacts/admin/agents/inactive", query, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

// ExportText returns the plain text status report generated by the API.
func (s *Service) ExportText(ctx context.Context) (string, error) {
	var body exportBody
	if err := s.client.Get(ctx, "/contacts/admin/export/text", nil, &body); err != nil {
		return "", err
	}
	return body.Report, nil
}

// ArchiveReport uploads report under reports/<date>/status-<time>.txt and
// returns the object key.
func (s *Service) ArchiveReport(ctx context.Context, report string, at time.Time) (string, error) {
	if s.archive == nil {
		return "", ErrArchiveDisabled
	}

	key := minio.ObjectKey("reports", at.Format("2006-01-02"), "status-"+at.Format("150405")+".txt")
	if err := s.archive.Put(ctx, key, strings.NewReader(report), int64(len(report)), "text/plain; charset=utf-8"); err != nil {
		return "", errutil.BadGateway("failed to archive report", err)
	}
	return key, nil
}

func Summarize(statuses []AgentStatus) Summary {
	sum := Summary{
		Agents:   len(statuses),
		ByHealth: make(map[AgentHealth]int, len(Healths)),
	}
	for _, h := range Healths {
		sum.ByHealth[h] = 0
	}

	for _, s := range statuses {
		sum.ByHealth[s.Status]++
		sum.TodayTotal += s.TodayTotal
		sum.TotalAdded += s.TotalAdded
		if s.TodayTotal > 0 {
			sum.ActiveToday++
		}
		if NeedsAttention(s) {
			sum.NeedsAttention++
		}
	}
	return sum
}

// Filter keeps statuses with health h; an empty h keeps all.
func Filter(statuses []AgentStatus, h AgentHealth) []AgentStatus {
	if h == "" {
		return statuses
	}
	out := make([]AgentStatus, 0, len(statuses))
	for _, s := range statuses {
		if s.Status == h {
			out = append(out, s)
		}
	}
	return out
}

// ValidateFilter checks a Select expression without any statuses at hand.
func ValidateFilter(expr string) error {
	if expr == "" {
		return nil
	}
	env, err := celengine.GetOrBuildEnv(AgentStatus{}.Attributes())
	if err != nil {
		return errutil.Internal("failed to build filter environment", err)
	}
	if err := celengine.ValidateExpression(env, expr); err != nil {
		return errutil.Wrap(ErrInvalidFilter, err)
	}
	return nil
}

// Select keeps statuses matching a CEL expression over AgentStatus.Attributes,
// e.g. `inactive_days > 1 && today_total < 25`.
func Select(statuses []AgentStatus, expr string) ([]AgentStatus, error) {
	if expr == "" || len(statuses) == 0 {
		return statuses, nil
	}

	env, err := celengine.GetOrBuildEnv(AgentStatus{}.Attributes())
	if err != nil {
		return nil, errutil.Internal("failed to build filter environment", err)
	}
	prg, err := celengine.Compile(env, expr)
	if err != nil {
		return nil, errutil.Wrap(ErrInvalidFilter, err)
	}

	out := make([]AgentStatus, 0, len(statuses))
	for _, s := range statuses {
		ok, err := celengine.Matches(prg, s.Attributes())
		if err != nil {
			return nil, errutil.Wrap(ErrInvalidFilter, err)
		}
		if ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// SortByHealth orders active agents first, then warning, then inactive, keeping
// the API order within each group.
func SortByHealth(statuses []AgentStatus) []AgentStatus {
	out := append([]AgentStatus(nil), statuses...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Status.order() < out[j].Status.order()
	})
	return out
}
