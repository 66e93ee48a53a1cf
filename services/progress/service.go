package progress

import (
	"context"
	"sync"

	"legion-prm/pkg/client"
	"legion-prm/pkg/errutil"
	"legion-prm/pkg/refresh"
	"legion-prm/services/batch"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrInvalidSession         = errutil.ValidationFailed("session must be morning or evening", nil)
	ErrSessionAlreadyReported = errutil.ValidationFailed("session already reported today", nil)
	ErrBatchLookup            = errutil.BadGateway("could not load your batches", nil)
	ErrNoActiveBatch          = errutil.ValidationFailed("no active batch", nil)
)

// BatchLister lists the batches assigned to the calling agent.
type BatchLister interface {
	MyBatches(ctx context.Context) ([]batch.Batch, error)
}

type Service struct {
	client  *client.Client
	batches BatchLister
}

type ServiceParams struct {
	fx.In

	Client  *client.Client
	Batches BatchLister
}

func NewService(p ServiceParams) *Service {
	return &Service{client: p.Client, batches: p.Batches}
}

// Today fetches the calling agent's progress. An empty answer means nothing
// was reported yet.
func (s *Service) Today(ctx context.Context) (Today, error) {
	var today Today
	if err := s.client.Get(ctx, "/contacts/agent/progress/today", nil, &today); err != nil {
		return Today{}, err
	}
	return today.normalize(), nil
}

// Report submits count for session against the agent's active batch. count is
// clamped to [0, MaxReportCount]. No request is sent when the batch list
// cannot be loaded or holds no active batch.
func (s *Service) Report(ctx context.Context, session Session, count int, notes string) (refresh.Result[ReportReceipt], error) {
	if _, err := ParseSession(string(session)); err != nil {
		return refresh.Result[ReportReceipt]{}, errutil.Wrap(ErrInvalidSession, err)
	}
	count = clamp(count)

	batches, err := s.batches.MyBatches(ctx)
	if err != nil {
		if errutil.IsAuth(err) {
			return refresh.Result[ReportReceipt]{}, err
		}
		return refresh.Result[ReportReceipt]{}, errutil.Wrap(ErrBatchLookup, err)
	}

	active, ok := batch.Active(batches)
	if !ok {
		return refresh.Result[ReportReceipt]{}, ErrNoActiveBatch
	}

	req := ReportRequest{
		BatchID:     active.ID,
		SessionType: session,
		Count:       count,
		Notes:       notes,
	}

	var receipt ReportReceipt
	if err := s.client.Post(ctx, "/contacts/agent/progress/report", req, &receipt); err != nil {
		return refresh.Result[ReportReceipt]{}, err
	}

	zap.L().Info("progress reported",
		zap.String("batch_id", active.ID),
		zap.String("session", string(session)),
		zap.Int("count", count),
		zap.Int("xp_earned", receipt.XPEarned),
	)
	return refresh.Invalidate(receipt, refresh.TodayProgress, refresh.AgentBatches, refresh.Dashboard), nil
}

func clamp(count int) int {
	switch {
	case count < 0:
		return 0
	case count > MaxReportCount:
		return MaxReportCount
	default:
		return count
	}
}

// Tracker holds the last fetched progress of the day and reports sessions
// against it.
type Tracker struct {
	svc       *Service
	refresher *refresh.Refresher

	mu    sync.Mutex
	today Today
}

func (s *Service) Tracker() *Tracker {
	t := &Tracker{svc: s, today: Today{}.normalize()}
	t.refresher = refresh.NewRefresher().On(refresh.TodayProgress, func(ctx context.Context) error {
		_, err := t.Load(ctx)
		return err
	})
	return t
}

// Load re-fetches today's progress. On failure the previous state is kept.
func (t *Tracker) Load(ctx context.Context) (Today, error) {
	today, err := t.svc.Today(ctx)
	if err != nil {
		return t.Today(), err
	}

	t.mu.Lock()
	t.today = today
	t.mu.Unlock()
	return today, nil
}

func (t *Tracker) Today() Today {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.today
}

func (t *Tracker) CanReport(s Session) bool {
	return t.Today().CanReport(s)
}

// ReportSession reports session once per day and re-fetches progress on
// success. Failures leave the tracked progress untouched.
func (t *Tracker) ReportSession(ctx context.Context, session Session, count int, notes string) (ReportReceipt, error) {
	if _, err := ParseSession(string(session)); err != nil {
		return ReportReceipt{}, errutil.Wrap(ErrInvalidSession, err)
	}
	if !t.CanReport(session) {
		return ReportReceipt{}, ErrSessionAlreadyReported
	}

	res, err := t.svc.Report(ctx, session, count, notes)
	if err != nil {
		return ReportReceipt{}, err
	}

	if err := t.refresher.Apply(ctx, res.Refresh); err != nil {
		zap.L().Warn("failed to reload progress, using report receipt", zap.Error(err))
		t.mu.Lock()
		t.today = Today{
			Date:         res.Value.Date,
			MorningCount: res.Value.MorningCount,
			EveningCount: res.Value.EveningCount,
			Goal:         t.today.Goal,
		}.normalize()
		t.mu.Unlock()
	}
	return res.Value, nil
}
