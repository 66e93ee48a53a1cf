package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"legion-prm/pkg/errutil"
	"legion-prm/services/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func fixture() []AgentStatus {
	return []AgentStatus{
		{ID: "1", Name: "Rina", Status: HealthActive, InactiveDays: 0, TodayMorning: 25, TodayEvening: 20, TodayTotal: 45, TotalAdded: 900},
		{ID: "2", Name: "Budi", Status: HealthWarning, InactiveDays: 1, TodayTotal: 0, TotalAdded: 300},
		{ID: "3", Name: "Sari", Status: HealthWarning, InactiveDays: 3, TodayTotal: 10, TotalAdded: 120},
		{ID: "4", Name: "Eko", Status: HealthInactive, InactiveDays: 9, TodayTotal: 0, TotalAdded: 50},
	}
}

func TestSummarize(t *testing.T) {
	sum := Summarize(fixture())

	require.Equal(t, 4, sum.Agents)
	require.Equal(t, 2, sum.ActiveToday)
	require.Equal(t, map[AgentHealth]int{HealthActive: 1, HealthWarning: 2, HealthInactive: 1}, sum.ByHealth)
	require.Equal(t, 55, sum.TodayTotal)
	require.Equal(t, 1370, sum.TotalAdded)
	require.Equal(t, 2, sum.NeedsAttention)
}

func TestNeedsAttentionUsesInactiveDaysOnly(t *testing.T) {
	require.False(t, NeedsAttention(AgentStatus{Status: HealthInactive, InactiveDays: 1}))
	require.True(t, NeedsAttention(AgentStatus{Status: HealthActive, InactiveDays: 2}))
}

func TestFilter(t *testing.T) {
	require.Len(t, Filter(fixture(), HealthWarning), 2)
	require.Len(t, Filter(fixture(), ""), 4)
	require.Empty(t, Filter(fixture()[:1], HealthInactive))
}

func TestSelect(t *testing.T) {
	out, err := Select(fixture(), `inactive_days > 1 && today_total < 25`)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "Sari", out[0].Name)
	require.Equal(t, "Eko", out[1].Name)

	out, err = Select(fixture(), `status == "ACTIVE" && name.startsWith("R")`)
	require.NoError(t, err)
	require.Len(t, out, 1)

	out, err = Select(fixture(), "")
	require.NoError(t, err)
	require.Len(t, out, 4)
}

func TestSelectInvalidExpression(t *testing.T) {
	_, err := Select(fixture(), `inactive_days >`)
	require.ErrorIs(t, err, ErrInvalidFilter)

	_, err = Select(fixture(), `today_total + 1`)
	require.ErrorIs(t, err, ErrInvalidFilter)
}

func TestValidateFilter(t *testing.T) {
	require.NoError(t, ValidateFilter(""))
	require.NoError(t, ValidateFilter(`inactive_days > 1 && today_total < 25`))
	require.ErrorIs(t, ValidateFilter(`inactive_days >`), ErrInvalidFilter)
	require.ErrorIs(t, ValidateFilter(`today_total + 1`), ErrInvalidFilter)
	require.ErrorIs(t, ValidateFilter(`unknown_field > 1`), ErrInvalidFilter)
}

func TestSortByHealth(t *testing.T) {
	in := []AgentStatus{
		{Name: "a", Status: HealthInactive},
		{Name: "b", Status: HealthActive},
		{Name: "c", Status: HealthWarning},
		{Name: "d", Status: HealthActive},
	}
	out := SortByHealth(in)

	names := make([]string, 0, len(out))
	for _, s := range out {
		names = append(names, s.Name)
	}
	require.Equal(t, []string{"b", "d", "c", "a"}, names)
	require.Equal(t, "a", in[0].Name)
}

func TestHealthDecodeRejectsUnknown(t *testing.T) {
	var s AgentStatus
	require.NoError(t, json.Unmarshal([]byte(`{"status":"WARNING","last_activity":"2025-01-14T10:00:00.123456"}`), &s))
	require.Equal(t, HealthWarning, s.Status)

	require.Error(t, json.Unmarshal([]byte(`{"status":"ONLINE"}`), &s))
}

func TestStatusesAndExport(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.JSON("GET /contacts/admin/agents/status", http.StatusOK, []map[string]any{
		{"id": "1", "name": "Rina", "status": "ACTIVE", "status_icon": "✅", "inactive_days": 0, "today_total": 45, "total_added": 900},
	})
	api.JSON("GET /contacts/admin/agents/inactive", http.StatusOK, []map[string]any{})
	api.JSON("GET /contacts/admin/export/text", http.StatusOK, map[string]string{"report": "=== LEGION PRM STATUS REPORT ==="})

	svc := NewService(ServiceParams{Client: api.Client})

	statuses, err := svc.Statuses(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.Equal(t, 90, statuses[0].TodayPercent())

	_, err = svc.Inactive(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, "3", api.CallsTo("GET /contacts/admin/agents/inactive")[0].Query.Get("days"))

	report, err := svc.ExportText(context.Background())
	require.NoError(t, err)
	require.Equal(t, "=== LEGION PRM STATUS REPORT ===", report)
}

type fakeArchiver struct {
	key  string
	data []byte
	err  error
}

func (f *fakeArchiver) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	f.key = key
	f.data, _ = io.ReadAll(r)
	return f.err
}

func TestArchiveReport(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	svc := NewService(ServiceParams{Client: api.Client})
	at := time.Date(2025, 1, 10, 17, 30, 5, 0, time.UTC)

	_, err := svc.ArchiveReport(context.Background(), "report", at)
	require.ErrorIs(t, err, ErrArchiveDisabled)

	archive := &fakeArchiver{}
	key, err := svc.WithArchiver(archive).ArchiveReport(context.Background(), "report", at)
	require.NoError(t, err)
	require.Equal(t, "reports/2025-01-10/status-173005.txt", key)
	require.Equal(t, key, archive.key)
	require.Equal(t, "report", string(archive.data))

	archive.err = errors.New("bucket gone")
	_, err = svc.WithArchiver(archive).ArchiveReport(context.Background(), "report", at)
	require.Equal(t, errutil.StatusBadGateway, errutil.Code(err))
	require.Empty(t, api.Calls())
}
