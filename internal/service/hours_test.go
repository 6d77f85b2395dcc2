package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Perth-Artifactory/Volunteer-Tokens/internal"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/rewards"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/storage"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/tidyhq"
)

type nopLogger struct{}

func (nopLogger) Info(args ...interface{})                  {}
func (nopLogger) Infof(format string, args ...interface{})  {}
func (nopLogger) Warn(args ...interface{})                  {}
func (nopLogger) Warnf(format string, args ...interface{})  {}
func (nopLogger) Error(args ...interface{})                 {}
func (nopLogger) Errorf(format string, args ...interface{}) {}
func (nopLogger) Debug(args ...interface{})                 {}
func (nopLogger) Debugf(format string, args ...interface{}) {}
func (nopLogger) Fatal(args ...interface{})                 {}
func (nopLogger) Fatalf(format string, args ...interface{}) {}

// mapResolver resolves Slack ids from a fixed map, standing in for the TidyHQ
// cache.
type mapResolver map[string]*internal.MemberRecord

func (r mapResolver) Resolve(ctx context.Context, slackID string) (*internal.MemberRecord, error) {
	if m, ok := r[slackID]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w: no member linked to slack user %s", internal.ErrNotFound, slackID)
}

func newTestHours(t *testing.T, catalog *rewards.Catalog, resolver Resolver) (*Hours, storage.LedgerRepository) {
	t.Helper()
	ledger, err := storage.NewFileLedger(filepath.Join(t.TempDir(), "hours.json"), nopLogger{})
	require.NoError(t, err)
	return NewHours(ledger, resolver, catalog, nil, nopLogger{}), ledger
}

func TestRecordValidation(t *testing.T) {
	h, _ := newTestHours(t, &rewards.Catalog{}, mapResolver{})
	ctx := context.Background()

	tests := []struct {
		name string
		req  RecordRequest
	}{
		{"no volunteers", RecordRequest{Hours: 2, Date: "2026-08-15", RecordedBy: "UADMIN"}},
		{"zero hours", RecordRequest{Volunteers: []string{"U1"}, Date: "2026-08-15", RecordedBy: "UADMIN"}},
		{"negative hours", RecordRequest{Volunteers: []string{"U1"}, Hours: -3, Date: "2026-08-15", RecordedBy: "UADMIN"}},
		{"excessive hours", RecordRequest{Volunteers: []string{"U1"}, Hours: 200, Date: "2026-08-15", RecordedBy: "UADMIN"}},
		{"bad date", RecordRequest{Volunteers: []string{"U1"}, Hours: 2, Date: "15/08/2026", RecordedBy: "UADMIN"}},
		{"no recorder", RecordRequest{Volunteers: []string{"U1"}, Hours: 2, Date: "2026-08-15"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Record(ctx, tt.req)
			assert.ErrorIs(t, err, internal.ErrInvalidInput)
		})
	}
}

func TestRecordAppendsForEachVolunteer(t *testing.T) {
	resolver := mapResolver{
		"U1": {ID: "101", Name: "Alex"},
		"U2": {ID: "102", Name: "Sam"},
	}
	h, ledger := newTestHours(t, &rewards.Catalog{}, resolver)
	ctx := context.Background()

	results, err := h.Record(ctx, RecordRequest{
		Volunteers: []string{"U1", "U2"},
		Hours:      3,
		Date:       "2026-08-15",
		Note:       "open day",
		RecordedBy: "UADMIN",
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, result := range results {
		assert.False(t, result.NotFound)
		assert.NotEmpty(t, result.EntryID)
	}

	total, err := ledger.MonthlyTotal(ctx, "101", "2026-08")
	require.NoError(t, err)
	assert.Equal(t, 3.0, total)

	entries, err := ledger.Entries(ctx, "102")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "open day", entries[0].Note)
	assert.Equal(t, "UADMIN", entries[0].RecordedBy)
}

func TestRecordReportsUnlinkedVolunteers(t *testing.T) {
	resolver := mapResolver{"U1": {ID: "101", Name: "Alex"}}
	h, ledger := newTestHours(t, &rewards.Catalog{}, resolver)
	ctx := context.Background()

	results, err := h.Record(ctx, RecordRequest{
		Volunteers: []string{"U1", "UNOBODY"},
		Hours:      2,
		Date:       "2026-08-15",
		RecordedBy: "UADMIN",
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.False(t, results[0].NotFound)
	assert.True(t, results[1].NotFound)
	assert.Equal(t, "UNOBODY", results[1].SlackID)

	// The linked volunteer still got their hours.
	total, err := ledger.CumulativeTotal(ctx, "101")
	require.NoError(t, err)
	assert.Equal(t, 2.0, total)
}

func TestRecordDetectsUnlocks(t *testing.T) {
	catalog := &rewards.Catalog{
		Monthly: []internal.RewardDefinition{
			{Threshold: 5, Title: "Bronze", Description: "d"},
			{Threshold: 10, Title: "Silver", Description: "d"},
		},
		Cumulative: []internal.RewardDefinition{
			{Threshold: 12, Title: "Dozen", Description: "d"},
		},
	}
	resolver := mapResolver{"U1": {ID: "101", Name: "Alex"}}
	h, _ := newTestHours(t, catalog, resolver)
	h.now = func() time.Time { return time.Date(2026, time.August, 15, 10, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	record := func(hours float64) []VolunteerResult {
		results, err := h.Record(ctx, RecordRequest{
			Volunteers: []string{"U1"},
			Hours:      hours,
			Date:       "2026-08-15",
			RecordedBy: "UADMIN",
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		return results
	}

	// 0 -> 4: nothing unlocked yet.
	results := record(4)
	assert.Empty(t, results[0].MonthlyUnlocks)
	assert.Empty(t, results[0].CumulativeUnlocks)

	// 4 -> 11: crosses Bronze and Silver in one entry.
	results = record(7)
	require.Len(t, results[0].MonthlyUnlocks, 2)
	assert.Equal(t, "Bronze", results[0].MonthlyUnlocks[0].Title)
	assert.Equal(t, "Silver", results[0].MonthlyUnlocks[1].Title)
	assert.Empty(t, results[0].CumulativeUnlocks)

	// 11 -> 13 cumulative: crosses Dozen, monthly tiers already passed.
	results = record(2)
	assert.Empty(t, results[0].MonthlyUnlocks)
	require.Len(t, results[0].CumulativeUnlocks, 1)
	assert.Equal(t, "Dozen", results[0].CumulativeUnlocks[0].Title)
}

func TestRecordAppliesGrantOnCumulativeUnlock(t *testing.T) {
	var updated string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			fmt.Fprint(w, `{"id": 101, "first_name": "Alex"}`)
		case http.MethodPut:
			raw, _ := io.ReadAll(r.Body)
			var body map[string]map[string]string
			require.NoError(t, json.Unmarshal(raw, &body))
			updated = body["custom_fields"]["f-badge"]
			fmt.Fprint(w, "{}")
		}
	}))
	defer srv.Close()

	client, err := tidyhq.NewClient(srv.Client(), srv.URL, "secret")
	require.NoError(t, err)
	badge := NewBadge(client, "f-badge", nopLogger{})

	catalog := &rewards.Catalog{
		Cumulative: []internal.RewardDefinition{
			{Threshold: 5, Title: "Handful", Description: "d", Grant: GrantVolunteerBadge},
		},
	}
	resolver := mapResolver{"U1": {ID: "101", Name: "Alex"}}
	ledger, err := storage.NewFileLedger(filepath.Join(t.TempDir(), "hours.json"), nopLogger{})
	require.NoError(t, err)
	h := NewHours(ledger, resolver, catalog, badge, nopLogger{})

	_, err = h.Record(context.Background(), RecordRequest{
		Volunteers: []string{"U1"},
		Hours:      6,
		Date:       "2026-08-15",
		RecordedBy: "UADMIN",
	})
	require.NoError(t, err)
	assert.Equal(t, "2608", updated)
}
