package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Perth-Artifactory/Volunteer-Tokens/internal"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/rewards"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/service"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/slack"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/storage"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/tidyhq"
)

// fakeSlack records every Web API call and answers with canned success
// responses.
type fakeSlack struct {
	calls []string
	srv   *httptest.Server
}

func newFakeSlack(t *testing.T) *fakeSlack {
	t.Helper()
	f := &fakeSlack{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls = append(f.calls, r.URL.Path)
		switch r.URL.Path {
		case "/conversations.open":
			fmt.Fprint(w, `{"ok": true, "channel": {"id": "D1"}}`)
		case "/chat.postMessage":
			fmt.Fprint(w, `{"ok": true, "ts": "1.2"}`)
		case "/users.info":
			fmt.Fprint(w, `{"ok": true, "user": {"id": "U1", "real_name": "Alex Smith"}}`)
		default:
			fmt.Fprint(w, `{"ok": true}`)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeSlack) count(path string) int {
	n := 0
	for _, c := range f.calls {
		if c == path {
			n++
		}
	}
	return n
}

func newFakeTidyHQ(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/contacts", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]tidyhq.Contact{
			{ID: 101, FirstName: "Alex", LastName: "Smith",
				CustomFields: []tidyhq.CustomField{{ID: "f-slack", Value: "U1"}}},
		})
	})
	mux.HandleFunc("/groups", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[]")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *fakeSlack, storage.LedgerRepository, storage.ClaimRepository) {
	t.Helper()
	dir := t.TempDir()

	fs := newFakeSlack(t)
	slackClient, err := slack.NewClient(fs.srv.Client(), fs.srv.URL, "xoxb-test")
	require.NoError(t, err)

	thSrv := newFakeTidyHQ(t)
	thClient, err := tidyhq.NewClient(thSrv.Client(), thSrv.URL, "secret")
	require.NoError(t, err)
	cache, err := tidyhq.NewCache(thClient, time.Hour, filepath.Join(dir, "cache.json"), "f-slack", nopLogger{})
	require.NoError(t, err)

	ledger, err := storage.NewFileLedger(filepath.Join(dir, "hours.json"), nopLogger{})
	require.NoError(t, err)
	claims, err := storage.NewFileClaims("")
	require.NoError(t, err)

	catalog := &rewards.Catalog{
		Monthly: []internal.RewardDefinition{{Threshold: 5, Title: "Bronze token", Description: "One token"}},
	}
	hours := service.NewHours(ledger, cache, catalog, nil, nopLogger{})
	renderer := NewRenderer(catalog, ledger, claims, nil, []string{"7"}, nopLogger{})

	d := NewDispatcher(slackClient, cache, ledger, claims, hours, renderer, "CADMIN", nopLogger{})
	return d, fs, ledger, claims
}

func TestHomeOpenedPublishesView(t *testing.T) {
	d, fs, _, _ := newTestDispatcher(t)

	d.HandleEvent(context.Background(), slack.Event{Type: "app_home_opened", User: "U1", Tab: "home"})
	assert.Equal(t, 1, fs.count("/views.publish"))

	// Unlinked users still get a home pushed.
	d.HandleEvent(context.Background(), slack.Event{Type: "app_home_opened", User: "UNOBODY", Tab: "home"})
	assert.Equal(t, 2, fs.count("/views.publish"))
}

func TestBlockActionsOpenModals(t *testing.T) {
	d, fs, _, _ := newTestDispatcher(t)

	interaction := slack.Interaction{Type: "block_actions", TriggerID: "t1"}
	interaction.User.ID = "U1"
	interaction.Actions = []slack.Action{{ActionID: actionAddHours}}
	d.HandleInteraction(context.Background(), interaction)
	assert.Equal(t, 1, fs.count("/views.open"))

	interaction.Actions = []slack.Action{{ActionID: actionViewAsUser}}
	d.HandleInteraction(context.Background(), interaction)
	assert.Equal(t, 2, fs.count("/views.open"))
}

func submission(volunteers []string, date, hours, note string) slack.Interaction {
	interaction := slack.Interaction{Type: "view_submission", TriggerID: "t1"}
	interaction.User.ID = "UADMIN"
	interaction.View.CallbackID = callbackSubmitHours
	interaction.View.State.Values = map[string]map[string]slack.StateValue{
		blockVolunteerSelect: {blockVolunteerSelect: {SelectedUsers: volunteers}},
		blockDateSelect:      {blockDateSelect: {SelectedDate: date}},
		blockHoursInput:      {blockHoursInput: {Value: hours}},
		blockNoteInput:       {blockNoteInput: {Value: note}},
	}
	return interaction
}

func TestHoursSubmissionRecordsAndNotifies(t *testing.T) {
	d, fs, ledger, _ := newTestDispatcher(t)
	ctx := context.Background()

	d.HandleInteraction(ctx, submission([]string{"U1"}, "2026-08-15", "6", "open day"))

	total, err := ledger.MonthlyTotal(ctx, "101", "2026-08")
	require.NoError(t, err)
	assert.Equal(t, 6.0, total)

	// Volunteer DM, unlock DM (6h crosses the 5h tier), unlock admin message
	// and the admin summary.
	assert.Equal(t, 4, fs.count("/chat.postMessage"))
	// Their home was re-pushed.
	assert.Equal(t, 1, fs.count("/views.publish"))
}

func TestHoursSubmissionUnlinkedVolunteerIsPinned(t *testing.T) {
	d, fs, ledger, _ := newTestDispatcher(t)
	ctx := context.Background()

	d.HandleInteraction(ctx, submission([]string{"UNOBODY"}, "2026-08-15", "2", ""))

	assert.Equal(t, 0, ledger.(*storage.FileLedger).MemberCount())
	assert.Equal(t, 1, fs.count("/pins.add"))
}

func TestClaimActionMarksRewardClaimed(t *testing.T) {
	d, fs, _, claims := newTestDispatcher(t)
	ctx := context.Background()

	interaction := slack.Interaction{Type: "block_actions", TriggerID: "t1"}
	interaction.User.ID = "U1"
	interaction.Actions = []slack.Action{{ActionID: actionClaimReward, Value: "monthly:5"}}
	d.HandleInteraction(ctx, interaction)

	claimed, err := claims.IsClaimed(ctx, "101", "monthly:5")
	require.NoError(t, err)
	assert.True(t, claimed)
	// The home is refreshed so the claimed annotation shows.
	assert.Equal(t, 1, fs.count("/views.publish"))
}

func TestUserViewSubmissionOpensDashboard(t *testing.T) {
	d, fs, _, _ := newTestDispatcher(t)

	interaction := slack.Interaction{Type: "view_submission", TriggerID: "t1"}
	interaction.User.ID = "UADMIN"
	interaction.View.CallbackID = callbackShowUserView
	interaction.View.State.Values = map[string]map[string]slack.StateValue{
		blockUserSelect: {blockUserSelect: {SelectedUser: "U1"}},
	}

	d.HandleInteraction(context.Background(), interaction)
	assert.Equal(t, 1, fs.count("/views.open"))
	assert.Equal(t, 1, fs.count("/users.info"))
}
