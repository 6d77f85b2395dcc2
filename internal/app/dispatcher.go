package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Perth-Artifactory/Volunteer-Tokens/internal"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/service"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/slack"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/storage"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/tidyhq"
)

// Action and callback ids shared between the renderer (which puts them on
// blocks) and the dispatcher (which routes on them).
const (
	actionAddHours    = "add_hours"
	actionViewAsUser  = "view_as_user"
	actionClaimReward = "claim_reward"

	callbackSubmitHours  = "submit_hours"
	callbackShowUserView = "show_user_view"

	blockVolunteerSelect = "volunteer_select"
	blockDateSelect      = "date_select"
	blockHoursInput      = "hours_input"
	blockNoteInput       = "note_input"
	blockUserSelect      = "user_select"
)

// Dispatcher routes Slack events and interactions to the services and turns
// the results back into home updates, DMs and admin-channel messages. It
// implements slack.Handler for both transports.
type Dispatcher struct {
	slack        *slack.Client
	cache        *tidyhq.Cache
	ledger       storage.LedgerRepository
	claims       storage.ClaimRepository
	hours        *service.Hours
	renderer     *Renderer
	adminChannel string
	logger       internal.Logger

	// mu keeps event handling strictly serial even if both transports are
	// somehow active at once.
	mu sync.Mutex
}

func NewDispatcher(client *slack.Client, cache *tidyhq.Cache, ledger storage.LedgerRepository, claims storage.ClaimRepository, hours *service.Hours, renderer *Renderer, adminChannel string, logger internal.Logger) *Dispatcher {
	return &Dispatcher{
		slack:        client,
		cache:        cache,
		ledger:       ledger,
		claims:       claims,
		hours:        hours,
		renderer:     renderer,
		adminChannel: adminChannel,
		logger:       logger,
	}
}

var _ slack.Handler = (*Dispatcher)(nil)

func (d *Dispatcher) HandleEvent(ctx context.Context, event slack.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch event.Type {
	case "app_home_opened":
		if event.Tab != "" && event.Tab != "home" {
			return
		}
		if err := d.publishHomeFor(ctx, event.User); err != nil {
			d.logger.Errorf("failed to publish home for %s: %v", event.User, err)
		}
	default:
		d.logger.Debugf("ignoring event type %s", event.Type)
	}
}

func (d *Dispatcher) HandleInteraction(ctx context.Context, interaction slack.Interaction) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var err error
	switch interaction.Type {
	case "block_actions":
		err = d.handleBlockActions(ctx, interaction)
	case "view_submission":
		err = d.handleViewSubmission(ctx, interaction)
	default:
		d.logger.Debugf("ignoring interaction type %s", interaction.Type)
		return
	}
	if err != nil {
		d.logger.Errorf("failed to handle %s from %s: %v", interaction.Type, interaction.User.ID, err)
	}
}

// publishHomeFor resolves the Slack user to a member (nil when unlinked) and
// pushes their rendered home.
func (d *Dispatcher) publishHomeFor(ctx context.Context, slackID string) error {
	member, err := d.cache.Resolve(ctx, slackID)
	if err != nil && !errors.Is(err, internal.ErrNotFound) {
		return err
	}

	if member != nil {
		if err := d.ledger.EnsureMember(ctx, member.ID, member.Name); err != nil {
			return err
		}
	}

	blocks, err := d.renderer.Home(ctx, member, false)
	if err != nil {
		return err
	}
	return d.slack.PublishHome(ctx, slackID, slack.HomeView(blocks))
}

func (d *Dispatcher) handleBlockActions(ctx context.Context, interaction slack.Interaction) error {
	for _, action := range interaction.Actions {
		switch action.ActionID {
		case actionAddHours:
			view := slack.ModalView("Add Volunteer Hours", callbackSubmitHours, "Add", AddHoursModal(d.renderer.now()))
			if err := d.slack.OpenView(ctx, interaction.TriggerID, view); err != nil {
				return err
			}
		case actionViewAsUser:
			view := slack.ModalView("View as user", callbackShowUserView, "View", ViewAsUserModal())
			if err := d.slack.OpenView(ctx, interaction.TriggerID, view); err != nil {
				return err
			}
		case actionClaimReward:
			if err := d.handleClaim(ctx, interaction.User.ID, action.Value); err != nil {
				return err
			}
		default:
			d.logger.Debugf("ignoring action %s", action.ActionID)
		}
	}
	return nil
}

// handleClaim marks a reward tier claimed for the member behind the Slack
// user and refreshes their home so the claimed annotation shows.
func (d *Dispatcher) handleClaim(ctx context.Context, slackID, rewardKey string) error {
	member, err := d.cache.Resolve(ctx, slackID)
	if err != nil {
		return err
	}
	if err := d.claims.Claim(ctx, member.ID, rewardKey); err != nil {
		return err
	}
	d.logger.Infof("member %s claimed reward %s", member.ID, rewardKey)
	return d.publishHomeFor(ctx, slackID)
}

func (d *Dispatcher) handleViewSubmission(ctx context.Context, interaction slack.Interaction) error {
	switch interaction.View.CallbackID {
	case callbackSubmitHours:
		return d.handleHoursSubmission(ctx, interaction)
	case callbackShowUserView:
		return d.handleUserView(ctx, interaction)
	default:
		d.logger.Debugf("ignoring view submission %s", interaction.View.CallbackID)
		return nil
	}
}

// handleHoursSubmission records the submitted hours and fans out the
// notifications: a DM per volunteer, unlock congratulations, admin-channel
// summaries and a pinned warning for volunteers we could not link.
func (d *Dispatcher) handleHoursSubmission(ctx context.Context, interaction slack.Interaction) error {
	req := service.RecordRequest{RecordedBy: interaction.User.ID}
	if sv, ok := interaction.View.Value(blockVolunteerSelect, blockVolunteerSelect); ok {
		req.Volunteers = sv.SelectedUsers
	}
	if sv, ok := interaction.View.Value(blockDateSelect, blockDateSelect); ok {
		req.Date = sv.SelectedDate
	}
	if sv, ok := interaction.View.Value(blockHoursInput, blockHoursInput); ok {
		if _, err := fmt.Sscanf(sv.Value, "%f", &req.Hours); err != nil {
			req.Hours = 0
		}
	}
	if sv, ok := interaction.View.Value(blockNoteInput, blockNoteInput); ok {
		req.Note = sv.Value
	}

	results, err := d.hours.Record(ctx, req)
	if err != nil {
		if errors.Is(err, internal.ErrInvalidInput) {
			d.logger.Warnf("rejected hour submission from %s: %v", interaction.User.ID, err)
			return d.slack.SendDM(ctx, interaction.User.ID,
				fmt.Sprintf("Sorry, that hour submission couldn't be processed: %v", err), nil)
		}
		return err
	}

	recorded := 0
	for _, result := range results {
		if result.NotFound {
			d.reportUnlinked(ctx, result.SlackID, interaction.User.ID)
			continue
		}
		recorded++

		if err := d.slack.SendDM(ctx, result.SlackID,
			fmt.Sprintf("We've added %vh against your volunteer profile, thank you for everything you do!", req.Hours), nil); err != nil {
			d.logger.Warnf("could not DM %s about their new hours: %v", result.SlackID, err)
		}

		d.notifyUnlocks(ctx, result, req.Date)

		// The volunteer's dashboard is stale the moment hours land.
		if err := d.publishHomeFor(ctx, result.SlackID); err != nil {
			d.logger.Warnf("could not refresh home for %s: %v", result.SlackID, err)
		}
	}

	if d.adminChannel != "" {
		summary := fmt.Sprintf(":white_check_mark: <@%s> added %vh on %s for %d volunteer(s)",
			interaction.User.ID, req.Hours, req.Date, recorded)
		if req.Note != "" {
			summary += fmt.Sprintf("\n> %s", req.Note)
		}
		if _, err := d.slack.PostMessage(ctx, d.adminChannel, summary, nil); err != nil {
			d.logger.Warnf("could not post admin summary: %v", err)
		}
	}
	return nil
}

// reportUnlinked tells the admin channel about a volunteer with no linked
// member record and pins the message so it isn't lost.
func (d *Dispatcher) reportUnlinked(ctx context.Context, slackID, submittedBy string) {
	if d.adminChannel == "" {
		return
	}
	text := fmt.Sprintf(":warning: <@%s> tried to add hours for <@%s> but they aren't linked to a member record. The hours were *not* recorded.",
		submittedBy, slackID)
	ts, err := d.slack.PostMessage(ctx, d.adminChannel, text, nil)
	if err != nil {
		d.logger.Errorf("could not report unlinked volunteer %s: %v", slackID, err)
		return
	}
	if err := d.slack.PinMessage(ctx, d.adminChannel, ts); err != nil {
		d.logger.Warnf("could not pin unlinked-volunteer warning: %v", err)
	}
}

// notifyUnlocks congratulates the volunteer over DM for every tier this entry
// pushed them over, and mirrors each unlock to the admin channel.
func (d *Dispatcher) notifyUnlocks(ctx context.Context, result service.VolunteerResult, date string) {
	month := date
	if parsed, err := time.Parse("2006-01-02", date); err == nil {
		month = parsed.Format("January")
	}

	announce := func(def internal.RewardDefinition, period string) {
		if err := d.slack.SendDM(ctx, result.SlackID, "You've unlocked a reward!", RewardNotification(def, period)); err != nil {
			d.logger.Warnf("could not DM %s about reward %q: %v", result.SlackID, def.Title, err)
		}
		if d.adminChannel == "" {
			return
		}
		text := fmt.Sprintf(":tada: <@%s> unlocked *%s* (%dh, %s)", result.SlackID, def.Title, def.Threshold, period)
		if _, err := d.slack.PostMessage(ctx, d.adminChannel, text, nil); err != nil {
			d.logger.Warnf("could not post unlock to admin channel: %v", err)
		}
	}

	for _, def := range result.MonthlyUnlocks {
		announce(def, month)
	}
	for _, def := range result.CumulativeUnlocks {
		announce(def, "cumulative")
	}
}

// handleUserView opens a read-only copy of another user's dashboard for an
// admin.
func (d *Dispatcher) handleUserView(ctx context.Context, interaction slack.Interaction) error {
	sv, ok := interaction.View.Value(blockUserSelect, blockUserSelect)
	if !ok || sv.SelectedUser == "" {
		return fmt.Errorf("%w: no user selected", internal.ErrInvalidInput)
	}

	member, err := d.cache.Resolve(ctx, sv.SelectedUser)
	if err != nil && !errors.Is(err, internal.ErrNotFound) {
		return err
	}

	blocks, err := d.renderer.Home(ctx, member, true)
	if err != nil {
		return err
	}

	title := "User Dashboard"
	if user, err := d.slack.UserInfo(ctx, sv.SelectedUser); err == nil && user.DisplayName() != "" {
		title = "View as " + user.DisplayName()
	}
	return d.slack.OpenView(ctx, interaction.TriggerID, slack.ModalView(title, "", "", blocks))
}
