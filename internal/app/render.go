package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Perth-Artifactory/Volunteer-Tokens/internal"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/chart"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/rewards"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/slack"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/storage"
)

// Renderer turns ledger and evaluator state into app home block lists. It
// holds no state of its own; everything is derived per call.
type Renderer struct {
	catalog     *rewards.Catalog
	ledger      storage.LedgerRepository
	claims      storage.ClaimRepository
	charts      *chart.Generator
	adminGroups []string
	logger      internal.Logger
	now         func() time.Time
}

func NewRenderer(catalog *rewards.Catalog, ledger storage.LedgerRepository, claims storage.ClaimRepository, charts *chart.Generator, adminGroups []string, logger internal.Logger) *Renderer {
	return &Renderer{
		catalog:     catalog,
		ledger:      ledger,
		claims:      claims,
		charts:      charts,
		adminGroups: adminGroups,
		logger:      logger,
		now:         time.Now,
	}
}

// Home builds the app home block list for a member. A nil member renders the
// unrecognised-user view. The modal variant drops the explainer and admin
// tools, keeping just the dashboard content.
func (r *Renderer) Home(ctx context.Context, member *internal.MemberRecord, modalVersion bool) ([]slack.Block, error) {
	blocks := []slack.Block{slack.Header(headerText)}

	if member == nil {
		return append(blocks, slack.Section(unrecognisedText)), nil
	}

	if !modalVersion {
		blocks = append(blocks, slack.Section(explainerText))
	}

	// Claim buttons act on the viewer's own record, so the view-as-user
	// modal renders without them.
	claimable := !modalVersion

	now := r.now()
	thisMonth := internal.MonthOf(now)
	lastMonth := internal.MonthOf(internal.PreviousMonth(now))

	total, err := r.ledger.CumulativeTotal(ctx, member.ID)
	if err != nil {
		return nil, err
	}
	thisMonthHours, err := r.ledger.MonthlyTotal(ctx, member.ID, thisMonth)
	if err != nil {
		return nil, err
	}
	lastMonthHours, err := r.ledger.MonthlyTotal(ctx, member.ID, lastMonth)
	if err != nil {
		return nil, err
	}

	blocks = append(blocks, slack.Section(fmt.Sprintf(hoursSummaryText, lastMonthHours, thisMonthHours, total)))

	if total > 0 && r.charts != nil {
		months, err := r.ledger.MonthTotals(ctx, member.ID)
		if err != nil {
			return nil, err
		}
		if url, err := r.charts.MonthlyHoursURL(ctx, months, now); err != nil {
			// The home is still useful without the chart.
			r.logger.Warnf("skipping hours chart for member %s: %v", member.ID, err)
		} else {
			blocks = append(blocks, slack.ImageBlock(url, "Volunteer hours by month"))
		}
	}

	if !modalVersion && member.InAnyGroup(r.adminGroups) {
		blocks = append(blocks,
			slack.Header("Admin tools"),
			slack.Section(adminExplainerText),
			slack.Actions(
				slack.Button{
					Type:     "button",
					Text:     slack.Plain("Add volunteer hours"),
					ActionID: actionAddHours,
					Value:    member.ID,
					Style:    "primary",
				},
				slack.Button{
					Type:     "button",
					Text:     slack.Plain("View as user"),
					ActionID: actionViewAsUser,
					Value:    member.ID,
				},
			),
		)
	}

	blocks = append(blocks,
		slack.Divider(),
		slack.Header(fmt.Sprintf("Upcoming monthly rewards (%s)", now.Format("January"))),
	)
	for _, def := range r.catalog.Monthly {
		blocks = append(blocks, r.rewardTier(ctx, member.ID, internal.RewardMonthly, def, thisMonthHours, false, claimable)...)
	}

	blocks = append(blocks, slack.Header(fmt.Sprintf("Active monthly rewards (from %s) - (%vh)",
		internal.PreviousMonth(now).Format("January"), lastMonthHours)))

	activeCount := 0
	for _, def := range r.catalog.Monthly {
		tier := r.rewardTier(ctx, member.ID, internal.RewardMonthly, def, lastMonthHours, true, claimable)
		if len(tier) > 0 {
			blocks = append(blocks, tier...)
			activeCount++
		}
	}
	if activeCount == 0 {
		blocks = append(blocks, slack.Section(noActiveRewardsText))
	}

	blocks = append(blocks, slack.Divider(), slack.Header("Lifetime rewards"))
	for _, def := range r.catalog.Cumulative {
		blocks = append(blocks, r.rewardTier(ctx, member.ID, internal.RewardCumulative, def, total, false, claimable)...)
	}

	if err := slack.ValidateBlocks("home", blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// rewardTier renders a single tier against the member's current hours. With
// active set, only achieved tiers are rendered (and without progress text).
// Achieved claimable tiers carry a mark-as-claimed button.
func (r *Renderer) rewardTier(ctx context.Context, memberID string, category internal.RewardCategory, def internal.RewardDefinition, current float64, active, claimable bool) []slack.Block {
	required := float64(def.Threshold)
	achieved := current >= required

	if active && !achieved {
		return nil
	}

	var emoji string
	if achieved {
		emoji = ":tada:"
	} else {
		emoji = circleEmoji(current, required)
	}

	lines := fmt.Sprintf("*%s*", def.Title)
	if active {
		lines += fmt.Sprintf(" (%dh)", def.Threshold)
	} else if achieved {
		lines += fmt.Sprintf("\n%s %d/%dh", emoji, def.Threshold, def.Threshold)
	} else {
		lines += fmt.Sprintf("\n%s %v/%dh - %vh to go!", emoji, current, def.Threshold, required-current)
	}
	lines += "\n" + def.Description

	var block slack.Block
	if def.Image != "" {
		block = slack.SectionWithImage(lines, def.Image, def.Title)
	} else {
		block = slack.Section(lines)
	}
	blocks := []slack.Block{block}

	if achieved {
		claimed, err := r.claims.IsClaimed(ctx, memberID, def.Key(category))
		if err == nil && claimed {
			blocks = append(blocks, slack.Context(claimedNoteText))
		} else if def.Claim != "" {
			blocks = append(blocks, slack.Context(def.Claim))
			if claimable {
				claim := slack.Actions(slack.Button{
					Type:     "button",
					Text:     slack.Plain("Mark as claimed"),
					ActionID: actionClaimReward,
					Value:    def.Key(category),
				})
				claim.BlockID = "claim_" + def.Key(category)
				blocks = append(blocks, claim)
			}
		}
	}
	return blocks
}

// circleEmoji maps progress to the :circleN: emoji set, rounding down to the
// nearest 10%.
func circleEmoji(count, total float64) string {
	if total <= 0 {
		return ":circle0:"
	}
	percentage := int(count/total*10) * 10
	if percentage > 100 {
		percentage = 100
	}
	return fmt.Sprintf(":circle%d:", percentage)
}

// RewardNotification builds the congratulation message blocks for an unlock.
func RewardNotification(def internal.RewardDefinition, period string) []slack.Block {
	var text string
	if period == "cumulative" {
		text = fmt.Sprintf(":tada: You've unlocked the reward: *%s* for volunteering a total of %d hours!\nThank you for being a part of our community, we really appreciate your time and effort!", def.Title, def.Threshold)
	} else {
		text = fmt.Sprintf(":tada: You've unlocked the reward: *%s* for volunteering %d hours in %s!", def.Title, def.Threshold, period)
	}

	blocks := []slack.Block{slack.Section(text)}

	tier := fmt.Sprintf("*%s* (%dh)\n%s", def.Title, def.Threshold, def.Description)
	if def.Image != "" {
		blocks = append(blocks, slack.SectionWithImage(tier, def.Image, def.Title))
	} else {
		blocks = append(blocks, slack.Section(tier))
	}
	if def.Claim != "" {
		blocks = append(blocks, slack.Context(def.Claim))
	}
	return blocks
}

// AddHoursModal builds the admin hour-entry form.
func AddHoursModal(now time.Time) []slack.Block {
	note := slack.Input(blockNoteInput, "Note",
		slack.PlainTextInput{Type: "plain_text_input", ActionID: blockNoteInput},
		"Optional, shown to admins only")
	note.Optional = true

	return []slack.Block{
		slack.Section(addHoursExplainerText),
		slack.Input(blockVolunteerSelect, "Select volunteers",
			slack.MultiUsersSelect{Type: "multi_users_select", ActionID: blockVolunteerSelect},
			"Only volunteers who are linked to TidyHQ will actually receive hours"),
		slack.Input(blockDateSelect, "Date of volunteering",
			slack.DatePicker{Type: "datepicker", ActionID: blockDateSelect, InitialDate: now.Format("2006-01-02")},
			"We only actually store the month and year of volunteering, the exact day is discarded"),
		slack.Input(blockHoursInput, "Number of hours volunteered",
			slack.NumberInput{Type: "number_input", ActionID: blockHoursInput, MinValue: "1", MaxValue: "100"},
			"These hours will be added to *all* selected volunteers"),
		note,
	}
}

// ViewAsUserModal builds the admin user picker.
func ViewAsUserModal() []slack.Block {
	return []slack.Block{
		slack.Section("Select a user to view their volunteer dashboard:"),
		slack.Input(blockUserSelect, "User",
			slack.UsersSelect{
				Type:        "users_select",
				ActionID:    blockUserSelect,
				Placeholder: slack.Plain("Select a user"),
			}, ""),
	}
}
