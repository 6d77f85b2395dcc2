package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Perth-Artifactory/Volunteer-Tokens/internal"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/rewards"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/storage"
)

var validate = validator.New()

// Resolver maps Slack user ids to members. Implemented by the TidyHQ cache.
type Resolver interface {
	Resolve(ctx context.Context, slackID string) (*internal.MemberRecord, error)
}

// RecordRequest is an admin hour submission, covering one or more volunteers.
type RecordRequest struct {
	Volunteers []string `validate:"required,min=1,dive,required"` // Slack user ids
	Hours      float64  `validate:"required,gt=0,lte=100"`
	Date       string   `validate:"required,datetime=2006-01-02"`
	Note       string   `validate:"omitempty,max=500"`
	RecordedBy string   `validate:"required"` // Slack id of the submitting admin
}

func ValidateRecordRequest(req *RecordRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", internal.ErrInvalidInput, err)
	}
	return nil
}

// VolunteerResult is the per-volunteer outcome of a Record call. The
// dispatcher turns these into DMs, admin-channel messages and home updates.
type VolunteerResult struct {
	SlackID           string
	Member            *internal.MemberRecord
	EntryID           string
	NotFound          bool
	MonthlyUnlocks    []internal.RewardDefinition
	CumulativeUnlocks []internal.RewardDefinition
}

// Hours records volunteer hours and works out which reward tiers each
// addition unlocked.
type Hours struct {
	ledger   storage.LedgerRepository
	resolver Resolver
	catalog  *rewards.Catalog
	badge    *Badge
	logger   internal.Logger
	now      func() time.Time
}

func NewHours(ledger storage.LedgerRepository, resolver Resolver, catalog *rewards.Catalog, badge *Badge, logger internal.Logger) *Hours {
	return &Hours{
		ledger:   ledger,
		resolver: resolver,
		catalog:  catalog,
		badge:    badge,
		logger:   logger,
		now:      time.Now,
	}
}

// Record validates the request and appends an hour entry for every volunteer
// that resolves to a member. Unresolvable volunteers are reported in the
// results rather than aborting the batch; a ledger persistence failure does
// abort, since durability is the one hard guarantee.
func (h *Hours) Record(ctx context.Context, req RecordRequest) ([]VolunteerResult, error) {
	if err := ValidateRecordRequest(&req); err != nil {
		return nil, err
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: bad date %q", internal.ErrInvalidInput, req.Date)
	}
	month := internal.MonthOf(date)

	results := make([]VolunteerResult, 0, len(req.Volunteers))
	for _, slackID := range req.Volunteers {
		result := VolunteerResult{SlackID: slackID}

		member, err := h.resolver.Resolve(ctx, slackID)
		if err != nil {
			if errors.Is(err, internal.ErrNotFound) {
				h.logger.Warnf("could not find a linked member for slack user %s", slackID)
				result.NotFound = true
				results = append(results, result)
				continue
			}
			return nil, err
		}
		result.Member = member

		monthBefore, err := h.ledger.MonthlyTotal(ctx, member.ID, month)
		if err != nil {
			return nil, err
		}
		totalBefore, err := h.ledger.CumulativeTotal(ctx, member.ID)
		if err != nil {
			return nil, err
		}

		// Unlock detection uses the totals as they were before this entry.
		result.MonthlyUnlocks = rewards.Unlocked(h.catalog, internal.RewardMonthly, monthBefore, req.Hours)
		result.CumulativeUnlocks = rewards.Unlocked(h.catalog, internal.RewardCumulative, totalBefore, req.Hours)

		entryID, err := h.ledger.Record(ctx, member.ID, member.Name, internal.HourEntry{
			Hours:      req.Hours,
			Month:      month,
			Note:       req.Note,
			RecordedBy: req.RecordedBy,
			RecordedAt: h.now(),
		})
		if err != nil {
			return nil, err
		}
		result.EntryID = entryID

		h.applyGrants(ctx, member.ID, date, result.MonthlyUnlocks)
		h.applyGrants(ctx, member.ID, date, result.CumulativeUnlocks)

		h.logger.Infof("added %vh in %s for member %s (slack %s) by %s",
			req.Hours, month, member.ID, slackID, req.RecordedBy)
		results = append(results, result)
	}
	return results, nil
}

// applyGrants runs grant hooks attached to newly unlocked tiers, monthly or
// cumulative. The badge grant is idempotent per month, so a tier from each
// category unlocking in the same entry applies once. Grant failures are
// logged, not fatal: the hours are already safely recorded.
func (h *Hours) applyGrants(ctx context.Context, memberID string, date time.Time, unlocked []internal.RewardDefinition) {
	if h.badge == nil {
		return
	}
	for _, def := range unlocked {
		if def.Grant != GrantVolunteerBadge {
			continue
		}
		if err := h.badge.Apply(ctx, memberID, date); err != nil {
			h.logger.Errorf("failed to apply volunteer badge for member %s: %v", memberID, err)
		}
	}
}
