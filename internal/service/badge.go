package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Perth-Artifactory/Volunteer-Tokens/internal"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/tidyhq"
)

// GrantVolunteerBadge is the only reward grant hook currently defined.
const GrantVolunteerBadge = "volunteer_badge"

// badgeLayout is the YYMM format the badge field stores, comma separated.
const badgeLayout = "0601"

// Badge writes a volunteer badge back to a TidyHQ contact custom field: a
// sorted, comma-separated list of YYMM months the member earned a badge in.
type Badge struct {
	client  *tidyhq.Client
	fieldID string
	logger  internal.Logger
}

func NewBadge(client *tidyhq.Client, fieldID string, logger internal.Logger) *Badge {
	return &Badge{client: client, fieldID: fieldID, logger: logger}
}

// Apply records a badge for the month of the given date. Idempotent: a month
// already present is left alone. Reads the contact live rather than from the
// cache so a concurrent edit in TidyHQ is not clobbered with stale data.
func (b *Badge) Apply(ctx context.Context, memberID string, date time.Time) error {
	if b.fieldID == "" {
		return nil
	}

	contactID, err := strconv.Atoi(memberID)
	if err != nil {
		return fmt.Errorf("%w: bad member id %q", internal.ErrInvalidInput, memberID)
	}

	contact, err := b.client.Contact(ctx, contactID)
	if err != nil {
		return fmt.Errorf("%w: %v", internal.ErrExternalService, err)
	}
	current, _ := contact.CustomFieldValue(b.fieldID)

	months, alreadyBadged, err := parseBadgeMonths(current, date)
	if err != nil {
		return err
	}
	if alreadyBadged {
		b.logger.Infof("volunteer badge already set for member %s in %s", memberID, date.Format(badgeLayout))
		return nil
	}

	months = append(months, date)
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	parts := make([]string, len(months))
	for i, m := range months {
		parts[i] = m.Format(badgeLayout)
	}
	updated := strings.Join(parts, ",")

	b.logger.Infof("updating volunteer badge for member %s: %q -> %q", memberID, current, updated)
	if err := b.client.SetCustomField(ctx, contactID, b.fieldID, updated); err != nil {
		return fmt.Errorf("%w: %v", internal.ErrExternalService, err)
	}
	return nil
}

// parseBadgeMonths parses the stored list and reports whether the badge for
// date's month is already present.
func parseBadgeMonths(field string, date time.Time) ([]time.Time, bool, error) {
	var months []time.Time
	badged := false

	for _, part := range strings.Split(field, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m, err := time.Parse(badgeLayout, part)
		if err != nil {
			return nil, false, fmt.Errorf("unparseable badge entry %q: %w", part, err)
		}
		months = append(months, m)

		if m.Year() == date.Year() && m.Month() == date.Month() {
			badged = true
		}
	}
	return months, badged, nil
}
