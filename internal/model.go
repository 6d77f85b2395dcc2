package internal

import (
	"fmt"
	"time"
)

// MemberRecord is a TidyHQ contact as held in the identity cache. Records are
// replaced wholesale on cache refresh and never mutated in place.
type MemberRecord struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	SlackID string   `json:"slack_id,omitempty"`
	Groups  []string `json:"groups,omitempty"`
}

// InAnyGroup reports whether the member belongs to at least one of the given
// TidyHQ group ids.
func (m *MemberRecord) InAnyGroup(groupIDs []string) bool {
	for _, want := range groupIDs {
		for _, have := range m.Groups {
			if have == want {
				return true
			}
		}
	}
	return false
}

// HourEntry is a single volunteer hours record. Entries are append-only; the
// ledger never mutates one after it has been acknowledged.
type HourEntry struct {
	ID         string    `json:"id"`
	Hours      float64   `json:"hours"`
	Month      string    `json:"month"` // YYYY-MM bucket, the exact day is discarded
	Note       string    `json:"note,omitempty"`
	RecordedBy string    `json:"recorded_by,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// MemberLedger holds every entry recorded against a single member.
type MemberLedger struct {
	Name    string      `json:"name"`
	Entries []HourEntry `json:"entries"`
}

// RewardCategory selects which total a reward tier is measured against.
type RewardCategory string

const (
	RewardMonthly    RewardCategory = "monthly"
	RewardCumulative RewardCategory = "cumulative"
)

// RewardDefinition is one tier from the reward catalog. The catalog is loaded
// once at startup and read-only afterwards.
type RewardDefinition struct {
	Threshold   int    `json:"threshold"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
	Claim       string `json:"claim,omitempty"`
	Grant       string `json:"grant,omitempty"`
}

// Key identifies a tier within a category, used by the claims store.
func (r RewardDefinition) Key(category RewardCategory) string {
	return fmt.Sprintf("%s:%d", category, r.Threshold)
}

const monthLayout = "2006-01"

// MonthOf returns the YYYY-MM bucket for a timestamp.
func MonthOf(t time.Time) string {
	return t.Format(monthLayout)
}

// ParseMonth parses a YYYY-MM bucket back into the first instant of that month.
func ParseMonth(s string) (time.Time, error) {
	return time.Parse(monthLayout, s)
}

// PreviousMonth returns the first day of the month before t.
func PreviousMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location()).AddDate(0, -1, 0)
}
