package storage

import (
	"context"

	"github.com/Perth-Artifactory/Volunteer-Tokens/internal"
)

// LedgerRepository stores volunteer hour entries per member. Every successful
// Record is durably persisted before it returns.
type LedgerRepository interface {
	// EnsureMember creates an empty ledger for the member if none exists.
	EnsureMember(ctx context.Context, memberID, name string) error

	// Record validates and appends an entry, returning the entry id.
	Record(ctx context.Context, memberID, name string, entry internal.HourEntry) (string, error)

	// MonthlyTotal sums the member's hours within one YYYY-MM bucket.
	MonthlyTotal(ctx context.Context, memberID, month string) (float64, error)

	// CumulativeTotal sums every hour ever recorded for the member.
	CumulativeTotal(ctx context.Context, memberID string) (float64, error)

	// MonthTotals returns the member's hours keyed by YYYY-MM bucket.
	MonthTotals(ctx context.Context, memberID string) (map[string]float64, error)

	// Entries returns the member's entries in recorded order.
	Entries(ctx context.Context, memberID string) ([]internal.HourEntry, error)
}

// ClaimRepository tracks which reward tiers a member has already claimed.
// Eligibility computation never consults it; only presentation does.
type ClaimRepository interface {
	IsClaimed(ctx context.Context, memberID, rewardKey string) (bool, error)
	Claim(ctx context.Context, memberID, rewardKey string) error
	Claimed(ctx context.Context, memberID string) ([]string, error)
}
