package rewards

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Perth-Artifactory/Volunteer-Tokens/internal"
)

func testCatalog() *Catalog {
	return &Catalog{
		Monthly: []internal.RewardDefinition{
			{Threshold: 10, Title: "Ten"},
			{Threshold: 25, Title: "TwentyFive"},
			{Threshold: 50, Title: "Fifty"},
		},
		Cumulative: []internal.RewardDefinition{
			{Threshold: 100, Title: "Hundred"},
		},
	}
}

func titles(defs []internal.RewardDefinition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.Title
	}
	return out
}

func TestEligibleIsClosedDownward(t *testing.T) {
	c := testCatalog()

	// 30 hours qualifies for the 25 and 10 tiers, highest first.
	got := Eligible(c, internal.RewardMonthly, 30)
	assert.Equal(t, []string{"TwentyFive", "Ten"}, titles(got))

	// Exactly on a threshold qualifies.
	got = Eligible(c, internal.RewardMonthly, 10)
	assert.Equal(t, []string{"Ten"}, titles(got))

	// Just below a threshold does not.
	assert.Empty(t, Eligible(c, internal.RewardMonthly, 9.5))

	// Categories are independent.
	assert.Empty(t, Eligible(c, internal.RewardCumulative, 99))
	assert.Equal(t, []string{"Hundred"}, titles(Eligible(c, internal.RewardCumulative, 100)))
}

func TestUnlockedReturnsNewlyCrossedTiers(t *testing.T) {
	c := testCatalog()

	// 8 + 20 crosses 10 and 25, lowest first.
	got := Unlocked(c, internal.RewardMonthly, 8, 20)
	assert.Equal(t, []string{"Ten", "TwentyFive"}, titles(got))

	// Already past a tier: it is not re-announced.
	got = Unlocked(c, internal.RewardMonthly, 10, 5)
	assert.Empty(t, titles(got))

	// Landing exactly on a threshold unlocks it.
	got = Unlocked(c, internal.RewardMonthly, 20, 5)
	assert.Equal(t, []string{"TwentyFive"}, titles(got))

	// No movement, no unlocks.
	assert.Empty(t, Unlocked(c, internal.RewardMonthly, 30, 0))
}
