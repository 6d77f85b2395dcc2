package rewards

import (
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal"
)

// Eligible returns every tier the member qualifies for in a category: all
// definitions whose threshold is at or below the relevant total, highest
// threshold first. Higher totals always imply the lower tiers too; claim
// status is deliberately not consulted here.
func Eligible(c *Catalog, category internal.RewardCategory, total float64) []internal.RewardDefinition {
	defs := c.Category(category)

	var eligible []internal.RewardDefinition
	for i := len(defs) - 1; i >= 0; i-- {
		if float64(defs[i].Threshold) <= total {
			eligible = append(eligible, defs[i])
		}
	}
	return eligible
}

// Unlocked returns the tiers newly crossed by adding `added` hours to a total
// of `before`: every definition with before < threshold <= before+added,
// lowest threshold first. Drives congratulation notifications.
func Unlocked(c *Catalog, category internal.RewardCategory, before, added float64) []internal.RewardDefinition {
	after := before + added

	var unlocked []internal.RewardDefinition
	for _, def := range c.Category(category) {
		t := float64(def.Threshold)
		if before < t && t <= after {
			unlocked = append(unlocked, def)
		}
	}
	return unlocked
}
