package rewards

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/Perth-Artifactory/Volunteer-Tokens/internal"
)

// Catalog is the static reward catalog: tiered definitions for the monthly
// and cumulative categories, sorted ascending by threshold after loading.
type Catalog struct {
	Monthly    []internal.RewardDefinition `json:"monthly"`
	Cumulative []internal.RewardDefinition `json:"cumulative"`
}

// Category returns the definitions for a category, lowest threshold first.
func (c *Catalog) Category(category internal.RewardCategory) []internal.RewardDefinition {
	switch category {
	case internal.RewardMonthly:
		return c.Monthly
	case internal.RewardCumulative:
		return c.Cumulative
	}
	return nil
}

// LoadCatalog reads and validates the reward catalog document.
func LoadCatalog(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s not found", path)
		}
		return nil, fmt.Errorf("opening rewards catalog: %w", err)
	}
	defer f.Close()

	var c Catalog
	if err := json.NewDecoder(f).Decode(&c); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rewards catalog %s: %w", path, err)
	}

	sort.Slice(c.Monthly, func(i, j int) bool { return c.Monthly[i].Threshold < c.Monthly[j].Threshold })
	sort.Slice(c.Cumulative, func(i, j int) bool { return c.Cumulative[i].Threshold < c.Cumulative[j].Threshold })

	return &c, nil
}

func (c *Catalog) Validate() error {
	for _, category := range []internal.RewardCategory{internal.RewardMonthly, internal.RewardCumulative} {
		seen := make(map[int]string)
		for _, def := range c.Category(category) {
			if def.Threshold <= 0 {
				return fmt.Errorf("%s reward %q: threshold must be positive", category, def.Title)
			}
			if def.Title == "" {
				return fmt.Errorf("%s reward at %dh: title is required", category, def.Threshold)
			}
			if def.Description == "" {
				return fmt.Errorf("%s reward %q: description is required", category, def.Title)
			}
			if other, dup := seen[def.Threshold]; dup {
				return fmt.Errorf("%s rewards %q and %q share threshold %dh", category, other, def.Title, def.Threshold)
			}
			seen[def.Threshold] = def.Title
		}
	}
	return nil
}
