package app

import (
	"context"
	"errors"

	"github.com/Perth-Artifactory/Volunteer-Tokens/internal"
	"github.com/Perth-Artifactory/Volunteer-Tokens/internal/slack"
)

// PreWarm renders and publishes the app home for every workspace user, so
// dashboards are current before anyone opens them. Intended to be run from an
// external scheduler as a one-shot. Per-user failures are logged and skipped;
// only the initial user listing is fatal.
func (d *Dispatcher) PreWarm(ctx context.Context) error {
	users, err := d.slack.UsersList(ctx)
	if err != nil {
		return err
	}

	// Unlinked users all get the same view, render it once.
	genericBlocks, err := d.renderer.Home(ctx, nil, false)
	if err != nil {
		return err
	}

	published := 0
	for _, user := range users {
		if user.Deleted || user.IsBot || user.ID == "USLACKBOT" {
			continue
		}

		member, err := d.cache.Resolve(ctx, user.ID)
		if err != nil && !errors.Is(err, internal.ErrNotFound) {
			d.logger.Warnf("skipping home pre-warm for %s: %v", user.ID, err)
			continue
		}

		blocks := genericBlocks
		if member != nil {
			if err := d.ledger.EnsureMember(ctx, member.ID, member.Name); err != nil {
				d.logger.Warnf("skipping home pre-warm for %s: %v", user.ID, err)
				continue
			}
			blocks, err = d.renderer.Home(ctx, member, false)
			if err != nil {
				d.logger.Warnf("skipping home pre-warm for %s: %v", user.ID, err)
				continue
			}
		}

		if err := d.slack.PublishHome(ctx, user.ID, slack.HomeView(blocks)); err != nil {
			d.logger.Warnf("could not publish home for %s: %v", user.ID, err)
			continue
		}
		published++
	}

	d.logger.Infof("pre-warmed %d of %d user homes", published, len(users))
	return nil
}
