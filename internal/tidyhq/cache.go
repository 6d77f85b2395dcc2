package tidyhq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/Perth-Artifactory/Volunteer-Tokens/internal"
)

// Snapshot is the persisted identity cache: the full member/group picture
// fetched from TidyHQ at one point in time. Refreshes replace the whole
// snapshot, never merge into it.
type Snapshot struct {
	FetchedAt time.Time                `json:"fetched_at"`
	Members   []internal.MemberRecord  `json:"members"`
	Groups    map[string]GroupSnapshot `json:"groups"`
}

type GroupSnapshot struct {
	Label   string   `json:"label"`
	Members []string `json:"members"`
}

// Cache is a read-through, time-expiring view of TidyHQ members and groups,
// persisted to disk so a restart can serve stale data while TidyHQ is down.
type Cache struct {
	client       *Client
	expiry       time.Duration
	path         string
	slackFieldID string
	logger       internal.Logger

	mu   sync.Mutex
	snap *Snapshot
}

func NewCache(client *Client, expiry time.Duration, path, slackFieldID string, logger internal.Logger) (*Cache, error) {
	c := &Cache{
		client:       client,
		expiry:       expiry,
		path:         path,
		slackFieldID: slackFieldID,
		logger:       logger,
	}
	if err := c.load(); err != nil {
		return nil, fmt.Errorf("cache: failed to load %s: %w", path, err)
	}
	return c, nil
}

func (c *Cache) load() error {
	file, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	var snap Snapshot
	if err := json.NewDecoder(file).Decode(&snap); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	c.snap = &snap
	c.logger.Infof("cache: loaded snapshot from %s: %d members, %d groups (fetched %s)",
		c.path, len(snap.Members), len(snap.Groups), snap.FetchedAt.Format(time.RFC3339))
	return nil
}

func (c *Cache) persist() error {
	return internal.AtomicWriteJSON(c.path, c.snap)
}

func (c *Cache) fresh() bool {
	return c.snap != nil && time.Since(c.snap.FetchedAt) < c.expiry
}

// Warm guarantees a usable snapshot. Called once at startup: a refresh
// failure with no prior snapshot is fatal for the process.
func (c *Cache) Warm(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fresh() {
		return nil
	}
	if err := c.refreshLocked(ctx); err != nil {
		if c.snap == nil {
			return fmt.Errorf("%w: no cached snapshot and refresh failed: %v", internal.ErrExternalService, err)
		}
		c.logger.Warnf("cache: refresh failed, serving stale snapshot from %s: %v",
			c.snap.FetchedAt.Format(time.RFC3339), err)
	}
	return nil
}

// Refresh forces a full snapshot rebuild regardless of expiry.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.refreshLocked(ctx); err != nil {
		return fmt.Errorf("%w: %v", internal.ErrExternalService, err)
	}
	return nil
}

// refreshLocked rebuilds the snapshot from TidyHQ. The caller holds c.mu.
// The new snapshot only replaces the old one once fully assembled, so
// readers see either the previous or the complete new state.
func (c *Cache) refreshLocked(ctx context.Context) error {
	contacts, err := c.client.Contacts(ctx)
	if err != nil {
		return err
	}
	groups, err := c.client.Groups(ctx)
	if err != nil {
		return err
	}

	memberGroups := make(map[string][]string)
	groupSnaps := make(map[string]GroupSnapshot, len(groups))
	for _, g := range groups {
		gc, err := c.client.GroupContacts(ctx, g.ID)
		if err != nil {
			return err
		}
		gid := strconv.Itoa(g.ID)
		snap := GroupSnapshot{Label: g.Label}
		for _, contact := range gc {
			cid := strconv.Itoa(contact.ID)
			snap.Members = append(snap.Members, cid)
			memberGroups[cid] = append(memberGroups[cid], gid)
		}
		groupSnaps[gid] = snap
	}

	members := make([]internal.MemberRecord, 0, len(contacts))
	for _, contact := range contacts {
		cid := strconv.Itoa(contact.ID)
		slackID, _ := contact.CustomFieldValue(c.slackFieldID)
		members = append(members, internal.MemberRecord{
			ID:      cid,
			Name:    contact.FormatName(),
			SlackID: slackID,
			Groups:  memberGroups[cid],
		})
	}

	c.snap = &Snapshot{FetchedAt: time.Now(), Members: members, Groups: groupSnaps}
	if err := c.persist(); err != nil {
		c.logger.Errorf("cache: failed to persist snapshot: %v", err)
	}
	c.logger.Infof("cache: refreshed: %d members, %d groups", len(members), len(groupSnaps))
	return nil
}

// ensureFresh refreshes at most once per expiry window. Concurrent callers
// queue on the mutex and find the snapshot already fresh on re-check.
func (c *Cache) ensureFresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fresh() {
		return nil
	}
	if err := c.refreshLocked(ctx); err != nil {
		if c.snap == nil {
			return fmt.Errorf("%w: %v", internal.ErrExternalService, err)
		}
		c.logger.Warnf("cache: refresh failed, serving stale snapshot: %v", err)
	}
	return nil
}

// Resolve maps a Slack user id to the member it is linked to.
func (c *Cache) Resolve(ctx context.Context, slackID string) (*internal.MemberRecord, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.snap.Members {
		if c.snap.Members[i].SlackID != "" && c.snap.Members[i].SlackID == slackID {
			m := c.snap.Members[i]
			return &m, nil
		}
	}
	return nil, fmt.Errorf("%w: no member linked to slack user %s", internal.ErrNotFound, slackID)
}

// Member looks a member up by TidyHQ contact id.
func (c *Cache) Member(ctx context.Context, memberID string) (*internal.MemberRecord, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.snap.Members {
		if c.snap.Members[i].ID == memberID {
			m := c.snap.Members[i]
			return &m, nil
		}
	}
	return nil, fmt.Errorf("%w: no member with id %s", internal.ErrNotFound, memberID)
}

// MemberOfAny reports whether the member belongs to any of the given groups.
func (c *Cache) MemberOfAny(ctx context.Context, memberID string, groupIDs []string) (bool, error) {
	m, err := c.Member(ctx, memberID)
	if err != nil {
		return false, err
	}
	return m.InAnyGroup(groupIDs), nil
}

// FetchedAt reports when the current snapshot was taken.
func (c *Cache) FetchedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap == nil {
		return time.Time{}
	}
	return c.snap.FetchedAt
}
