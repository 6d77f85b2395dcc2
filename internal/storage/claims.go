package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/Perth-Artifactory/Volunteer-Tokens/internal"
)

// FileClaims stores claimed reward keys per member in a JSON document. When
// constructed with an empty path it holds claims in memory only, which leaves
// every tier unclaimed — claim tracking is a configuration choice.
type FileClaims struct {
	claims map[string][]string
	mu     sync.RWMutex
	path   string
}

func NewFileClaims(path string) (*FileClaims, error) {
	c := &FileClaims{claims: make(map[string][]string), path: path}
	if path == "" {
		return c, nil
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("claims: failed to load %s: %w", path, err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&c.claims); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("claims: failed to parse %s: %w", path, err)
	}
	return c, nil
}

func (c *FileClaims) IsClaimed(ctx context.Context, memberID, rewardKey string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, k := range c.claims[memberID] {
		if k == rewardKey {
			return true, nil
		}
	}
	return false, nil
}

func (c *FileClaims) Claim(ctx context.Context, memberID, rewardKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range c.claims[memberID] {
		if k == rewardKey {
			return nil
		}
	}
	c.claims[memberID] = append(c.claims[memberID], rewardKey)

	if c.path == "" {
		return nil
	}
	if err := internal.AtomicWriteJSON(c.path, c.claims); err != nil {
		return fmt.Errorf("%w: %v", internal.ErrPersistence, err)
	}
	return nil
}

func (c *FileClaims) Claimed(ctx context.Context, memberID string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, len(c.claims[memberID]))
	copy(keys, c.claims[memberID])
	return keys, nil
}

var _ ClaimRepository = (*FileClaims)(nil)
