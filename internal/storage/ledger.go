package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Perth-Artifactory/Volunteer-Tokens/internal"
)

// FileLedger is a JSON-document-backed hour ledger. The whole document is
// rewritten through a temp-file-then-rename on every mutation so readers
// (including the cron process) never observe a partial write.
type FileLedger struct {
	members map[string]*internal.MemberLedger
	mu      sync.RWMutex
	path    string
	logger  internal.Logger
}

func NewFileLedger(path string, logger internal.Logger) (*FileLedger, error) {
	l := &FileLedger{
		members: make(map[string]*internal.MemberLedger),
		path:    path,
		logger:  logger,
	}
	if err := l.load(); err != nil {
		return nil, fmt.Errorf("ledger: failed to load %s: %w", path, err)
	}
	return l, nil
}

func (l *FileLedger) load() error {
	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Warnf("ledger: %s not found, starting empty", l.path)
			return l.persist()
		}
		return err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&l.members); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	l.logger.Infof("ledger: loaded hours for %d volunteers", len(l.members))
	return nil
}

// persist writes the full document. Callers hold at least a read lock.
func (l *FileLedger) persist() error {
	if err := internal.AtomicWriteJSON(l.path, l.members); err != nil {
		return fmt.Errorf("%w: %v", internal.ErrPersistence, err)
	}
	return nil
}

func (l *FileLedger) EnsureMember(ctx context.Context, memberID, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.members[memberID]; ok {
		return nil
	}
	l.members[memberID] = &internal.MemberLedger{Name: name, Entries: []internal.HourEntry{}}
	if err := l.persist(); err != nil {
		delete(l.members, memberID)
		return err
	}
	return nil
}

func (l *FileLedger) Record(ctx context.Context, memberID, name string, entry internal.HourEntry) (string, error) {
	if entry.Hours <= 0 {
		return "", fmt.Errorf("%w: hours must be positive, got %v", internal.ErrInvalidInput, entry.Hours)
	}
	if _, err := internal.ParseMonth(entry.Month); err != nil {
		return "", fmt.Errorf("%w: bad month bucket %q", internal.ErrInvalidInput, entry.Month)
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ledger, ok := l.members[memberID]
	if !ok {
		ledger = &internal.MemberLedger{Name: name, Entries: []internal.HourEntry{}}
		l.members[memberID] = ledger
	}
	ledger.Entries = append(ledger.Entries, entry)

	if err := l.persist(); err != nil {
		// The entry was not acknowledged, keep memory consistent with disk.
		ledger.Entries = ledger.Entries[:len(ledger.Entries)-1]
		if !ok {
			delete(l.members, memberID)
		}
		return "", err
	}
	return entry.ID, nil
}

func (l *FileLedger) MonthlyTotal(ctx context.Context, memberID, month string) (float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ledger, ok := l.members[memberID]
	if !ok {
		return 0, nil
	}
	var total float64
	for _, e := range ledger.Entries {
		if e.Month == month {
			total += e.Hours
		}
	}
	return total, nil
}

func (l *FileLedger) CumulativeTotal(ctx context.Context, memberID string) (float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ledger, ok := l.members[memberID]
	if !ok {
		return 0, nil
	}
	var total float64
	for _, e := range ledger.Entries {
		total += e.Hours
	}
	return total, nil
}

func (l *FileLedger) MonthTotals(ctx context.Context, memberID string) (map[string]float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	totals := make(map[string]float64)
	ledger, ok := l.members[memberID]
	if !ok {
		return totals, nil
	}
	for _, e := range ledger.Entries {
		totals[e.Month] += e.Hours
	}
	return totals, nil
}

func (l *FileLedger) Entries(ctx context.Context, memberID string) ([]internal.HourEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ledger, ok := l.members[memberID]
	if !ok {
		return []internal.HourEntry{}, nil
	}
	entries := make([]internal.HourEntry, len(ledger.Entries))
	copy(entries, ledger.Entries)
	return entries, nil
}

// MemberCount reports how many members have a ledger entry.
func (l *FileLedger) MemberCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.members)
}

var _ LedgerRepository = (*FileLedger)(nil)
