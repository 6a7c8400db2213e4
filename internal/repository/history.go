package repository

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iago/ponto-whatsapp-back/internal/domain"
)

// HistoryRepository is the append-only delivery audit trail.
type HistoryRepository interface {
	// AppendBatch writes entries in bounded chunks, falling back to
	// row-at-a-time inserts when a chunk fails. Rows that succeed are never
	// lost or duplicated; only a fallback-row failure is a hard error.
	AppendBatch(ctx context.Context, entries []domain.HistoryEntry) error

	// Query filters entries; OR within a dimension, AND across dimensions,
	// newest-first by insertion order.
	Query(ctx context.Context, filter domain.HistoryFilter) ([]domain.HistoryEntry, error)

	// DistinctTeams lists every team ever seen, sorted.
	DistinctTeams(ctx context.Context) ([]string, error)
}

func validateHistoryEntry(entry domain.HistoryEntry) error {
	if strings.TrimSpace(entry.Team) == "" {
		return fmt.Errorf("history entry missing team")
	}
	if strings.TrimSpace(string(entry.Kind)) == "" {
		return fmt.Errorf("history entry missing report kind")
	}
	if strings.TrimSpace(string(entry.Status)) == "" {
		return fmt.Errorf("history entry missing status")
	}
	return nil
}

// prepareHistoryEntries validates the batch and stamps missing timestamps.
func prepareHistoryEntries(entries []domain.HistoryEntry) ([]domain.HistoryEntry, error) {
	prepared := make([]domain.HistoryEntry, 0, len(entries))
	now := time.Now().UTC()
	for i, entry := range entries {
		if err := validateHistoryEntry(entry); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if entry.SentAt.IsZero() {
			entry.SentAt = now
		}
		prepared = append(prepared, entry)
	}
	return prepared, nil
}

// historyWriter is the storage half of the chunked append: one transactional
// chunk insert plus a single-row insert used on the degraded path.
type historyWriter interface {
	insertChunk(ctx context.Context, entries []domain.HistoryEntry) error
	insertOne(ctx context.Context, entry domain.HistoryEntry) error
}

// appendChunked writes prepared entries in chunks of chunkSize. On a chunk
// failure every entry of that chunk is retried individually so a single bad
// row cannot sink its siblings.
func appendChunked(
	ctx context.Context,
	writer historyWriter,
	entries []domain.HistoryEntry,
	chunkSize int,
	logger *log.Logger,
) error {
	if chunkSize <= 0 {
		chunkSize = 100
	}

	failed := 0
	var lastErr error
	for start := 0; start < len(entries); start += chunkSize {
		end := start + chunkSize
		if end > len(entries) {
			end = len(entries)
		}
		chunk := entries[start:end]

		if err := writer.insertChunk(ctx, chunk); err == nil {
			continue
		} else if logger != nil {
			logger.Printf("history batch insert failed, falling back to row inserts rows=%d err=%v", len(chunk), err)
		}

		for _, entry := range chunk {
			if err := writer.insertOne(ctx, entry); err != nil {
				failed++
				lastErr = err
				if logger != nil {
					logger.Printf("history fallback insert failed team=%s person=%s err=%v", entry.Team, entry.Person, err)
				}
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("history append lost %d of %d rows: %w", failed, len(entries), lastErr)
	}
	return nil
}

func matchesFilter(entry domain.HistoryEntry, filter domain.HistoryFilter) bool {
	if len(filter.Teams) > 0 && !containsFold(filter.Teams, entry.Team) {
		return false
	}
	if len(filter.Kinds) > 0 && !containsFold(filter.Kinds, string(entry.Kind)) {
		return false
	}
	if filter.From != nil && dayOf(entry.SentAt).Before(dayOf(*filter.From)) {
		return false
	}
	if filter.To != nil && dayOf(entry.SentAt).After(dayOf(*filter.To)) {
		return false
	}
	return true
}

func containsFold(values []string, value string) bool {
	for _, item := range values {
		if strings.EqualFold(strings.TrimSpace(item), value) {
			return true
		}
	}
	return false
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MemoryHistoryRepository keeps the audit trail in memory.
type MemoryHistoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	entries []domain.HistoryEntry
}

func NewMemoryHistoryRepository() *MemoryHistoryRepository {
	return &MemoryHistoryRepository{nextID: 1}
}

func (r *MemoryHistoryRepository) AppendBatch(_ context.Context, entries []domain.HistoryEntry) error {
	prepared, err := prepareHistoryEntries(entries)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range prepared {
		entry.ID = r.nextID
		r.nextID++
		r.entries = append(r.entries, entry)
	}
	return nil
}

func (r *MemoryHistoryRepository) Query(_ context.Context, filter domain.HistoryFilter) ([]domain.HistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]domain.HistoryEntry, 0)
	for _, entry := range r.entries {
		if matchesFilter(entry, filter) {
			matched = append(matched, entry)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	return matched, nil
}

func (r *MemoryHistoryRepository) DistinctTeams(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, entry := range r.entries {
		seen[entry.Team] = struct{}{}
	}
	teams := make([]string, 0, len(seen))
	for team := range seen {
		teams = append(teams, team)
	}
	sort.Strings(teams)
	return teams, nil
}
