package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iago/ponto-whatsapp-back/internal/domain"
)

// ReportsRepository is the report ledger: one record per normalized report
// key, holding cumulative totals and the set of teams still pending.
type ReportsRepository interface {
	// Consolidate upserts the record for key after a dispatch run. The
	// pending-team set is fully replaced, not merged: it reflects only the
	// latest run's residual failures. A stale consolidation of an older run
	// therefore wins over a newer one; that mirrors the established ledger
	// behavior and keeps retries scoped to the most recent result.
	Consolidate(ctx context.Context, result domain.ReportRecord) error

	// Status looks up by the normalized key of rawName. ErrNotFound when the
	// report was never consolidated.
	Status(ctx context.Context, rawName string) (*domain.ReportRecord, error)
}

// ResolveStatus computes the ledger status from run totals.
func ResolveStatus(total, success, failure int) domain.ReportStatus {
	if failure == 0 && success >= total {
		return domain.ReportStatusComplete
	}
	return domain.ReportStatusPartial
}

// MemoryReportsRepository keeps the ledger in memory.
type MemoryReportsRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.ReportRecord
}

func NewMemoryReportsRepository() *MemoryReportsRepository {
	return &MemoryReportsRepository{
		records: make(map[string]*domain.ReportRecord),
	}
}

func (r *MemoryReportsRepository) Consolidate(_ context.Context, result domain.ReportRecord) error {
	key := domain.NormalizeReportKey(result.Key)
	if key == "" {
		return ErrNotFound
	}

	status := ResolveStatus(result.Total, result.Success, result.Failure)
	pending := append([]string(nil), result.PendingTeams...)
	if status == domain.ReportStatusComplete {
		pending = nil
	}
	sort.Strings(pending)

	record := &domain.ReportRecord{
		Key:          key,
		DisplayName:  result.DisplayName,
		Kind:         result.Kind,
		Status:       status,
		Total:        result.Total,
		Success:      result.Success,
		Failure:      result.Failure,
		UpdatedAt:    time.Now().UTC(),
		PendingTeams: pending,
	}

	r.mu.Lock()
	r.records[key] = record
	r.mu.Unlock()
	return nil
}

func (r *MemoryReportsRepository) Status(_ context.Context, rawName string) (*domain.ReportRecord, error) {
	key := domain.NormalizeReportKey(rawName)

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *record
	clone.PendingTeams = append([]string(nil), record.PendingTeams...)
	return &clone, nil
}
