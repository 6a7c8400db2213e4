package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iago/ponto-whatsapp-back/internal/domain"
)

func entry(team, person string) domain.HistoryEntry {
	return domain.HistoryEntry{
		Team:   team,
		Kind:   domain.ReportKindAuditoria,
		Status: domain.OutcomeSuccess,
		Person: person,
		Reason: "Sem registro",
	}
}

func TestMemoryHistoryAppendAndQuery(t *testing.T) {
	repo := NewMemoryHistoryRepository()
	ctx := context.Background()

	entries := []domain.HistoryEntry{
		entry("A1", "Maria"),
		entry("B2", "João"),
		entry("A1", "Ana"),
	}
	if err := repo.AppendBatch(ctx, entries); err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}

	all, err := repo.Query(ctx, domain.HistoryFilter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	// newest-first by insertion order
	if all[0].Person != "Ana" || all[2].Person != "Maria" {
		t.Fatalf("unexpected order: %v", all)
	}

	onlyA1, err := repo.Query(ctx, domain.HistoryFilter{Teams: []string{"a1"}})
	if err != nil {
		t.Fatalf("Query teams: %v", err)
	}
	if len(onlyA1) != 2 {
		t.Fatalf("expected 2 A1 entries, got %d", len(onlyA1))
	}

	teams, err := repo.DistinctTeams(ctx)
	if err != nil {
		t.Fatalf("DistinctTeams: %v", err)
	}
	if len(teams) != 2 || teams[0] != "A1" || teams[1] != "B2" {
		t.Fatalf("unexpected teams: %v", teams)
	}
}

func TestMemoryHistoryValidation(t *testing.T) {
	repo := NewMemoryHistoryRepository()
	bad := domain.HistoryEntry{Kind: domain.ReportKindAuditoria, Status: domain.OutcomeSuccess}
	if err := repo.AppendBatch(context.Background(), []domain.HistoryEntry{bad}); err == nil {
		t.Fatal("expected validation error for empty team")
	}
}

func TestMemoryHistoryDateFilter(t *testing.T) {
	repo := NewMemoryHistoryRepository()
	ctx := context.Background()

	day := func(offset int) time.Time {
		return time.Date(2024, 4, 10+offset, 12, 0, 0, 0, time.UTC)
	}
	for i := 0; i < 3; i++ {
		item := entry("A1", "Maria")
		item.SentAt = day(i)
		if err := repo.AppendBatch(ctx, []domain.HistoryEntry{item}); err != nil {
			t.Fatal(err)
		}
	}

	from := day(1)
	to := day(1)
	got, err := repo.Query(ctx, domain.HistoryFilter{From: &from, To: &to})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || !got[0].SentAt.Equal(day(1)) {
		t.Fatalf("unexpected result: %v", got)
	}
}

// fakeWriter drives the chunk/fallback path without a database.
type fakeWriter struct {
	mu          sync.Mutex
	failChunks  bool
	failPersons map[string]bool
	rows        []domain.HistoryEntry
}

func (w *fakeWriter) insertChunk(_ context.Context, entries []domain.HistoryEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failChunks {
		return errors.New("chunk write refused")
	}
	w.rows = append(w.rows, entries...)
	return nil
}

func (w *fakeWriter) insertOne(_ context.Context, item domain.HistoryEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failPersons[item.Person] {
		return errors.New("row write refused")
	}
	w.rows = append(w.rows, item)
	return nil
}

func TestAppendChunkedFallbackPreservesRows(t *testing.T) {
	entries := []domain.HistoryEntry{
		entry("A1", "Maria"),
		entry("A1", "João"),
		entry("B2", "Ana"),
	}
	prepared, err := prepareHistoryEntries(entries)
	if err != nil {
		t.Fatal(err)
	}

	writer := &fakeWriter{failChunks: true, failPersons: map[string]bool{"João": true}}
	err = appendChunked(context.Background(), writer, prepared, 2, nil)
	if err == nil {
		t.Fatal("expected hard error when a fallback row fails")
	}

	// rows that individually succeeded are present exactly once
	if len(writer.rows) != 2 {
		t.Fatalf("expected 2 surviving rows, got %d", len(writer.rows))
	}
	seen := map[string]int{}
	for _, row := range writer.rows {
		seen[row.Person]++
	}
	if seen["Maria"] != 1 || seen["Ana"] != 1 || seen["João"] != 0 {
		t.Fatalf("unexpected surviving rows: %v", seen)
	}
}

func TestAppendChunkedHappyPathSkipsFallback(t *testing.T) {
	entries := make([]domain.HistoryEntry, 0, 5)
	for _, person := range []string{"A", "B", "C", "D", "E"} {
		entries = append(entries, entry("A1", person))
	}
	prepared, err := prepareHistoryEntries(entries)
	if err != nil {
		t.Fatal(err)
	}

	writer := &fakeWriter{}
	if err := appendChunked(context.Background(), writer, prepared, 2, nil); err != nil {
		t.Fatalf("appendChunked: %v", err)
	}
	if len(writer.rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(writer.rows))
	}
}

func TestPrepareHistoryEntriesStampsTimestamp(t *testing.T) {
	prepared, err := prepareHistoryEntries([]domain.HistoryEntry{entry("A1", "Maria")})
	if err != nil {
		t.Fatal(err)
	}
	if prepared[0].SentAt.IsZero() {
		t.Fatal("expected SentAt to be stamped")
	}
}
