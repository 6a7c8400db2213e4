package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/iago/ponto-whatsapp-back/internal/domain"
)

func TestResolveStatus(t *testing.T) {
	if got := ResolveStatus(3, 3, 0); got != domain.ReportStatusComplete {
		t.Fatalf("full success should be concluido, got %s", got)
	}
	if got := ResolveStatus(3, 2, 1); got != domain.ReportStatusPartial {
		t.Fatalf("any failure should be parcial, got %s", got)
	}
	if got := ResolveStatus(3, 2, 0); got != domain.ReportStatusPartial {
		t.Fatalf("missing attempts should be parcial, got %s", got)
	}
}

func TestMemoryReportsConsolidateUpserts(t *testing.T) {
	repo := NewMemoryReportsRepository()
	ctx := context.Background()

	err := repo.Consolidate(ctx, domain.ReportRecord{
		Key:          "Fechamento Abril.csv",
		DisplayName:  "Fechamento Abril.csv",
		Kind:         domain.ReportKindAuditoria,
		Total:        3,
		Success:      2,
		Failure:      1,
		PendingTeams: []string{"B2"},
	})
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}

	// lookup by a raw variant of the same name
	record, err := repo.Status(ctx, "  fechamento abril.csv ")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if record.Status != domain.ReportStatusPartial {
		t.Fatalf("expected parcial, got %s", record.Status)
	}
	if len(record.PendingTeams) != 1 || record.PendingTeams[0] != "B2" {
		t.Fatalf("unexpected pending set: %v", record.PendingTeams)
	}

	// second run for the same key: same record updated, pending replaced
	err = repo.Consolidate(ctx, domain.ReportRecord{
		Key:         "FECHAMENTO ABRIL.CSV",
		DisplayName: "Fechamento Abril.csv",
		Kind:        domain.ReportKindAuditoria,
		Total:       1,
		Success:     1,
		Failure:     0,
	})
	if err != nil {
		t.Fatalf("Consolidate second run: %v", err)
	}

	record, err = repo.Status(ctx, "Fechamento Abril.csv")
	if err != nil {
		t.Fatalf("Status after retry: %v", err)
	}
	if record.Status != domain.ReportStatusComplete {
		t.Fatalf("expected concluido, got %s", record.Status)
	}
	if len(record.PendingTeams) != 0 {
		t.Fatalf("pending set should be cleared, got %v", record.PendingTeams)
	}
}

func TestMemoryReportsPendingClearedWhenComplete(t *testing.T) {
	repo := NewMemoryReportsRepository()
	// pending teams passed alongside a complete result must not survive
	err := repo.Consolidate(context.Background(), domain.ReportRecord{
		Key:          "relatorio",
		Kind:         domain.ReportKindAssinaturas,
		Total:        2,
		Success:      2,
		Failure:      0,
		PendingTeams: []string{"A1"},
	})
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	record, err := repo.Status(context.Background(), "relatorio")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(record.PendingTeams) != 0 {
		t.Fatalf("pending set should be empty, got %v", record.PendingTeams)
	}
}

func TestMemoryReportsStatusNotFound(t *testing.T) {
	repo := NewMemoryReportsRepository()
	if _, err := repo.Status(context.Background(), "nunca-consolidado"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
