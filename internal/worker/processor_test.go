package worker

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/iago/ponto-whatsapp-back/internal/contacts"
	"github.com/iago/ponto-whatsapp-back/internal/dispatch"
	"github.com/iago/ponto-whatsapp-back/internal/domain"
	"github.com/iago/ponto-whatsapp-back/internal/repository"
)

type stubSender struct {
	mu     sync.Mutex
	labels []string
}

func (s *stubSender) Send(_ context.Context, _, _, label string) error {
	s.mu.Lock()
	s.labels = append(s.labels, label)
	s.mu.Unlock()
	return nil
}

func (s *stubSender) sentLabels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.labels...)
}

func writeDataset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return path
}

func newTestProcessor(t *testing.T, sender *stubSender, numbers map[string]string) (*Processor, *repository.MemoryJobsRepository, *repository.MemoryReportsRepository) {
	t.Helper()
	jobs := repository.NewMemoryJobsRepository(0)
	reports := repository.NewMemoryReportsRepository()
	history := repository.NewMemoryHistoryRepository()
	logger := log.New(&strings.Builder{}, "", 0)
	coordinator := dispatch.NewCoordinator(contacts.NewStaticDirectory(numbers), sender, reports, history, 2, logger)
	return NewProcessor(nil, jobs, reports, coordinator, logger), jobs, reports
}

func enqueueJob(t *testing.T, jobs *repository.MemoryJobsRepository, request domain.DispatchRequest) domain.QueueMessage {
	t.Helper()
	payload, err := json.Marshal(request)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	job := &domain.Job{
		ID:      "job-1",
		Kind:    request.Kind,
		Payload: payload,
		Status:  domain.JobStatusQueued,
	}
	if err := jobs.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return domain.QueueMessage{JobID: job.ID, Kind: request.Kind, Payload: payload}
}

const auditCSV = "Nome,Data,Equipe,Motivo\n" +
	"Joana Silva,03/08/2026,A1,Falta de registro\n" +
	"Carlos Souza,03/08/2026,B2,Atraso\n"

func TestProcessMessageCompletesJob(t *testing.T) {
	sender := &stubSender{}
	processor, jobs, _ := newTestProcessor(t, sender, map[string]string{
		"A1": "5511999990001",
		"B2": "5511999990002",
	})

	path := writeDataset(t, auditCSV)
	message := enqueueJob(t, jobs, domain.DispatchRequest{
		FilePath:    path,
		Kind:        domain.ReportKindAuditoria,
		ReportLabel: "auditoria semana 32.csv",
	})

	if err := processor.processMessage(context.Background(), message); err != nil {
		t.Fatalf("processMessage returned error: %v", err)
	}

	job, err := jobs.GetJob(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetJob returned error: %v", err)
	}
	if job.Status != domain.JobStatusDone {
		t.Fatalf("job status = %s, want %s (error: %s)", job.Status, domain.JobStatusDone, job.ErrorMessage)
	}

	var result dispatch.Result
	if err := json.Unmarshal(job.Result, &result); err != nil {
		t.Fatalf("decode job result: %v", err)
	}
	if result.Stats.Total != 2 || result.Stats.Success != 2 {
		t.Fatalf("result stats = %+v, want total=2 success=2", result.Stats)
	}
	if got := len(sender.sentLabels()); got != 2 {
		t.Fatalf("sender received %d calls, want 2", got)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("uploaded file should be removed, stat err = %v", err)
	}
}

func TestProcessMessageRejectsCompletedReport(t *testing.T) {
	sender := &stubSender{}
	processor, jobs, reports := newTestProcessor(t, sender, map[string]string{"A1": "5511999990001"})

	err := reports.Consolidate(context.Background(), domain.ReportRecord{
		Key:         "fechado.csv",
		DisplayName: "fechado.csv",
		Kind:        domain.ReportKindAuditoria,
		Total:       1,
		Success:     1,
	})
	if err != nil {
		t.Fatalf("Consolidate returned error: %v", err)
	}

	path := writeDataset(t, auditCSV)
	message := enqueueJob(t, jobs, domain.DispatchRequest{
		FilePath:    path,
		Kind:        domain.ReportKindAuditoria,
		ReportLabel: "fechado.csv",
	})

	if err := processor.processMessage(context.Background(), message); err != nil {
		t.Fatalf("rejection should not requeue, got error: %v", err)
	}

	job, err := jobs.GetJob(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetJob returned error: %v", err)
	}
	if job.Status != domain.JobStatusError {
		t.Fatalf("job status = %s, want %s", job.Status, domain.JobStatusError)
	}
	if !strings.Contains(job.ErrorMessage, "já concluído") {
		t.Fatalf("unexpected error message: %s", job.ErrorMessage)
	}
	if len(sender.sentLabels()) != 0 {
		t.Fatal("no delivery should be attempted for a completed report")
	}
}

func TestProcessMessagePartialReportNarrowsToPending(t *testing.T) {
	sender := &stubSender{}
	processor, jobs, reports := newTestProcessor(t, sender, map[string]string{
		"A1": "5511999990001",
		"B2": "5511999990002",
	})

	err := reports.Consolidate(context.Background(), domain.ReportRecord{
		Key:          "parcial.csv",
		DisplayName:  "parcial.csv",
		Kind:         domain.ReportKindAuditoria,
		Total:        2,
		Success:      1,
		Failure:      1,
		PendingTeams: []string{"B2"},
	})
	if err != nil {
		t.Fatalf("Consolidate returned error: %v", err)
	}

	path := writeDataset(t, auditCSV)
	message := enqueueJob(t, jobs, domain.DispatchRequest{
		FilePath:    path,
		Kind:        domain.ReportKindAuditoria,
		ReportLabel: "parcial.csv",
	})

	if err := processor.processMessage(context.Background(), message); err != nil {
		t.Fatalf("processMessage returned error: %v", err)
	}

	if labels := sender.sentLabels(); len(labels) != 1 || labels[0] != "B2" {
		t.Fatalf("sender calls = %v, want only B2", labels)
	}

	record, err := reports.Status(context.Background(), "parcial.csv")
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if record.Status != domain.ReportStatusComplete {
		t.Fatalf("report status = %s, want %s", record.Status, domain.ReportStatusComplete)
	}
}

func TestProcessMessageForceBypassesGate(t *testing.T) {
	sender := &stubSender{}
	processor, jobs, reports := newTestProcessor(t, sender, map[string]string{
		"A1": "5511999990001",
		"B2": "5511999990002",
	})

	err := reports.Consolidate(context.Background(), domain.ReportRecord{
		Key:         "refeito.csv",
		DisplayName: "refeito.csv",
		Kind:        domain.ReportKindAuditoria,
		Total:       2,
		Success:     2,
	})
	if err != nil {
		t.Fatalf("Consolidate returned error: %v", err)
	}

	path := writeDataset(t, auditCSV)
	message := enqueueJob(t, jobs, domain.DispatchRequest{
		FilePath:    path,
		Kind:        domain.ReportKindAuditoria,
		ReportLabel: "refeito.csv",
		Force:       true,
	})

	if err := processor.processMessage(context.Background(), message); err != nil {
		t.Fatalf("processMessage returned error: %v", err)
	}
	if got := len(sender.sentLabels()); got != 2 {
		t.Fatalf("sender received %d calls, want 2", got)
	}
}
