// Package worker drains the submission queue and drives dispatch runs.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/iago/ponto-whatsapp-back/internal/compose"
	"github.com/iago/ponto-whatsapp-back/internal/dataset"
	"github.com/iago/ponto-whatsapp-back/internal/dispatch"
	"github.com/iago/ponto-whatsapp-back/internal/domain"
	"github.com/iago/ponto-whatsapp-back/internal/queue"
	"github.com/iago/ponto-whatsapp-back/internal/repository"
)

// ErrReportComplete rejects a submission whose report the ledger already
// marks as fully sent. Not retryable; the caller must force the re-send.
var ErrReportComplete = errors.New("relatório já concluído; use o reenvio forçado para enviar novamente")

// permanentError marks failures that retrying cannot fix. The job goes to
// its terminal error state without going back to the queue.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return &permanentError{err: err}
}

// Processor consumes queue messages and persists job status transitions.
type Processor struct {
	consumer    queue.Consumer
	jobs        repository.JobsRepository
	reports     repository.ReportsRepository
	coordinator *dispatch.Coordinator
	logger      *log.Logger
}

func NewProcessor(
	consumer queue.Consumer,
	jobs repository.JobsRepository,
	reports repository.ReportsRepository,
	coordinator *dispatch.Coordinator,
	logger *log.Logger,
) *Processor {
	return &Processor{
		consumer:    consumer,
		jobs:        jobs,
		reports:     reports,
		coordinator: coordinator,
		logger:      logger,
	}
}

// StartPool runs size concurrent consume loops and blocks until every loop
// has exited after ctx is cancelled.
func (p *Processor) StartPool(ctx context.Context, size int) {
	if size <= 0 {
		size = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < size; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Start(ctx)
		}()
	}
	wg.Wait()
}

func (p *Processor) Start(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := p.consumer.Consume(ctx, p.processMessage)
		if err == nil || ctx.Err() != nil {
			return
		}
		if p.logger != nil {
			p.logger.Printf("worker consume loop error: %v", err)
		}

		timer := time.NewTimer(2 * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (p *Processor) processMessage(ctx context.Context, message domain.QueueMessage) error {
	job, err := p.jobs.GetJob(ctx, message.JobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", message.JobID, err)
	}

	job.Status = domain.JobStatusRunning
	job.Attempts = message.Attempt + 1
	job.UpdatedAt = time.Now().UTC()
	if err := p.jobs.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("mark running: %w", err)
	}

	result, processErr := p.runDispatch(ctx, message, job)
	if processErr != nil {
		job.Status = domain.JobStatusError
		job.ErrorMessage = processErr.Error()
		job.UpdatedAt = time.Now().UTC()
		_ = p.jobs.UpdateJob(ctx, job)

		var perm *permanentError
		if errors.As(processErr, &perm) {
			if p.logger != nil {
				p.logger.Printf("job rejected job_id=%s err=%v", job.ID, processErr)
			}
			return nil
		}
		return processErr
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode job result: %w", err)
	}

	job.Status = domain.JobStatusDone
	job.ErrorMessage = ""
	job.Result = payload
	job.UpdatedAt = time.Now().UTC()
	if err := p.jobs.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("mark done: %w", err)
	}

	if p.logger != nil {
		p.logger.Printf("job processed kind=%s job_id=%s total=%d success=%d failure=%d",
			job.Kind, job.ID, result.Stats.Total, result.Stats.Success, result.Stats.Failure)
	}
	return nil
}

func (p *Processor) runDispatch(
	ctx context.Context,
	message domain.QueueMessage,
	job *domain.Job,
) (*dispatch.Result, error) {
	payload := message.Payload
	if len(payload) == 0 {
		payload = job.Payload
	}

	var request domain.DispatchRequest
	if err := json.Unmarshal(payload, &request); err != nil {
		return nil, permanent(fmt.Errorf("decode submission payload: %w", err))
	}
	if !request.Kind.Valid() {
		return nil, permanent(fmt.Errorf("tipo de relatório inválido: %s", request.Kind))
	}
	defer p.removeUpload(request.FilePath)

	permitted, err := p.gate(ctx, request)
	if err != nil {
		return nil, err
	}

	rows, err := dataset.Load(request.FilePath, request.Kind, dataset.Options{
		IgnoreSaturdays: request.IgnoreSaturdays,
	})
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	compositor, err := compose.ForKind(request.Kind)
	if err != nil {
		return nil, permanent(err)
	}
	bundles, err := compositor.Compose(rows)
	if err != nil {
		return nil, fmt.Errorf("compose messages: %w", err)
	}

	return p.coordinator.Run(ctx, request.Kind, bundles, dispatch.Options{
		Selected:          request.SelectedTeams,
		Permitted:         permitted,
		ReportLabel:       reportLabel(request),
		ReportDisplayName: request.ReportDisplayName,
	})
}

// gate applies the ledger rule before any delivery is scheduled: a complete
// report rejects the submission unless forced, a partial one narrows the
// run to its pending teams.
func (p *Processor) gate(ctx context.Context, request domain.DispatchRequest) ([]string, error) {
	label := reportLabel(request)
	if label == "" || request.Force {
		return nil, nil
	}

	record, err := p.reports.Status(ctx, label)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("check report status: %w", err)
	}

	switch record.Status {
	case domain.ReportStatusComplete:
		return nil, permanent(ErrReportComplete)
	case domain.ReportStatusPartial:
		if len(record.PendingTeams) > 0 {
			return record.PendingTeams, nil
		}
	}
	return nil, nil
}

func (p *Processor) removeUpload(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		if p.logger != nil {
			p.logger.Printf("remove upload failed path=%s err=%v", path, err)
		}
	}
}

func reportLabel(request domain.DispatchRequest) string {
	if request.ReportLabel != "" {
		return request.ReportLabel
	}
	return request.ReportDisplayName
}
