// Package dispatch coordinates one delivery run: it resolves each team's
// number, fans the sends out to a bounded pool and aggregates the outcomes
// into the run's log feed, statistics and ledger consolidation.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/iago/ponto-whatsapp-back/internal/compose"
	"github.com/iago/ponto-whatsapp-back/internal/contacts"
	"github.com/iago/ponto-whatsapp-back/internal/delivery"
	"github.com/iago/ponto-whatsapp-back/internal/domain"
	"github.com/iago/ponto-whatsapp-back/internal/repository"
)

const defaultConcurrency = 5

// LogLine is one user-visible entry of a run's log feed.
type LogLine struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Options scopes one run.
type Options struct {
	// Selected is the caller's allow-list. Empty means every team.
	Selected []string

	// Permitted is the system-imposed allow-list, e.g. the pending teams of
	// a prior partial run. A team excluded by it is reported as already
	// delivered instead of silently dropped.
	Permitted []string

	// ReportLabel is the raw, human-provided report identity. The run is
	// consolidated into the ledger only when it normalizes to a non-empty
	// key.
	ReportLabel string

	// ReportDisplayName overrides the display name stored in the ledger.
	ReportDisplayName string
}

// Result is everything a finished run reports back to the caller.
type Result struct {
	Logs     []LogLine                `json:"logs"`
	Stats    domain.RunStats          `json:"stats"`
	Outcomes []domain.DeliveryOutcome `json:"resultados"`
	Report   *domain.ReportRecord     `json:"relatorio,omitempty"`
}

// Coordinator runs deliveries for composed per-team bundles.
type Coordinator struct {
	directory   contacts.Directory
	sender      delivery.Sender
	reports     repository.ReportsRepository
	history     repository.HistoryRepository
	concurrency int
	logger      *log.Logger
}

func NewCoordinator(
	directory contacts.Directory,
	sender delivery.Sender,
	reports repository.ReportsRepository,
	history repository.HistoryRepository,
	concurrency int,
	logger *log.Logger,
) *Coordinator {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{
		directory:   directory,
		sender:      sender,
		reports:     reports,
		history:     history,
		concurrency: concurrency,
		logger:      logger,
	}
}

type taskKind int

const (
	taskSkippedPermitted taskKind = iota
	taskSkippedSelected
	taskNoNumber
	taskDelivered
)

// taskResult is one completed unit handed to the collector. Every team the
// submission loop touches produces exactly one.
type taskResult struct {
	kind    taskKind
	team    string
	title   string
	records []compose.PersonReason
	err     error
}

// Run delivers every eligible bundle and returns the aggregated result.
// Submission order is lexicographic by team; completion order is arbitrary
// and all aggregation happens on a single collector goroutine. A failed
// delivery never aborts its siblings. A ledger or history write failure is
// returned as a run-level error alongside the partial result.
func (c *Coordinator) Run(
	ctx context.Context,
	kind domain.ReportKind,
	bundles map[string]compose.Bundle,
	opts Options,
) (*Result, error) {
	selected := domain.NormalizeTeamSet(opts.Selected)
	permitted := domain.NormalizeTeamSet(opts.Permitted)

	teams := make([]string, 0, len(bundles))
	for team := range bundles {
		teams = append(teams, domain.NormalizeTeam(team))
	}
	sort.Strings(teams)

	c.logger.Printf("[dispatch] run start kind=%s teams=%d concurrency=%d", kind, len(teams), c.concurrency)

	directory := contacts.NewRunCache(c.directory)
	results := make(chan taskResult)
	sem := make(chan struct{}, c.concurrency)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		wg.Wait()
		close(results)
	}()

	result := &Result{Logs: []LogLine{}, Outcomes: []domain.DeliveryOutcome{}}
	reportKey := domain.NormalizeReportKey(opts.ReportLabel)

	var (
		teamSet    = make(map[string]struct{})
		errorTeams = make(map[string]struct{})
		missing    []string
		historyErr error
	)

	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for task := range results {
			c.collect(ctx, kind, reportKey, task, result, teamSet, errorTeams, &missing, &historyErr)
		}
	}()

	for _, team := range teams {
		bundle := bundles[team]

		if permitted != nil {
			if _, ok := permitted[team]; !ok {
				results <- taskResult{kind: taskSkippedPermitted, team: team}
				continue
			}
		}
		if selected != nil {
			if _, ok := selected[team]; !ok {
				results <- taskResult{kind: taskSkippedSelected, team: team}
				continue
			}
		}

		number, ok := directory.Resolve(team)
		if !ok {
			results <- taskResult{kind: taskNoNumber, team: team, title: bundle.Title}
			continue
		}

		wg.Add(1)
		go func(team, title, number, text string, records []compose.PersonReason) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			err := c.sender.Send(ctx, number, text, team)
			results <- taskResult{kind: taskDelivered, team: team, title: title, records: records, err: err}
		}(team, bundle.Title, number, strings.TrimSpace(bundle.Text), bundle.Records)
	}
	wg.Done()

	<-collectorDone

	if len(missing) > 0 {
		result.Logs = append(result.Logs, LogLine{
			Type:    "warning",
			Message: "Números não encontrados para: " + strings.Join(missing, ", "),
		})
	}
	result.Stats.Teams = len(teamSet)
	result.Stats.Pending = len(errorTeams)

	c.logger.Printf("[dispatch] run done kind=%s total=%d success=%d failure=%d pending=%d",
		kind, result.Stats.Total, result.Stats.Success, result.Stats.Failure, result.Stats.Pending)

	if historyErr != nil {
		return result, fmt.Errorf("append delivery history: %w", historyErr)
	}

	if reportKey != "" {
		record := domain.ReportRecord{
			Key:          reportKey,
			DisplayName:  displayName(opts.ReportDisplayName, opts.ReportLabel, reportKey),
			Kind:         kind,
			Total:        result.Stats.Total,
			Success:      result.Stats.Success,
			Failure:      result.Stats.Failure,
			PendingTeams: sortedKeys(errorTeams),
		}
		if err := c.reports.Consolidate(ctx, record); err != nil {
			return result, fmt.Errorf("consolidate report %s: %w", reportKey, err)
		}
		if stored, err := c.reports.Status(ctx, reportKey); err == nil {
			result.Report = stored
		}
	}

	return result, nil
}

// collect processes one completed task. It is the only writer of the run's
// aggregate state, so completion order cannot affect the final result.
func (c *Coordinator) collect(
	ctx context.Context,
	kind domain.ReportKind,
	reportKey string,
	task taskResult,
	result *Result,
	teamSet map[string]struct{},
	errorTeams map[string]struct{},
	missing *[]string,
	historyErr *error,
) {
	switch task.kind {
	case taskSkippedPermitted:
		result.Logs = append(result.Logs, LogLine{
			Type:    "info",
			Message: fmt.Sprintf("Envio ignorado para %s (relatório já concluído).", task.team),
		})
		return

	case taskSkippedSelected:
		return

	case taskNoNumber:
		result.Stats.Total++
		result.Stats.Failure++
		teamSet[task.team] = struct{}{}
		errorTeams[task.team] = struct{}{}
		*missing = append(*missing, task.team)
		result.Outcomes = append(result.Outcomes, domain.DeliveryOutcome{
			Team:   task.team,
			Status: domain.OutcomeFailure,
			Detail: "número não encontrado",
		})
		return
	}

	result.Stats.Total++
	teamSet[task.team] = struct{}{}

	status := domain.OutcomeSuccess
	if task.err == nil {
		result.Stats.Success++
		result.Logs = append(result.Logs, LogLine{
			Type:    "success",
			Message: fmt.Sprintf("Mensagem enviada para %s", task.title),
		})
		result.Outcomes = append(result.Outcomes, domain.DeliveryOutcome{
			Team:   task.team,
			Status: domain.OutcomeSuccess,
		})
	} else {
		status = domain.OutcomeFailure
		result.Stats.Failure++
		errorTeams[task.team] = struct{}{}
		result.Logs = append(result.Logs, LogLine{
			Type:    "error",
			Message: fmt.Sprintf("Erro ao enviar para %s: %v", task.title, task.err),
		})
		result.Outcomes = append(result.Outcomes, domain.DeliveryOutcome{
			Team:   task.team,
			Status: domain.OutcomeFailure,
			Detail: task.err.Error(),
		})
	}

	if len(task.records) == 0 {
		return
	}
	entries := make([]domain.HistoryEntry, 0, len(task.records))
	for _, record := range task.records {
		entries = append(entries, domain.HistoryEntry{
			Team:      task.team,
			Kind:      kind,
			Status:    status,
			Person:    record.Person,
			Reason:    record.Reason,
			ReportKey: reportKey,
		})
	}
	if err := c.history.AppendBatch(ctx, entries); err != nil {
		c.logger.Printf("[dispatch] history append failed team=%s err=%v", task.team, err)
		if *historyErr == nil {
			*historyErr = err
		}
	}
}

func displayName(override, label, key string) string {
	if name := strings.TrimSpace(override); name != "" {
		return name
	}
	if name := strings.TrimSpace(label); name != "" {
		return name
	}
	if key != "" {
		return key
	}
	return "relatorio_sem_nome"
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
