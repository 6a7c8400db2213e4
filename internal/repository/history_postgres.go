package repository

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/iago/ponto-whatsapp-back/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const historyInsertSQL = `
	INSERT INTO envios (data_envio, equipe, tipo_relatorio, status, pessoa, motivo_envio, nome_relatorio)
	VALUES ($1,$2,$3,$4,$5,$6,$7)
`

// PostgresHistoryRepository stores the audit trail in the envios table.
type PostgresHistoryRepository struct {
	pool      *pgxpool.Pool
	chunkSize int
	logger    *log.Logger
}

func NewPostgresHistoryRepository(pool *pgxpool.Pool, chunkSize int, logger *log.Logger) *PostgresHistoryRepository {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	return &PostgresHistoryRepository{pool: pool, chunkSize: chunkSize, logger: logger}
}

func (r *PostgresHistoryRepository) AppendBatch(ctx context.Context, entries []domain.HistoryEntry) error {
	prepared, err := prepareHistoryEntries(entries)
	if err != nil {
		return err
	}
	return appendChunked(ctx, (*postgresHistoryWriter)(r), prepared, r.chunkSize, r.logger)
}

type postgresHistoryWriter PostgresHistoryRepository

// insertChunk writes the whole chunk inside one transaction via a pipelined
// batch; any failure rolls the chunk back so the fallback path can retry
// rows individually without duplicates.
func (w *postgresHistoryWriter) insertChunk(ctx context.Context, entries []domain.HistoryEntry) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin history chunk: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, entry := range entries {
		batch.Queue(historyInsertSQL,
			entry.SentAt,
			entry.Team,
			string(entry.Kind),
			string(entry.Status),
			entry.Person,
			entry.Reason,
			entry.ReportKey,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range entries {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("insert history chunk row: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close history batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit history chunk: %w", err)
	}
	return nil
}

func (w *postgresHistoryWriter) insertOne(ctx context.Context, entry domain.HistoryEntry) error {
	_, err := w.pool.Exec(ctx, historyInsertSQL,
		entry.SentAt,
		entry.Team,
		string(entry.Kind),
		string(entry.Status),
		entry.Person,
		entry.Reason,
		entry.ReportKey,
	)
	if err != nil {
		return fmt.Errorf("insert history row: %w", err)
	}
	return nil
}

func (r *PostgresHistoryRepository) Query(ctx context.Context, filter domain.HistoryFilter) ([]domain.HistoryEntry, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT id, data_envio, equipe, tipo_relatorio, status, pessoa, motivo_envio, nome_relatorio
		FROM envios WHERE 1=1
	`)
	args := make([]any, 0, 4)
	argIndex := 1

	appendIn := func(column string, values []string) {
		cleaned := make([]string, 0, len(values))
		for _, value := range values {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) == 0 {
			return
		}
		placeholders := make([]string, 0, len(cleaned))
		for _, value := range cleaned {
			placeholders = append(placeholders, fmt.Sprintf("$%d", argIndex))
			args = append(args, value)
			argIndex++
		}
		query.WriteString(fmt.Sprintf(" AND %s IN (%s)", column, strings.Join(placeholders, ", ")))
	}

	appendIn("equipe", filter.Teams)
	appendIn("tipo_relatorio", filter.Kinds)

	if filter.From != nil {
		query.WriteString(fmt.Sprintf(" AND data_envio::date >= $%d", argIndex))
		args = append(args, dayOf(*filter.From))
		argIndex++
	}
	if filter.To != nil {
		query.WriteString(fmt.Sprintf(" AND data_envio::date <= $%d", argIndex))
		args = append(args, dayOf(*filter.To))
		argIndex++
	}

	// id, not data_envio: insertion order keeps same-timestamp rows stable
	query.WriteString(" ORDER BY id DESC")

	rows, err := r.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.HistoryEntry, 0)
	for rows.Next() {
		var (
			entry  domain.HistoryEntry
			kind   string
			status string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.SentAt,
			&entry.Team,
			&kind,
			&status,
			&entry.Person,
			&entry.Reason,
			&entry.ReportKey,
		); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		entry.Kind = domain.ReportKind(kind)
		entry.Status = domain.OutcomeStatus(status)
		entries = append(entries, entry)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate history rows: %w", rows.Err())
	}
	return entries, nil
}

func (r *PostgresHistoryRepository) DistinctTeams(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT equipe FROM envios ORDER BY equipe ASC`)
	if err != nil {
		return nil, fmt.Errorf("query distinct teams: %w", err)
	}
	defer rows.Close()

	teams := make([]string, 0)
	for rows.Next() {
		var team string
		if err := rows.Scan(&team); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		if team != "" {
			teams = append(teams, team)
		}
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate teams: %w", rows.Err())
	}
	return teams, nil
}
