package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/iago/ponto-whatsapp-back/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresReportsRepository persists the ledger in the relatorios table with
// a relatorio_pendencias child table (UNIQUE(nome_relatorio, equipe),
// cascade delete with the parent).
type PostgresReportsRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresReportsRepository(pool *pgxpool.Pool) *PostgresReportsRepository {
	return &PostgresReportsRepository{pool: pool}
}

func (r *PostgresReportsRepository) Consolidate(ctx context.Context, result domain.ReportRecord) error {
	key := domain.NormalizeReportKey(result.Key)
	if key == "" {
		return fmt.Errorf("consolidate report: empty key")
	}

	status := ResolveStatus(result.Total, result.Success, result.Failure)
	pending := append([]string(nil), result.PendingTeams...)
	if status == domain.ReportStatusComplete {
		pending = nil
	}
	sort.Strings(pending)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin consolidation: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO relatorios (
			nome_relatorio,
			nome_exibicao,
			tipo_relatorio,
			status,
			total,
			sucesso,
			erro,
			atualizado_em
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (nome_relatorio) DO UPDATE SET
			nome_exibicao = EXCLUDED.nome_exibicao,
			tipo_relatorio = EXCLUDED.tipo_relatorio,
			status = EXCLUDED.status,
			total = EXCLUDED.total,
			sucesso = EXCLUDED.sucesso,
			erro = EXCLUDED.erro,
			atualizado_em = EXCLUDED.atualizado_em
	`,
		key,
		result.DisplayName,
		string(result.Kind),
		string(status),
		result.Total,
		result.Success,
		result.Failure,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert report record: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM relatorio_pendencias WHERE nome_relatorio = $1`, key); err != nil {
		return fmt.Errorf("clear pending teams: %w", err)
	}
	for _, team := range pending {
		if _, err := tx.Exec(ctx, `
			INSERT INTO relatorio_pendencias (nome_relatorio, equipe) VALUES ($1, $2)
			ON CONFLICT (nome_relatorio, equipe) DO NOTHING
		`, key, team); err != nil {
			return fmt.Errorf("insert pending team %s: %w", team, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit consolidation: %w", err)
	}
	return nil
}

func (r *PostgresReportsRepository) Status(ctx context.Context, rawName string) (*domain.ReportRecord, error) {
	key := domain.NormalizeReportKey(rawName)

	var (
		record domain.ReportRecord
		kind   string
		status string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT nome_relatorio, nome_exibicao, tipo_relatorio, status, total, sucesso, erro, atualizado_em
		FROM relatorios
		WHERE nome_relatorio = $1
	`, key).Scan(
		&record.Key,
		&record.DisplayName,
		&kind,
		&status,
		&record.Total,
		&record.Success,
		&record.Failure,
		&record.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query report record: %w", err)
	}
	record.Kind = domain.ReportKind(kind)
	record.Status = domain.ReportStatus(status)

	rows, err := r.pool.Query(ctx, `
		SELECT equipe FROM relatorio_pendencias WHERE nome_relatorio = $1 ORDER BY equipe ASC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("query pending teams: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var team string
		if err := rows.Scan(&team); err != nil {
			return nil, fmt.Errorf("scan pending team: %w", err)
		}
		record.PendingTeams = append(record.PendingTeams, team)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate pending teams: %w", rows.Err())
	}

	return &record, nil
}
