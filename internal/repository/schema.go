package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements create the persistent layout on first use. Mirrors the
// ensure-on-init behavior the service has always had so a fresh database
// needs no manual migration step.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		payload JSONB,
		status TEXT NOT NULL,
		result JSONB,
		error_message TEXT NOT NULL DEFAULT '',
		attempts INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS relatorios (
		nome_relatorio TEXT PRIMARY KEY,
		nome_exibicao TEXT NOT NULL,
		tipo_relatorio TEXT NOT NULL,
		status TEXT NOT NULL,
		total INT NOT NULL DEFAULT 0,
		sucesso INT NOT NULL DEFAULT 0,
		erro INT NOT NULL DEFAULT 0,
		atualizado_em TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS relatorio_pendencias (
		nome_relatorio TEXT NOT NULL REFERENCES relatorios(nome_relatorio) ON DELETE CASCADE,
		equipe TEXT NOT NULL,
		UNIQUE (nome_relatorio, equipe)
	)`,
	`CREATE TABLE IF NOT EXISTS envios (
		id BIGSERIAL PRIMARY KEY,
		data_envio TIMESTAMPTZ NOT NULL,
		equipe TEXT NOT NULL,
		tipo_relatorio TEXT NOT NULL,
		status TEXT NOT NULL,
		pessoa TEXT NOT NULL DEFAULT '',
		motivo_envio TEXT NOT NULL DEFAULT '',
		nome_relatorio TEXT NOT NULL DEFAULT ''
	)`,
}

// EnsureSchema creates the tables used by the Postgres repositories.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, statement := range schemaStatements {
		if _, err := pool.Exec(ctx, statement); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
