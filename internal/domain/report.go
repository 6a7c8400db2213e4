package domain

import (
	"strings"
	"time"
)

// ReportKind identifies which timesheet export a dispatch run covers.
// The wire values are the labels the frontend and stored history use.
type ReportKind string

const (
	ReportKindAuditoria   ReportKind = "Auditoria"
	ReportKindOcorrencias ReportKind = "Ocorrências"
	ReportKindAssinaturas ReportKind = "Assinaturas"
)

func (k ReportKind) Valid() bool {
	switch k {
	case ReportKindAuditoria, ReportKindOcorrencias, ReportKindAssinaturas:
		return true
	}
	return false
}

// ReportStatus tracks how far a report's deliveries have progressed.
type ReportStatus string

const (
	ReportStatusNew      ReportStatus = "novo"
	ReportStatusPartial  ReportStatus = "parcial"
	ReportStatusComplete ReportStatus = "concluido"
)

// ReportRecord is the persisted ledger row for one normalized report key.
type ReportRecord struct {
	Key          string       `json:"nome_relatorio"`
	DisplayName  string       `json:"nome_exibicao"`
	Kind         ReportKind   `json:"tipo_relatorio"`
	Status       ReportStatus `json:"status"`
	Total        int          `json:"total"`
	Success      int          `json:"sucesso"`
	Failure      int          `json:"erro"`
	UpdatedAt    time.Time    `json:"atualizado_em"`
	PendingTeams []string     `json:"equipes_pendentes"`
}

// RunStats aggregates the outcome counters of one dispatch run.
// JSON keys match what the frontend consumes.
type RunStats struct {
	Total   int `json:"total"`
	Success int `json:"sucesso"`
	Failure int `json:"erro"`
	Teams   int `json:"equipes"`
	Pending int `json:"pendencias"`
}

// OutcomeStatus is the per-team delivery result.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "sucesso"
	OutcomeFailure OutcomeStatus = "erro"
)

// DeliveryOutcome is produced exactly once per delivery task.
type DeliveryOutcome struct {
	Team   string        `json:"equipe"`
	Status OutcomeStatus `json:"status"`
	Detail string        `json:"detalhe,omitempty"`
}

// NormalizeTeam canonicalizes a team identifier. Idempotent; equality after
// normalization is case-insensitive equality before it.
func NormalizeTeam(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// NormalizeTeamSet normalizes every entry, dropping blanks. Returns nil for
// an empty input so callers can treat "no filter" and "empty filter" alike.
func NormalizeTeamSet(raw []string) map[string]struct{} {
	if len(raw) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(raw))
	for _, team := range raw {
		normalized := NormalizeTeam(team)
		if normalized == "" {
			continue
		}
		set[normalized] = struct{}{}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

// NormalizeReportKey derives the ledger identity of a report from a raw,
// human-provided label. Lowercase, filesystem-safe, idempotent: labels that
// differ only by case, surrounding whitespace or unsafe characters collide.
func NormalizeReportKey(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}

	var builder strings.Builder
	builder.Grow(len(trimmed))
	lastUnderscore := false
	for _, r := range trimmed {
		safe := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '-'
		if safe {
			builder.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			builder.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(builder.String(), "_")
}

// IsStoreTeam reports whether the raw team label refers to a store, which
// changes the message title prefix.
func IsStoreTeam(rawTeam string) bool {
	return strings.Contains(strings.ToUpper(rawTeam), "LOJA")
}
