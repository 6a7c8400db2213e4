package domain

import "time"

// HistoryEntry is one append-only audit row: a person/reason pair covered by
// a team delivery attempt, tagged with the attempt's outcome.
type HistoryEntry struct {
	ID        int64         `json:"-"`
	SentAt    time.Time     `json:"data_envio"`
	Team      string        `json:"equipe"`
	Kind      ReportKind    `json:"tipo_relatorio"`
	Status    OutcomeStatus `json:"status"`
	Person    string        `json:"pessoa"`
	Reason    string        `json:"motivo_envio"`
	ReportKey string        `json:"nome_relatorio"`
}

// HistoryFilter selects history rows. Within one dimension the values are
// OR-ed; dimensions are AND-ed. Date bounds compare on the calendar day.
type HistoryFilter struct {
	Teams []string
	Kinds []string
	From  *time.Time
	To    *time.Time
}
