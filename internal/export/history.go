// Package export renders the delivery history as a downloadable grouped
// spreadsheet, one summary row per team with collapsible detail rows.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/iago/ponto-whatsapp-back/internal/domain"
)

var headerTitles = []string{
	"Equipe",
	"Quantidade",
	"Nome",
	"Tipo de Relatório",
	"Motivo",
	"Quantidade Detalhe",
}

const (
	defaultTeam   = "Não informado"
	defaultKind   = "Sem tipo"
	defaultReason = "Sem motivo"
	defaultPerson = "Sem identificação"
	emptyNotice   = "Nenhum dado encontrado para os filtros informados."
)

// Detail is one (person, kind, reason) breakdown line within a team.
type Detail struct {
	Person string `json:"pessoa"`
	Kind   string `json:"tipo"`
	Reason string `json:"motivo"`
	Total  int    `json:"total"`
}

// Group is the per-team summary with its detail lines.
type Group struct {
	Team    string   `json:"equipe"`
	Total   int      `json:"total"`
	Details []Detail `json:"detalhes"`
}

type detailKey struct {
	person string
	kind   string
	reason string
}

// GroupEntries aggregates history rows by team. Teams sort
// case-insensitively; details sort by person, kind, reason.
func GroupEntries(entries []domain.HistoryEntry) []Group {
	type teamBucket struct {
		total   int
		details map[detailKey]int
	}
	buckets := make(map[string]*teamBucket)

	for _, entry := range entries {
		team := orDefault(entry.Team, defaultTeam)
		bucket, ok := buckets[team]
		if !ok {
			bucket = &teamBucket{details: make(map[detailKey]int)}
			buckets[team] = bucket
		}
		bucket.total++
		bucket.details[detailKey{
			person: orDefault(entry.Person, defaultPerson),
			kind:   orDefault(string(entry.Kind), defaultKind),
			reason: orDefault(entry.Reason, defaultReason),
		}]++
	}

	teams := make([]string, 0, len(buckets))
	for team := range buckets {
		teams = append(teams, team)
	}
	sort.Slice(teams, func(i, j int) bool {
		return strings.ToUpper(teams[i]) < strings.ToUpper(teams[j])
	})

	groups := make([]Group, 0, len(teams))
	for _, team := range teams {
		bucket := buckets[team]

		keys := make([]detailKey, 0, len(bucket.details))
		for key := range bucket.details {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, b := keys[i], keys[j]
			if p, q := strings.ToUpper(a.person), strings.ToUpper(b.person); p != q {
				return p < q
			}
			if p, q := strings.ToUpper(a.kind), strings.ToUpper(b.kind); p != q {
				return p < q
			}
			return strings.ToUpper(a.reason) < strings.ToUpper(b.reason)
		})

		details := make([]Detail, 0, len(keys))
		for _, key := range keys {
			details = append(details, Detail{
				Person: key.person,
				Kind:   key.kind,
				Reason: key.reason,
				Total:  bucket.details[key],
			})
		}
		groups = append(groups, Group{Team: team, Total: bucket.total, Details: details})
	}
	return groups
}

// WriteCSV streams the grouped history in the workbook layout: a summary
// row per team followed by its indented detail rows.
func WriteCSV(w io.Writer, entries []domain.HistoryEntry) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(headerTitles); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}

	groups := GroupEntries(entries)
	if len(groups) == 0 {
		if err := writer.Write([]string{emptyNotice, "", "", "", "", ""}); err != nil {
			return fmt.Errorf("write export notice: %w", err)
		}
		writer.Flush()
		return writer.Error()
	}

	for _, group := range groups {
		row := []string{group.Team, strconv.Itoa(group.Total), "", "", "", ""}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write team row: %w", err)
		}
		for _, detail := range group.Details {
			row = []string{"", "", detail.Person, detail.Kind, detail.Reason, strconv.Itoa(detail.Total)}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("write detail row: %w", err)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

func orDefault(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}
