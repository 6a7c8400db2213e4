package compose

import (
	"strings"

	"github.com/iago/ponto-whatsapp-back/internal/dataset"
)

const (
	reasonFewerPoints = "Número de pontos menor que o previsto"
	reasonWrongPoints = "Número errado de pontos"

	actionApproveAdjustment = "Gestor aprovar solicitação de ajuste"
	actionFixException      = "Gestor corrigir lançamento de exceção"
)

// occurrenceCompositor renders the Ocorrências report. Line phrasing depends
// on the motive/pending-action pair.
type occurrenceCompositor struct{}

func (occurrenceCompositor) Compose(rows []dataset.Row) (map[string]Bundle, error) {
	type teamData struct {
		rawTeam string
		byDay   map[string][]dayEntry
	}
	teams := make(map[string]*teamData)

	// consolidate multiple occurrences of one person on one day
	type groupKey struct {
		team, person, date string
	}
	grouped := make(map[groupKey]*dayEntry)
	order := make([]groupKey, 0, len(rows))

	for _, row := range rows {
		line := occurrenceLine(row)
		if line == "" {
			continue
		}

		key := groupKey{team: row.Team, person: row.Person, date: row.Date}
		entry, ok := grouped[key]
		if !ok {
			entry = &dayEntry{person: row.Person}
			grouped[key] = entry
			order = append(order, key)
		}
		if entry.text != "" {
			entry.text += "\n"
		}
		entry.text += line

		reason := strings.TrimSpace(row.Reason)
		if reason != "" && !contains(entry.reasons, reason) {
			entry.reasons = append(entry.reasons, reason)
		}

		if _, exists := teams[row.Team]; !exists {
			teams[row.Team] = &teamData{rawTeam: row.RawTeam, byDay: make(map[string][]dayEntry)}
		}
	}

	for _, key := range order {
		teams[key.team].byDay[key.date] = append(teams[key.team].byDay[key.date], *grouped[key])
	}

	bundles := make(map[string]Bundle, len(teams))
	for team, data := range teams {
		if len(data.byDay) == 0 {
			continue
		}
		title := teamTitle(team, data.rawTeam)
		text, records := assembleDays(title, data.byDay)
		bundles[team] = Bundle{
			Team:    team,
			Title:   title,
			Text:    text,
			Records: records,
		}
	}
	return bundles, nil
}

func occurrenceLine(row dataset.Row) string {
	reason := strings.TrimSpace(row.Reason)
	if reason == "" {
		return ""
	}
	action := strings.TrimSpace(row.PendingAction)
	lowered := strings.ToLower(reason)

	switch {
	case reason == reasonFewerPoints && action == actionApproveAdjustment:
		return "*" + row.Person + "* solicitou ajuste.\nAção pendente: *" + action + "*."
	case reason == reasonFewerPoints && action == actionFixException:
		return "*" + row.Person + "* apresentou _" + lowered + "_.\nAção pendente: *" + action + "*."
	case reason == reasonFewerPoints:
		return "*" + row.Person + "* está com o _" + lowered + "_.\nAção pendente: *" + action + "*."
	case reason == reasonWrongPoints:
		return "*" + row.Person + "* apresentou _" + lowered + "_.\nAção pendente: *" + action + "*."
	default:
		return "*" + row.Person + "* _" + lowered + "_.\nAção pendente: *" + action + "*."
	}
}
