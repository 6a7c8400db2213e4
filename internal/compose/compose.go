// Package compose turns dataset rows into one WhatsApp message per team.
// Each report kind carries its own composition strategy behind the
// Compositor interface.
package compose

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/iago/ponto-whatsapp-back/internal/dataset"
	"github.com/iago/ponto-whatsapp-back/internal/domain"
)

// PersonReason is one audit record behind a team message.
type PersonReason struct {
	Person string
	Reason string
}

// Bundle is the composed message for one team plus the records it covers.
type Bundle struct {
	Team    string
	Title   string
	Text    string
	Records []PersonReason
}

// Compositor produces per-team message bundles for one report kind.
type Compositor interface {
	Compose(rows []dataset.Row) (map[string]Bundle, error)
}

// ForKind returns the compositor for the report kind.
func ForKind(kind domain.ReportKind) (Compositor, error) {
	switch kind {
	case domain.ReportKindAuditoria:
		return auditCompositor{}, nil
	case domain.ReportKindOcorrencias:
		return occurrenceCompositor{}, nil
	case domain.ReportKindAssinaturas:
		return signatureCompositor{}, nil
	default:
		return nil, fmt.Errorf("unsupported report kind: %s", kind)
	}
}

const defaultReason = "Motivo não informado"

// teamTitle prefixes store teams the way the messages always have.
func teamTitle(team, rawTeam string) string {
	if domain.IsStoreTeam(rawTeam) {
		return "LOJA " + team
	}
	return team
}

// dayEntry is one person's consolidated message lines for one day.
type dayEntry struct {
	person  string
	text    string
	reasons []string
}

// assembleDays builds the shared day-section layout:
//
//	*TITLE*
//
//	*NO DIA dd/mm/yyyy:*
//	• line
func assembleDays(title string, byDay map[string][]dayEntry) (string, []PersonReason) {
	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool {
		left, errLeft := time.Parse(dataset.DateLayout, days[i])
		right, errRight := time.Parse(dataset.DateLayout, days[j])
		if errLeft != nil || errRight != nil {
			return days[i] < days[j]
		}
		return left.Before(right)
	})

	var builder strings.Builder
	builder.WriteString("*" + title + "*\n\n")

	records := make([]PersonReason, 0)
	reasonsByPerson := make(map[string][]string)
	personOrder := make([]string, 0)

	for _, day := range days {
		entries := byDay[day]
		sort.Slice(entries, func(i, j int) bool { return entries[i].person < entries[j].person })

		builder.WriteString("*NO DIA " + day + ":*\n")
		for _, entry := range entries {
			for _, line := range strings.Split(entry.text, "\n") {
				builder.WriteString("• " + line + "\n")
			}
			if _, seen := reasonsByPerson[entry.person]; !seen {
				personOrder = append(personOrder, entry.person)
			}
			for _, reason := range entry.reasons {
				if !contains(reasonsByPerson[entry.person], reason) {
					reasonsByPerson[entry.person] = append(reasonsByPerson[entry.person], reason)
				}
			}
		}
		builder.WriteString("\n")
	}

	for _, person := range personOrder {
		reason := strings.Join(reasonsByPerson[person], "; ")
		if reason == "" {
			reason = defaultReason
		}
		records = append(records, PersonReason{Person: person, Reason: reason})
	}

	return strings.TrimSpace(builder.String()), records
}

func contains(values []string, value string) bool {
	for _, item := range values {
		if item == value {
			return true
		}
	}
	return false
}
