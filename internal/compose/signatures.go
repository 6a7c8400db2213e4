package compose

import (
	"sort"
	"strings"

	"github.com/iago/ponto-whatsapp-back/internal/dataset"
)

const signatureReason = "Assinatura pendente"

// signatureCompositor renders the Assinaturas report: one message per team
// listing everyone who has not signed the timesheet mirror.
type signatureCompositor struct{}

func (signatureCompositor) Compose(rows []dataset.Row) (map[string]Bundle, error) {
	type teamData struct {
		names   []string
		periods map[string]int
		order   []string
	}
	teams := make(map[string]*teamData)

	for _, row := range rows {
		data, ok := teams[row.Team]
		if !ok {
			data = &teamData{periods: make(map[string]int)}
			teams[row.Team] = data
		}
		data.names = append(data.names, row.Person)
		if period := strings.TrimSpace(row.Period); period != "" {
			if data.periods[period] == 0 {
				data.order = append(data.order, period)
			}
			data.periods[period]++
		}
	}

	bundles := make(map[string]Bundle, len(teams))
	for team, data := range teams {
		sort.Strings(data.names)

		// most frequent closing period; first seen wins ties
		period := ""
		best := 0
		for _, candidate := range data.order {
			if data.periods[candidate] > best {
				best = data.periods[candidate]
				period = candidate
			}
		}

		var builder strings.Builder
		builder.WriteString("ASSINATURA DE ESPELHO PONTO LOJA " + team + "\n")
		builder.WriteString("Os colaboradores abaixo não assinaram o espelho ponto do mês " + period + "\n")
		for _, name := range data.names {
			builder.WriteString("- " + name + "\n")
		}

		records := make([]PersonReason, 0, len(data.names))
		for _, name := range data.names {
			records = append(records, PersonReason{Person: name, Reason: signatureReason})
		}

		bundles[team] = Bundle{
			Team:    team,
			Title:   "LOJA " + team,
			Text:    strings.TrimSpace(builder.String()),
			Records: records,
		}
	}
	return bundles, nil
}
