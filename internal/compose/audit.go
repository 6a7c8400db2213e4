package compose

import (
	"strings"

	"github.com/iago/ponto-whatsapp-back/internal/dataset"
)

// auditCompositor renders the Auditoria report: one bullet per exception,
// grouped by day within each team.
type auditCompositor struct{}

func (auditCompositor) Compose(rows []dataset.Row) (map[string]Bundle, error) {
	type teamData struct {
		rawTeam string
		byDay   map[string][]dayEntry
	}
	teams := make(map[string]*teamData)

	for _, row := range rows {
		reason := strings.TrimSpace(row.Reason)
		if reason == "" {
			continue
		}

		data, ok := teams[row.Team]
		if !ok {
			data = &teamData{rawTeam: row.RawTeam, byDay: make(map[string][]dayEntry)}
			teams[row.Team] = data
		}

		data.byDay[row.Date] = append(data.byDay[row.Date], dayEntry{
			person:  row.Person,
			text:    "*" + row.Person + "*: " + reason + ".",
			reasons: []string{reason},
		})
	}

	bundles := make(map[string]Bundle, len(teams))
	for team, data := range teams {
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
