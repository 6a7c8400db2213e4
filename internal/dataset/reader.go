// Package dataset loads the timesheet CSV exports behind a dispatch run.
// Each report kind has its own layout quirks; the output is a flat list of
// exception rows already tagged with the normalized team.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/iago/ponto-whatsapp-back/internal/domain"
)

// DateLayout is the day format the exports use.
const DateLayout = "02/01/2006"

// Row is one exception record from the export.
type Row struct {
	Person        string
	RawTeam       string
	Team          string
	Date          string
	Reason        string
	PendingAction string
	Period        string
}

// Options tweaks loading behavior per submission.
type Options struct {
	IgnoreSaturdays bool
}

// column aliases seen across the exports
var columnAliases = map[string]string{
	"funcionário":   "nome",
	"funcionario":   "nome",
	"colaborador":   "nome",
	"data do ponto": "data",
	"data registro": "data",
}

// Load reads the export at path for the given report kind.
func Load(path string, kind domain.ReportKind, opts Options) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	if kind == domain.ReportKindAssinaturas {
		return loadSignatures(file)
	}
	return loadExceptions(file, kind, opts)
}

// Teams returns the sorted distinct normalized teams present in rows.
func Teams(rows []Row) []string {
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if row.Team != "" {
			seen[row.Team] = struct{}{}
		}
	}
	teams := make([]string, 0, len(seen))
	for team := range seen {
		teams = append(teams, team)
	}
	sort.Strings(teams)
	return teams
}

func loadExceptions(reader io.Reader, kind domain.ReportKind, opts Options) ([]Row, error) {
	records, err := readAll(reader)
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("dataset has no data rows")
	}

	header := canonicalHeader(records[0])
	required := []string{"nome", "data", "equipe", "motivo"}
	if kind == domain.ReportKindOcorrencias {
		required = append(required, "ação pendente")
	}
	index, err := columnIndex(header, required)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := Row{
			Person:  field(record, index["nome"]),
			Date:    field(record, index["data"]),
			RawTeam: field(record, index["equipe"]),
			Reason:  field(record, index["motivo"]),
		}
		if position, ok := index["ação pendente"]; ok {
			row.PendingAction = field(record, position)
		}
		row.Team = domain.NormalizeTeam(row.RawTeam)
		if row.Person == "" || row.Team == "" {
			continue
		}
		if opts.IgnoreSaturdays && isSaturday(row.Date) {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// loadSignatures handles the signature-audit export: four banner lines
// before the header and a three-line totals footer after the data.
func loadSignatures(reader io.Reader) ([]Row, error) {
	records, err := readAll(reader)
	if err != nil {
		return nil, err
	}
	if len(records) <= 7 {
		return nil, fmt.Errorf("signature dataset too short: %d lines", len(records))
	}
	records = records[4 : len(records)-3]

	header := canonicalHeader(records[0])
	index, err := columnIndex(header, []string{"colaborador", "equipe", "período (fechamento)", "assinado?"})
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		if !isUnsigned(field(record, index["assinado?"])) {
			continue
		}
		row := Row{
			Person:  field(record, index["colaborador"]),
			RawTeam: field(record, index["equipe"]),
			Period:  field(record, index["período (fechamento)"]),
		}
		row.Team = domain.NormalizeTeam(row.RawTeam)
		if row.Person == "" || row.Team == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func readAll(reader io.Reader) ([][]string, error) {
	parser := csv.NewReader(reader)
	parser.FieldsPerRecord = -1
	parser.TrimLeadingSpace = true
	records, err := parser.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return records, nil
}

func canonicalHeader(record []string) []string {
	header := make([]string, len(record))
	for i, name := range record {
		lowered := strings.ToLower(strings.TrimSpace(name))
		if alias, ok := columnAliases[lowered]; ok {
			lowered = alias
		}
		header[i] = lowered
	}
	return header
}

func columnIndex(header []string, required []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for position, name := range header {
		if _, exists := index[name]; !exists {
			index[name] = position
		}
	}
	missing := make([]string, 0)
	for _, name := range required {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("dataset missing required columns: %s", strings.Join(missing, ", "))
	}
	return index, nil
}

func field(record []string, position int) string {
	if position < 0 || position >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[position])
}

func isSaturday(date string) bool {
	parsed, err := time.Parse(DateLayout, date)
	if err != nil {
		return false
	}
	return parsed.Weekday() == time.Saturday
}

// isUnsigned matches the "Assinado?" column; exports vary between "Não" and
// "Nao".
func isUnsigned(value string) bool {
	lowered := strings.ToLower(strings.TrimSpace(value))
	return lowered == "não" || lowered == "nao"
}
