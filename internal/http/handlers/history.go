package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/iago/ponto-whatsapp-back/internal/domain"
	"github.com/iago/ponto-whatsapp-back/internal/export"
)

// History lists delivery history entries. Repeated equipe/tipo parameters
// are OR-ed; the filter dimensions are AND-ed.
func (api *API) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	filter, err := historyFilterFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "inicio/fim must be YYYY-MM-DD dates")
		return
	}

	entries, err := api.history.Query(r.Context(), filter)
	if err != nil {
		api.logger.Printf("[api] history query failed err=%v", err)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load history")
		return
	}

	summary := map[string]int{"total": len(entries), "sucesso": 0, "erro": 0}
	for _, entry := range entries {
		switch entry.Status {
		case domain.OutcomeSuccess:
			summary["sucesso"]++
		case domain.OutcomeFailure:
			summary["erro"]++
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"summary": summary,
	})
}

// HistoryExport streams the grouped history spreadsheet for the same
// filters the listing endpoint accepts.
func (api *API) HistoryExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	filter, err := historyFilterFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "inicio/fim must be YYYY-MM-DD dates")
		return
	}

	entries, err := api.history.Query(r.Context(), filter)
	if err != nil {
		api.logger.Printf("[api] history export query failed err=%v", err)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load history")
		return
	}

	fileName := fmt.Sprintf("historico_envios_%s.csv", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
	if err := export.WriteCSV(w, entries); err != nil {
		api.logger.Printf("[api] history export write failed err=%v", err)
	}
}

func historyFilterFromQuery(r *http.Request) (domain.HistoryFilter, error) {
	query := r.URL.Query()
	filter := domain.HistoryFilter{
		Teams: query["equipe"],
		Kinds: query["tipo"],
	}

	from, err := parseOptionalDate(query.Get("inicio"))
	if err != nil {
		return domain.HistoryFilter{}, err
	}
	to, err := parseOptionalDate(query.Get("fim"))
	if err != nil {
		return domain.HistoryFilter{}, err
	}
	filter.From = from
	filter.To = to
	return filter, nil
}
