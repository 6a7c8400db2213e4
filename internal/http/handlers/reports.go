package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/iago/ponto-whatsapp-back/internal/repository"
)

// ReportStatus returns the ledger record for a report label, including the
// teams still pending from the last run.
func (api *API) ReportStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("nome"))
	if name == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "nome is required")
		return
	}

	record, err := api.reports.Status(r.Context(), name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "report was never consolidated")
			return
		}
		api.logger.Printf("[api] report status failed nome=%s err=%v", name, err)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load report status")
		return
	}

	writeJSON(w, http.StatusOK, record)
}
