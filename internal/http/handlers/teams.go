package handlers

import (
	"net/http"
	"os"
	"strings"

	"github.com/iago/ponto-whatsapp-back/internal/dataset"
	"github.com/iago/ponto-whatsapp-back/internal/domain"
)

// Teams extracts the distinct normalized teams from an uploaded export so
// the frontend can offer a team selection before submitting.
func (api *API) Teams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, api.maxUpload)
	if err := r.ParseMultipartForm(api.maxUpload); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid multipart payload")
		return
	}

	file, header, err := r.FormFile("csvFile")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "csvFile is required")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "csvFile must be a .csv file")
		return
	}

	kind := domain.ReportKind(strings.TrimSpace(r.FormValue("tipoRelatorio")))
	if kind == "" {
		kind = domain.ReportKindAuditoria
	}
	if !kind.Valid() {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "tipo de relatório inválido")
		return
	}

	path, err := api.saveUpload(file, header.Filename)
	if err != nil {
		api.logger.Printf("[api] save upload failed err=%v", err)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to store upload")
		return
	}
	defer os.Remove(path)

	rows, err := dataset.Load(path, kind, dataset.Options{})
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "failed to parse dataset: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"equipes": dataset.Teams(rows),
	})
}
