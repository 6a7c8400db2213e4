package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iago/ponto-whatsapp-back/internal/domain"
)

type dispatchSubmission struct {
	FileName        string   `json:"file_name"`
	Kind            string   `json:"kind"`
	IgnoreSaturdays bool     `json:"ignore_saturdays"`
	SelectedTeams   []string `json:"selected_teams"`
	ReportLabel     string   `json:"report_label"`
	Force           bool     `json:"force"`
}

// Dispatches schedules one dispatch run for an uploaded export and returns
// the job id for polling.
func (api *API) Dispatches(w http.ResponseWriter, r *http.Request) {
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
		writeError(w, r, http.StatusBadRequest, "invalid_request",
			fmt.Sprintf("tipo de relatório inválido: %s", kind))
		return
	}

	var selectedTeams []string
	if raw := strings.TrimSpace(r.FormValue("equipesSelecionadas")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &selectedTeams); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "equipesSelecionadas must be a JSON array")
			return
		}
	}

	ignoreSaturdays := r.FormValue("ignorarSabados") != "false"
	force := r.FormValue("forcarReenvio") == "true"

	reportLabel := strings.TrimSpace(r.FormValue("nomeRelatorio"))
	if reportLabel == "" {
		reportLabel = header.Filename
	}

	submission := dispatchSubmission{
		FileName:        header.Filename,
		Kind:            string(kind),
		IgnoreSaturdays: ignoreSaturdays,
		SelectedTeams:   selectedTeams,
		ReportLabel:     reportLabel,
		Force:           force,
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	payloadHash := hashPayload(submission)
	if idempotencyKey != "" {
		if entry, ok := api.idempotency.Get(idempotencyKey); ok {
			if entry.PayloadHash != payloadHash {
				writeError(w, r, http.StatusConflict, "idempotency_conflict",
					"idempotency key reused with a different payload")
				return
			}
			api.writeAccepted(w, entry.JobID)
			return
		}
	}

	uploadPath, err := api.saveUpload(file, header.Filename)
	if err != nil {
		api.logger.Printf("[api] save upload failed err=%v", err)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to store upload")
		return
	}

	request := domain.DispatchRequest{
		FilePath:          uploadPath,
		Kind:              kind,
		IgnoreSaturdays:   ignoreSaturdays,
		SelectedTeams:     selectedTeams,
		ReportLabel:       reportLabel,
		ReportDisplayName: header.Filename,
		Force:             force,
	}
	payload, err := json.Marshal(request)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to encode submission")
		return
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Payload:   payload,
		Status:    domain.JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := api.jobs.CreateJob(r.Context(), job); err != nil {
		api.logger.Printf("[api] create job failed err=%v", err)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to create job")
		return
	}

	message := domain.QueueMessage{
		JobID:       job.ID,
		Kind:        kind,
		Payload:     payload,
		RequestedAt: now,
	}
	if err := api.producer.Enqueue(r.Context(), message); err != nil {
		api.logger.Printf("[api] enqueue failed job_id=%s err=%v", job.ID, err)
		job.Status = domain.JobStatusError
		job.ErrorMessage = "failed to schedule processing"
		job.UpdatedAt = time.Now().UTC()
		_ = api.jobs.UpdateJob(r.Context(), job)
		writeError(w, r, http.StatusServiceUnavailable, "queue_unavailable", "failed to schedule processing")
		return
	}

	if idempotencyKey != "" {
		api.idempotency.Put(idempotencyKey, payloadHash, job.ID)
	}

	api.logger.Printf("[api] dispatch scheduled job_id=%s kind=%s file=%s", job.ID, kind, header.Filename)
	api.writeAccepted(w, job.ID)
}

func (api *API) writeAccepted(w http.ResponseWriter, jobID string) {
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":     jobID,
		"status":     string(domain.JobStatusQueued),
		"status_url": "/v1/jobs/" + jobID,
	})
}

// saveUpload stores the file under a collision-safe name inside the upload
// directory.
func (api *API) saveUpload(file io.Reader, originalName string) (string, error) {
	if err := os.MkdirAll(api.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s", uuid.NewString()[:8], sanitizeFileName(originalName))
	path := filepath.Join(api.uploadDir, name)

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return path, nil
}

func sanitizeFileName(name string) string {
	name = filepath.Base(name)
	var builder strings.Builder
	builder.Grow(len(name))
	for _, r := range name {
		safe := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '.' || r == '-' || r == '_'
		if safe {
			builder.WriteRune(r)
		} else {
			builder.WriteByte('_')
		}
	}
	if builder.Len() == 0 {
		return "upload.csv"
	}
	return builder.String()
}
