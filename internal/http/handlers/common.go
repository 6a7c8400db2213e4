package handlers

import (
	"encoding/json"
	"errors"
	"hash/fnv"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/iago/ponto-whatsapp-back/internal/http/middleware"
	"github.com/iago/ponto-whatsapp-back/internal/queue"
	"github.com/iago/ponto-whatsapp-back/internal/repository"
)

var errInvalidPayload = errors.New("invalid payload")

// API bundles the handler dependencies.
type API struct {
	jobs        repository.JobsRepository
	reports     repository.ReportsRepository
	history     repository.HistoryRepository
	producer    queue.Producer
	uploadDir   string
	maxUpload   int64
	logger      *log.Logger
	idempotency *idempotencyStore
}

type APIConfig struct {
	Jobs      repository.JobsRepository
	Reports   repository.ReportsRepository
	History   repository.HistoryRepository
	Producer  queue.Producer
	UploadDir string
	MaxUpload int64
	Logger    *log.Logger
}

func NewAPI(cfg APIConfig) *API {
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.MaxUpload <= 0 {
		cfg.MaxUpload = 16 << 20
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &API{
		jobs:        cfg.Jobs,
		reports:     cfg.Reports,
		history:     cfg.History,
		producer:    cfg.Producer,
		uploadDir:   cfg.UploadDir,
		maxUpload:   cfg.MaxUpload,
		logger:      cfg.Logger,
		idempotency: newIdempotencyStore(),
	}
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: middleware.GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}

func parseOptionalDate(value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return nil, errInvalidPayload
	}
	return &parsed, nil
}

type idempotencyEntry struct {
	PayloadHash uint64
	JobID       string
	CreatedAt   time.Time
}

type idempotencyStore struct {
	mu      sync.Mutex
	entries map[string]idempotencyEntry
}

func newIdempotencyStore() *idempotencyStore {
	return &idempotencyStore{
		entries: make(map[string]idempotencyEntry),
	}
}

func (s *idempotencyStore) Get(key string) (idempotencyEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry, ok
}

func (s *idempotencyStore) Put(key string, payloadHash uint64, jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = idempotencyEntry{
		PayloadHash: payloadHash,
		JobID:       jobID,
		CreatedAt:   time.Now().UTC(),
	}
}

func hashPayload(value any) uint64 {
	payload, _ := json.Marshal(value)
	hasher := fnv.New64a()
	_, _ = hasher.Write(payload)
	return hasher.Sum64()
}
