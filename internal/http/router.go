package httpserver

import (
	"log"
	"net/http"

	"github.com/iago/ponto-whatsapp-back/internal/http/handlers"
	"github.com/iago/ponto-whatsapp-back/internal/http/middleware"
)

type RouterDependencies struct {
	API            *handlers.API
	Logger         *log.Logger
	AuthToken      string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(deps RouterDependencies) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", deps.API.Health)
	mux.HandleFunc("/v1/dispatches", deps.API.Dispatches)
	mux.HandleFunc("/v1/jobs/", deps.API.JobStatus)
	mux.HandleFunc("/v1/reports/status", deps.API.ReportStatus)
	mux.HandleFunc("/v1/history", deps.API.History)
	mux.HandleFunc("/v1/history/export", deps.API.HistoryExport)
	mux.HandleFunc("/v1/teams", deps.API.Teams)

	handler := http.Handler(mux)
	handler = middleware.Auth(deps.AuthToken)(handler)
	handler = middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst)(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: deps.CORSOrigins,
	})(handler)
	handler = middleware.Trace(deps.Logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}
