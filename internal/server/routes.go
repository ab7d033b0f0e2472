package server

import (
	"log/slog"
	"net/http"
)

// Config contains router options.
type Config struct {
	// AllowedOrigins lists the browser origins allowed to call the API.
	// "*" allows any origin. Empty disables CORS headers.
	AllowedOrigins []string
}

// NewRouter wires the worker's endpoints:
//
//	GET  /health     liveness
//	GET  /status     worker and host status
//	POST /process    run a job and wait for its result
//	POST /jobs       queue a job
//	GET  /jobs/{id}  job progress and result
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /status", h.Status)
	mux.HandleFunc("POST /process", h.Process)
	mux.HandleFunc("POST /jobs", h.CreateJob)
	mux.HandleFunc("GET /jobs/{id}", h.GetJob)

	// Recovery is outermost so panics in logging or CORS are caught too.
	var handler http.Handler = mux
	handler = CORSMiddleware(cfg.AllowedOrigins)(handler)
	handler = LoggingMiddleware(logger)(handler)
	handler = RecoveryMiddleware(logger)(handler)
	return handler
}
