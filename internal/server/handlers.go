package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/shirou/gopsutil/cpu"

	"github.com/maauso/faceswap-api/internal/job"
)

// ServiceInfo describes the worker in /health and /status.
type ServiceInfo struct {
	Name    string
	Version string
	Model   string
	// GPU is the value of CUDA_VISIBLE_DEVICES, if any.
	GPU string
}

// DefaultServiceInfo returns the identity reported when none is configured.
func DefaultServiceInfo() ServiceInfo {
	return ServiceInfo{
		Name:    "faceswap-worker",
		Version: "1.0.0",
		Model:   "wan2.2-animate-14b",
	}
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.Service
	validator          *validator.Validate
	logger             *slog.Logger
	info               ServiceInfo
	cpuPercent         func() (float64, error)
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateJob only registers the job and returns immediately
// without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithServiceInfo sets the identity reported by /health and /status.
func WithServiceInfo(info ServiceInfo) HandlerOption {
	return func(h *Handlers) {
		h.info = info
	}
}

// WithCPUSampler replaces the host CPU sampler used by /status.
func WithCPUSampler(sample func() (float64, error)) HandlerOption {
	return func(h *Handlers) {
		h.cpuPercent = sample
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.Service, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		validator:          validator.New(),
		logger:             logger,
		info:               DefaultServiceInfo(),
		cpuPercent:         hostCPUPercent,
		enableAsyncProcess: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	modelPath := h.service.Settings().ModelPath
	_, err := os.Stat(modelPath)

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "healthy",
		Service:     h.info.Name,
		ModelPath:   modelPath,
		ModelExists: modelPath != "" && err == nil,
	})
}

// Status handles GET /status requests.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	usage, err := h.cpuPercent()
	if err != nil {
		h.logger.Warn("failed to sample cpu usage", slog.String("error", err.Error()))
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Service:    h.info.Name,
		Version:    h.info.Version,
		Model:      h.info.Model,
		GPU:        h.info.GPU,
		CPUPercent: usage,
		ActiveJobs: h.service.ActiveJobs(),
	})
}

// Process handles POST /process requests. The job runs to completion before
// the response is written; a failed job still answers 200 with its result.
func (h *Handlers) Process(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	if req.RecordID == "" {
		writeError(w, http.StatusBadRequest, "record_id is required", "VALIDATION_ERROR")
		return
	}

	result := h.service.Run(context.WithoutCancel(r.Context()), req.Input())

	h.logger.Info("job finished",
		slog.String("job_id", req.RecordID),
		slog.String("status", string(result.Status)),
	)
	writeJSON(w, http.StatusOK, result)
}

// CreateJob handles POST /jobs requests.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	input := req.Input()
	created, err := h.service.CreateJob(r.Context(), input)
	if err != nil {
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}
	input.JobID = created.ID

	// Detached from the request so processing outlives the response.
	if h.enableAsyncProcess {
		go func(ctx context.Context, j *job.Job, in job.Input) {
			h.service.Process(ctx, j, in)
		}(context.WithoutCancel(r.Context()), created, input)
	}

	h.logger.Info("job accepted",
		slog.String("job_id", created.ID),
		slog.String("mode", string(created.Mode)),
	)

	writeJSON(w, http.StatusAccepted, AcceptedResponse{
		Status:  "accepted",
		JobID:   created.ID,
		Message: "Job accepted for processing",
	})
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	found, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, newJobResponse(found))
}

// decodeRequest reads and validates a ProcessRequest, writing a 400 on
// failure.
func (h *Handlers) decodeRequest(w http.ResponseWriter, r *http.Request) (ProcessRequest, bool) {
	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return req, false
	}

	if err := h.validator.Struct(req.normalize()); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return req, false
	}

	if req.Segments != nil {
		if err := req.Segments.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_SEGMENTS")
			return req, false
		}
	}
	return req, true
}

// hostCPUPercent samples system-wide CPU usage since the previous call.
func hostCPUPercent() (float64, error) {
	usage, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}
	if len(usage) == 0 {
		return 0, nil
	}
	return usage[0], nil
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
