// Package cron exposes the batch jobs to an external scheduler.
package cron

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kevin07696/membership-service/internal/domain"
	"github.com/kevin07696/membership-service/internal/domain/ports"
	"github.com/kevin07696/membership-service/internal/handlers"
	"github.com/kevin07696/membership-service/internal/services/alignment"
	"github.com/kevin07696/membership-service/internal/services/batch"
	"github.com/kevin07696/membership-service/internal/services/duplicates"
	svcports "github.com/kevin07696/membership-service/internal/services/ports"
	"github.com/kevin07696/membership-service/pkg/resilience"
	"github.com/kevin07696/membership-service/pkg/shutdown"
	"github.com/kevin07696/membership-service/pkg/timeutil"
)

const (
	maxConcurrency = 50
	maxRunsListed  = 50
)

// JobsHandler handles cron job endpoints for the membership batch jobs
type JobsHandler struct {
	duplicates svcports.DuplicateResolver
	aligner    svcports.RenewalAligner
	locker     ports.Locker
	runs       ports.JobRunRepository
	inflight   *shutdown.InFlightTracker
	timeouts   *resilience.TimeoutConfig
	clock      timeutil.Clock
	logger     *zap.Logger
	cronSecret string // Secret token for authenticating cron requests
	defaults   batch.Options
	lockTTL    time.Duration
}

// NewJobsHandler creates a new batch job cron handler
func NewJobsHandler(
	duplicates svcports.DuplicateResolver,
	aligner svcports.RenewalAligner,
	locker ports.Locker,
	runs ports.JobRunRepository,
	defaults batch.Options,
	timeouts *resilience.TimeoutConfig,
	logger *zap.Logger,
	cronSecret string,
) *JobsHandler {
	if timeouts == nil {
		timeouts = resilience.DefaultTimeoutConfig()
	}
	return &JobsHandler{
		duplicates: duplicates,
		aligner:    aligner,
		locker:     locker,
		runs:       runs,
		timeouts:   timeouts,
		clock:      timeutil.Now,
		logger:     logger,
		cronSecret: cronSecret,
		defaults:   defaults,
		lockTTL:    timeouts.JobLock,
	}
}

// WithInFlight makes shutdown wait for running jobs and refuse new ones
func (h *JobsHandler) WithInFlight(tracker *shutdown.InFlightTracker) *JobsHandler {
	h.inflight = tracker
	return h
}

// Register mounts the cron routes on mux
func (h *JobsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /cron/resolve-duplicates", h.ResolveDuplicates)
	mux.HandleFunc("POST /cron/align-renewals", h.AlignRenewals)
	mux.HandleFunc("GET /cron/runs", h.RecentRuns)
	mux.HandleFunc("GET /cron/health", h.HealthCheck)
}

// RunJobRequest represents the optional request body of a job trigger
type RunJobRequest struct {
	DryRun            *bool    `json:"dry_run"`             // Optional: defaults to the configured mode
	Concurrency       *int     `json:"concurrency"`         // Optional: members processed at once
	RequestsPerSecond *float64 `json:"requests_per_second"` // Optional: gateway call cap, 0 disables
}

// RunJobResponse represents the response of a job trigger
type RunJobResponse struct {
	Result      interface{} `json:"result"`
	Job         string      `json:"job"`
	ProcessedAt string      `json:"processed_at"`
	Success     bool        `json:"success"`
}

// ResolveDuplicates handles the POST /cron/resolve-duplicates endpoint
func (h *JobsHandler) ResolveDuplicates(w http.ResponseWriter, r *http.Request) {
	h.runJob(w, r, duplicates.Job, func(ctx context.Context, opts batch.Options) (interface{}, bool, error) {
		report, err := h.duplicates.Run(ctx, opts)
		if report == nil {
			return nil, false, err
		}
		h.logger.Info("Duplicate resolution completed",
			zap.String("run_id", report.RunID),
			zap.Int("members_scanned", report.MembersScanned),
			zap.Int("duplicates_found", report.DuplicatesFound),
			zap.Int("subscriptions_canceled", report.SubscriptionsCanceled),
			zap.Int("errors", len(report.Errors)),
			zap.Bool("dry_run", report.DryRun),
		)
		return report, report.HasErrors(), err
	})
}

// AlignRenewals handles the POST /cron/align-renewals endpoint
func (h *JobsHandler) AlignRenewals(w http.ResponseWriter, r *http.Request) {
	h.runJob(w, r, alignment.Job, func(ctx context.Context, opts batch.Options) (interface{}, bool, error) {
		summary, err := h.aligner.Run(ctx, opts)
		if summary == nil {
			return nil, false, err
		}
		h.logger.Info("Renewal alignment completed",
			zap.String("run_id", summary.RunID),
			zap.Time("target_date", summary.TargetDate),
			zap.Int("updated", summary.Updated),
			zap.Int("skipped", summary.Skipped()),
			zap.Int("errored", summary.Errored),
			zap.Bool("dry_run", summary.DryRun),
		)
		return summary, summary.HasErrors(), err
	})
}

type jobFunc func(ctx context.Context, opts batch.Options) (result interface{}, partial bool, err error)

func (h *JobsHandler) runJob(w http.ResponseWriter, r *http.Request, job string, run jobFunc) {
	h.logger.Info("Cron job triggered",
		zap.String("job", job),
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("user_agent", r.UserAgent()),
	)

	if !h.authenticateRequest(r) {
		h.logger.Warn("Unauthorized cron request",
			zap.String("job", job),
			zap.String("remote_addr", r.RemoteAddr),
		)
		handlers.WriteMessage(w, h.logger, http.StatusUnauthorized, "unauthorized")
		return
	}

	if h.inflight != nil {
		if !h.inflight.Add() {
			handlers.WriteMessage(w, h.logger, http.StatusServiceUnavailable, "shutting down")
			return
		}
		defer h.inflight.Done()
	}

	opts, err := h.options(r)
	if err != nil {
		handlers.WriteMessage(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	// The job outlives a scheduler that hangs up early
	ctx := context.WithoutCancel(r.Context())

	release, err := h.locker.Acquire(ctx, "job:"+job, h.lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			h.logger.Warn("Cron job already running", zap.String("job", job))
		}
		handlers.WriteError(w, h.logger, err)
		return
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			h.logger.Warn("Failed to release job lock", zap.String("job", job), zap.Error(err))
		}
	}()

	result, partial, err := run(ctx, opts)
	if err != nil {
		h.logger.Error("Cron job aborted", zap.String("job", job), zap.Error(err))
		if result == nil {
			handlers.WriteError(w, h.logger, err)
			return
		}
		partial = true
	}

	resp := RunJobResponse{
		Success:     !partial,
		Job:         job,
		Result:      result,
		ProcessedAt: h.clock().Format(time.RFC3339),
	}
	status := http.StatusOK
	if partial {
		status = http.StatusPartialContent // 206 indicates partial success
	}
	handlers.WriteJSON(w, h.logger, status, resp)
}

// options applies the request body overrides to the configured defaults
func (h *JobsHandler) options(r *http.Request) (batch.Options, error) {
	opts := h.defaults

	var req RunJobRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return opts, errors.New("invalid request body")
		}
	}

	if req.DryRun != nil {
		opts.DryRun = *req.DryRun
	}
	if req.Concurrency != nil {
		if *req.Concurrency < 1 || *req.Concurrency > maxConcurrency {
			return opts, errors.New("concurrency must be between 1 and " + strconv.Itoa(maxConcurrency))
		}
		opts.Concurrency = *req.Concurrency
	}
	if req.RequestsPerSecond != nil {
		if *req.RequestsPerSecond < 0 {
			return opts, errors.New("requests_per_second must not be negative")
		}
		opts.RequestsPerSecond = *req.RequestsPerSecond
	}
	return opts, nil
}

// JobRunView is one persisted job run
type JobRunView struct {
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Summary    json.RawMessage `json:"summary,omitempty"`
	ID         string          `json:"id"`
	Job        string          `json:"job"`
	Status     string          `json:"status"`
	DryRun     bool            `json:"dry_run"`
}

// RecentRuns handles GET /cron/runs?job=align_renewals&limit=10
func (h *JobsHandler) RecentRuns(w http.ResponseWriter, r *http.Request) {
	if !h.authenticateRequest(r) {
		handlers.WriteMessage(w, h.logger, http.StatusUnauthorized, "unauthorized")
		return
	}

	job := r.URL.Query().Get("job")
	if job != duplicates.Job && job != alignment.Job {
		handlers.WriteMessage(w, h.logger, http.StatusBadRequest, "job must be "+duplicates.Job+" or "+alignment.Job)
		return
	}

	limit := 10
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		if parsed, err := strconv.Atoi(limitParam); err == nil && parsed > 0 && parsed <= maxRunsListed {
			limit = parsed
		}
	}

	ctx, cancel := h.timeouts.HandlerContext(r.Context())
	defer cancel()

	runs, err := h.runs.ListRecent(ctx, nil, job, limit)
	if err != nil {
		handlers.WriteError(w, h.logger, err)
		return
	}

	views := make([]JobRunView, 0, len(runs))
	for _, run := range runs {
		view := JobRunView{
			StartedAt:  run.StartedAt,
			FinishedAt: run.FinishedAt,
			ID:         run.ID,
			Job:        run.Job,
			Status:     run.Status,
			DryRun:     run.DryRun,
		}
		if len(run.Summary) > 0 {
			view.Summary = json.RawMessage(run.Summary)
		}
		views = append(views, view)
	}

	handlers.WriteJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"success": true,
		"job":     job,
		"runs":    views,
	})
}

// HealthCheck handles GET /cron/health for monitoring
func (h *JobsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	handlers.WriteJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   h.clock().Format(time.RFC3339),
	})
}

// authenticateRequest verifies the cron request is authorized
func (h *JobsHandler) authenticateRequest(r *http.Request) bool {
	if h.cronSecret == "" {
		return false
	}

	// Check X-Cron-Secret header
	if r.Header.Get("X-Cron-Secret") == h.cronSecret {
		return true
	}

	// Check Authorization header (Bearer token)
	return r.Header.Get("Authorization") == "Bearer "+h.cronSecret
}
