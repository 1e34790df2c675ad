package batch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/kevin07696/membership-service/internal/domain/ports"
)

// Audit persists job run summaries. A nil repository turns it into a no-op,
// and persistence failures are logged without failing the run.
type Audit struct {
	runs   ports.JobRunRepository
	logger ports.Logger
}

// NewAudit creates a job run recorder
func NewAudit(runs ports.JobRunRepository, logger ports.Logger) *Audit {
	return &Audit{runs: runs, logger: logger}
}

// Start records a running job and returns its run ID
func (a *Audit) Start(ctx context.Context, job string, dryRun bool, startedAt time.Time) string {
	runID := uuid.NewString()
	if a.runs == nil {
		return runID
	}

	err := a.runs.Start(ctx, nil, &ports.JobRun{
		StartedAt: startedAt,
		ID:        runID,
		Job:       job,
		Status:    ports.JobRunStatusRunning,
		DryRun:    dryRun,
	})
	if err != nil {
		a.logger.Warn("failed to record job run start",
			ports.String("job", job),
			ports.String("run_id", runID),
			ports.Err(err))
	}
	return runID
}

// Finish stores the final status and JSON summary of a run
func (a *Audit) Finish(ctx context.Context, runID, status string, summary interface{}, finishedAt time.Time) {
	if a.runs == nil {
		return
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		a.logger.Warn("failed to encode job run summary",
			ports.String("run_id", runID),
			ports.Err(err))
		payload = []byte("{}")
	}

	if err := a.runs.Finish(context.WithoutCancel(ctx), nil, runID, status, payload, finishedAt); err != nil {
		a.logger.Warn("failed to record job run finish",
			ports.String("run_id", runID),
			ports.Err(err))
	}
}

// RunStatus maps a run outcome to its persisted status
func RunStatus(aborted error, itemErrors int) string {
	switch {
	case aborted != nil:
		return ports.JobRunStatusFailed
	case itemErrors > 0:
		return ports.JobRunStatusPartial
	default:
		return ports.JobRunStatusCompleted
	}
}

// ItemError is one per-item failure surfaced in a batch summary
type ItemError struct {
	MemberID       string `json:"member_id,omitempty"`
	Email          string `json:"email,omitempty"`
	CustomerID     string `json:"customer_id,omitempty"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	Error          string `json:"error"`
}
