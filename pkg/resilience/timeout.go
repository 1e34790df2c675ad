package resilience

import (
	"context"
	"time"
)

// TimeoutConfig defines the timeout hierarchy, outermost first:
// HTTP handler, service command, single gateway call.
// Batch runs have no overall deadline; only each member's work is bounded.
type TimeoutConfig struct {
	HTTPHandler time.Duration
	Command     time.Duration
	GatewayCall time.Duration
	BatchItem   time.Duration
	// JobLock is the expiry of a batch job's lock, which frees the job after a crashed run
	JobLock time.Duration
}

// DefaultTimeoutConfig returns production timeout values
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler: 60 * time.Second,
		Command:     45 * time.Second,
		GatewayCall: 30 * time.Second,
		BatchItem:   2 * time.Minute,
		JobLock:     6 * time.Hour,
	}
}

// TestTimeoutConfig returns shorter timeouts for testing
func TestTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler: 5 * time.Second,
		Command:     4 * time.Second,
		GatewayCall: 2 * time.Second,
		BatchItem:   3 * time.Second,
		JobLock:     30 * time.Second,
	}
}

// HandlerContext creates a context with timeout for HTTP handlers
func (tc *TimeoutConfig) HandlerContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.HTTPHandler)
}

// CommandContext creates a context for one membership command
func (tc *TimeoutConfig) CommandContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Command)
}

// GatewayContext creates a context for a single gateway call
func (tc *TimeoutConfig) GatewayContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.GatewayCall)
}

// BatchItemContext creates a context bounding the work for one member in a batch run
func (tc *TimeoutConfig) BatchItemContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.BatchItem)
}
