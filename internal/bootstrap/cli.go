package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kevin07696/membership-service/internal/config"
	"github.com/kevin07696/membership-service/internal/domain"
	"github.com/kevin07696/membership-service/internal/services/batch"
	"github.com/kevin07696/membership-service/pkg/logging"
	"github.com/kevin07696/membership-service/pkg/timeutil"
)

// Exit codes of the batch job binaries
const (
	ExitOK     = 0
	ExitFailed = 1
)

// JobFlags are the command line flags shared by the batch job binaries
type JobFlags struct {
	EnvFile     string
	AsOf        string
	Concurrency int
	RPS         float64
	DryRun      bool
	TestMode    bool
}

// ParseJobFlags parses args; unset numeric flags keep the configured defaults
func ParseJobFlags(name string, args []string, output io.Writer) (*JobFlags, error) {
	f := &JobFlags{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.BoolVar(&f.DryRun, "dry-run", false, "report the changes without making them")
	fs.BoolVar(&f.TestMode, "test-mode", false, "use the gateway test key")
	fs.IntVar(&f.Concurrency, "concurrency", 0, "members processed at once (default from BATCH_CONCURRENCY)")
	fs.Float64Var(&f.RPS, "rps", -1, "gateway requests per second, 0 disables the limit (default from BATCH_REQUESTS_PER_SECOND)")
	fs.StringVar(&f.AsOf, "as-of", "", "run as if today were this date (YYYY-MM-DD)")
	fs.StringVar(&f.EnvFile, "env-file", ".env", "optional dotenv file read before the environment")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if f.Concurrency < 0 {
		return nil, fmt.Errorf("-concurrency must not be negative")
	}
	return f, nil
}

// Options applies the flags to the configured defaults
func (f *JobFlags) Options(defaults batch.Options) batch.Options {
	opts := defaults
	if f.DryRun {
		opts.DryRun = true
	}
	if f.Concurrency > 0 {
		opts.Concurrency = f.Concurrency
	}
	if f.RPS >= 0 {
		opts.RequestsPerSecond = f.RPS
	}
	return opts
}

// Clock returns nil for the real clock, or a clock that starts at midnight UTC of
// the --as-of date and advances with real time
func (f *JobFlags) Clock() (timeutil.Clock, error) {
	if f.AsOf == "" {
		return nil, nil
	}
	asOf, err := time.Parse("2006-01-02", f.AsOf)
	if err != nil {
		return nil, fmt.Errorf("invalid -as-of %q: %w", f.AsOf, err)
	}
	start := time.Now()
	return func() time.Time {
		return asOf.Add(time.Since(start)).UTC()
	}, nil
}

// JobFunc runs one batch job and reports whether any item failed.
// err is reserved for failures that stopped the job.
type JobFunc func(ctx context.Context, app *App, opts batch.Options) (result interface{}, partial bool, err error)

// RunJob is the main body of a batch job binary. It returns the process exit code.
func RunJob(job string, args []string, run JobFunc) int {
	flags, err := ParseJobFlags(job, args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		return ExitFailed
	}
	if flags.TestMode {
		_ = os.Setenv("STRIPE_TEST_MODE", "true")
	}

	cfg, err := config.Load(flags.EnvFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return ExitFailed
	}

	logger, err := logging.New(cfg.Logger.Level, cfg.Logger.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return ExitFailed
	}
	defer func() { _ = logger.Sync() }()

	clock, err := flags.Clock()
	if err != nil {
		logger.Error("Invalid flags", zap.Error(err))
		return ExitFailed
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg, logger, clock)
	if err != nil {
		logger.Error("Failed to initialize", zap.Error(err))
		return ExitFailed
	}
	defer app.Close()

	opts := flags.Options(app.BatchOptions())
	logger.Info("Batch job starting",
		zap.String("job", job),
		zap.Bool("dry_run", opts.DryRun),
		zap.Bool("test_mode", cfg.Gateway.TestMode),
		zap.Int("concurrency", opts.Concurrency),
		zap.Float64("requests_per_second", opts.RequestsPerSecond),
		zap.String("as_of", flags.AsOf),
	)

	// Shares the cron endpoint's lock so a scheduled run and a manual run never overlap
	release, err := app.Locker.Acquire(ctx, "job:"+job, app.Timeouts.JobLock)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			logger.Error("Batch job is already running", zap.String("job", job))
		} else {
			logger.Error("Failed to acquire job lock", zap.Error(err))
		}
		return ExitFailed
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to release job lock", zap.Error(err))
		}
	}()

	result, partial, err := run(ctx, app, opts)
	if result != nil {
		if encErr := writeResult(os.Stdout, result); encErr != nil {
			logger.Error("Failed to write result", zap.Error(encErr))
		}
	}
	return exitCode(logger, job, partial, err)
}

// exitCode is non-zero only when the job itself failed. Item failures are
// reported through the printed result and the job run record.
func exitCode(logger *zap.Logger, job string, partial bool, err error) int {
	if err != nil {
		logger.Error("Batch job aborted", zap.String("job", job), zap.Error(err))
		return ExitFailed
	}
	if partial {
		logger.Warn("Batch job completed with item errors", zap.String("job", job))
		return ExitOK
	}
	logger.Info("Batch job completed", zap.String("job", job))
	return ExitOK
}

func writeResult(w io.Writer, result interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
