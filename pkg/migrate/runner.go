package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cuemby/hoist/pkg/log"
	"github.com/cuemby/hoist/pkg/metrics"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/rs/zerolog"
)

const (
	// MaxAttempts bounds the attempts made while the server is in script upgrade mode
	MaxAttempts = 10

	// RetryDelay is the fixed wait between attempts
	RetryDelay = 20 * time.Second

	// ScriptTimeout bounds a single script
	ScriptTimeout = 5 * time.Minute

	// scriptUpgradeModeNumber is the SQL Server error raised while the server
	// upgrades its system databases after a restart
	scriptUpgradeModeNumber = 18401
	scriptUpgradeModeText   = "Server is in script upgrade mode"
)

// Database is one connection to the backing store, opened per attempt
type Database interface {
	// EnsureDatabase creates the target database if needed and turns AUTO_CLOSE off
	EnsureDatabase(ctx context.Context) error
	// EnsureJournal creates the migration journal table if needed
	EnsureJournal(ctx context.Context) error
	// AppliedScripts returns the names already journaled
	AppliedScripts(ctx context.Context) (map[string]bool, error)
	// Apply runs a script and journals it in one transaction
	Apply(ctx context.Context, script Script) error
	Close() error
}

// Connector opens a fresh Database
type Connector func(ctx context.Context) (Database, error)

// Result reports a finished migration run
type Result struct {
	Successful bool
	Attempts   int
	Applied    []string
	Err        error
}

// RetriesExhaustedError is returned when every attempt hit the transient
// script upgrade mode error
type RetriesExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("database still in script upgrade mode after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Err
}

// IsScriptUpgradeMode reports whether err is the transient upgrade-lock error
func IsScriptUpgradeMode(err error) bool {
	if err == nil {
		return false
	}
	var sqlErr mssql.Error
	if errors.As(err, &sqlErr) && sqlErr.Number == scriptUpgradeModeNumber {
		return true
	}
	return strings.Contains(err.Error(), scriptUpgradeModeText)
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Runner applies pending scripts, retrying while the server is in script
// upgrade mode
type Runner struct {
	connect Connector
	scripts []Script
	out     io.Writer
	logger  zerolog.Logger

	MaxAttempts int
	RetryDelay  time.Duration
	Sleep       SleepFunc
}

// NewRunner creates a Runner with the default retry policy
func NewRunner(connect Connector, scripts []Script, out io.Writer) *Runner {
	return &Runner{
		connect:     connect,
		scripts:     scripts,
		out:         out,
		logger:      log.WithComponent("migrate"),
		MaxAttempts: MaxAttempts,
		RetryDelay:  RetryDelay,
		Sleep:       Sleep,
	}
}

// Run migrates the database. A non-transient failure is reported in the
// Result with a nil error. Exhausting the retries returns
// *RetriesExhaustedError.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	fmt.Fprintln(r.out, "Migrating database.")

	for attempt := 1; ; attempt++ {
		metrics.MigrationAttempts.Inc()
		logger := r.logger.With().Int("attempt", attempt).Logger()

		applied, err := r.attempt(ctx, logger)
		if err == nil {
			metrics.MigrationRuns.WithLabelValues("success").Inc()
			logger.Info().Int("applied", len(applied)).Msg("Migration successful")
			fmt.Fprintln(r.out, "Migration successful.")
			return &Result{Successful: true, Attempts: attempt, Applied: applied}, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if !IsScriptUpgradeMode(err) {
			metrics.MigrationRuns.WithLabelValues("failure").Inc()
			logger.Error().Err(err).Msg("Migration failed")
			fmt.Fprintln(r.out, "Migration failed.")
			return &Result{Successful: false, Attempts: attempt, Applied: applied, Err: err}, nil
		}

		if attempt >= r.MaxAttempts {
			metrics.MigrationRuns.WithLabelValues("exhausted").Inc()
			logger.Error().Err(err).Msg("Giving up, database still in script upgrade mode")
			return nil, &RetriesExhaustedError{Attempts: attempt, Err: err}
		}

		logger.Warn().Err(err).Dur("delay", r.RetryDelay).Msg("Database in script upgrade mode, retrying")
		fmt.Fprintf(r.out, "Database is in script upgrade mode. Trying again (attempt #%d)...\n", attempt+1)
		if err := r.Sleep(ctx, r.RetryDelay); err != nil {
			return nil, err
		}
	}
}

// attempt runs one full pass on a fresh connection, which is closed before
// it returns
func (r *Runner) attempt(ctx context.Context, logger zerolog.Logger) ([]string, error) {
	db, err := r.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close database connection")
		}
	}()

	if err := db.EnsureDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure database: %w", err)
	}
	if err := db.EnsureJournal(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure journal: %w", err)
	}
	done, err := db.AppliedScripts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	var applied []string
	for _, script := range r.scripts {
		if done[script.Name] {
			continue
		}

		fmt.Fprintf(r.out, "Executing script %s\n", script.Name)
		timer := metrics.NewTimer()
		scriptCtx, cancel := context.WithTimeout(ctx, ScriptTimeout)
		err := db.Apply(scriptCtx, script)
		cancel()
		if err != nil {
			return applied, fmt.Errorf("script %s failed: %w", script.Name, err)
		}
		timer.ObserveDuration(metrics.ScriptDuration)
		metrics.ScriptsApplied.Inc()
		logger.Debug().Str("script", script.Name).Dur("took", timer.Duration()).Msg("Script applied")
		applied = append(applied, script.Name)
	}

	if len(applied) == 0 {
		logger.Info().Msg("No new scripts need to be executed")
	}
	return applied, nil
}
