package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Identity service metrics
	ValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hoist_installation_validations_total",
			Help: "Installation validations by outcome (enabled, disabled, unknown, unavailable)",
		},
		[]string{"outcome"},
	)

	// Artifact pipeline metrics
	ArtifactsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hoist_artifacts_written_total",
			Help: "Artifact files written by builder and whether the content changed",
		},
		[]string{"builder", "changed"},
	)

	ArtifactBackups = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hoist_artifact_backups_total",
			Help: "Hand-edited managed artifacts backed up before regeneration",
		},
	)

	PipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hoist_pipeline_duration_seconds",
			Help:    "Artifact pipeline duration in seconds by mode",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	// Migration metrics
	MigrationAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hoist_migration_attempts_total",
			Help: "Database migration attempts, including retries",
		},
	)

	MigrationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hoist_migration_runs_total",
			Help: "Database migration runs by result (success, failure, exhausted)",
		},
		[]string{"result"},
	)

	ScriptsApplied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hoist_migration_scripts_applied_total",
			Help: "Migration scripts applied and journaled",
		},
	)

	ScriptDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hoist_migration_script_duration_seconds",
			Help:    "Time taken to apply one migration script in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	// Command metrics
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hoist_commands_total",
			Help: "Dispatched commands by action and exit code",
		},
		[]string{"action", "exit_code"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(ValidationsTotal)
	prometheus.MustRegister(ArtifactsWritten)
	prometheus.MustRegister(ArtifactBackups)
	prometheus.MustRegister(PipelineDuration)
	prometheus.MustRegister(MigrationAttempts)
	prometheus.MustRegister(MigrationRuns)
	prometheus.MustRegister(ScriptsApplied)
	prometheus.MustRegister(ScriptDuration)
	prometheus.MustRegister(CommandsTotal)
}

// WriteTextfile writes every registered metric to path in the text exposition
// format, for the node exporter textfile collector
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
