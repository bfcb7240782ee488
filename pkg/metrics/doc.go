/*
Package metrics exposes Prometheus collectors for hoist runs.

hoist is a one-shot process, so nothing is served over HTTP. Collectors are
registered on the default registry in init() and, when the -metrics parameter
names a file, written once at the end of the run in the text exposition format
for the node exporter textfile collector:

	hoist -update true -db true -metrics /var/lib/node_exporter/hoist.prom

# Metrics

	hoist_installation_validations_total{outcome}   identity service answers
	hoist_artifacts_written_total{builder,changed}  files written by builders
	hoist_artifact_backups_total                    hand-edited files backed up
	hoist_pipeline_duration_seconds{mode}           install/update pipeline time
	hoist_migration_attempts_total                  attempts including retries
	hoist_migration_runs_total{result}              success, failure, exhausted
	hoist_migration_scripts_applied_total           scripts journaled
	hoist_migration_script_duration_seconds         per-script apply time
	hoist_commands_total{action,exit_code}          dispatched commands

Timer wraps time measurement for the histograms:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ScriptDuration)
*/
package metrics
