/*
Package log holds hoist's process-wide zerolog logger.

Diagnostics go to stderr. Stdout belongs to the deploy package, which prints
the operator-facing status lines ("✓ Configuration rebuilt", prompts, next
steps), so piping hoist's output never mixes the two.

Every event carries one of two field sets:

	component=<package>               WithComponent("migrate"), kept on structs
	command=<action> run_id=<uuid>    WithRun("rebuild", id), one per dispatch

The run id is the same one recorded in the ledger's run history, so a
failed run shown by "-printenv true" can be matched with its log lines.

The CLI configures the logger from -loglevel and -logjson:

	log.Init(log.Config{
		Level: params.Get("loglevel"),
		JSON:  params.Bool("logjson"),
	})

Before Init the Logger discards everything, which is what package tests rely
on.
*/
package log
