/*
Package deploy dispatches a hoist invocation to its command.

hoist takes positional "-name value" pairs. NewContext parses them, applies
the -os, -corev, -webv and -datadir overrides, and Route picks exactly one
action:

	-install ...            ActionInstall   validate, generate artifacts, save config.yml
	-update ...             ActionRebuild   reload config.yml, regenerate artifacts
	-update ... -db ...     ActionUpdateDB  apply pending database migrations
	-printenv ...           ActionPrintEnv  show URL, probe /alive, hand edits, last run
	(anything else)         ActionNone      print a notice and exit 0

install takes precedence over update, and update over printenv. Only the
presence of a flag matters, not its value.

# Install gate

Install asks the identity service about the installation id before writing
anything. Any answer other than an explicit "enabled" aborts the command with
one of the installation package errors, and neither artifacts nor config.yml
are written. The ledger is opened only after that point, so a rejected install
leaves the data directory untouched.

# Run history

Every install, rebuild and updatedb gets a run id. The id tags the command's
log events and keys the run recorded in the ledger, which printenv reports
together with any generated file edited since it was last written.

# Exit codes

ExitCode maps the error returned by Deployer.Run:

	0  success, including ActionNone
	1  input errors, rejected installations, builder errors, a migration
	   that ran and failed (*MigrationFailedError)
	2  the database stayed in script upgrade mode for every attempt
	   (*migrate.RetriesExhaustedError)

# Usage

	c, err := deploy.NewContext(os.Args[1:])
	if err != nil {
		os.Exit(deploy.ExitCode(err))
	}
	d := deploy.NewDeployer(deploy.Options{
		FS:        osfs.New(c.DataDir),
		Prompter:  prompt.NewInteractive(os.Stdin, os.Stdout),
		Validator: installation.NewValidator(""),
		Out:       os.Stdout,
	})
	defer d.Close()
	os.Exit(deploy.ExitCode(d.Run(ctx, c)))
*/
package deploy
