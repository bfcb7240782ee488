/*
Package migrate applies the embedded SQL Server schema scripts.

Scripts live in scripts/ and are compiled into the binary. Anything under an
Archive directory is skipped. Pending scripts run in ascending file name
order, each in its own transaction together with its row in the
[dbo].[Migration] journal, so a script is applied at most once.

Every attempt opens a fresh connection, creates the vault database when it is
missing, turns AUTO_CLOSE off and applies what the journal does not list yet.
The connection is closed before any wait.

# Retry policy

Right after the mssql container starts, SQL Server may reject logins with
error 18401, "Server is in script upgrade mode". Runner treats that error as
transient: it waits RetryDelay (20s) and tries again, for at most MaxAttempts
(10) attempts. When the last attempt still fails that way, Run returns
*RetriesExhaustedError, which the CLI maps to exit code 2.

Any other failure is not retried. Run returns a Result with Successful set to
false and a nil error; the CLI prints "Migration failed." and exits with 1.

	scripts, err := migrate.EmbeddedScripts()
	if err != nil {
		return err
	}
	connect := migrate.NewSQLServerConnector(migrate.DefaultConnectionSettings(password))
	result, err := migrate.NewRunner(connect, scripts, os.Stdout).Run(ctx)
*/
package migrate
