package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/hoist/pkg/deploy"
	"github.com/cuemby/hoist/pkg/health"
	"github.com/cuemby/hoist/pkg/installation"
	"github.com/cuemby/hoist/pkg/log"
	"github.com/cuemby/hoist/pkg/metrics"
	"github.com/cuemby/hoist/pkg/migrate"
	"github.com/cuemby/hoist/pkg/prompt"
	"github.com/cuemby/hoist/pkg/security"
	"github.com/cuemby/hoist/pkg/storage"
	"github.com/cuemby/hoist/pkg/types"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// execute runs hoist with args and returns the process exit code
func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	// Abort reasons are status output; the logger reports details on stderr
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(stdout, "Error: %v\n", err)
		return deploy.ExitCode(err)
	}
	return deploy.ExitCode(nil)
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hoist -<name> <value> ...",
		Short: "hoist - single-host deployment orchestrator",
		Long: `hoist installs and updates a self-hosted vault deployment on one host.

Arguments are "-name value" pairs:

  -install true      validate the installation id, generate every artifact
  -update true       regenerate artifacts from config.yml
  -update true -db true
                     apply pending database migrations
  -printenv true     show where the running instance lives

Modifiers: -os win|lin|mac, -corev <version>, -webv <version>,
-domain <name>, -letsencrypt y, -installid <id>, -installkey <key>,
-datadir <dir>, -identityurl <url>, -acmedir <url>, -dbhost <host>,
-probe n, -loglevel debug|info|warn|error, -logjson y, -metrics <file>.`,
		// Arguments use a single dash and are parsed by the params package
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE:               run,
	}
}

func run(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)

	c, err := deploy.NewContext(args)
	if err != nil {
		return err
	}

	log.Init(log.Config{
		Level:  c.Parameters.Get("loglevel"),
		JSON:   c.Parameters.Bool("logjson"),
		Output: cmd.ErrOrStderr(),
	})
	log.Logger.Debug().
		Str("version", Version).
		Str("commit", Commit).
		Str("built", BuildTime).
		Str("data_dir", c.DataDir).
		Msg("Starting hoist")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scripts, err := migrate.EmbeddedScripts()
	if err != nil {
		return fmt.Errorf("failed to load migration scripts: %w", err)
	}

	d := deploy.NewDeployer(newOptions(c, cmd.InOrStdin(), out, scripts))
	defer d.Close()

	err = d.Run(ctx, c)

	if path := c.Parameters.Get("metrics"); path != "" {
		if werr := metrics.WriteTextfile(path); werr != nil {
			log.Logger.Warn().Err(werr).Str("path", path).Msg("Failed to write metrics")
		}
	}
	return err
}

func newOptions(c *types.Context, in io.Reader, out io.Writer, scripts []migrate.Script) deploy.Options {
	dbHost := c.Parameters.Get("dbhost")

	opts := deploy.Options{
		FS: osfs.New(c.DataDir),
		OpenLedger: func() (storage.Store, error) {
			return storage.NewBoltStore(c.DataDir)
		},
		Prompter:  prompt.NewInteractive(in, out),
		Validator: installation.NewValidator(c.Parameters.Get("identityurl")),
		Acquirer:  security.NewACMEAcquirer(c.Parameters.Get("acmedir")),
		Connect: func(password string) migrate.Connector {
			settings := migrate.DefaultConnectionSettings(password)
			if dbHost != "" {
				settings.Host = dbHost
			}
			return migrate.NewSQLServerConnector(settings)
		},
		Scripts: scripts,
		Out:     out,
	}

	if c.Parameters.Get("probe") != "n" {
		opts.Checker = func(url string, insecure bool) health.Checker {
			return health.NewAliveChecker(url, insecure)
		}
	}
	return opts
}
