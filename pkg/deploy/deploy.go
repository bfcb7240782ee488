package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/hoist/pkg/builder"
	"github.com/cuemby/hoist/pkg/health"
	"github.com/cuemby/hoist/pkg/installation"
	"github.com/cuemby/hoist/pkg/log"
	"github.com/cuemby/hoist/pkg/metrics"
	"github.com/cuemby/hoist/pkg/migrate"
	"github.com/cuemby/hoist/pkg/prompt"
	"github.com/cuemby/hoist/pkg/state"
	"github.com/cuemby/hoist/pkg/storage"
	"github.com/cuemby/hoist/pkg/types"
	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Validator confirms an installation id with the identity service
type Validator interface {
	Validate(ctx context.Context, id uuid.UUID) error
}

// Options wires a Deployer to its collaborators
type Options struct {
	// FS is rooted at the data directory
	FS billy.Filesystem

	// OpenLedger opens the artifact ledger. It is called only once a command
	// is about to write. Nil disables the ledger.
	OpenLedger func() (storage.Store, error)

	Prompter  prompt.Prompter
	Validator Validator
	Acquirer  builder.Acquirer

	// Connect builds a migration connector for the database password
	Connect func(password string) migrate.Connector
	Scripts []migrate.Script
	// Sleep overrides the migration retry wait
	Sleep migrate.SleepFunc

	// Checker builds the printenv probe; nil skips probing
	Checker     func(url string, insecure bool) health.Checker
	HealthCheck health.Config

	// Out receives operator-facing output
	Out io.Writer
}

// Deployer runs the dispatched command against one Context
type Deployer struct {
	opts   Options
	ledger storage.Store
	logger zerolog.Logger
}

// NewDeployer creates a Deployer
func NewDeployer(opts Options) *Deployer {
	if opts.Prompter == nil {
		opts.Prompter = prompt.NonInteractive{}
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.HealthCheck.Retries == 0 {
		opts.HealthCheck = health.DefaultConfig()
	}
	return &Deployer{
		opts:   opts,
		logger: log.WithComponent("deploy"),
	}
}

// Close releases the ledger if it was opened
func (d *Deployer) Close() error {
	if d.ledger == nil {
		return nil
	}
	err := d.ledger.Close()
	d.ledger = nil
	return err
}

// Run dispatches the command selected by c.Parameters
func (d *Deployer) Run(ctx context.Context, c *types.Context) error {
	action := Route(c.Parameters)
	runID := uuid.NewString()
	logger := log.WithRun(string(action), runID)
	started := time.Now().UTC()

	var err error
	switch action {
	case ActionInstall:
		err = d.install(ctx, c)
	case ActionRebuild:
		err = d.rebuild(ctx, c)
	case ActionUpdateDB:
		err = d.updateDatabase(ctx, c)
	case ActionPrintEnv:
		err = d.printEnvironment(ctx, c)
	default:
		fmt.Fprintln(d.opts.Out, "No top-level command detected. Exiting...")
	}

	code := ExitCode(err)
	metrics.CommandsTotal.WithLabelValues(string(action), strconv.Itoa(code)).Inc()
	if err != nil {
		logger.Error().Err(err).Int("exit_code", code).Msg("Command failed")
	} else {
		logger.Debug().Dur("took", time.Since(started)).Msg("Command finished")
	}

	if action != ActionNone && action != ActionPrintEnv {
		d.recordRun(c, runID, action, started, err)
	}
	return err
}

// recordRun appends the run to the ledger when the ledger has been opened.
// Commands aborted before writing anything leave no trace.
func (d *Deployer) recordRun(c *types.Context, runID string, action Action, started time.Time, err error) {
	if d.ledger == nil {
		return
	}
	run := &types.Run{
		ID:          runID,
		Action:      string(action),
		CoreVersion: c.CoreVersion,
		WebVersion:  c.WebVersion,
		StartedAt:   started,
		FinishedAt:  time.Now().UTC(),
		Successful:  err == nil,
	}
	if err != nil {
		run.Error = err.Error()
	}
	if err := d.ledger.CreateRun(run); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to record run")
	}
}

func (d *Deployer) openLedger() error {
	if d.ledger != nil || d.opts.OpenLedger == nil {
		return nil
	}
	ledger, err := d.opts.OpenLedger()
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	d.ledger = ledger
	return nil
}

func (d *Deployer) writer() *builder.Writer {
	return builder.NewWriter(d.opts.FS, d.ledger)
}

func (d *Deployer) pipeline(w *builder.Writer) *builder.Pipeline {
	return builder.NewDefaultPipeline(w, d.opts.Prompter, d.opts.Acquirer, d.opts.Out)
}

// install validates the installation, generates every artifact and saves
// the Context. Nothing is written before validation succeeds.
func (d *Deployer) install(ctx context.Context, c *types.Context) error {
	if state.Exists(d.opts.FS) {
		if err := state.Load(d.opts.FS, c); err != nil {
			return err
		}
		d.logger.Info().Msg("Existing configuration found, reusing its settings and secrets")
	}

	if domain, ok := c.Parameters.Lookup("domain"); ok {
		c.Install.Domain = strings.ToLower(strings.TrimSpace(domain))
	}
	if c.Install.Domain == "" {
		domain, err := d.opts.Prompter.Ask("Enter the domain name for your instance (ex. vault.example.com)")
		if err != nil {
			return err
		}
		c.Install.Domain = strings.ToLower(domain)
	}
	if c.Install.Domain == "" {
		c.Install.Domain = "localhost"
	}

	if err := d.validateInstallation(ctx, c); err != nil {
		return err
	}

	if err := d.openLedger(); err != nil {
		return err
	}
	if err := d.pipeline(d.writer()).Install(ctx, c); err != nil {
		return err
	}
	if err := state.Save(d.opts.FS, c); err != nil {
		return err
	}

	out := d.opts.Out
	fmt.Fprintln(out, "\n✓ Installation complete")
	fmt.Fprintf(out, "\nIf you need to make additional configuration changes, you can modify\n"+
		"the settings in `%s` and then run:\n%s\n", configPath(c), script(c, "rebuild")+" or "+script(c, "update"))
	fmt.Fprintln(out, "\nNext steps, run:")
	fmt.Fprintf(out, "%s and then %s\n\n", script(c, "start"), script(c, "updatedb"))
	return nil
}

// validateInstallation gates install on the identity service
func (d *Deployer) validateInstallation(ctx context.Context, c *types.Context) error {
	input, ok := c.Parameters.Lookup("installid")
	if !ok {
		var err error
		input, err = d.opts.Prompter.Ask("Enter your installation id (get at https://hoist.cuemby.com/host)")
		if err != nil {
			return err
		}
	}
	id, err := installation.ParseID(input)
	if err != nil {
		return err
	}

	key, ok := c.Parameters.Lookup("installkey")
	if !ok {
		key, err = d.opts.Prompter.Ask("Enter your installation key")
		if err != nil {
			return err
		}
	}

	if d.opts.Validator == nil {
		return errors.New("no installation validator configured")
	}
	if err := d.opts.Validator.Validate(ctx, id); err != nil {
		return err
	}

	c.Install.InstallationId = id.String()
	c.Install.InstallationKey = strings.TrimSpace(key)
	fmt.Fprintf(d.opts.Out, "✓ Installation %s validated\n", id)
	return nil
}

// rebuild regenerates the artifacts from the saved Context
func (d *Deployer) rebuild(ctx context.Context, c *types.Context) error {
	if err := state.Load(d.opts.FS, c); err != nil {
		return err
	}
	if err := d.openLedger(); err != nil {
		return err
	}
	if err := d.pipeline(d.writer()).Update(ctx, c); err != nil {
		return err
	}
	if err := state.Save(d.opts.FS, c); err != nil {
		return err
	}
	fmt.Fprintln(d.opts.Out, "✓ Configuration rebuilt")
	fmt.Fprintln(d.opts.Out)
	return nil
}

// updateDatabase runs the migration runner. A handled failure is returned as
// *MigrationFailedError, exhausted retries as *migrate.RetriesExhaustedError.
func (d *Deployer) updateDatabase(ctx context.Context, c *types.Context) error {
	if d.opts.Connect == nil {
		return errors.New("no database connector configured")
	}
	if err := d.openLedger(); err != nil {
		return err
	}

	password, err := builder.ReadEnvValue(d.writer(), builder.MssqlOverrideEnvPath, builder.SaPasswordKey)
	if err != nil {
		d.logger.Warn().Err(err).Msg("Database password not found, connecting without one")
	}

	runner := migrate.NewRunner(d.opts.Connect(password), d.opts.Scripts, d.opts.Out)
	if d.opts.Sleep != nil {
		runner.Sleep = d.opts.Sleep
	}

	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	if !result.Successful {
		return &MigrationFailedError{Result: result}
	}
	return nil
}

// printEnvironment shows where the running instance lives
func (d *Deployer) printEnvironment(ctx context.Context, c *types.Context) error {
	if err := state.Load(d.opts.FS, c); err != nil {
		return err
	}

	out := d.opts.Out
	fmt.Fprintln(out, "\nhoist is up and running!")
	fmt.Fprintln(out, "===================================================")
	fmt.Fprintf(out, "\nvisit %s\n", c.Config.Url)
	fmt.Fprintf(out, "to update, run %s and then %s\n", script(c, "updateself"), script(c, "update"))

	if d.opts.Checker != nil && c.Config.Url != "" {
		insecure := c.Config.Ssl && !c.Config.SslManagedLetsEncrypt
		result := health.Probe(ctx, d.opts.Checker(c.Config.Url, insecure), d.opts.HealthCheck)
		if result.Healthy {
			fmt.Fprintf(out, "✓ %s is answering (%s)\n", c.Config.Url, result.Message)
		} else {
			fmt.Fprintf(out, "warning: %s is not answering: %s\n", c.Config.Url, result.Message)
		}
	}

	if err := d.openLedger(); err != nil {
		d.logger.Warn().Err(err).Msg("Ledger unavailable")
	} else if d.ledger != nil {
		d.printDrift()
		run, err := d.ledger.LastSuccessfulRun()
		switch {
		case err == nil:
			fmt.Fprintf(out, "last successful run: %s at %s (core %s, web %s)\n",
				run.Action, run.FinishedAt.Format(time.RFC3339), run.CoreVersion, run.WebVersion)
		case errors.Is(err, storage.ErrNotFound):
		default:
			d.logger.Warn().Err(err).Msg("Failed to read run history")
		}
	}

	fmt.Fprintln(out)
	return nil
}

// printDrift warns about generated files edited since hoist last wrote them
func (d *Deployer) printDrift() {
	drifted, err := d.writer().Drifted()
	if err != nil {
		d.logger.Warn().Err(err).Msg("Failed to compare artifacts with the ledger")
		return
	}
	for _, name := range drifted {
		fmt.Fprintf(d.opts.Out, "warning: %s was changed by hand, update will save it as %s and regenerate it\n",
			name, name+builder.BackupSuffix)
	}
}

// script formats a helper script invocation for the host OS
func script(c *types.Context, command string) string {
	if c.IsWindows() {
		return fmt.Sprintf("`.\\hoist.ps1 -%s`", command)
	}
	return fmt.Sprintf("`./hoist.sh %s`", command)
}

// configPath formats the config.yml location for the host OS
func configPath(c *types.Context) string {
	p := path.Join(c.DataDir, state.FileName)
	if !path.IsAbs(p) {
		p = "./" + p
	}
	if c.IsWindows() {
		p = strings.ReplaceAll(p, "/", "\\")
	}
	return p
}
