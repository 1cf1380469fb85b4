// Package cmd contains the CLI command implementations.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/adamancini/unipatch/internal/config"
	"github.com/adamancini/unipatch/internal/fsys"
	"github.com/adamancini/unipatch/internal/host"
	"github.com/adamancini/unipatch/internal/interactive"
	"github.com/adamancini/unipatch/internal/log"
	"github.com/adamancini/unipatch/internal/migrate"
	"github.com/adamancini/unipatch/internal/output"
	"github.com/adamancini/unipatch/internal/update"
)

// ServiceOptions configures how a Service talks to the user.
type ServiceOptions struct {
	Prompter *interactive.Prompter // nil uses a terminal prompter
	Progress io.Writer             // download progress; nil disables it
	Logger   *slog.Logger
}

// Service wires the update orchestrator and the legacy migrator to the
// collaborators selected by a Unipatchfile. Both share one guard.
type Service struct {
	cfg          *config.Config
	orchestrator *update.Orchestrator
	migrator     *migrate.Migrator
	logger       *slog.Logger
}

// StartupReport is the combined result of the startup command.
type StartupReport struct {
	Migration *migrate.Report `json:"migration,omitempty" yaml:"migration,omitempty"`
	Update    *update.Outcome `json:"update,omitempty" yaml:"update,omitempty"`
}

func (r *StartupReport) String() string {
	var s string
	if r.Migration != nil && r.Migration.Result != migrate.ResultAbsent {
		s = r.Migration.String() + "\n"
	}
	if r.Update != nil {
		s += r.Update.String()
	}
	return s
}

// Tone follows the update outcome, or a failed migration.
func (r *StartupReport) Tone() string {
	if r.Migration != nil && r.Migration.Result == migrate.ResultFailed {
		return output.ToneError
	}
	if r.Update != nil {
		return r.Update.Tone()
	}
	return ""
}

// NewService builds a Service from a loaded config.
func NewService(cfg *config.Config, opts ServiceOptions) *Service {
	logger := log.OrDiscard(opts.Logger)

	prompter := opts.Prompter
	if prompter == nil {
		prompter = interactive.NewPrompter()
	}

	gw := fsys.OS{}
	guard := update.NewGuard()
	refresher := newRefresher(cfg)

	deps := update.Deps{
		Versions:  update.NewHTTPVersionSource(cfg.TimeoutDuration()).WithUserAgent("unipatch/" + buildInfo.Version),
		Artifacts: update.NewHTTPDownloader(gw),
		Local:     update.NewFileVersionStore(cfg.VersionFile),
		FS:        gw,
		Consent:   prompter,
		Refresher: refresher,
		Importer:  newImporter(cfg, logger),
		Opener:    host.NewBrowserOpener(),
		Guard:     guard,
		Logger:    logger,
	}
	if opts.Progress != nil {
		deps.Progress = output.NewProgressLine(opts.Progress, "Downloading")
	}

	orchestrator := update.NewOrchestrator(update.Settings{
		VersionURL:   cfg.VersionURL,
		ArtifactURL:  cfg.ArtifactURL,
		InstallDir:   cfg.InstallDir,
		ArtifactPath: cfg.ArtifactPath,
	}, deps)
	orchestrator.OnTransition = func(s update.Status) {
		logger.Debug("update state", "status", s)
	}

	var migrator *migrate.Migrator
	if cfg.LegacyDir != "" {
		migrator = migrate.New(cfg.LegacyDir, gw, prompter,
			migrate.WithRefresher(refresher),
			migrate.WithGuard(guard),
			migrate.WithLogger(logger),
		)
	}

	return &Service{
		cfg:          cfg,
		orchestrator: orchestrator,
		migrator:     migrator,
		logger:       logger,
	}
}

func newRefresher(cfg *config.Config) update.Refresher {
	if len(cfg.RefreshCommand) == 0 {
		return host.NopRefresher{}
	}
	return &host.CommandRefresher{Dir: cfg.ProjectRoot, Argv: cfg.RefreshCommand}
}

func newImporter(cfg *config.Config, logger *slog.Logger) update.Importer {
	switch cfg.Import.Mode {
	case config.ImportCommand:
		return &host.CommandImporter{
			Dir:     cfg.ProjectRoot,
			Argv:    cfg.Import.Command,
			LogFile: cfg.Import.LogFile,
			Logger:  logger,
		}
	case config.ImportNone:
		return host.NopImporter{}
	default:
		return host.NewUnityPackageImporter(cfg.ProjectRoot, logger)
	}
}

// Update runs the update flow, or only the version comparison when checkOnly is set.
func (s *Service) Update(ctx context.Context, checkOnly bool) (*update.Outcome, error) {
	if checkOnly {
		return s.orchestrator.Check(ctx)
	}
	return s.orchestrator.CheckForUpdate(ctx)
}

// Migrate removes the legacy installation if one is configured and present.
func (s *Service) Migrate(ctx context.Context) (*migrate.Report, error) {
	if s.migrator == nil {
		return &migrate.Report{Result: migrate.ResultAbsent}, nil
	}
	return s.migrator.MigrateIfNeeded(ctx)
}

// Startup runs the migrator and then the update flow, as a host would on launch.
// A failed migration does not prevent the update check.
func (s *Service) Startup(ctx context.Context) (*StartupReport, error) {
	report := &StartupReport{}

	m, err := s.Migrate(ctx)
	if err != nil {
		return nil, err
	}
	report.Migration = m

	outcome, err := s.Update(ctx, false)
	if err != nil {
		return nil, err
	}
	report.Update = outcome

	return report, nil
}

// loadService finds and loads the Unipatchfile named by the global flags.
func loadService(yes bool) (*Service, error) {
	dir := projectDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		dir = wd
	}

	path, err := config.FindConfig(configPath, dir)
	if err != nil {
		return nil, err
	}

	logger := log.Stderr(log.Options{Verbose: verbose, Quiet: quiet})
	logger.Debug("using Unipatchfile", "path", path)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	opts := ServiceOptions{
		Prompter: interactive.NewPrompter().AssumeYes(yes),
		Logger:   logger,
	}
	if !quiet {
		opts.Progress = os.Stderr
	}
	return NewService(cfg, opts), nil
}

// runError rewords errors returned before a session produced a result.
func runError(err error) error {
	if errors.Is(err, update.ErrBusy) {
		return fmt.Errorf("another update or migration is already running")
	}
	return err
}

// writeResult prints v in the selected output format.
func writeResult(out io.Writer, v interface{}) error {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	if quiet && format == output.FormatText {
		return nil
	}
	return output.NewWriter(out, format).Write(v)
}
