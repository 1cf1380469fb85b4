// Package migrate removes the installation directory left behind by the old
// packaging layout.
package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/adamancini/unipatch/internal/fsys"
	"github.com/adamancini/unipatch/internal/log"
	"github.com/adamancini/unipatch/internal/update"
)

// Result is what MigrateIfNeeded did.
type Result string

const (
	ResultAbsent   Result = "absent"   // no legacy directory, nothing to do
	ResultDeclined Result = "declined" // user kept the directory; asked again next time
	ResultRemoved  Result = "removed"
	ResultFailed   Result = "failed"
)

// Report describes a migration run.
type Report struct {
	Result    Result `json:"result" yaml:"result"`
	LegacyDir string `json:"legacy_dir" yaml:"legacy_dir"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`

	Err error `json:"-" yaml:"-"`
}

func (r *Report) String() string {
	switch r.Result {
	case ResultAbsent:
		return fmt.Sprintf("No legacy installation at %s", r.LegacyDir)
	case ResultDeclined:
		return fmt.Sprintf("Kept legacy installation at %s", r.LegacyDir)
	case ResultRemoved:
		return fmt.Sprintf("Removed legacy installation at %s", r.LegacyDir)
	default:
		return fmt.Sprintf("Failed to remove legacy installation at %s: %s", r.LegacyDir, r.Error)
	}
}

// Tone colors the text rendering of the report.
func (r *Report) Tone() string {
	switch r.Result {
	case ResultRemoved:
		return "success"
	case ResultDeclined:
		return "warning"
	case ResultFailed:
		return "error"
	default:
		return ""
	}
}

// Migrator deletes the legacy installation directory after asking the user.
type Migrator struct {
	legacyDir string
	fs        fsys.Gateway
	consent   update.Consent
	refresher update.Refresher
	guard     *update.Guard
	logger    *slog.Logger
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithRefresher triggers a host filesystem refresh after removal.
func WithRefresher(r update.Refresher) Option {
	return func(m *Migrator) { m.refresher = r }
}

// WithGuard shares the single-session guard with the update orchestrator.
func WithGuard(g *update.Guard) Option {
	return func(m *Migrator) { m.guard = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Migrator) { m.logger = l }
}

// New creates a migrator for legacyDir.
func New(legacyDir string, fs fsys.Gateway, consent update.Consent, opts ...Option) *Migrator {
	m := &Migrator{
		legacyDir: legacyDir,
		fs:        fs,
		consent:   consent,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.guard == nil {
		m.guard = update.NewGuard()
	}
	m.logger = log.OrDiscard(m.logger).With("component", "migrate")
	return m
}

// MigrateIfNeeded removes the legacy directory if it exists and the user
// agrees. A refusal is not remembered. The error is update.ErrBusy when an
// update session is running; everything else is in the Report.
func (m *Migrator) MigrateIfNeeded(ctx context.Context) (*Report, error) {
	release, ok := m.guard.TryAcquire()
	if !ok {
		return nil, update.ErrBusy
	}
	defer release()

	report := &Report{LegacyDir: m.legacyDir}

	exists, err := m.fs.Exists(m.legacyDir)
	if err != nil {
		report.Result = ResultFailed
		report.Err = fmt.Errorf("failed to stat legacy directory: %w", err)
		report.Error = report.Err.Error()
		return report, nil
	}
	if !exists {
		m.logger.Debug("no legacy installation found", "dir", m.legacyDir)
		report.Result = ResultAbsent
		return report, nil
	}

	ok, err = m.consent.Confirm(ctx, "Legacy installation found", fmt.Sprintf(
		"An installation from an older version was found at %s. Remove it now?", m.legacyDir))
	if err != nil {
		m.logger.Debug("prompt aborted", "error", err)
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil || !ok {
		m.logger.Info("legacy installation kept", "dir", m.legacyDir)
		report.Result = ResultDeclined
		return report, nil
	}

	if err := m.fs.DeleteTree(m.legacyDir); err != nil {
		m.logger.Error("failed to remove legacy installation", "dir", m.legacyDir, "error", err)
		report.Result = ResultFailed
		report.Err = err
		report.Error = err.Error()
		m.notify(ctx, "Migration failed", fmt.Sprintf(
			"Could not remove %s: %v. Please delete it manually.", m.legacyDir, err))
		return report, nil
	}

	m.removeMeta()

	if m.refresher != nil {
		if err := m.refresher.Refresh(ctx); err != nil {
			m.logger.Warn("filesystem refresh failed", "error", err)
		}
	}

	m.logger.Info("removed legacy installation", "dir", m.legacyDir)
	report.Result = ResultRemoved
	m.notify(ctx, "Migration complete", fmt.Sprintf("Removed the legacy installation at %s.", m.legacyDir))
	return report, nil
}

// removeMeta deletes the editor's metadata file next to the legacy folder.
// Failure is logged, not reported.
func (m *Migrator) removeMeta() {
	meta := filepath.Clean(m.legacyDir) + ".meta"
	exists, err := m.fs.Exists(meta)
	if err != nil || !exists {
		return
	}
	if err := m.fs.DeleteEntry(meta); err != nil {
		m.logger.Warn("failed to remove legacy metadata file", "path", meta, "error", err)
	}
}

func (m *Migrator) notify(ctx context.Context, title, message string) {
	if err := m.consent.Acknowledge(ctx, title, message); err != nil {
		m.logger.Debug("notice not acknowledged", "title", title, "error", err)
	}
}
