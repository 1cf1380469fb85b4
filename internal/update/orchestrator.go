package update

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/adamancini/unipatch/internal/fsys"
	"github.com/adamancini/unipatch/internal/log"
)

// Settings are the process-wide locations the orchestrator works with.
type Settings struct {
	VersionURL   string // plaintext remote version
	ArtifactURL  string // distributable package
	InstallDir   string // previous installation, purged before download
	ArtifactPath string // where the downloaded package is written
}

// Deps are the collaborators of the update flow. Refresher, Importer, Opener,
// Progress, Guard and Logger are optional.
type Deps struct {
	Versions  VersionSource
	Artifacts ArtifactSource
	Local     VersionStore
	FS        fsys.Gateway
	Consent   Consent
	Refresher Refresher
	Importer  Importer
	Opener    Opener
	Progress  ProgressObserver
	Guard     *Guard
	Logger    *slog.Logger
}

// Orchestrator runs the update flow: compare versions, ask, purge, ask again,
// download, import. Each call starts from the version check.
type Orchestrator struct {
	settings Settings
	deps     Deps
	logger   *slog.Logger

	// OnTransition, if set, observes every state change of a session.
	OnTransition func(Status)
}

// NewOrchestrator creates an orchestrator. A nil Guard gets a private one.
func NewOrchestrator(settings Settings, deps Deps) *Orchestrator {
	if deps.Guard == nil {
		deps.Guard = NewGuard()
	}
	return &Orchestrator{
		settings: settings,
		deps:     deps,
		logger:   log.OrDiscard(deps.Logger).With("component", "update"),
	}
}

// CheckForUpdate runs the whole flow. The error is ErrBusy when another
// session holds the guard; every other result is reported in the Outcome.
func (o *Orchestrator) CheckForUpdate(ctx context.Context) (*Outcome, error) {
	release, ok := o.deps.Guard.TryAcquire()
	if !ok {
		return nil, ErrBusy
	}
	defer release()

	s := newSession(o.OnTransition)
	if o.compare(ctx, s) {
		o.install(ctx, s)
	}

	o.logger.Info("update session finished", "status", s.Status, "kind", s.Kind)
	return s.outcome(), nil
}

// Check only compares versions. It never prompts or touches the filesystem
// beyond reading the local version file.
func (o *Orchestrator) Check(ctx context.Context) (*Outcome, error) {
	release, ok := o.deps.Guard.TryAcquire()
	if !ok {
		return nil, ErrBusy
	}
	defer release()

	s := newSession(o.OnTransition)
	o.compare(ctx, s)
	return s.outcome(), nil
}

// compare fetches both versions and returns true if an update is available.
func (o *Orchestrator) compare(ctx context.Context, s *Session) bool {
	s.transition(StatusCheckingVersion)

	remote, err := o.deps.Versions.FetchText(ctx, o.settings.VersionURL)
	if err != nil {
		o.logger.Warn("version check failed", "url", o.settings.VersionURL, "error", err)
		s.fail(KindNetwork, &Error{Kind: KindNetwork, Op: "fetch version", Target: o.settings.VersionURL, Err: err})
		return false
	}
	s.RemoteVersion = NormalizeVersion(remote)

	local, err := o.deps.Local.ReadVersion()
	if err != nil {
		s.fail(KindIO, &Error{Kind: KindIO, Op: "read local version", Err: err})
		return false
	}
	s.LocalVersion = NormalizeVersion(local)
	if s.LocalVersion == "" {
		o.logger.Debug("no local version recorded")
	}

	if !IsUpdate(s.LocalVersion, s.RemoteVersion) {
		o.logger.Debug("already up to date", "version", s.LocalVersion)
		s.transition(StatusUpToDate)
		return false
	}

	if IsDowngrade(s.LocalVersion, s.RemoteVersion) {
		o.logger.Warn("remote version is lower than the installed one",
			"local", s.LocalVersion, "remote", s.RemoteVersion)
	}

	o.logger.Info("update available", "local", displayVersion(s.LocalVersion), "remote", s.RemoteVersion)
	s.transition(StatusUpdateAvailable)
	return true
}

func (o *Orchestrator) install(ctx context.Context, s *Session) {
	s.transition(StatusAwaitingApproval)
	if !o.confirm(ctx, "Update available", fmt.Sprintf(
		"A new version is available (installed: %s, latest: %s). Update now?",
		displayVersion(s.LocalVersion), s.RemoteVersion)) {
		s.cancel()
		return
	}
	err := o.acknowledge(ctx, "Before updating", fmt.Sprintf(
		"The current installation in %s will be removed before the new version is downloaded. "+
			"If the install is cancelled after this point the package must be reinstalled manually.",
		o.settings.InstallDir))
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		o.logger.Info("update aborted before purge", "error", err)
		s.cancel()
		return
	}

	if !o.purge(ctx, s) {
		return
	}

	if o.deps.Refresher != nil {
		if err := o.deps.Refresher.Refresh(ctx); err != nil {
			o.logger.Warn("filesystem refresh failed", "error", err)
		}
	}

	s.transition(StatusAwaitingInstallConsent)
	if !o.confirm(ctx, "Install update", fmt.Sprintf(
		"The previous installation has been removed. Download and install version %s now?", s.RemoteVersion)) {
		o.logger.Warn("install declined after purge; the package is no longer installed",
			"dir", o.settings.InstallDir)
		s.cancel()
		return
	}

	if !o.download(ctx, s) {
		return
	}

	if o.deps.Importer != nil {
		if err := o.deps.Importer.Import(ctx, s.ArtifactTempPath); err != nil {
			s.fail(KindImport, &Error{Kind: KindImport, Op: "import", Target: s.ArtifactTempPath, Err: err})
			_ = o.acknowledge(ctx, "Install failed", fmt.Sprintf(
				"The update was downloaded to %s but could not be imported: %v", s.ArtifactTempPath, err))
			return
		}
	}

	s.transition(StatusInstalled)
}

func (o *Orchestrator) purge(ctx context.Context, s *Session) bool {
	s.transition(StatusPurging)

	result, err := fsys.Purge(o.deps.FS, o.settings.InstallDir)
	if err != nil {
		kind := KindIO
		if errors.Is(err, fsys.ErrDirectoryNotFound) {
			kind = KindDirectoryNotFound
		}
		s.fail(kind, &Error{Kind: kind, Op: "purge", Target: o.settings.InstallDir, Err: err})
		o.logger.Error("purge failed", "dir", o.settings.InstallDir, "error", err)
		msg := fmt.Sprintf("Could not remove the installation in %s: %v.", o.settings.InstallDir, err)
		if kind == KindDirectoryNotFound {
			msg = fmt.Sprintf("Could not find the installation in %s.", o.settings.InstallDir)
		}
		_ = o.acknowledge(ctx, "Update failed", fmt.Sprintf(
			"%s Please update manually by downloading %s.", msg, o.settings.ArtifactURL))
		return false
	}

	s.Purge = result
	o.logger.Info("purged installation", "dir", result.Dir, "deleted", len(result.Deleted), "failed", len(result.Failed))

	if !result.OK() {
		for _, f := range result.Failed {
			o.logger.Warn("could not delete entry", "path", f.Path, "error", f.Err)
		}
		s.recordError(KindIO, &Error{Kind: KindIO, Op: "delete", Target: result.Failed[0].Path, Err: result.FirstError()})
		_ = o.acknowledge(ctx, "Some files could not be removed", result.Summary())
	}

	return true
}

func (o *Orchestrator) download(ctx context.Context, s *Session) bool {
	s.transition(StatusDownloading)
	s.ArtifactTempPath = o.settings.ArtifactPath

	tracker := newProgressTracker(o.deps.Progress)
	err := o.deps.Artifacts.FetchToFile(ctx, o.settings.ArtifactURL, s.ArtifactTempPath, tracker.Report)
	if err != nil {
		tracker.Clear()
		s.fail(KindDownload, &Error{Kind: KindDownload, Op: "download", Target: o.settings.ArtifactURL, Err: err})
		o.logger.Error("download failed", "url", o.settings.ArtifactURL, "error", err)

		if o.deps.Opener != nil && o.confirm(ctx, "Download failed", fmt.Sprintf(
			"Could not download the update: %v. Open %s in your browser to download it manually?",
			err, o.settings.ArtifactURL)) {
			if err := o.deps.Opener.Open(o.settings.ArtifactURL); err != nil {
				o.logger.Warn("failed to open artifact URL", "error", err)
			}
		}
		return false
	}

	// Some sources only report intermediate values; make sure the indicator ends.
	tracker.Report(100)
	o.logger.Info("downloaded update", "path", s.ArtifactTempPath)
	return true
}

// confirm treats a prompt error as a refusal.
func (o *Orchestrator) confirm(ctx context.Context, title, message string) bool {
	ok, err := o.deps.Consent.Confirm(ctx, title, message)
	if err != nil {
		o.logger.Debug("prompt aborted", "title", title, "error", err)
		return false
	}
	return ok
}

// acknowledge returns the prompt error so callers about to do something
// irreversible can stop. Other callers ignore it.
func (o *Orchestrator) acknowledge(ctx context.Context, title, message string) error {
	err := o.deps.Consent.Acknowledge(ctx, title, message)
	if err != nil {
		o.logger.Debug("notice not acknowledged", "title", title, "error", err)
	}
	return err
}
