package update

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const (
	titleUpdate   = "Update available"
	titleNotice   = "Before updating"
	titleInstall  = "Install update"
	titleDownload = "Download failed"
)

type harness struct {
	ev          *events
	root        string
	settings    Settings
	versions    *fakeVersions
	store       *fakeStore
	artifacts   *fakeArtifacts
	consent     *fakeConsent
	progress    *fakeProgress
	importer    *fakeImporter
	fs          *recordingFS
	guard       *Guard
	ctx         context.Context
	transitions []Status
}

func newHarness(t *testing.T, local, remote string) *harness {
	t.Helper()

	root := t.TempDir()
	installDir := filepath.Join(root, "Assets", "EditorKit")
	if err := os.MkdirAll(filepath.Join(installDir, "Editor"), 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.cs", "b.cs", "version.txt"} {
		if err := os.WriteFile(filepath.Join(installDir, name), []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
	}

	ev := &events{}
	return &harness{
		ev:   ev,
		root: root,
		settings: Settings{
			VersionURL:   "https://example.test/version.txt",
			ArtifactURL:  "https://example.test/EditorKit.unitypackage",
			InstallDir:   installDir,
			ArtifactPath: filepath.Join(root, "Temp", "EditorKit.unitypackage"),
		},
		versions:  &fakeVersions{ev: ev, version: remote},
		store:     &fakeStore{version: local},
		artifacts: &fakeArtifacts{ev: ev, content: "new package"},
		consent:   &fakeConsent{ev: ev, answers: map[string]bool{}},
		progress:  &fakeProgress{ev: ev},
		importer:  &fakeImporter{ev: ev},
		fs:        &recordingFS{ev: ev},
		guard:     NewGuard(),
		ctx:       context.Background(),
	}
}

func (h *harness) accept(titles ...string) {
	for _, title := range titles {
		h.consent.answers[title] = true
	}
}

func (h *harness) run(t *testing.T) *Outcome {
	t.Helper()

	o := NewOrchestrator(h.settings, Deps{
		Versions:  h.versions,
		Artifacts: h.artifacts,
		Local:     h.store,
		FS:        h.fs,
		Consent:   h.consent,
		Refresher: &fakeRefresher{ev: h.ev},
		Importer:  h.importer,
		Opener:    &fakeOpener{ev: h.ev},
		Progress:  h.progress,
		Guard:     h.guard,
	})
	o.OnTransition = func(s Status) { h.transitions = append(h.transitions, s) }

	outcome, err := o.CheckForUpdate(h.ctx)
	if err != nil {
		t.Fatalf("CheckForUpdate() error = %v", err)
	}
	return outcome
}

func (h *harness) installEntries(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(h.settings.InstallDir)
	if err != nil {
		t.Fatalf("failed to read install dir: %v", err)
	}
	return len(entries)
}

func TestCheckForUpdate_EqualVersionsHaveNoSideEffects(t *testing.T) {
	pairs := []struct {
		name   string
		local  string
		remote string
	}{
		{"identical", "1.2.0", "1.2.0"},
		{"trailing newline", "1.2.0\n", "1.2.0"},
		{"byte order mark", "\ufeff1.2.0", "1.2.0\r\n"},
		{"non-semver token", "nightly-2024-05-01", "nightly-2024-05-01"},
	}

	for _, tt := range pairs {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.local, tt.remote)
			h.accept(titleUpdate, titleInstall)

			outcome := h.run(t)

			if outcome.Status != StatusUpToDate {
				t.Fatalf("Status = %v, want %v", outcome.Status, StatusUpToDate)
			}
			if got := h.ev.list(); len(got) != 1 || h.ev.index("fetch-version") != 0 {
				t.Errorf("expected only the version fetch, got %v", got)
			}
			if h.installEntries(t) != 4 {
				t.Error("install directory should be untouched")
			}
		})
	}
}

func TestCheckForUpdate_FullInstall(t *testing.T) {
	h := newHarness(t, "1.2.0", "1.3.0")
	h.accept(titleUpdate, titleInstall)
	h.artifacts.progress = []int{25, 50, 75, 100}

	outcome := h.run(t)

	if outcome.Status != StatusInstalled {
		t.Fatalf("Status = %v (%s), want installed", outcome.Status, outcome.Error)
	}
	if outcome.Kind != KindNone {
		t.Errorf("Kind = %q, want none", outcome.Kind)
	}
	if outcome.LocalVersion != "1.2.0" || outcome.RemoteVersion != "1.3.0" {
		t.Errorf("versions = %s -> %s", outcome.LocalVersion, outcome.RemoteVersion)
	}
	if h.installEntries(t) != 0 {
		t.Error("old entries should have been purged")
	}
	if outcome.Purge == nil || len(outcome.Purge.Deleted) != 4 {
		t.Errorf("Purge = %+v, want 4 deleted entries", outcome.Purge)
	}

	content, err := os.ReadFile(outcome.ArtifactPath)
	if err != nil {
		t.Fatalf("artifact not written: %v", err)
	}
	if string(content) != "new package" {
		t.Errorf("artifact content = %q", content)
	}

	wantTransitions := []Status{
		StatusCheckingVersion,
		StatusUpdateAvailable,
		StatusAwaitingApproval,
		StatusPurging,
		StatusAwaitingInstallConsent,
		StatusDownloading,
		StatusInstalled,
	}
	if !reflect.DeepEqual(h.transitions, wantTransitions) {
		t.Errorf("transitions = %v, want %v", h.transitions, wantTransitions)
	}
	if outcome.Transitions[0] != StatusIdle {
		t.Errorf("outcome transitions should start at idle, got %v", outcome.Transitions)
	}

	// Ordering: approval, deletes, refresh, install consent, download, import.
	order := []string{
		"confirm " + titleUpdate,
		"fs-delete",
		"refresh",
		"confirm " + titleInstall,
		"download",
		"import",
	}
	last := -1
	for _, prefix := range order {
		i := h.ev.index(prefix)
		if i <= last {
			t.Fatalf("event %q at %d, expected after %d; events: %v", prefix, i, last, h.ev.list())
		}
		last = i
	}
}

func TestCheckForUpdate_ApprovalPrecedesDeletion(t *testing.T) {
	for _, accept := range []bool{true, false} {
		h := newHarness(t, "1.2.0", "2.0.0")
		if accept {
			h.accept(titleUpdate)
		}

		h.run(t)

		approval := h.ev.index("confirm " + titleUpdate)
		if approval < 0 {
			t.Fatalf("approval prompt never shown; events: %v", h.ev.list())
		}
		if del := h.ev.index("fs-delete"); del >= 0 && del < approval {
			t.Errorf("deletion at %d happened before approval at %d", del, approval)
		}
	}
}

func TestCheckForUpdate_DeclineApproval(t *testing.T) {
	h := newHarness(t, "1.2.0", "1.3.0")

	outcome := h.run(t)

	if outcome.Status != StatusCancelled {
		t.Fatalf("Status = %v, want cancelled", outcome.Status)
	}
	if outcome.Kind != KindUserDeclined {
		t.Errorf("Kind = %q, want %q", outcome.Kind, KindUserDeclined)
	}
	if outcome.Err != nil {
		t.Errorf("declining is not an error, got %v", outcome.Err)
	}
	if n := h.ev.count("fs-"); n != 0 {
		t.Errorf("expected no filesystem calls, got %d", n)
	}
	if h.installEntries(t) != 4 {
		t.Error("install directory should be untouched")
	}
	if h.ev.count("download") != 0 {
		t.Error("no download should be issued")
	}
}

func TestCheckForUpdate_MissingInstallDirectory(t *testing.T) {
	h := newHarness(t, "1.2.0", "1.3.0")
	h.accept(titleUpdate, titleInstall)
	if err := os.RemoveAll(h.settings.InstallDir); err != nil {
		t.Fatal(err)
	}

	outcome := h.run(t)

	if outcome.Status != StatusFailed {
		t.Fatalf("Status = %v, want failed", outcome.Status)
	}
	if outcome.Kind != KindDirectoryNotFound {
		t.Errorf("Kind = %q, want %q", outcome.Kind, KindDirectoryNotFound)
	}
	if KindOf(outcome.Err) != KindDirectoryNotFound {
		t.Errorf("KindOf(Err) = %q", KindOf(outcome.Err))
	}
	if h.ev.count("download") != 0 {
		t.Error("artifact endpoint must not be contacted")
	}
	if h.ev.count("confirm "+titleInstall) != 0 {
		t.Error("install consent must not be asked")
	}
	if h.ev.index("ack Update failed") < 0 {
		t.Error("user should be told to update manually")
	}
}

func TestCheckForUpdate_DeclineInstallAfterPurge(t *testing.T) {
	h := newHarness(t, "1.2.0", "1.3.0")
	h.accept(titleUpdate)

	outcome := h.run(t)

	if outcome.Status != StatusCancelled {
		t.Fatalf("Status = %v, want cancelled", outcome.Status)
	}
	if h.installEntries(t) != 0 {
		t.Error("purge should already have run")
	}
	if h.ev.count("download") != 0 {
		t.Error("no download should be issued")
	}
	if _, err := os.Stat(h.settings.ArtifactPath); !os.IsNotExist(err) {
		t.Error("artifact should not exist")
	}
}

func TestCheckForUpdate_InterruptedAtNoticeKeepsInstall(t *testing.T) {
	h := newHarness(t, "1.2.0", "1.3.0")
	h.accept(titleUpdate, titleInstall)
	h.consent.ackErr = map[string]error{titleNotice: context.Canceled}

	outcome := h.run(t)

	if outcome.Status != StatusCancelled {
		t.Fatalf("Status = %v, want cancelled", outcome.Status)
	}
	if outcome.Kind != KindUserDeclined {
		t.Errorf("Kind = %q, want %q", outcome.Kind, KindUserDeclined)
	}
	if n := h.ev.count("fs-delete"); n != 0 {
		t.Errorf("fs-delete events = %d, want 0: %v", n, h.ev.list())
	}
	if h.installEntries(t) != 4 {
		t.Error("install directory should be untouched")
	}
	if h.ev.count("download") != 0 {
		t.Error("no download should be issued")
	}
}

func TestCheckForUpdate_ContextCancelledBeforePurge(t *testing.T) {
	h := newHarness(t, "1.2.0", "1.3.0")
	h.accept(titleUpdate, titleInstall)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.ctx = ctx
	h.consent.onAck = func(title string) {
		if title == titleNotice {
			cancel()
		}
	}

	outcome := h.run(t)

	if outcome.Status != StatusCancelled {
		t.Fatalf("Status = %v, want cancelled", outcome.Status)
	}
	if h.ev.count("fs-delete") != 0 || h.installEntries(t) != 4 {
		t.Errorf("nothing should be deleted: %v", h.ev.list())
	}
}

func TestCheckForUpdate_VersionFetchFails(t *testing.T) {
	h := newHarness(t, "1.2.0", "")
	h.versions.err = errOffline
	h.accept(titleUpdate, titleInstall)

	outcome := h.run(t)

	if outcome.Status != StatusFailed || outcome.Kind != KindNetwork {
		t.Fatalf("outcome = %v/%q, want failed/%q", outcome.Status, outcome.Kind, KindNetwork)
	}
	if !errors.Is(outcome.Err, errOffline) {
		t.Errorf("Err should wrap the network error, got %v", outcome.Err)
	}
	if h.ev.count("confirm") != 0 || h.ev.count("fs-") != 0 {
		t.Errorf("expected no prompts or filesystem calls, got %v", h.ev.list())
	}
}

func TestCheckForUpdate_LocalVersionUnreadable(t *testing.T) {
	h := newHarness(t, "", "1.3.0")
	h.store.err = os.ErrPermission

	outcome := h.run(t)

	if outcome.Status != StatusFailed || outcome.Kind != KindIO {
		t.Fatalf("outcome = %v/%q, want failed/%q", outcome.Status, outcome.Kind, KindIO)
	}
	if h.ev.count("confirm") != 0 {
		t.Error("no prompt expected")
	}
}

func TestCheckForUpdate_NoLocalVersionIsStale(t *testing.T) {
	h := newHarness(t, "", "1.3.0")

	outcome := h.run(t)

	if outcome.Status != StatusCancelled {
		t.Fatalf("Status = %v, want cancelled after declined approval", outcome.Status)
	}
	if h.ev.count("confirm "+titleUpdate) != 1 {
		t.Error("missing local version should be offered an update")
	}
}

func TestCheckForUpdate_LowerRemoteStillUpdates(t *testing.T) {
	h := newHarness(t, "1.3.0", "1.2.0")
	h.accept(titleUpdate, titleInstall)

	outcome := h.run(t)

	if outcome.Status != StatusInstalled {
		t.Fatalf("Status = %v, want installed (exact-match comparison)", outcome.Status)
	}
}

func TestCheckForUpdate_DownloadFails(t *testing.T) {
	h := newHarness(t, "1.2.0", "1.3.0")
	h.accept(titleUpdate, titleInstall, titleDownload)
	h.artifacts.err = io.ErrUnexpectedEOF

	outcome := h.run(t)

	if outcome.Status != StatusFailed || outcome.Kind != KindDownload {
		t.Fatalf("outcome = %v/%q, want failed/%q", outcome.Status, outcome.Kind, KindDownload)
	}
	if h.ev.index("confirm "+titleDownload) < 0 {
		t.Error("user should be offered the manual download")
	}
	if h.ev.index("open "+h.settings.ArtifactURL) < 0 {
		t.Error("artifact URL should be opened after the user accepts")
	}
	if h.ev.count("import") != 0 {
		t.Error("import must not run after a failed download")
	}
	if h.ev.index("progress-clear") < 0 {
		t.Error("progress indicator should be cleared on failure")
	}
}

func TestCheckForUpdate_DownloadFailsFallbackDeclined(t *testing.T) {
	h := newHarness(t, "1.2.0", "1.3.0")
	h.accept(titleUpdate, titleInstall)
	h.artifacts.err = io.ErrUnexpectedEOF

	h.run(t)

	if h.ev.count("open") != 0 {
		t.Error("URL must not be opened when the user declines")
	}
}

func TestCheckForUpdate_ImportFails(t *testing.T) {
	h := newHarness(t, "1.2.0", "1.3.0")
	h.accept(titleUpdate, titleInstall)
	h.importer.err = errors.New("corrupt package")

	outcome := h.run(t)

	if outcome.Status != StatusFailed || outcome.Kind != KindImport {
		t.Fatalf("outcome = %v/%q, want failed/%q", outcome.Status, outcome.Kind, KindImport)
	}
	if h.ev.index("ack Install failed") < 0 {
		t.Error("user should be told the import failed")
	}
}

func TestCheckForUpdate_PartialPurgeContinues(t *testing.T) {
	h := newHarness(t, "1.2.0", "1.3.0")
	h.accept(titleUpdate, titleInstall)
	h.fs.failOn = map[string]bool{"a.cs": true, "b.cs": true}

	outcome := h.run(t)

	if outcome.Status != StatusInstalled {
		t.Fatalf("Status = %v, want installed", outcome.Status)
	}
	if outcome.Purge == nil || len(outcome.Purge.Failed) != 2 {
		t.Fatalf("Purge = %+v, want 2 failures", outcome.Purge)
	}
	if h.ev.count("fs-delete") != 4 {
		t.Errorf("every entry should be attempted, got %d deletes", h.ev.count("fs-delete"))
	}
	if KindOf(outcome.Err) != KindIO || !errors.Is(outcome.Err, os.ErrPermission) {
		t.Errorf("Err = %v, want first IO failure", outcome.Err)
	}
	var e *Error
	if !errors.As(outcome.Err, &e) || filepath.Base(e.Target) != "a.cs" {
		t.Errorf("first failure should be a.cs, got %v", outcome.Err)
	}
	if h.ev.index("ack Some files could not be removed") < 0 {
		t.Error("partial failure should be shown to the user")
	}
}

func TestCheckForUpdate_PartialPurgeThenDecline(t *testing.T) {
	h := newHarness(t, "1.2.0", "1.3.0")
	h.accept(titleUpdate)
	h.fs.failOn = map[string]bool{"a.cs": true}

	outcome := h.run(t)

	if outcome.Status != StatusCancelled {
		t.Fatalf("Status = %v, want cancelled", outcome.Status)
	}
	if KindOf(outcome.Err) != KindIO {
		t.Errorf("purge failure should remain the session error, got %v", outcome.Err)
	}
}

func TestCheckForUpdate_PromptErrorCancels(t *testing.T) {
	h := newHarness(t, "1.2.0", "1.3.0")
	h.consent.err = io.EOF

	outcome := h.run(t)

	if outcome.Status != StatusCancelled {
		t.Fatalf("Status = %v, want cancelled", outcome.Status)
	}
	if h.ev.count("fs-delete") != 0 {
		t.Error("nothing should be deleted")
	}
}

func TestCheckForUpdate_ProgressIsFiltered(t *testing.T) {
	h := newHarness(t, "1.2.0", "1.3.0")
	h.accept(titleUpdate, titleInstall)
	h.artifacts.progress = []int{10, 5, 50, -3, 150, 50, 100, 100}

	h.run(t)

	want := []int{10, 50, 100}
	if !reflect.DeepEqual(h.progress.values, want) {
		t.Errorf("progress values = %v, want %v", h.progress.values, want)
	}
	hundred := h.ev.index("progress 100")
	if clear := h.ev.index("progress-clear"); clear != hundred+1 {
		t.Errorf("clear at %d, want directly after 100 at %d", clear, hundred)
	}
	if h.ev.count("progress-clear") != 1 {
		t.Error("indicator should be cleared exactly once")
	}
}

func TestCheckForUpdate_ProgressCompletesWithoutReports(t *testing.T) {
	h := newHarness(t, "1.2.0", "1.3.0")
	h.accept(titleUpdate, titleInstall)

	h.run(t)

	if !reflect.DeepEqual(h.progress.values, []int{100}) {
		t.Errorf("progress values = %v, want [100]", h.progress.values)
	}
	if h.ev.count("progress-clear") != 1 {
		t.Error("indicator should be cleared")
	}
}

func TestCheckForUpdate_RejectsConcurrentSession(t *testing.T) {
	h := newHarness(t, "1.2.0", "1.3.0")
	release, ok := h.guard.TryAcquire()
	if !ok {
		t.Fatal("guard should be free")
	}
	defer release()

	o := NewOrchestrator(h.settings, Deps{
		Versions:  h.versions,
		Artifacts: h.artifacts,
		Local:     h.store,
		FS:        h.fs,
		Consent:   h.consent,
		Guard:     h.guard,
	})

	if _, err := o.CheckForUpdate(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("CheckForUpdate() error = %v, want ErrBusy", err)
	}
	if _, err := o.Check(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("Check() error = %v, want ErrBusy", err)
	}
	if len(h.ev.list()) != 0 {
		t.Errorf("rejected session should have no side effects, got %v", h.ev.list())
	}
}

func TestCheck_OnlyCompares(t *testing.T) {
	h := newHarness(t, "1.2.0", "1.3.0")
	h.accept(titleUpdate, titleInstall)

	o := NewOrchestrator(h.settings, Deps{
		Versions:  h.versions,
		Artifacts: h.artifacts,
		Local:     h.store,
		FS:        h.fs,
		Consent:   h.consent,
	})

	outcome, err := o.Check(context.Background())
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if outcome.Status != StatusUpdateAvailable {
		t.Errorf("Status = %v, want update-available", outcome.Status)
	}
	if h.ev.count("confirm") != 0 || h.ev.count("fs-") != 0 {
		t.Errorf("check must not prompt or touch files, got %v", h.ev.list())
	}
}

func TestCheckForUpdate_GuardReleasedAfterSession(t *testing.T) {
	h := newHarness(t, "1.2.0", "1.2.0")
	h.run(t)

	release, ok := h.guard.TryAcquire()
	if !ok {
		t.Fatal("guard should be released when the session ends")
	}
	release()
}
