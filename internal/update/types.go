package update

import (
	"context"
	"errors"
	"fmt"

	"github.com/adamancini/unipatch/internal/fsys"
)

// Status is a state of an update session.
type Status int

const (
	StatusIdle Status = iota
	StatusCheckingVersion
	StatusUpToDate
	StatusUpdateAvailable
	StatusAwaitingApproval
	StatusPurging
	StatusAwaitingInstallConsent
	StatusDownloading
	StatusInstalled
	StatusCancelled
	StatusFailed
)

var statusNames = map[Status]string{
	StatusIdle:                   "idle",
	StatusCheckingVersion:        "checking-version",
	StatusUpToDate:               "up-to-date",
	StatusUpdateAvailable:        "update-available",
	StatusAwaitingApproval:       "awaiting-approval",
	StatusPurging:                "purging",
	StatusAwaitingInstallConsent: "awaiting-install-consent",
	StatusDownloading:            "downloading",
	StatusInstalled:              "installed",
	StatusCancelled:              "cancelled",
	StatusFailed:                 "failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText renders the status name in JSON and YAML output.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether the session ends in this state.
// UpdateAvailable is terminal only for check-only runs.
func (s Status) Terminal() bool {
	switch s {
	case StatusUpToDate, StatusInstalled, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// ErrorKind classifies why a session failed or stopped.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindNetwork           ErrorKind = "NetworkError"
	KindDirectoryNotFound ErrorKind = "DirectoryNotFound"
	KindIO                ErrorKind = "IOError"
	KindDownload          ErrorKind = "DownloadError"
	KindImport            ErrorKind = "ImportError"
	KindUserDeclined      ErrorKind = "UserDeclined"
)

// ErrBusy is returned when another update session or migration is in flight.
var ErrBusy = errors.New("another update or migration is already running")

// Error is a classified failure of one step of the flow.
type Error struct {
	Kind   ErrorKind
	Op     string // e.g. "fetch version", "purge"
	Target string // URL or path the step acted on
	Err    error
}

func (e *Error) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}

// VersionSource fetches the remote version token.
type VersionSource interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// ArtifactSource downloads the distributable package to a local path.
// onProgress receives percentages and may be nil.
type ArtifactSource interface {
	FetchToFile(ctx context.Context, url, dst string, onProgress func(pct int)) error
}

// VersionStore reads the locally recorded version.
type VersionStore interface {
	ReadVersion() (string, error)
}

// Consent asks the user yes/no questions and shows acknowledge-only notices.
type Consent interface {
	Confirm(ctx context.Context, title, message string) (bool, error)
	Acknowledge(ctx context.Context, title, message string) error
}

// Refresher forces the host to rescan the filesystem.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Importer hands a downloaded artifact to the host's package import.
type Importer interface {
	Import(ctx context.Context, artifactPath string) error
}

// Opener opens a URL in an external viewer.
type Opener interface {
	Open(url string) error
}

// ProgressObserver displays download progress.
type ProgressObserver interface {
	Progress(pct int)
	Clear()
}

// Outcome is the terminal report of a session.
type Outcome struct {
	Status        Status            `json:"status" yaml:"status"`
	Kind          ErrorKind         `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	LocalVersion  string            `json:"local_version" yaml:"local_version"`
	RemoteVersion string            `json:"remote_version,omitempty" yaml:"remote_version,omitempty"`
	ArtifactPath  string            `json:"artifact_path,omitempty" yaml:"artifact_path,omitempty"`
	Error         string            `json:"error,omitempty" yaml:"error,omitempty"`
	Purge         *fsys.PurgeResult `json:"purge,omitempty" yaml:"purge,omitempty"`
	Transitions   []Status          `json:"transitions" yaml:"transitions"`

	Err error `json:"-" yaml:"-"`
}

// String renders a one-line summary for text output.
func (o *Outcome) String() string {
	switch o.Status {
	case StatusUpToDate:
		return fmt.Sprintf("Up to date (version %s)", o.RemoteVersion)
	case StatusUpdateAvailable:
		return fmt.Sprintf("Update available: %s -> %s", displayVersion(o.LocalVersion), o.RemoteVersion)
	case StatusInstalled:
		return fmt.Sprintf("Installed version %s from %s", o.RemoteVersion, o.ArtifactPath)
	case StatusCancelled:
		return "Update cancelled"
	case StatusFailed:
		return fmt.Sprintf("Update failed (%s): %s", o.Kind, o.Error)
	default:
		return o.Status.String()
	}
}

// Tone colors the text rendering of the outcome.
func (o *Outcome) Tone() string {
	switch o.Status {
	case StatusUpToDate, StatusInstalled:
		return "success"
	case StatusUpdateAvailable, StatusCancelled:
		return "warning"
	case StatusFailed:
		return "error"
	default:
		return ""
	}
}

func displayVersion(v string) string {
	if v == "" {
		return "none"
	}
	return v
}
