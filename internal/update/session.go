package update

import (
	"github.com/adamancini/unipatch/internal/fsys"
)

// Session is the state of one run of the update flow. It lives from the start
// of CheckForUpdate until a terminal state and is never persisted.
type Session struct {
	LocalVersion     string
	RemoteVersion    string
	Status           Status
	ArtifactTempPath string
	LastError        error
	Kind             ErrorKind
	Purge            *fsys.PurgeResult

	transitions  []Status
	onTransition func(Status)
}

func newSession(onTransition func(Status)) *Session {
	return &Session{
		Status:       StatusIdle,
		transitions:  []Status{StatusIdle},
		onTransition: onTransition,
	}
}

func (s *Session) transition(status Status) {
	s.Status = status
	s.transitions = append(s.transitions, status)
	if s.onTransition != nil {
		s.onTransition(status)
	}
}

// recordError keeps the first error seen; later ones are diagnostics only.
func (s *Session) recordError(kind ErrorKind, err error) {
	if s.LastError == nil {
		s.LastError = err
		s.Kind = kind
	}
}

// fail ends the session. The failing step's error replaces any earlier
// non-fatal error as the terminal one.
func (s *Session) fail(kind ErrorKind, err error) {
	s.LastError = err
	s.Kind = kind
	s.transition(StatusFailed)
}

func (s *Session) cancel() {
	s.Kind = KindUserDeclined
	s.transition(StatusCancelled)
}

func (s *Session) outcome() *Outcome {
	o := &Outcome{
		Status:        s.Status,
		LocalVersion:  s.LocalVersion,
		RemoteVersion: s.RemoteVersion,
		ArtifactPath:  s.ArtifactTempPath,
		Purge:         s.Purge,
		Transitions:   append([]Status(nil), s.transitions...),
		Err:           s.LastError,
	}
	// A purge failure followed by a successful install stays in Error as a
	// diagnostic but does not classify the outcome.
	if s.Status == StatusFailed || s.Status == StatusCancelled {
		o.Kind = s.Kind
	}
	if s.LastError != nil {
		o.Error = s.LastError.Error()
	}
	return o
}
