package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/adamancini/unipatch/internal/fsys"
)

// events records side effects across all fakes in call order.
type events struct {
	mu  sync.Mutex
	log []string
}

func (e *events) add(format string, args ...interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, fmt.Sprintf(format, args...))
}

func (e *events) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.log...)
}

// index returns the position of the first event with the given prefix, or -1.
func (e *events) index(prefix string) int {
	for i, ev := range e.list() {
		if strings.HasPrefix(ev, prefix) {
			return i
		}
	}
	return -1
}

func (e *events) count(prefix string) int {
	n := 0
	for _, ev := range e.list() {
		if strings.HasPrefix(ev, prefix) {
			n++
		}
	}
	return n
}

type fakeVersions struct {
	ev      *events
	version string
	err     error
}

func (f *fakeVersions) FetchText(ctx context.Context, url string) (string, error) {
	f.ev.add("fetch-version %s", url)
	return f.version, f.err
}

type fakeStore struct {
	version string
	err     error
}

func (f *fakeStore) ReadVersion() (string, error) {
	return f.version, f.err
}

type fakeArtifacts struct {
	ev       *events
	content  string
	err      error
	progress []int
}

func (f *fakeArtifacts) FetchToFile(ctx context.Context, url, dst string, onProgress func(int)) error {
	f.ev.add("download %s", url)
	if f.err != nil {
		return f.err
	}
	for _, p := range f.progress {
		onProgress(p)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return os.WriteFile(dst, []byte(f.content), 0644)
}

// fakeConsent answers Confirm by exact title; unknown titles are declined.
type fakeConsent struct {
	ev      *events
	answers map[string]bool
	err     error
	// ackErr fails Acknowledge for the given titles.
	ackErr map[string]error
	// onAck runs before Acknowledge returns.
	onAck func(title string)
}

func (f *fakeConsent) Confirm(ctx context.Context, title, message string) (bool, error) {
	f.ev.add("confirm %s", title)
	if f.err != nil {
		return false, f.err
	}
	return f.answers[title], nil
}

func (f *fakeConsent) Acknowledge(ctx context.Context, title, message string) error {
	f.ev.add("ack %s", title)
	if f.onAck != nil {
		f.onAck(title)
	}
	return f.ackErr[title]
}

type fakeRefresher struct{ ev *events }

func (f *fakeRefresher) Refresh(ctx context.Context) error {
	f.ev.add("refresh")
	return nil
}

type fakeImporter struct {
	ev  *events
	err error
}

func (f *fakeImporter) Import(ctx context.Context, path string) error {
	f.ev.add("import %s", path)
	return f.err
}

type fakeOpener struct{ ev *events }

func (f *fakeOpener) Open(url string) error {
	f.ev.add("open %s", url)
	return nil
}

type fakeProgress struct {
	ev     *events
	values []int
}

func (f *fakeProgress) Progress(pct int) {
	f.values = append(f.values, pct)
	f.ev.add("progress %d", pct)
}

func (f *fakeProgress) Clear() {
	f.ev.add("progress-clear")
}

// recordingFS logs every gateway call and delegates to the real filesystem.
type recordingFS struct {
	fsys.OS
	ev     *events
	failOn map[string]bool
}

func (r *recordingFS) Exists(path string) (bool, error) {
	r.ev.add("fs-exists %s", filepath.Base(path))
	return r.OS.Exists(path)
}

func (r *recordingFS) ListEntries(dir string) ([]string, error) {
	r.ev.add("fs-list %s", filepath.Base(dir))
	return r.OS.ListEntries(dir)
}

func (r *recordingFS) DeleteEntry(path string) error {
	r.ev.add("fs-delete %s", filepath.Base(path))
	if r.failOn[filepath.Base(path)] {
		return os.ErrPermission
	}
	return r.OS.DeleteEntry(path)
}

func (r *recordingFS) DeleteTree(path string) error {
	r.ev.add("fs-delete-tree %s", filepath.Base(path))
	return r.OS.DeleteTree(path)
}

func (r *recordingFS) WriteStream(path string, rd io.Reader) (int64, error) {
	r.ev.add("fs-write %s", filepath.Base(path))
	return r.OS.WriteStream(path, rd)
}

var errOffline = errors.New("dial tcp: network is unreachable")
