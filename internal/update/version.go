package update

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/mod/semver"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// FileVersionStore reads the version recorded next to the installed package.
type FileVersionStore struct {
	path string
}

// NewFileVersionStore creates a store for the version file at path.
func NewFileVersionStore(path string) *FileVersionStore {
	return &FileVersionStore{path: path}
}

// Path returns the version file location.
func (s *FileVersionStore) Path() string {
	return s.path
}

// ReadVersion returns the recorded version. A missing file yields "" so that
// any remote version is treated as an update.
func (s *FileVersionStore) ReadVersion() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read version file: %w", err)
	}
	text, err := decodeText(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode version file: %w", err)
	}
	return NormalizeVersion(text), nil
}

// decodeText decodes UTF-8, or UTF-16 when a byte order mark says so.
// Editors on Windows may save the version file as UTF-16.
func decodeText(data []byte) (string, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// NormalizeVersion strips whitespace and a UTF-8 byte order mark.
func NormalizeVersion(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.TrimSpace(s)
}

// IsUpdate reports whether remote differs from local. Versions are opaque
// tokens: any difference is an update, including a lower remote version.
func IsUpdate(local, remote string) bool {
	return NormalizeVersion(local) != NormalizeVersion(remote)
}

// IsDowngrade reports whether both tokens are semantic versions and remote is
// lower than local. It is advisory only.
func IsDowngrade(local, remote string) bool {
	l, r := canonical(local), canonical(remote)
	if !semver.IsValid(l) || !semver.IsValid(r) {
		return false
	}
	return semver.Compare(r, l) < 0
}

func canonical(v string) string {
	v = NormalizeVersion(v)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
