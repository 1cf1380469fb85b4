package fsys

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDirectoryNotFound is returned by Purge when the target directory is missing.
var ErrDirectoryNotFound = errors.New("directory not found")

// EntryError records a failed deletion.
type EntryError struct {
	Path   string `json:"path" yaml:"path"`
	Reason string `json:"reason" yaml:"reason"`
	Err    error  `json:"-" yaml:"-"`
}

func (e EntryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e EntryError) Unwrap() error {
	return e.Err
}

// PurgeResult lists what a purge deleted and what it could not.
type PurgeResult struct {
	Dir     string       `json:"dir" yaml:"dir"`
	Deleted []string     `json:"deleted" yaml:"deleted"`
	Failed  []EntryError `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// OK returns true if every entry was deleted.
func (r *PurgeResult) OK() bool {
	return len(r.Failed) == 0
}

// FirstError returns the first failure in enumeration order, or nil.
func (r *PurgeResult) FirstError() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return r.Failed[0]
}

// Summary describes the failures for display.
func (r *PurgeResult) Summary() string {
	if r.OK() {
		return fmt.Sprintf("Removed %d entries from %s", len(r.Deleted), r.Dir)
	}

	lines := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		lines = append(lines, "  - "+f.Error())
	}
	return fmt.Sprintf("Removed %d entries from %s, %d could not be removed:\n%s",
		len(r.Deleted), r.Dir, len(r.Failed), strings.Join(lines, "\n"))
}

// Purge deletes every immediate child of dir, one at a time. A failure on one
// entry does not stop the others.
func Purge(gw Gateway, dir string) (*PurgeResult, error) {
	exists, err := gw.Exists(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
	}

	entries, err := gw.ListEntries(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	result := &PurgeResult{Dir: dir, Deleted: make([]string, 0, len(entries))}
	for _, entry := range entries {
		if err := gw.DeleteEntry(entry); err != nil {
			result.Failed = append(result.Failed, EntryError{Path: entry, Reason: err.Error(), Err: err})
			continue
		}
		result.Deleted = append(result.Deleted, entry)
	}

	return result, nil
}
