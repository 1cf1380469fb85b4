// Package templates holds the Unipatchfile starters offered by unipatch init.
//
// Each template is a YAML file whose first line reads
// "# Unipatchfile: <description>."; the description is what init shows.
package templates

import (
	"bufio"
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

const (
	ext          = ".yaml"
	headerPrefix = "# Unipatchfile:"
	// fallbackDescription is shown for remote templates and headerless files.
	fallbackDescription = "Custom template"
)

//go:embed *.yaml
var builtin embed.FS

// Template is one starter Unipatchfile.
type Template struct {
	Name        string
	Description string
	Content     []byte
}

// List returns the built-in template names, minimal first and the rest by name.
func List() []string {
	matches, err := fs.Glob(builtin, "*"+ext)
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(path.Base(m), ext))
	}
	sort.Slice(names, func(i, j int) bool {
		if (names[i] == "minimal") != (names[j] == "minimal") {
			return names[i] == "minimal"
		}
		return names[i] < names[j]
	})
	return names
}

// Get returns the named built-in template.
func Get(name string) (*Template, error) {
	content, err := builtin.ReadFile(name + ext)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("template %q not found (available: %s)", name, strings.Join(List(), ", "))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read template %q: %w", name, err)
	}

	return &Template{Name: name, Description: describe(content), Content: content}, nil
}

// GetDescription returns the one-line description of a built-in template.
func GetDescription(name string) string {
	content, err := builtin.ReadFile(name + ext)
	if err != nil {
		return fallbackDescription
	}
	return describe(content)
}

func describe(content []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(content))
	if !sc.Scan() {
		return fallbackDescription
	}
	line := strings.TrimSpace(sc.Text())
	if !strings.HasPrefix(line, headerPrefix) {
		return fallbackDescription
	}

	desc := strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(line, headerPrefix)), ".")
	if desc == "" {
		return fallbackDescription
	}
	return strings.ToUpper(desc[:1]) + desc[1:]
}
