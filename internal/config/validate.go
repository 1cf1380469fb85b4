package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// ValidationError represents a Unipatchfile validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the config for required fields and valid values.
// All problems are reported together.
func Validate(c *Config) error {
	var errors []string

	for _, check := range []func(*Config) error{
		func(c *Config) error { return validateURL("version_url", c.VersionURL) },
		func(c *Config) error { return validateURL("artifact_url", c.ArtifactURL) },
		validateInstallDir,
		validateLegacyDir,
		validateTimeout,
		validateImport,
	} {
		if err := check(c); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func validateURL(field, raw string) error {
	if raw == "" {
		return ValidationError{Field: field, Message: "is required"}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ValidationError{Field: field, Message: fmt.Sprintf("invalid URL: %v", err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ValidationError{Field: field, Message: fmt.Sprintf("unsupported scheme %q (must be http or https)", u.Scheme)}
	}
	if u.Host == "" {
		return ValidationError{Field: field, Message: "missing host"}
	}

	return nil
}

func validateInstallDir(c *Config) error {
	if c.InstallDir == "" {
		return ValidationError{Field: "install_dir", Message: "is required"}
	}
	if filepath.Clean(filepath.FromSlash(c.InstallDir)) == "." {
		return ValidationError{Field: "install_dir", Message: "must not be the project root"}
	}
	return nil
}

func validateLegacyDir(c *Config) error {
	if c.LegacyDir == "" {
		return nil
	}
	if filepath.Clean(filepath.FromSlash(c.LegacyDir)) == filepath.Clean(filepath.FromSlash(c.InstallDir)) {
		return ValidationError{Field: "legacy_dir", Message: "must differ from install_dir"}
	}
	return nil
}

// validatePaths checks the resolved directories. Both must sit strictly
// inside the project root, and neither may contain the other.
func validatePaths(c *Config) error {
	var errors []string

	if err := checkInside(c.ProjectRoot, "install_dir", c.InstallDir); err != nil {
		errors = append(errors, err.Error())
	}
	if c.LegacyDir != "" {
		if err := checkInside(c.ProjectRoot, "legacy_dir", c.LegacyDir); err != nil {
			errors = append(errors, err.Error())
		} else if within(c.InstallDir, c.LegacyDir) || within(c.LegacyDir, c.InstallDir) {
			errors = append(errors, ValidationError{
				Field:   "legacy_dir",
				Message: "must not contain or be inside install_dir",
			}.Error())
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}
	return nil
}

func checkInside(root, field, dir string) error {
	if !within(root, dir) || filepath.Clean(dir) == filepath.Clean(root) {
		return ValidationError{Field: field, Message: fmt.Sprintf("%s is not inside the project root %s", dir, root)}
	}
	return nil
}

// within reports whether p is base or lies below it.
func within(base, p string) bool {
	rel, err := filepath.Rel(filepath.Clean(base), filepath.Clean(p))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel))
}

func validateTimeout(c *Config) error {
	if c.Timeout == "" {
		return nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return ValidationError{Field: "timeout", Message: fmt.Sprintf("invalid duration %q", c.Timeout)}
	}
	if d <= 0 {
		return ValidationError{Field: "timeout", Message: "must be positive"}
	}
	return nil
}

func validateImport(c *Config) error {
	switch c.Import.Mode {
	case "", ImportUnityPackage, ImportNone:
		return nil
	case ImportCommand:
		if len(c.Import.Command) == 0 {
			return ValidationError{Field: "import.command", Message: "command is required for command mode"}
		}
		return nil
	default:
		return ValidationError{
			Field:   "import.mode",
			Message: fmt.Sprintf("invalid mode %q (must be unitypackage, command or none)", c.Import.Mode),
		}
	}
}
