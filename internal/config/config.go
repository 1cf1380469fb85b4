// Package config handles Unipatchfile parsing and location resolution.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"
)

// ImportMode selects how a downloaded package is installed into the project.
type ImportMode string

const (
	ImportUnityPackage ImportMode = "unitypackage"
	ImportCommand      ImportMode = "command"
	ImportNone         ImportMode = "none"
)

// Defaults applied by Load when a field is left empty.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultVersionFile  = "version.txt"
	DefaultArtifactName = "update.unitypackage"
)

// ImportConfig selects the package import mechanism.
type ImportConfig struct {
	Mode    ImportMode `yaml:"mode,omitempty" toml:"mode,omitempty" json:"mode,omitempty"`
	Command []string   `yaml:"command,omitempty" toml:"command,omitempty" json:"command,omitempty"` // argv; {artifact} is substituted
	LogFile string     `yaml:"log_file,omitempty" toml:"log_file,omitempty" json:"log_file,omitempty"` // followed while the command runs
}

// Config is the parsed Unipatchfile.
type Config struct {
	ProjectRoot    string       `yaml:"project_root,omitempty" toml:"project_root,omitempty" json:"project_root,omitempty"`
	VersionURL     string       `yaml:"version_url" toml:"version_url" json:"version_url"`
	ArtifactURL    string       `yaml:"artifact_url" toml:"artifact_url" json:"artifact_url"`
	InstallDir     string       `yaml:"install_dir" toml:"install_dir" json:"install_dir"`
	VersionFile    string       `yaml:"version_file,omitempty" toml:"version_file,omitempty" json:"version_file,omitempty"`     // relative to install_dir
	LegacyDir      string       `yaml:"legacy_dir,omitempty" toml:"legacy_dir,omitempty" json:"legacy_dir,omitempty"`           // empty disables migration
	ArtifactPath   string       `yaml:"artifact_path,omitempty" toml:"artifact_path,omitempty" json:"artifact_path,omitempty"` // defaults to a temp dir
	Timeout        string       `yaml:"timeout,omitempty" toml:"timeout,omitempty" json:"timeout,omitempty"`
	RefreshCommand []string     `yaml:"refresh_command,omitempty" toml:"refresh_command,omitempty" json:"refresh_command,omitempty"`
	Import         ImportConfig `yaml:"import,omitempty" toml:"import,omitempty" json:"import,omitempty"`

	// Source is the file the config was loaded from.
	Source string `yaml:"-" toml:"-" json:"-"`
}

// fileNames are the Unipatchfile variants searched in each directory.
var fileNames = []string{
	"Unipatchfile",
	"Unipatchfile.yaml",
	"Unipatchfile.yml",
	"Unipatchfile.toml",
	"Unipatchfile.json",
	".unipatch.yaml",
	".unipatch.yml",
	".unipatch.toml",
	".unipatch.json",
}

// FindConfig searches for a Unipatchfile in the standard locations.
// projectDir is searched before the user config directory.
func FindConfig(explicitPath, projectDir string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("specified Unipatchfile not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	if envPath := os.Getenv("UNIPATCHFILE"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	var searchPaths []string
	if projectDir != "" {
		searchPaths = append(searchPaths, projectDir)
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		if home, err := os.UserHomeDir(); err == nil {
			xdgConfig = filepath.Join(home, ".config")
		}
	}
	if xdgConfig != "" {
		searchPaths = append(searchPaths, filepath.Join(xdgConfig, "unipatch"))
	}

	for _, dir := range searchPaths {
		for _, name := range fileNames {
			p := filepath.Join(dir, name)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}

	return "", fmt.Errorf("no Unipatchfile found in standard locations")
}

// Load reads, parses, validates and resolves a Unipatchfile.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read Unipatchfile: %w", err)
	}

	format := detectFormat(path, content)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unable to detect file format for %s", path)
	}

	cfg, err := parse(content, format)
	if err != nil {
		return nil, err
	}
	cfg.Source = path

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults(filepath.Dir(path))
	if err := validatePaths(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills empty fields and makes every path absolute.
// A relative project_root is taken relative to the config file's directory.
func (c *Config) applyDefaults(configDir string) {
	if c.ProjectRoot == "" {
		c.ProjectRoot = configDir
	} else if !filepath.IsAbs(c.ProjectRoot) {
		c.ProjectRoot = filepath.Join(configDir, c.ProjectRoot)
	}
	if abs, err := filepath.Abs(c.ProjectRoot); err == nil {
		c.ProjectRoot = abs
	}

	c.InstallDir = c.resolve(c.InstallDir)
	if c.LegacyDir != "" {
		c.LegacyDir = c.resolve(c.LegacyDir)
	}

	if c.VersionFile == "" {
		c.VersionFile = DefaultVersionFile
	}
	if !filepath.IsAbs(c.VersionFile) {
		c.VersionFile = filepath.Join(c.InstallDir, c.VersionFile)
	}

	if c.ArtifactPath == "" {
		c.ArtifactPath = filepath.Join(os.TempDir(), "unipatch", artifactName(c.ArtifactURL))
	} else {
		c.ArtifactPath = c.resolve(c.ArtifactPath)
	}

	if c.Import.Mode == "" {
		c.Import.Mode = ImportUnityPackage
	}
	if c.Import.LogFile != "" {
		c.Import.LogFile = c.resolve(c.Import.LogFile)
	}
}

// resolve makes p absolute relative to the project root.
func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.ProjectRoot, filepath.FromSlash(p))
}

// TimeoutDuration returns the version-check timeout.
func (c *Config) TimeoutDuration() time.Duration {
	if c.Timeout == "" {
		return DefaultTimeout
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return DefaultTimeout
	}
	return d
}

// artifactName derives a file name from the artifact URL.
func artifactName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return DefaultArtifactName
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return DefaultArtifactName
	}
	return name
}
