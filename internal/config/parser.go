package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format represents the file format of a Unipatchfile.
type Format int

const (
	FormatUnknown Format = iota
	FormatYAML
	FormatTOML
	FormatJSON
)

// detectFormat determines the file format based on extension or content.
func detectFormat(path string, content []byte) Format {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	case ".json":
		return FormatJSON
	}

	// Content sniffing for extensionless files
	return sniffFormat(content)
}

// sniffFormat attempts to detect format from content.
func sniffFormat(content []byte) Format {
	trimmed := strings.TrimSpace(string(content))

	if strings.HasPrefix(trimmed, "{") {
		return FormatJSON
	}

	// TOML uses key = value and [tables]; YAML uses key: value.
	// The first significant line decides.
	line := firstSignificantLine(trimmed)
	if strings.HasPrefix(line, "[") {
		return FormatTOML
	}

	eq := strings.Index(line, "=")
	colon := strings.Index(line, ":")
	switch {
	case eq >= 0 && (colon < 0 || eq < colon):
		return FormatTOML
	case colon >= 0:
		return FormatYAML
	}

	return FormatUnknown
}

func firstSignificantLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			return line
		}
	}
	return ""
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns in content.
func expandEnvVars(content []byte) []byte {
	return envVarPattern.ReplaceAllFunc(content, func(match []byte) []byte {
		parts := envVarPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		value := os.Getenv(string(parts[1]))
		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}

		return []byte(value)
	})
}

// rawConfig is an intermediate representation for parsing.
// import and refresh_command may be written in a short form.
type rawConfig struct {
	ProjectRoot    string      `yaml:"project_root" toml:"project_root" json:"project_root"`
	VersionURL     string      `yaml:"version_url" toml:"version_url" json:"version_url"`
	ArtifactURL    string      `yaml:"artifact_url" toml:"artifact_url" json:"artifact_url"`
	InstallDir     string      `yaml:"install_dir" toml:"install_dir" json:"install_dir"`
	VersionFile    string      `yaml:"version_file" toml:"version_file" json:"version_file"`
	LegacyDir      string      `yaml:"legacy_dir" toml:"legacy_dir" json:"legacy_dir"`
	ArtifactPath   string      `yaml:"artifact_path" toml:"artifact_path" json:"artifact_path"`
	Timeout        string      `yaml:"timeout" toml:"timeout" json:"timeout"`
	RefreshCommand interface{} `yaml:"refresh_command" toml:"refresh_command" json:"refresh_command"`
	Import         interface{} `yaml:"import" toml:"import" json:"import"`
}

// parseCommand converts a command given as a string or a list to argv.
// A string is split on whitespace.
func parseCommand(field string, raw interface{}) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return strings.Fields(v), nil
	case []interface{}:
		argv := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d]: expected string", field, i)
			}
			argv = append(argv, s)
		}
		return argv, nil
	default:
		return nil, fmt.Errorf("%s: invalid format (expected string or list)", field)
	}
}

// parseImport converts the flexible import format to ImportConfig.
// Import can be specified as:
//   - Simple string: "unitypackage", "command" or "none"
//   - Table with mode, command and log_file fields
func parseImport(raw interface{}) (ImportConfig, error) {
	switch v := raw.(type) {
	case nil:
		return ImportConfig{}, nil
	case string:
		return ImportConfig{Mode: ImportMode(v)}, nil
	case map[string]interface{}:
		cfg := ImportConfig{}
		if mode, ok := v["mode"]; ok {
			s, ok := mode.(string)
			if !ok {
				return cfg, fmt.Errorf("import.mode: expected string")
			}
			cfg.Mode = ImportMode(s)
		}
		argv, err := parseCommand("import.command", v["command"])
		if err != nil {
			return cfg, err
		}
		cfg.Command = argv
		if logFile, ok := v["log_file"]; ok {
			s, ok := logFile.(string)
			if !ok {
				return cfg, fmt.Errorf("import.log_file: expected string")
			}
			cfg.LogFile = s
		}
		return cfg, nil
	default:
		return ImportConfig{}, fmt.Errorf("import: invalid format (expected string or table)")
	}
}

// parse parses the content according to the specified format.
func parse(content []byte, format Format) (*Config, error) {
	content = expandEnvVars(content)

	var raw rawConfig

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(content, &raw); err != nil {
			return nil, fmt.Errorf("YAML parse error: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(content, &raw); err != nil {
			return nil, fmt.Errorf("TOML parse error: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(content, &raw); err != nil {
			return nil, fmt.Errorf("JSON parse error: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown file format")
	}

	refresh, err := parseCommand("refresh_command", raw.RefreshCommand)
	if err != nil {
		return nil, err
	}

	imp, err := parseImport(raw.Import)
	if err != nil {
		return nil, err
	}

	return &Config{
		ProjectRoot:    raw.ProjectRoot,
		VersionURL:     raw.VersionURL,
		ArtifactURL:    raw.ArtifactURL,
		InstallDir:     raw.InstallDir,
		VersionFile:    raw.VersionFile,
		LegacyDir:      raw.LegacyDir,
		ArtifactPath:   raw.ArtifactPath,
		Timeout:        raw.Timeout,
		RefreshCommand: refresh,
		Import:         imp,
	}, nil
}
