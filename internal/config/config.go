package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort             = 8080
	DefaultStoragePath      = ".repogov/repogov.db"
	DefaultGitignorePath    = ".gitignore"
	DefaultCollaboratorDir  = "terraform-module"
	DefaultCollaboratorRepo = "terraform-module-github"
	DefaultCollaboratorPerm = "pull"
	DefaultPlatform         = "github"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	defaultEnvFileName      = ".env"
)

// envVarPattern matches ${VAR_NAME} patterns in config content.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// LoadConfig reads a YAML configuration file, loads a sibling .env file
// when present, substitutes environment variables, applies defaults and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read file %s: %w", path, err)
	}

	// Variables already in the environment win over the .env file.
	envFile := filepath.Join(filepath.Dir(path), defaultEnvFileName)
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to load %s: %w", envFile, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse substitutes ${VAR} references in data and decodes it with defaults
// applied. It does not validate.
func Parse(data []byte) (*Config, error) {
	if err := validateEnvVars(data); err != nil {
		return nil, err
	}

	resolved := envVarPattern.ReplaceAllStringFunc(string(data), func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})

	var cfg Config
	if err := yaml.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse YAML: %w", err)
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// ApplyDefaults fills unset fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Hosting.Platform == "" {
		cfg.Hosting.Platform = DefaultPlatform
	}
	cfg.Proposal.Templates = cfg.Proposal.Templates.WithDefaults()
	if cfg.Proposal.GitignorePath == "" {
		cfg.Proposal.GitignorePath = DefaultGitignorePath
	}
	if cfg.Collaborator.Directory == "" {
		cfg.Collaborator.Directory = DefaultCollaboratorDir
	}
	if cfg.Collaborator.Repository == "" {
		cfg.Collaborator.Repository = DefaultCollaboratorRepo
	}
	if cfg.Collaborator.DefaultPermission == "" {
		cfg.Collaborator.DefaultPermission = DefaultCollaboratorPerm
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

// validateEnvVars checks that all ${VAR} references in raw data
// correspond to environment variables that are actually set.
func validateEnvVars(data []byte) error {
	matches := envVarPattern.FindAllStringSubmatch(string(data), -1)
	var unresolved []string
	seen := map[string]bool{}
	for _, m := range matches {
		varName := m[1]
		if seen[varName] {
			continue
		}
		seen[varName] = true
		if _, ok := os.LookupEnv(varName); !ok {
			unresolved = append(unresolved, "${"+varName+"}")
		}
	}
	if len(unresolved) > 0 {
		return fmt.Errorf("config: unresolved variables found: %s",
			strings.Join(unresolved, ", "))
	}
	return nil
}

// Token returns the configured token, falling back to the platform's
// conventional environment variable.
func (c *Config) Token() string {
	if c.Hosting.Token != "" {
		return c.Hosting.Token
	}
	if c.Hosting.Platform == "gitlab" {
		return os.Getenv("GITLAB_TOKEN")
	}
	return os.Getenv("GITHUB_TOKEN")
}
