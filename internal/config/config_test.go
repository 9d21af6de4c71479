package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validYAML = `
hosting:
  platform: github
  token: ${REPOGOV_TEST_TOKEN}
repositories:
  - owner: octo
    name: site
  - owner: octo
    name: infra
proposal:
  templates:
    branch: "gov-{purpose}-{timestamp}"
collaborator:
  directory: Pay-Baymax/terraform-module
  default_permission: push
policies:
  - name: no-workflows
    rule: blocked_paths
    value: ".github/workflows/"
    action: block
server:
  port: 9090
  secret: ${REPOGOV_TEST_SECRET}
log:
  level: debug
  format: json
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repogov.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	t.Setenv("REPOGOV_TEST_TOKEN", "test-github-token")
	t.Setenv("REPOGOV_TEST_SECRET", "test-secret")

	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("expected valid config to load, got error: %v", err)
	}

	if cfg.Hosting.Token != "test-github-token" {
		t.Errorf("hosting.token = %q, want env substitution", cfg.Hosting.Token)
	}
	if len(cfg.Repositories) != 2 {
		t.Errorf("repositories len = %d, want 2", len(cfg.Repositories))
	}
	if cfg.Proposal.Templates.Branch != "gov-{purpose}-{timestamp}" {
		t.Errorf("branch template = %q", cfg.Proposal.Templates.Branch)
	}
	if cfg.Proposal.Templates.Title != "{purpose}-{timestamp}" {
		t.Errorf("title template = %q, want default", cfg.Proposal.Templates.Title)
	}
	if cfg.Collaborator.Repository != DefaultCollaboratorRepo {
		t.Errorf("collaborator.repository = %q, want default", cfg.Collaborator.Repository)
	}
	if cfg.Server.Port != 9090 || cfg.Server.Secret != "test-secret" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Storage.Path != DefaultStoragePath {
		t.Errorf("storage.path = %q, want default", cfg.Storage.Path)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("log.format = %q", cfg.Log.Format)
	}
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repogov.yaml")
	content := "hosting:\n  token: ${REPOGOV_DOTENV_TOKEN}\ndiscover: true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("REPOGOV_DOTENV_TOKEN=from-dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("REPOGOV_DOTENV_TOKEN") })

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Hosting.Token != "from-dotenv" {
		t.Errorf("hosting.token = %q, want %q", cfg.Hosting.Token, "from-dotenv")
	}
	if cfg.Hosting.Platform != "github" {
		t.Errorf("hosting.platform = %q, want default github", cfg.Hosting.Platform)
	}
}

func TestLoadConfigUnresolvedVariable(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "hosting:\n  token: ${REPOGOV_SURELY_UNSET}\ndiscover: true\n"))
	if err == nil {
		t.Fatal("expected error for unresolved variable")
	}
	if !strings.Contains(err.Error(), "${REPOGOV_SURELY_UNSET}") {
		t.Errorf("error = %q, want it to name the variable", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "repositories: [unclosed\n"))
	if err == nil || !strings.Contains(err.Error(), "failed to parse YAML") {
		t.Fatalf("error = %v, want YAML parse error", err)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg := Config{Repositories: []RepositoryConfig{{Owner: "octo", Name: "site"}}}
		ApplyDefaults(&cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "invalid platform",
			mutate:  func(c *Config) { c.Hosting.Platform = "bitbucket" },
			wantErr: "hosting.platform",
		},
		{
			name:    "no repositories",
			mutate:  func(c *Config) { c.Repositories = nil },
			wantErr: "repositories must list",
		},
		{
			name:   "discover without repositories",
			mutate: func(c *Config) { c.Repositories = nil; c.Discover = true },
		},
		{
			name:    "missing repository name",
			mutate:  func(c *Config) { c.Repositories = append(c.Repositories, RepositoryConfig{Owner: "octo"}) },
			wantErr: "repositories[1].name",
		},
		{
			name:    "duplicate repository",
			mutate:  func(c *Config) { c.Repositories = append(c.Repositories, RepositoryConfig{Owner: "Octo", Name: "Site"}) },
			wantErr: "duplicates",
		},
		{
			name:    "unknown template tag",
			mutate:  func(c *Config) { c.Proposal.Templates.Title = "{purpose} by {author}" },
			wantErr: "unknown tag {author}",
		},
		{
			name:    "invalid permission",
			mutate:  func(c *Config) { c.Collaborator.DefaultPermission = "owner" },
			wantErr: "collaborator.default_permission",
		},
		{
			name:    "unknown policy rule",
			mutate:  func(c *Config) { c.Policies = []PolicyConfig{{Rule: "max_file_changes", Value: "3"}} },
			wantErr: "policies[0].rule",
		},
		{
			name:    "non numeric max bytes",
			mutate:  func(c *Config) { c.Policies = []PolicyConfig{{Rule: "max_content_bytes", Value: "big"}} },
			wantErr: "non-negative integer",
		},
		{
			name:    "invalid policy action",
			mutate:  func(c *Config) { c.Policies = []PolicyConfig{{Rule: "blocked_paths", Value: "x", Action: "deny"}} },
			wantErr: "policies[0].action",
		},
		{
			name:    "invalid notify type",
			mutate:  func(c *Config) { c.Notify = NotifyConfig{Type: "teams", WebhookURL: "https://hooks.example.com/x"} },
			wantErr: "notify.type",
		},
		{
			name:   "slack notify",
			mutate: func(c *Config) { c.Notify = NotifyConfig{Type: "slack", WebhookURL: "https://hooks.example.com/x"} },
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: "log.level",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "log.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)

			err := Validate(&cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Config{Hosting: HostingConfig{Platform: "svn"}, Log: LogConfig{Format: "xml"}}

	err := Validate(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"hosting.platform", "repositories must list", "log.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error = %q, missing %q", err, want)
		}
	}
}

func TestToken(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "gh-env")
	t.Setenv("GITLAB_TOKEN", "gl-env")

	cfg := &Config{Hosting: HostingConfig{Platform: "github"}}
	if got := cfg.Token(); got != "gh-env" {
		t.Errorf("github token = %q", got)
	}
	cfg.Hosting.Platform = "gitlab"
	if got := cfg.Token(); got != "gl-env" {
		t.Errorf("gitlab token = %q", got)
	}
	cfg.Hosting.Token = "explicit"
	if got := cfg.Token(); got != "explicit" {
		t.Errorf("explicit token = %q", got)
	}
}
