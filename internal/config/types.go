package config

import "github.com/rigdev/repogov/internal/proposal"

// Config is the top-level configuration for repogov.
type Config struct {
	Hosting      HostingConfig      `yaml:"hosting"`
	Repositories []RepositoryConfig `yaml:"repositories"`
	Discover     bool               `yaml:"discover"` // list the token owner's public repositories instead
	Proposal     ProposalConfig     `yaml:"proposal"`
	Collaborator CollaboratorConfig `yaml:"collaborator"`
	Policies     []PolicyConfig     `yaml:"policies"`
	Server       ServerConfig       `yaml:"server"`
	Notify       NotifyConfig       `yaml:"notify"`
	Storage      StorageConfig      `yaml:"storage"`
	Log          LogConfig          `yaml:"log"`
}

// HostingConfig selects the code-hosting platform.
type HostingConfig struct {
	Platform string `yaml:"platform"` // github|gitlab
	BaseURL  string `yaml:"base_url"` // enterprise / self-managed API URL
	Token    string `yaml:"token"`
}

// RepositoryConfig is one entry of the repository directory.
type RepositoryConfig struct {
	Owner string `yaml:"owner"`
	Name  string `yaml:"name"`
}

// ProposalConfig holds the naming templates and well-known paths.
type ProposalConfig struct {
	Templates     proposal.Templates `yaml:"templates"`
	GitignorePath string             `yaml:"gitignore_path"`
}

// CollaboratorConfig controls where collaborator declarations are written.
type CollaboratorConfig struct {
	Directory         string `yaml:"directory"`
	Repository        string `yaml:"repository"` // value of the resource's repository attribute
	DefaultPermission string `yaml:"default_permission"`
}

// PolicyConfig is one change policy rule.
type PolicyConfig struct {
	Name   string `yaml:"name"`
	Rule   string `yaml:"rule"`   // blocked_paths|allowed_paths|max_content_bytes|allowed_purposes
	Value  string `yaml:"value"`  // comma separated list or number
	Action string `yaml:"action"` // block|warn
}

// ServerConfig holds API and webhook server settings.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Secret         string   `yaml:"secret"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// NotifyConfig enables chat notifications for finished proposals.
type NotifyConfig struct {
	Type       string `yaml:"type"` // slack|discord
	WebhookURL string `yaml:"webhook_url"`
}

// StorageConfig locates the run history database.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text|json
}
