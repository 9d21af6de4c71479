package config

import (
	"fmt"
	"strconv"
	"strings"

	logger "github.com/sirupsen/logrus"

	"github.com/rigdev/repogov/internal/artifact"
)

// validPlatforms is the set of supported hosting platforms.
var validPlatforms = map[string]bool{
	"github": true,
	"gitlab": true,
}

// validPolicyRules is the set of supported policy rules.
var validPolicyRules = map[string]bool{
	"blocked_paths":     true,
	"allowed_paths":     true,
	"max_content_bytes": true,
	"allowed_purposes":  true,
}

// Validate checks the Config for completeness and correctness.
// All problems are reported together, joined by "; ".
func Validate(cfg *Config) error {
	var errs []string

	// --- Hosting ---
	if !validPlatforms[cfg.Hosting.Platform] {
		errs = append(errs, fmt.Sprintf(
			"config: hosting.platform '%s' is invalid; must be one of: github, gitlab",
			cfg.Hosting.Platform))
	}

	// --- Repository directory ---
	if len(cfg.Repositories) == 0 && !cfg.Discover {
		errs = append(errs, "config: repositories must list at least one repository unless discover is true")
	}
	seen := map[string]bool{}
	for i, r := range cfg.Repositories {
		prefix := fmt.Sprintf("config: repositories[%d]", i)
		if r.Owner == "" {
			errs = append(errs, prefix+".owner is required")
		}
		if r.Name == "" {
			errs = append(errs, prefix+".name is required")
		}
		key := strings.ToLower(r.Owner + "/" + r.Name)
		if seen[key] {
			errs = append(errs, fmt.Sprintf("%s duplicates %s/%s", prefix, r.Owner, r.Name))
		}
		seen[key] = true
	}

	// --- Proposal templates ---
	if err := cfg.Proposal.Templates.Validate(); err != nil {
		errs = append(errs, "config: proposal."+err.Error())
	}

	// --- Collaborator ---
	if cfg.Collaborator.DefaultPermission != "" &&
		!contains(artifact.Permissions, cfg.Collaborator.DefaultPermission) {
		errs = append(errs, fmt.Sprintf(
			"config: collaborator.default_permission '%s' is invalid; must be one of: %s",
			cfg.Collaborator.DefaultPermission, strings.Join(artifact.Permissions, ", ")))
	}

	// --- Policies ---
	for i, p := range cfg.Policies {
		errs = append(errs, validatePolicy(i, &p)...)
	}

	// --- Server ---
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("config: server.port must be between 0 and 65535, got %d", cfg.Server.Port))
	}

	// --- Notify ---
	if cfg.Notify.WebhookURL != "" && cfg.Notify.Type != "slack" && cfg.Notify.Type != "discord" {
		errs = append(errs, fmt.Sprintf("config: notify.type '%s' is invalid; must be one of: slack, discord", cfg.Notify.Type))
	}

	// --- Log ---
	if cfg.Log.Level != "" {
		if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
			errs = append(errs, fmt.Sprintf("config: log.level '%s' is invalid", cfg.Log.Level))
		}
	}
	if cfg.Log.Format != "" && cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		errs = append(errs, fmt.Sprintf("config: log.format '%s' is invalid; must be one of: text, json", cfg.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// validatePolicy checks a single policy rule.
func validatePolicy(idx int, p *PolicyConfig) []string {
	var errs []string
	prefix := fmt.Sprintf("config: policies[%d]", idx)

	rule := strings.TrimSpace(strings.ToLower(p.Rule))
	if !validPolicyRules[rule] {
		errs = append(errs, fmt.Sprintf("%s.rule '%s' is invalid", prefix, p.Rule))
	}
	if rule == "max_content_bytes" {
		if n, err := strconv.Atoi(strings.TrimSpace(p.Value)); err != nil || n < 0 {
			errs = append(errs, fmt.Sprintf("%s.value must be a non-negative integer for 'max_content_bytes'", prefix))
		}
	} else if strings.TrimSpace(p.Value) == "" {
		errs = append(errs, prefix+".value is required")
	}

	action := strings.TrimSpace(strings.ToLower(p.Action))
	if action != "" && action != "block" && action != "warn" {
		errs = append(errs, fmt.Sprintf("%s.action '%s' is invalid; must be one of: block, warn", prefix, p.Action))
	}
	return errs
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
