package policy

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rigdev/repogov/internal/config"
)

// Change is what a policy sees of a proposal before it runs.
type Change struct {
	Repo    string // owner/name
	Purpose string
	Path    string
	Size    int
}

// PolicyViolation represents a failed policy check.
type PolicyViolation struct {
	Name    string `json:"name"`
	Rule    string `json:"rule"`
	Action  string `json:"action"`
	Message string `json:"message"`
}

// Evaluate applies every policy to the change.
func Evaluate(policies []config.PolicyConfig, change Change) []PolicyViolation {
	violations := make([]PolicyViolation, 0)

	for _, p := range policies {
		action := normalizeAction(p.Action)
		rule := strings.TrimSpace(strings.ToLower(p.Rule))
		violate := func(msg string) {
			violations = append(violations, PolicyViolation{
				Name:    p.Name,
				Rule:    p.Rule,
				Action:  action,
				Message: msg,
			})
		}

		switch rule {
		case "blocked_paths":
			patterns := splitPolicyValue(p.Value)
			if len(patterns) > 0 && pathMatchesAnyPattern(change.Path, patterns) {
				violate("change touches a blocked path: " + change.Path)
			}

		case "allowed_paths":
			patterns := splitPolicyValue(p.Value)
			if len(patterns) > 0 && !pathMatchesAnyPattern(change.Path, patterns) {
				violate("change path is outside the allowed paths: " + change.Path)
			}

		case "max_content_bytes":
			limit, err := strconv.Atoi(strings.TrimSpace(p.Value))
			if err != nil || limit < 0 {
				continue
			}
			if change.Size > limit {
				violate(fmt.Sprintf("content is %d bytes, limit is %d", change.Size, limit))
			}

		case "allowed_purposes":
			allowed := splitPolicyValue(p.Value)
			if len(allowed) > 0 && !containsFold(allowed, change.Purpose) {
				violate("purpose is not allowed: " + change.Purpose)
			}
		}
	}

	return violations
}

// Blocking returns the violations whose action is block.
func Blocking(violations []PolicyViolation) []PolicyViolation {
	var out []PolicyViolation
	for _, v := range violations {
		if v.Action == "block" {
			out = append(out, v)
		}
	}
	return out
}

func normalizeAction(action string) string {
	v := strings.TrimSpace(strings.ToLower(action))
	if v == "warn" {
		return "warn"
	}
	return "block"
}

func splitPolicyValue(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		norm := strings.TrimSpace(p)
		if norm == "" {
			continue
		}
		out = append(out, filepath.ToSlash(norm))
	}
	return out
}

func pathMatchesAnyPattern(path string, patterns []string) bool {
	normPath := filepath.ToSlash(path)
	for _, pattern := range patterns {
		if strings.HasSuffix(pattern, "/") && strings.HasPrefix(normPath, pattern) {
			return true
		}
		if normPath == pattern {
			return true
		}
		if ok, err := filepath.Match(pattern, normPath); err == nil && ok {
			return true
		}
		// Patterns without a directory also match the base name.
		if !strings.Contains(pattern, "/") {
			if ok, err := filepath.Match(pattern, filepath.Base(normPath)); err == nil && ok {
				return true
			}
		}
	}
	return false
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
