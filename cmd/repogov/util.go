package main

import (
	"fmt"
	"strings"

	"github.com/rigdev/repogov/internal/proposal"
)

// parseRepo splits an owner/name argument.
func parseRepo(arg string) (proposal.RepositoryRef, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(arg), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return proposal.RepositoryRef{}, fmt.Errorf("repository must be owner/name, got %q", arg)
	}
	return proposal.RepositoryRef{Owner: owner, Name: name}, nil
}

func truncate(s string, max int) string {
	return truncateWithSuffix(s, max, "..")
}

func truncateWithSuffix(s string, max int, suffix string) string {
	if len(s) <= max {
		return s
	}
	if max <= len(suffix) {
		return suffix[:max]
	}
	return s[:max-len(suffix)] + suffix
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
