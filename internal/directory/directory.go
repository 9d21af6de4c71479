// Package directory resolves the repositories repogov works on and reads
// their protection and webhook settings.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	logger "github.com/sirupsen/logrus"

	"github.com/rigdev/repogov/internal/codehost"
	"github.com/rigdev/repogov/internal/config"
)

// Directory lists the configured repositories, or the credential owner's
// public repositories when discovery is enabled.
type Directory struct {
	factory  codehost.Factory
	repos    []config.RepositoryConfig
	discover bool
	log      logger.FieldLogger
}

// New creates a Directory for the repositories in cfg.
func New(factory codehost.Factory, cfg *config.Config, log logger.FieldLogger) *Directory {
	if log == nil {
		log = logger.StandardLogger()
	}
	return &Directory{
		factory:  factory,
		repos:    cfg.Repositories,
		discover: cfg.Discover,
		log:      log,
	}
}

// List returns repository metadata in configuration order. Lookups run
// concurrently; repositories that fail are left out and their errors are
// joined into the returned error alongside the ones that succeeded.
func (d *Directory) List(ctx context.Context, cred codehost.Credential) ([]codehost.Repository, error) {
	client, err := d.factory(cred)
	if err != nil {
		return nil, fmt.Errorf("create host client: %w", err)
	}

	if d.discover {
		repos, err := client.ListOwnRepositories(ctx)
		if err != nil {
			return nil, fmt.Errorf("list own repositories: %w", err)
		}
		sort.Slice(repos, func(i, j int) bool {
			return strings.ToLower(repos[i].FullName) < strings.ToLower(repos[j].FullName)
		})
		return repos, nil
	}

	results := make([]*codehost.Repository, len(d.repos))
	errs := make([]error, len(d.repos))

	var wg sync.WaitGroup
	for i, rc := range d.repos {
		wg.Add(1)
		go func(i int, rc config.RepositoryConfig) {
			defer wg.Done()
			repo, err := client.GetRepository(ctx, rc.Owner, rc.Name)
			if err != nil {
				errs[i] = fmt.Errorf("get repository %s: %w", codehost.FullName(rc.Owner, rc.Name), err)
				return
			}
			results[i] = repo
		}(i, rc)
	}
	wg.Wait()

	out := make([]codehost.Repository, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	if err := errors.Join(errs...); err != nil {
		d.log.Warnf("[directory] %d of %d repositories unavailable", len(d.repos)-len(out), len(d.repos))
		return out, err
	}
	return out, nil
}

// Settings is the protection and webhook configuration of a repository.
type Settings struct {
	Repo              string             `json:"repo"`
	ProtectedBranches []string           `json:"protected_branches"`
	Webhooks          []codehost.Webhook `json:"webhooks"`
}

// WebhookURLs returns the target URL of every webhook.
func (s *Settings) WebhookURLs() []string {
	urls := make([]string, 0, len(s.Webhooks))
	for _, h := range s.Webhooks {
		urls = append(urls, h.URL)
	}
	return urls
}

// Inspect reads protected branches and webhooks of owner/name in
// parallel. Either half may fail on its own; the other half is still
// returned together with the error.
func (d *Directory) Inspect(ctx context.Context, cred codehost.Credential, owner, name string) (*Settings, error) {
	client, err := d.factory(cred)
	if err != nil {
		return nil, fmt.Errorf("create host client: %w", err)
	}

	full := codehost.FullName(owner, name)
	settings := &Settings{Repo: full, ProtectedBranches: []string{}, Webhooks: []codehost.Webhook{}}
	var branchErr, hookErr error

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		branches, err := client.ListProtectedBranches(ctx, owner, name)
		if err != nil {
			branchErr = fmt.Errorf("list protected branches of %s: %w", full, err)
			return
		}
		if branches != nil {
			settings.ProtectedBranches = branches
		}
	}()
	go func() {
		defer wg.Done()
		hooks, err := client.ListWebhooks(ctx, owner, name)
		if err != nil {
			hookErr = fmt.Errorf("list webhooks of %s: %w", full, err)
			return
		}
		if hooks != nil {
			settings.Webhooks = hooks
		}
	}()
	wg.Wait()

	return settings, errors.Join(branchErr, hookErr)
}
