package main

import (
	"fmt"
	"os"
	"time"

	logger "github.com/sirupsen/logrus"
	"go.uber.org/dig"

	"github.com/rigdev/repogov/internal/codehost"
	"github.com/rigdev/repogov/internal/codehost/github"
	"github.com/rigdev/repogov/internal/codehost/gitlab"
	"github.com/rigdev/repogov/internal/config"
	"github.com/rigdev/repogov/internal/core"
	"github.com/rigdev/repogov/internal/directory"
	"github.com/rigdev/repogov/internal/logging"
	"github.com/rigdev/repogov/internal/notify"
	"github.com/rigdev/repogov/internal/proposal"
	"github.com/rigdev/repogov/internal/storage"
)

// registerProviders adds every component constructor to the container.
// Nothing is built until a command invokes it, so commands that never ask
// for the store never open the database.
func (c *cli) registerProviders(container *dig.Container) error {
	providers := []any{
		c.provideConfig,
		c.provideLogger,
		c.provideCredential,
		newFactory,
		newWorkflow,
		newStore,
		newService,
		newDirectory,
	}
	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return err
		}
	}
	for _, d := range c.decorators {
		if err := container.Decorate(d); err != nil {
			return err
		}
	}
	return nil
}

// invoke builds a container and calls fn with its resolved arguments.
func (c *cli) invoke(fn any) error {
	container := dig.New()
	if err := c.registerProviders(container); err != nil {
		return err
	}
	return dig.RootCause(container.Invoke(fn))
}

func (c *cli) provideConfig() (*config.Config, error) {
	return config.LoadConfig(c.configPath)
}

// provideLogger configures the standard logger so package level calls
// follow the same settings, and hands it out.
func (c *cli) provideLogger(cfg *config.Config) (*logger.Logger, error) {
	if err := logging.Setup(cfg.Log, os.Stderr, c.verbose); err != nil {
		return nil, err
	}
	return logger.StandardLogger(), nil
}

// provideCredential prefers --token, then the config file, then the
// platform's environment variable.
func (c *cli) provideCredential(cfg *config.Config) codehost.Credential {
	if c.token != "" {
		return codehost.Credential{Token: c.token}
	}
	return codehost.Credential{Token: cfg.Token()}
}

func newFactory(cfg *config.Config) (codehost.Factory, error) {
	switch cfg.Hosting.Platform {
	case "github":
		return github.NewFactory(github.Config{BaseURL: cfg.Hosting.BaseURL}), nil
	case "gitlab":
		return gitlab.NewFactory(gitlab.Config{BaseURL: cfg.Hosting.BaseURL}), nil
	default:
		return nil, fmt.Errorf("unsupported hosting platform %q", cfg.Hosting.Platform)
	}
}

func newWorkflow(cfg *config.Config, factory codehost.Factory, log *logger.Logger) (*proposal.Workflow, error) {
	return proposal.New(proposal.Options{
		Factory:   factory,
		Templates: cfg.Proposal.Templates,
		Clock:     utcNow,
		Log:       log,
	})
}

func newStore(cfg *config.Config) (*storage.DB, error) {
	return storage.Open(cfg.Storage.Path)
}

func newService(cfg *config.Config, wf *proposal.Workflow, factory codehost.Factory, db *storage.DB, log *logger.Logger) (*core.Service, error) {
	return core.NewService(core.Options{
		Workflow:      wf,
		Factory:       factory,
		Store:         db,
		Policies:      cfg.Policies,
		Collaborator:  cfg.Collaborator,
		GitignorePath: cfg.Proposal.GitignorePath,
		Notifier:      notify.FromConfig(cfg.Notify),
		Clock:         utcNow,
		Log:           log,
	})
}

func newDirectory(cfg *config.Config, factory codehost.Factory, log *logger.Logger) *directory.Directory {
	return directory.New(factory, cfg, log)
}

func utcNow() time.Time {
	return time.Now().UTC()
}
