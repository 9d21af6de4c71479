package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rigdev/repogov/internal/config"
)

const defaultConfigPath = "repogov.yaml"

// cli holds the global flags shared by every subcommand.
type cli struct {
	configPath string
	token      string
	verbose    bool

	// decorators replace providers after registration, e.g. the host
	// client factory.
	decorators []any
}

func newRootCommand(decorators ...any) *cobra.Command {
	c := &cli{decorators: decorators}

	//nolint:exhaustruct // Minimal Command initialization with required fields only
	cmd := &cobra.Command{
		Use:   "repogov",
		Short: "Repository governance through reviewed pull requests",
		Long: `repogov browses the repositories of a GitHub or GitLab account and proposes
changes to them as pull requests: a file is written on a fresh branch and a
pull request is opened against the default branch.

Collaborator grants are proposed as Terraform declarations and .gitignore
entries are merged into the existing file, so every change is reviewed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", defaultConfigPath,
		"Path to config file")
	cmd.PersistentFlags().StringVar(&c.token, "token", "",
		"Auth token for the hosting platform (overrides config and env)")
	cmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false,
		"Enable debug logging")

	cmd.AddCommand(
		newVersionCommand(),
		c.newValidateCommand(),
		c.newReposCommand(),
		c.newSettingsCommand(),
		c.newShowCommand(),
		c.newProposeCommand(),
		c.newCollaboratorCommand(),
		c.newGitignoreCommand(),
		c.newHistoryCommand(),
		c.newStatsCommand(),
		c.newServeCommand(),
		c.newBrowseCommand(),
	)
	return cmd
}

func newVersionCommand() *cobra.Command {
	//nolint:exhaustruct
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "repogov version %s\n", version)
		},
	}
}

func (c *cli) newValidateCommand() *cobra.Command {
	//nolint:exhaustruct
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.LoadConfig(c.configPath); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Config validation failed: %v\n", err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config validation passed: %s\n", c.configPath)
			return nil
		},
	}
}
