package main

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"
	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rigdev/repogov/internal/codehost"
	"github.com/rigdev/repogov/internal/config"
	"github.com/rigdev/repogov/internal/core"
	"github.com/rigdev/repogov/internal/directory"
	"github.com/rigdev/repogov/internal/storage"
	"github.com/rigdev/repogov/internal/tui"
)

func (c *cli) newBrowseCommand() *cobra.Command {
	//nolint:exhaustruct
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse repositories in an interactive terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.invoke(func(
				cfg *config.Config,
				svc *core.Service,
				dir *directory.Directory,
				db *storage.DB,
				cred codehost.Credential,
				log *logger.Logger,
			) error {
				defer db.Close()
				// Log lines would draw over the alternate screen.
				log.SetOutput(io.Discard)

				m := tui.New(dir, svc, cred, cfg.Collaborator.DefaultPermission)
				_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
				return err
			})
		},
	}
}
