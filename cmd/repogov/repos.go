package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rigdev/repogov/internal/codehost"
	"github.com/rigdev/repogov/internal/core"
	"github.com/rigdev/repogov/internal/directory"
	"github.com/rigdev/repogov/internal/storage"
)

func (c *cli) newReposCommand() *cobra.Command {
	//nolint:exhaustruct
	return &cobra.Command{
		Use:   "repos",
		Short: "List the repositories of the directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.invoke(func(dir *directory.Directory, cred codehost.Credential) error {
				repos, err := dir.List(cmd.Context(), cred)
				printRepos(cmd.OutOrStdout(), repos)
				return err
			})
		},
	}
}

func printRepos(w io.Writer, repos []codehost.Repository) {
	if len(repos) == 0 {
		fmt.Fprintln(w, "No repositories found.")
		return
	}
	fmt.Fprintf(w, "%-36s %-9s %-14s %s\n", "REPOSITORY", "VISIBLE", "DEFAULT", "DESCRIPTION")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, r := range repos {
		visibility := "public"
		if r.Private {
			visibility = "private"
		}
		fmt.Fprintf(w, "%-36s %-9s %-14s %s\n",
			truncate(r.FullName, 36),
			visibility,
			truncate(orDash(r.DefaultBranch), 14),
			truncate(r.Description, 40),
		)
	}
}

func (c *cli) newSettingsCommand() *cobra.Command {
	//nolint:exhaustruct
	return &cobra.Command{
		Use:   "settings owner/name",
		Short: "Show protected branches and webhooks of a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := parseRepo(args[0])
			if err != nil {
				return err
			}
			return c.invoke(func(dir *directory.Directory, cred codehost.Credential) error {
				settings, err := dir.Inspect(cmd.Context(), cred, repo.Owner, repo.Name)
				if settings != nil {
					printSettings(cmd.OutOrStdout(), settings)
				}
				return err
			})
		},
	}
}

func printSettings(w io.Writer, s *directory.Settings) {
	fmt.Fprintf(w, "Repository: %s\n", s.Repo)
	fmt.Fprintln(w, "Protected branches:")
	if len(s.ProtectedBranches) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, b := range s.ProtectedBranches {
		fmt.Fprintf(w, "  - %s\n", b)
	}
	fmt.Fprintln(w, "Webhooks:")
	if len(s.Webhooks) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, h := range s.Webhooks {
		state := "active"
		if !h.Active {
			state = "inactive"
		}
		fmt.Fprintf(w, "  - %s [%s]\n", h.URL, state)
	}
}

func (c *cli) newShowCommand() *cobra.Command {
	var ref string
	//nolint:exhaustruct
	cmd := &cobra.Command{
		Use:   "show owner/name path",
		Short: "Print a file from a repository",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := parseRepo(args[0])
			if err != nil {
				return err
			}
			return c.invoke(func(svc *core.Service, db *storage.DB, cred codehost.Credential) error {
				defer db.Close()
				file, err := svc.ReadFile(cmd.Context(), cred, repo, args[1], ref)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), file.Content)
				fmt.Fprintf(cmd.ErrOrStderr(), "%s@%s sha %s\n", file.Path, file.Ref, file.SHA)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&ref, "ref", "", "Branch, tag or commit (default: default branch)")
	return cmd
}
