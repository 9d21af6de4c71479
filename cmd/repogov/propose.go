package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rigdev/repogov/internal/artifact"
	"github.com/rigdev/repogov/internal/codehost"
	"github.com/rigdev/repogov/internal/core"
	"github.com/rigdev/repogov/internal/proposal"
	"github.com/rigdev/repogov/internal/storage"
)

func (c *cli) newProposeCommand() *cobra.Command {
	var purpose, path, file, summary string
	//nolint:exhaustruct
	cmd := &cobra.Command{
		Use:   "propose owner/name",
		Short: "Propose a file change as a pull request",
		Long: `Write the content of --file to --path on a new branch and open a pull
request against the default branch. Use --file - to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := parseRepo(args[0])
			if err != nil {
				return err
			}
			content, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			change := proposal.ProposedChange{
				Purpose: purpose,
				Path:    path,
				Content: content,
				Summary: summary,
			}
			return c.invoke(func(svc *core.Service, db *storage.DB, cred codehost.Credential) error {
				defer db.Close()
				out, err := svc.Propose(cmd.Context(), cred, repo, change)
				if err != nil {
					return err
				}
				printOutcome(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&purpose, "purpose", "", "Purpose tag used in the branch name (required)")
	cmd.Flags().StringVar(&path, "path", "", "Repository path to write (required)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Local file with the new content, - for stdin (required)")
	cmd.Flags().StringVar(&summary, "summary", "", "Summary used in the title, commit and body")
	_ = cmd.MarkFlagRequired("purpose")
	_ = cmd.MarkFlagRequired("path")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (c *cli) newCollaboratorCommand() *cobra.Command {
	var permission, repository string
	//nolint:exhaustruct
	cmd := &cobra.Command{
		Use:   "collaborator owner/name username",
		Short: "Propose a Terraform collaborator declaration",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := parseRepo(args[0])
			if err != nil {
				return err
			}
			collab := artifact.Collaborator{
				Username:   args[1],
				Permission: permission,
				Repository: repository,
			}
			return c.invoke(func(svc *core.Service, db *storage.DB, cred codehost.Credential) error {
				defer db.Close()
				out, err := svc.ProposeCollaborator(cmd.Context(), cred, repo, collab)
				if isNoChange(err) {
					fmt.Fprintf(cmd.OutOrStdout(), "Nothing to propose: %v\n", err)
					return nil
				}
				if err != nil {
					return err
				}
				printOutcome(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&permission, "permission", "p", "", "Permission to grant (default: from config)")
	cmd.Flags().StringVar(&repository, "repository", "", "Repository the grant applies to (default: from config)")
	return cmd
}

func (c *cli) newGitignoreCommand() *cobra.Command {
	//nolint:exhaustruct
	return &cobra.Command{
		Use:   "gitignore owner/name entry...",
		Short: "Propose adding entries to .gitignore",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := parseRepo(args[0])
			if err != nil {
				return err
			}
			return c.invoke(func(svc *core.Service, db *storage.DB, cred codehost.Credential) error {
				defer db.Close()
				out, err := svc.UpdateGitignore(cmd.Context(), cred, repo, args[1:])
				if isNoChange(err) {
					fmt.Fprintf(cmd.OutOrStdout(), "Nothing to propose: %v\n", err)
					return nil
				}
				if err != nil {
					return err
				}
				printOutcome(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
}

func readInput(stdin io.Reader, file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	return data, nil
}

func printOutcome(w io.Writer, out *core.Outcome) {
	for _, v := range out.Warnings {
		fmt.Fprintf(w, "Warning: policy %s: %s\n", v.Name, v.Message)
	}
	res := out.Result
	fmt.Fprintf(w, "Opened pull request #%d: %s\n", res.PullRequest.Number, res.PullRequest.URL)
	fmt.Fprintf(w, "Branch: %s (from %s)\n", res.Branch.Name, truncate(res.Branch.BaseSHA, 12))
	fmt.Fprintf(w, "Commit: %s (%s)\n", res.Commit.SHA, res.Revision.Mode)
	if out.Record != nil {
		fmt.Fprintf(w, "Recorded as %s\n", out.Record.ID)
	}
}

// isNoChange reports whether err means there was nothing to propose.
func isNoChange(err error) bool {
	return errors.Is(err, core.ErrNoChange)
}
