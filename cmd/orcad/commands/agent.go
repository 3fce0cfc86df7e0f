package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/orcalabs/orcad/internals/schemas"
	"github.com/orcalabs/orcad/internals/timeouts"
	"github.com/orcalabs/orcad/sdk"
	"github.com/orcalabs/orcad/tui"
)

func newRunCommand() *cobra.Command {
	var repoURL, branch, model, credential, environment string
	var watch bool

	cmd := &cobra.Command{
		Use:   "run <task...>",
		Short: "Submit an agent task against a repository",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := sdk.NewClient()
			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.SecondDefault)
			defer cancel()

			response, err := client.Submit(ctx, schemas.SubmitRequest{
				Task:          strings.Join(args, " "),
				RepositoryURL: repoURL,
				BranchName:    branch,
				Model:         model,
				Credential:    credential,
				Environment:   environment,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %s started on branch %s\n", response.SessionID, response.BranchName)
			if watch {
				return tui.Watch(client, response.SessionID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&repoURL, "repo", "", "repository URL to operate on")
	cmd.Flags().StringVar(&branch, "branch", "", "branch name (derived when empty)")
	cmd.Flags().StringVar(&model, "model", "", "model override")
	cmd.Flags().StringVar(&credential, "credential", "", "git credential for https github URLs")
	cmd.Flags().StringVar(&environment, "env", "", "backend environment override")
	cmd.Flags().BoolVar(&watch, "watch", false, "tail the session after submitting")
	_ = cmd.MarkFlagRequired("repo")
	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <session-id>",
		Short: "Print the full state of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := sdk.NewClient()
			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.SecondDefault)
			defer cancel()

			session, err := client.Status(ctx, args[0])
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(session)
		},
	}
}

func newStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <session-id>",
		Short: "Stop a running session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := sdk.NewClient()
			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.SecondDefault)
			defer cancel()

			response, err := client.Stop(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", response.SessionID, response.Message)
			return nil
		},
	}
}

func newSessionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List sessions known to the daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := sdk.NewClient()
			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.SecondDefault)
			defer cancel()

			response, err := client.ListSessions(ctx)
			if err != nil {
				return err
			}
			if len(response.Sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
				return nil
			}
			for _, session := range response.Sessions {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-9s  %s  %s\n",
					session.ID, session.Status, session.BranchName, session.Task)
			}
			return nil
		},
	}
}

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <session-id>",
		Short: "Tail a session's live event stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.Watch(sdk.NewClient(), args[0])
		},
	}
}
