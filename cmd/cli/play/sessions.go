package play

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/myrjola/keeper/cmd/cli/appenv"
	"github.com/myrjola/keeper/internal/models"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "play",
	Title: "Play sessions",
}

func init() {
	NewSession.Flags().String("scenario", "the-haunting", "scenario ID")
	NewSession.Flags().String("investigator", "evelyn-hart", "investigator ID")
	Sessions.AddCommand(NewSession, ListSessions, ShowSession)
}

var Sessions = &cobra.Command{
	Use:     "sessions",
	GroupID: "play",
	Short:   "Manage play sessions",
}

var NewSession = &cobra.Command{
	Use:   "new",
	Short: "Start a session and print its ID",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		scenarioID, _ := cmd.Flags().GetString("scenario")
		investigatorID, _ := cmd.Flags().GetString("investigator")
		return appenv.Run(cmd, func(env *appenv.Env) error {
			ctx := cmd.Context()
			scenario, err := env.Scenarios.Get(ctx, scenarioID)
			if err != nil {
				return err //nolint:wrapcheck // repository errors are annotated
			}
			investigator, err := env.Investigators.Get(ctx, investigatorID)
			if err != nil {
				return err //nolint:wrapcheck // repository errors are annotated
			}
			session := models.NewSession(uuid.NewString(), scenario, investigator, time.Now())
			if err = env.Sessions.Upsert(ctx, session); err != nil {
				return err //nolint:wrapcheck // repository errors are annotated
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), session.ID)
			return nil
		})
	},
}

var ListSessions = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recently played first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return appenv.Run(cmd, func(env *appenv.Env) error {
			sessions, err := env.Sessions.List(cmd.Context())
			if err != nil {
				return err //nolint:wrapcheck // repository errors are annotated
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0) //nolint:mnd // column layout
			_, _ = fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tLAST OPENED")
			for _, s := range sessions {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					s.ID, s.Title, s.Status, s.LastOpenedAt.Local().Format(time.DateTime))
			}
			return w.Flush() //nolint:wrapcheck // terminal output
		})
	},
}

var ShowSession = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print the transcript and the log of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return appenv.Run(cmd, func(env *appenv.Env) error {
			session, err := env.Sessions.Get(cmd.Context(), args[0])
			if err != nil {
				return err //nolint:wrapcheck // repository errors are annotated
			}
			printTranscript(cmd.OutOrStdout(), session)
			return nil
		})
	},
}

func printTranscript(out io.Writer, session *models.Session) {
	_, _ = fmt.Fprintf(out, "%s [%s]\n", session.Title, session.Status)
	if session.StateSummary != "" {
		_, _ = fmt.Fprintf(out, "Summary: %s\n", session.StateSummary)
	}
	for _, msg := range session.Chat {
		_, _ = fmt.Fprintln(out)
		printMessage(out, msg)
	}
	_, _ = fmt.Fprintln(out, "\nLog:")
	for _, entry := range session.Log {
		_, _ = fmt.Fprintf(out, "- %s %s", entry.CreatedAt.Local().Format(time.DateTime), entry.Title)
		if entry.Details != "" {
			_, _ = fmt.Fprintf(out, ": %s", entry.Details)
		}
		_, _ = fmt.Fprintln(out)
	}
}

func printMessage(out io.Writer, msg models.ChatMessage) {
	switch msg.Role {
	case models.ChatRoleKeeper:
		if msg.Meta == nil || msg.Meta.KeeperTurn == nil {
			_, _ = fmt.Fprintf(out, "KEEPER: %s\n", msg.Content)
			return
		}
		_, _ = fmt.Fprintf(out, "KEEPER: %s\n", msg.Meta.KeeperTurn.Narration)
		printChoices(out, msg.Meta.KeeperTurn.Choices)
	case models.ChatRolePlayer:
		_, _ = fmt.Fprintf(out, "YOU: %s\n", msg.Content)
	case models.ChatRoleSystem:
		_, _ = fmt.Fprintf(out, "NOTE: %s\n", msg.Content)
	}
}
