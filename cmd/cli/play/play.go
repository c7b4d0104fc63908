package play

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/myrjola/keeper/cmd/cli/appenv"
	"github.com/myrjola/keeper/internal/errors"
	"github.com/myrjola/keeper/internal/keeper"
	"github.com/myrjola/keeper/internal/models"
	"github.com/spf13/cobra"
)

const help = `Type an action, or the number of a choice.
  /edit <text>  rewrite your last action
  /summary      summarize the session so far
  /quit         leave the session
Ctrl-C stops the Keeper mid-reply.`

var Play = &cobra.Command{
	Use:     "play <session-id>",
	GroupID: "play",
	Short:   "Play a session in the terminal",
	Long:    "Plays a session turn by turn. The Keeper introduces the scene when the session has no messages yet.\n\n" + help,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return appenv.Run(cmd, func(env *appenv.Env) error {
			return newGame(env, args[0], cmd.OutOrStdout()).loop(cmd.Context(), cmd.InOrStdin(), true)
		})
	},
}

var Summarize = &cobra.Command{
	Use:     "summarize <session-id>",
	GroupID: "play",
	Short:   "Summarize a session into its running summary",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return appenv.Run(cmd, func(env *appenv.Env) error {
			summary, err := env.Keeper(env.Sessions).Summarize(cmd.Context(), args[0])
			if err != nil {
				return err //nolint:wrapcheck // orchestrator errors are annotated
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), summary)
			return nil
		})
	},
}

// game is a terminal play session.
type game struct {
	env       *appenv.Env
	keeper    *keeper.Orchestrator
	sessionID string
	out       io.Writer
	// choices are the choices of the last keeper message.
	choices []string
}

func newGame(env *appenv.Env, sessionID string, out io.Writer) *game {
	return &game{
		env:       env,
		keeper:    env.Keeper(newPrinter(env.Sessions, out)),
		sessionID: sessionID,
		out:       out,
		choices:   nil,
	}
}

// loop reads player input until /quit or the end of in. With interrupts, Ctrl-C cancels the in-flight turn.
func (g *game) loop(ctx context.Context, in io.Reader, interrupts bool) error {
	session, err := g.env.Sessions.Get(ctx, g.sessionID)
	if err != nil {
		return err //nolint:wrapcheck // repository errors are annotated
	}
	_, _ = fmt.Fprintf(g.out, "%s\n\n", session.Title)

	if interrupts {
		stop := g.cancelOnInterrupt(ctx)
		defer stop()
	}

	if len(session.Chat) == 0 {
		if err = g.turn(g.keeper.Introduce(ctx, g.sessionID)); err != nil {
			return err
		}
	} else {
		last := session.Chat[len(session.Chat)-1]
		printMessage(g.out, last)
		g.remember(&last)
	}

	scanner := bufio.NewScanner(in)
	for {
		_, _ = fmt.Fprint(g.out, "\n> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/help":
			_, _ = fmt.Fprintln(g.out, help)
		case line == "/summary":
			err = g.summarize(ctx)
		case strings.HasPrefix(line, "/edit "):
			err = g.edit(ctx, strings.TrimPrefix(line, "/edit "))
		default:
			err = g.turn(g.keeper.Submit(ctx, g.sessionID, keeper.Action{Text: g.choice(line)}))
		}
		if err != nil {
			return err
		}
	}
	if err = scanner.Err(); err != nil {
		return errors.Wrap(err, "read input")
	}
	return nil
}

// cancelOnInterrupt cancels the in-flight turn on Ctrl-C. The returned function restores the default behaviour.
func (g *game) cancelOnInterrupt(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-signals:
				if !g.keeper.Cancel(g.sessionID) {
					_, _ = fmt.Fprint(g.out, "\n(type /quit to leave)\n> ")
				}
			}
		}
	}()
	return func() {
		signal.Stop(signals)
		cancel()
	}
}

// turn reports player mistakes and remembers the choices of a committed keeper message.
func (g *game) turn(msg *models.ChatMessage, err error) error {
	switch {
	case errors.Is(err, keeper.ErrEmptyAction), errors.Is(err, keeper.ErrMessageNotFound),
		errors.Is(err, keeper.ErrTurnInFlight), errors.Is(err, keeper.ErrAlreadyIntroduced),
		errors.Is(err, keeper.ErrChatNotEmpty):
		_, _ = fmt.Fprintf(g.out, "(%s)\n", err)
		return nil
	case err != nil:
		return err
	}
	g.remember(msg)
	return nil
}

func (g *game) remember(msg *models.ChatMessage) {
	if msg.Role == models.ChatRoleKeeper && msg.Meta != nil && msg.Meta.KeeperTurn != nil {
		g.choices = msg.Meta.KeeperTurn.Choices
	}
}

// choice expands the number of a listed choice into the player action.
func (g *game) choice(line string) string {
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(g.choices) {
		return line
	}
	return fmt.Sprintf("I choose option %d: %s", n, g.choices[n-1])
}

// edit rewrites the last player action.
func (g *game) edit(ctx context.Context, text string) error {
	session, err := g.env.Sessions.Get(ctx, g.sessionID)
	if err != nil {
		return err //nolint:wrapcheck // repository errors are annotated
	}
	for i := len(session.Chat) - 1; i >= 0; i-- {
		if session.Chat[i].Role == models.ChatRolePlayer {
			return g.turn(g.keeper.Submit(ctx, g.sessionID, keeper.Action{
				Text:                text,
				EditedFromMessageID: session.Chat[i].ID,
			}))
		}
	}
	_, _ = fmt.Fprintln(g.out, "(nothing to edit yet)")
	return nil
}

func (g *game) summarize(ctx context.Context) error {
	summary, err := g.keeper.Summarize(ctx, g.sessionID)
	switch {
	case errors.Is(err, keeper.ErrNotConfigured), errors.Is(err, keeper.ErrEmptySummary):
		_, _ = fmt.Fprintf(g.out, "(%s)\n", err)
		return nil
	case err != nil:
		return err //nolint:wrapcheck // orchestrator errors are annotated
	}
	_, _ = fmt.Fprintf(g.out, "Summary: %s\n", summary)
	return nil
}
