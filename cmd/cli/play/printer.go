package play

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/myrjola/keeper/internal/keeper"
	"github.com/myrjola/keeper/internal/models"
	"github.com/myrjola/keeper/internal/reply"
)

// printer is a session store that echoes the Keeper's narration to the terminal while it streams in.
type printer struct {
	keeper.SessionStore
	out io.Writer

	mu sync.Mutex
	// messageID is the keeper message being printed.
	messageID string
	// printed is the narration printed so far for messageID.
	printed string
	// finished is the last keeper message printed in full.
	finished string
}

func newPrinter(store keeper.SessionStore, out io.Writer) *printer {
	return &printer{
		SessionStore: store,
		out:          out,
		mu:           sync.Mutex{},
		messageID:    "",
		printed:      "",
		finished:     "",
	}
}

func (p *printer) Upsert(ctx context.Context, session *models.Session) error {
	if err := p.SessionStore.Upsert(ctx, session); err != nil {
		return err //nolint:wrapcheck // the orchestrator wraps store errors
	}
	if len(session.Chat) == 0 {
		return nil
	}
	msg := session.Chat[len(session.Chat)-1]
	if msg.Role != models.ChatRoleKeeper {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if msg.ID == p.finished {
		return nil
	}
	if msg.ID != p.messageID {
		p.messageID = msg.ID
		p.printed = ""
	}
	if msg.Meta != nil && msg.Meta.KeeperTurn != nil {
		p.finish(msg)
		return nil
	}
	preview := reply.Preview(msg.Content)
	if len(preview) <= len(p.printed) || !strings.HasPrefix(preview, p.printed) {
		return nil
	}
	_, _ = fmt.Fprint(p.out, preview[len(p.printed):])
	p.printed = preview
	return nil
}

// finish prints the rest of the committed narration and the choices.
func (p *printer) finish(msg models.ChatMessage) {
	turn := msg.Meta.KeeperTurn
	switch {
	case p.printed != "" && strings.HasPrefix(turn.Narration, p.printed):
		_, _ = fmt.Fprint(p.out, turn.Narration[len(p.printed):])
	case p.printed != "":
		_, _ = fmt.Fprintf(p.out, "\n\n%s", turn.Narration)
	default:
		_, _ = fmt.Fprint(p.out, turn.Narration)
	}
	_, _ = fmt.Fprintln(p.out)
	if msg.Meta.WasCancelled {
		_, _ = fmt.Fprintln(p.out, "(cancelled)")
	}
	printChoices(p.out, turn.Choices)
	p.finished = msg.ID
	p.printed = ""
}

func printChoices(out io.Writer, choices []string) {
	if len(choices) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out)
	for i, choice := range choices {
		_, _ = fmt.Fprintf(out, "  %d. %s\n", i+1, choice)
	}
}
