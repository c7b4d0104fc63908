package keeper

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/myrjola/keeper/internal/errors"
	"github.com/myrjola/keeper/internal/logging"
	"github.com/myrjola/keeper/internal/models"
	"github.com/myrjola/keeper/internal/prompt"
)

var ErrEmptySummary = errors.NewSentinel("completion returned an empty summary")

// Summarize condenses the session into its state summary and records a keeper_summary log entry. It needs a
// configured endpoint and is rejected while a turn is in flight.
func (o *Orchestrator) Summarize(ctx context.Context, sessionID string) (string, error) {
	if !o.completer.Configured() {
		return "", ErrNotConfigured
	}
	t, err := o.begin(sessionID)
	if err != nil {
		return "", err
	}
	defer o.end(t)
	ctx = logging.WithSession(ctx, sessionID)

	recs, err := o.load(ctx, sessionID)
	if err != nil {
		return "", err
	}
	messages := prompt.BuildSummaryMessages(prompt.TurnInput{ //nolint:exhaustruct // no utterance
		Session:      recs.session,
		Scenario:     recs.scenario,
		Investigator: recs.investigator,
		History:      recs.session.Chat,
		HistoryLimit: o.historyLimit,
	})
	content, err := o.completer.Completion(ctx, messages)
	if err != nil {
		return "", errors.Wrap(err, "summarize session")
	}
	summary := strings.TrimSpace(content)
	if summary == "" {
		return "", ErrEmptySummary
	}

	session := recs.session.Clone()
	now := o.now()
	session.StateSummary = summary
	entry := models.LogEntry{ //nolint:exhaustruct // not tied to a message
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Type:      models.LogEntryTypeKeeperSummary,
		Title:     "Session summary",
		Details:   summary,
		CreatedAt: now,
	}
	if n := len(session.Chat); n > 0 {
		entry.RelatedMessageID = session.Chat[n-1].ID
	}
	session.Log = append(session.Log, entry)
	session.UpdatedAt = now
	if err = o.sessions.Upsert(context.WithoutCancel(ctx), session); err != nil {
		return "", errors.Wrap(err, "commit summary")
	}
	o.logger.LogAttrs(ctx, slog.LevelInfo, "session summarized", slog.Int("summary_length", len(summary)))
	return summary, nil
}
