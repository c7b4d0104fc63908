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
	"github.com/myrjola/keeper/internal/reply"
)

// State is a step of a Keeper turn.
type State string

const (
	StateIdle           State = "idle"
	StateRequesting     State = "requesting"
	StateStreaming      State = "streaming"
	StateFinalizing     State = "finalizing"
	StateErrorRecovered State = "error_recovered"
	StateCommitted      State = "committed"
)

// Action is a player submission.
type Action struct {
	Text string `json:"text"`
	// EditedFromMessageID references the player message this action rewrites.
	EditedFromMessageID string `json:"editedFromMessageId,omitempty"`
}

// RunTurn runs one Keeper turn for the utterance and returns the committed keeper message. A blank utterance runs
// the introduction of an empty session.
func (o *Orchestrator) RunTurn(ctx context.Context, sessionID, utterance string) (*models.ChatMessage, error) {
	if strings.TrimSpace(utterance) == "" {
		return o.Introduce(ctx, sessionID)
	}
	return o.Submit(ctx, sessionID, Action{Text: utterance})
}

// Submit commits the player action and then runs the Keeper turn answering it.
//
// A submission while a turn is in flight is rejected with ErrTurnInFlight and changes nothing.
func (o *Orchestrator) Submit(ctx context.Context, sessionID string, action Action) (*models.ChatMessage, error) {
	text := strings.TrimSpace(action.Text)
	if text == "" {
		return nil, ErrEmptyAction
	}
	t, err := o.begin(sessionID)
	if err != nil {
		return nil, err
	}
	defer o.end(t)
	ctx = logging.WithAttrs(logging.WithSession(ctx, sessionID), slog.String("turn_id", t.id))

	recs, err := o.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if action.EditedFromMessageID != "" && !hasPlayerMessage(recs.session.Chat, action.EditedFromMessageID) {
		return nil, errors.Wrap(ErrMessageNotFound, "edit action",
			slog.String("message_id", action.EditedFromMessageID))
	}

	session := recs.session.Clone()
	now := o.now()
	if action.EditedFromMessageID != "" {
		session.Chat = append(session.Chat, models.ChatMessage{ //nolint:exhaustruct // optional fields
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Role:      models.ChatRoleSystem,
			Content:   o.phrases.RewriteNote,
			CreatedAt: now,
			Meta:      &models.MessageMeta{IsSystemNote: true}, //nolint:exhaustruct // only a note
		})
	}
	session.Chat = append(session.Chat, models.ChatMessage{ //nolint:exhaustruct // no meta for player messages
		ID:                  uuid.NewString(),
		SessionID:           sessionID,
		Role:                models.ChatRolePlayer,
		Content:             text,
		CreatedAt:           now,
		EditedFromMessageID: action.EditedFromMessageID,
	})
	session.UpdatedAt = now
	if err = o.sessions.Upsert(ctx, session); err != nil {
		return nil, errors.Wrap(err, "commit player action")
	}
	o.logger.LogAttrs(ctx, slog.LevelInfo, "player action committed",
		slog.Bool("edit", action.EditedFromMessageID != ""))

	recs.session = session
	return o.runTurn(ctx, t, recs, text, o.phrases.MessageFallback)
}

func hasPlayerMessage(chat []models.ChatMessage, id string) bool {
	for _, m := range chat {
		if m.ID == id {
			return m.Role == models.ChatRolePlayer
		}
	}
	return false
}

// Introduce runs the opening Keeper turn of a session with an empty chat. It runs at most once per session until
// ResetIntroduction is called.
func (o *Orchestrator) Introduce(ctx context.Context, sessionID string) (*models.ChatMessage, error) {
	t, err := o.begin(sessionID)
	if err != nil {
		return nil, err
	}
	defer o.end(t)
	ctx = logging.WithAttrs(logging.WithSession(ctx, sessionID), slog.String("turn_id", t.id))

	recs, err := o.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(recs.session.Chat) > 0 {
		return nil, ErrChatNotEmpty
	}
	if !o.latchIntroduction(sessionID) {
		return nil, ErrAlreadyIntroduced
	}

	// The intro utterance is only sent to the endpoint, the chat starts with the Keeper.
	utterance := o.phrases.introPrompt(recs.investigator.Name, recs.scenario.Name)
	session := recs.session.Clone()
	session.UpdatedAt = o.now()
	recs.session = session
	o.logger.LogAttrs(ctx, slog.LevelInfo, "introducing session")
	return o.runTurn(ctx, t, recs, utterance, o.phrases.IntroFallback)
}

func (o *Orchestrator) transition(ctx context.Context, from, to State) {
	o.logger.LogAttrs(ctx, slog.LevelDebug, "keeper turn transition",
		slog.String("from", string(from)), slog.String("to", string(to)))
}

// runTurn drives the turn from Idle to Committed on top of recs.session, which already holds the player message.
func (o *Orchestrator) runTurn(
	ctx context.Context,
	t *turn,
	recs records,
	utterance string,
	unconfiguredNarration string,
) (*models.ChatMessage, error) {
	keeperMsg := models.ChatMessage{ //nolint:exhaustruct // content arrives while streaming
		ID:        uuid.NewString(),
		SessionID: recs.session.ID,
		Role:      models.ChatRoleKeeper,
		CreatedAt: o.now(),
	}

	if !o.completer.Configured() {
		o.transition(ctx, StateIdle, StateErrorRecovered)
		o.logger.LogAttrs(ctx, slog.LevelInfo, "no completion endpoint configured, using fallback keeper")
		return o.commitFallback(ctx, t, recs.session, keeperMsg, unconfiguredNarration)
	}

	messages := prompt.BuildTurnMessages(prompt.TurnInput{
		Session:      recs.session,
		Scenario:     recs.scenario,
		Investigator: recs.investigator,
		History:      recs.session.Chat,
		Utterance:    utterance,
		Prompts:      o.prompts,
		HistoryLimit: o.historyLimit,
	})

	o.transition(ctx, StateIdle, StateRequesting)
	body, err := o.completer.StreamCompletion(ctx, messages)
	if err != nil {
		o.transition(ctx, StateRequesting, StateErrorRecovered)
		o.logger.LogAttrs(ctx, slog.LevelError, "keeper request failed", errors.SlogError(err))
		return o.commitFallback(ctx, t, recs.session, keeperMsg, "")
	}
	defer func() {
		if closeErr := body.Close(); closeErr != nil {
			o.logger.LogAttrs(ctx, slog.LevelWarn, "close completion body", errors.SlogError(closeErr))
		}
	}()

	o.transition(ctx, StateRequesting, StateStreaming)
	var raw strings.Builder
	text, err := o.ingestor.Ingest(ctx, body, func(token string) {
		raw.WriteString(token)
		keeperMsg.Content = reply.SanitizePartial(raw.String())
		o.publish(ctx, t, recs.session, keeperMsg)
	})
	if t.cancelled.Load() {
		o.logger.LogAttrs(ctx, slog.LevelInfo, "keeper turn cancelled", slog.Bool("stream_error", err != nil))
		return o.commitCancelled(ctx, t, recs.session, keeperMsg)
	}
	if err != nil {
		o.transition(ctx, StateStreaming, StateErrorRecovered)
		o.logger.LogAttrs(ctx, slog.LevelError, "keeper stream failed", errors.SlogError(err))
		return o.commitFallback(ctx, t, recs.session, keeperMsg, reply.Sanitize(raw.String()))
	}

	o.transition(ctx, StateStreaming, StateFinalizing)
	keeperMsg.Content = reply.Sanitize(text)
	if strings.TrimSpace(keeperMsg.Content) == "" {
		o.transition(ctx, StateFinalizing, StateErrorRecovered)
		o.logger.LogAttrs(ctx, slog.LevelWarn, "keeper reply is empty")
		return o.commitFallback(ctx, t, recs.session, keeperMsg, "")
	}
	parsed := o.parser.Parse(ctx, keeperMsg.Content)
	keeperMsg.Meta = &models.MessageMeta{KeeperTurn: &parsed} //nolint:exhaustruct // regular turn
	o.logger.LogAttrs(ctx, slog.LevelInfo, "keeper reply parsed",
		slog.String("dialect", string(parsed.Dialect)), slog.Int("choices", len(parsed.Choices)))
	return o.commit(ctx, StateFinalizing, recs.session, keeperMsg)
}

// publish replaces the tail keeper message with a longer partial content. Updates that would not extend the
// visible text are dropped so that observers only ever see the content grow.
func (o *Orchestrator) publish(ctx context.Context, t *turn, session *models.Session, msg models.ChatMessage) {
	if t.cancelled.Load() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(msg.Content) <= len(t.visible) || !strings.HasPrefix(msg.Content, t.visible) {
		return
	}
	t.visible = msg.Content

	snapshot := session.Clone()
	snapshot.Chat = append(snapshot.Chat, msg)
	if err := o.sessions.Upsert(ctx, snapshot); err != nil {
		o.logger.LogAttrs(ctx, slog.LevelWarn, "publish partial keeper reply", errors.SlogError(err))
	}
}

// commitCancelled commits the text that was visible when the turn was cancelled.
func (o *Orchestrator) commitCancelled(
	ctx context.Context,
	t *turn,
	session *models.Session,
	msg models.ChatMessage,
) (*models.ChatMessage, error) {
	visible := t.visibleText()
	parsed := o.parser.Parse(ctx, visible)
	if len(parsed.Choices) == 0 {
		msg.Content = reply.BuildFallback(visible, o.phrases.SilentFallback)
		parsed = o.parser.Parse(ctx, msg.Content)
	} else {
		msg.Content = visible
	}
	msg.Meta = &models.MessageMeta{WasCancelled: true, KeeperTurn: &parsed} //nolint:exhaustruct // cancelled turn
	return o.commit(ctx, StateStreaming, session, msg)
}

// commitFallback commits a fallback turn narrated by seed, or by the silent fallback phrase when seed is blank.
func (o *Orchestrator) commitFallback(
	ctx context.Context,
	t *turn,
	session *models.Session,
	msg models.ChatMessage,
	seed string,
) (*models.ChatMessage, error) {
	msg.Content = reply.BuildFallback(seed, o.phrases.SilentFallback)
	parsed := o.parser.Parse(ctx, msg.Content)
	msg.Meta = &models.MessageMeta{KeeperTurn: &parsed, WasCancelled: t.cancelled.Load()} //nolint:exhaustruct // fallback
	return o.commit(ctx, StateErrorRecovered, session, msg)
}

// commit appends the final keeper message. It is not interrupted by cancellation of ctx so that every turn ends
// committed.
func (o *Orchestrator) commit(
	ctx context.Context,
	from State,
	session *models.Session,
	msg models.ChatMessage,
) (*models.ChatMessage, error) {
	ctx = context.WithoutCancel(ctx)
	final := session.Clone()
	now := o.now()
	final.Chat = append(final.Chat, msg)
	final.LastOpenedAt = now
	final.UpdatedAt = now
	if err := o.sessions.Upsert(ctx, final); err != nil {
		return nil, errors.Wrap(err, "commit keeper turn", slog.String("message_id", msg.ID))
	}
	o.transition(ctx, from, StateCommitted)
	return &msg, nil
}
