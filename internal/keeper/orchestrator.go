// Package keeper runs Keeper turns: it builds the prompt, streams the completion into the session, parses the
// reply and commits it. Every turn ends with a committed keeper message, failures included.
package keeper

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/myrjola/keeper/internal/errors"
	"github.com/myrjola/keeper/internal/models"
	"github.com/myrjola/keeper/internal/reply"
	"github.com/myrjola/keeper/internal/stream"
	"github.com/sashabaranov/go-openai"
)

var (
	ErrEmptyAction       = errors.NewSentinel("empty player action")
	ErrTurnInFlight      = errors.NewSentinel("a keeper turn is already in flight")
	ErrAlreadyIntroduced = errors.NewSentinel("session introduction already started")
	ErrChatNotEmpty      = errors.NewSentinel("session chat is not empty")
	ErrNotConfigured     = errors.NewSentinel("no completion endpoint configured")
	ErrMessageNotFound   = errors.NewSentinel("edited message not found")
)

type SessionStore interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	// Upsert replaces the whole session by ID.
	Upsert(ctx context.Context, session *models.Session) error
}

type ScenarioStore interface {
	Get(ctx context.Context, id string) (*models.Scenario, error)
}

type InvestigatorStore interface {
	Get(ctx context.Context, id string) (*models.Investigator, error)
}

// Completer is an OpenAI-compatible chat completion endpoint.
type Completer interface {
	// Configured reports whether requests can be made at all.
	Configured() bool
	// StreamCompletion returns the raw streaming response body.
	StreamCompletion(ctx context.Context, messages []openai.ChatCompletionMessage) (io.ReadCloser, error)
	Completion(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error)
}

type Config struct {
	Prompts models.KeeperPrompts
	Phrases Phrases
	// HistoryLimit bounds the chat history sent with each turn. Zero means unlimited.
	HistoryLimit int
}

type Orchestrator struct {
	logger        *slog.Logger
	sessions      SessionStore
	scenarios     ScenarioStore
	investigators InvestigatorStore
	completer     Completer
	ingestor      *stream.Ingestor
	parser        *reply.Parser
	prompts       models.KeeperPrompts
	phrases       Phrases
	historyLimit  int
	now           func() time.Time

	mu         sync.Mutex
	inFlight   map[string]*turn
	introduced map[string]bool
}

func NewOrchestrator(
	logger *slog.Logger,
	sessions SessionStore,
	scenarios ScenarioStore,
	investigators InvestigatorStore,
	completer Completer,
	cfg Config,
) *Orchestrator {
	return &Orchestrator{
		logger:        logger.With("source", "TurnOrchestrator"),
		sessions:      sessions,
		scenarios:     scenarios,
		investigators: investigators,
		completer:     completer,
		ingestor:      stream.NewIngestor(logger),
		parser:        reply.NewParser(logger),
		prompts:       cfg.Prompts,
		phrases:       cfg.Phrases.merge(DefaultPhrases()),
		historyLimit:  cfg.HistoryLimit,
		now:           time.Now,
		mu:            sync.Mutex{},
		inFlight:      make(map[string]*turn),
		introduced:    make(map[string]bool),
	}
}

// turn is the in-flight state of one Keeper turn.
type turn struct {
	id        string
	sessionID string
	cancelled atomic.Bool

	mu sync.Mutex
	// visible is the content of the last published partial update.
	visible string
}

func (t *turn) visibleText() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible
}

// begin marks a turn in flight for the session.
func (o *Orchestrator) begin(sessionID string) (*turn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.inFlight[sessionID]; ok {
		return nil, ErrTurnInFlight
	}
	t := &turn{id: uuid.NewString(), sessionID: sessionID} //nolint:exhaustruct // zero values are ready to use
	o.inFlight[sessionID] = t
	return t, nil
}

func (o *Orchestrator) end(t *turn) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight[t.sessionID] == t {
		delete(o.inFlight, t.sessionID)
	}
}

// InFlight reports whether a turn is running for the session.
func (o *Orchestrator) InFlight(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inFlight[sessionID]
	return ok
}

// Cancel stops partial updates of the session's in-flight turn. The network read is not aborted. The turn still
// commits, with the text visible at cancellation. Reports whether there was a turn to cancel.
func (o *Orchestrator) Cancel(sessionID string) bool {
	o.mu.Lock()
	t, ok := o.inFlight[sessionID]
	o.mu.Unlock()
	if !ok {
		return false
	}
	t.cancelled.Store(true)
	return true
}

// ResetIntroduction allows the introduction of the session to run again, e.g. when the viewed session changes.
func (o *Orchestrator) ResetIntroduction(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.introduced, sessionID)
}

// latchIntroduction reports false if the introduction of the session was already started.
func (o *Orchestrator) latchIntroduction(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.introduced[sessionID] {
		return false
	}
	o.introduced[sessionID] = true
	return true
}

type records struct {
	session      *models.Session
	scenario     *models.Scenario
	investigator *models.Investigator
}

func (o *Orchestrator) load(ctx context.Context, sessionID string) (records, error) {
	var (
		r   records
		err error
	)
	if r.session, err = o.sessions.Get(ctx, sessionID); err != nil {
		return r, errors.Wrap(err, "get session")
	}
	if r.scenario, err = o.scenarios.Get(ctx, r.session.ScenarioID); err != nil {
		return r, errors.Wrap(err, "get scenario", slog.String("scenario_id", r.session.ScenarioID))
	}
	if r.investigator, err = o.investigators.Get(ctx, r.session.InvestigatorID); err != nil {
		return r, errors.Wrap(err, "get investigator", slog.String("investigator_id", r.session.InvestigatorID))
	}
	return r, nil
}
