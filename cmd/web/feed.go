package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/myrjola/keeper/internal/models"
	"github.com/myrjola/keeper/internal/repositories"
)

// feedBuffer is the number of unread message snapshots kept for a slow stream before newer ones are dropped.
// The stream always ends with the persisted session so dropped snapshots are never lost for good.
const feedBuffer = 64

// turnFeed carries the writes of one Keeper turn to the event stream.
type turnFeed struct {
	// updates receives the tail chat message of every write.
	updates chan models.ChatMessage
	// accepted is closed on the first write of the turn.
	accepted     chan struct{}
	acceptedOnce sync.Once
}

// sessionFeed is the session store of the orchestrator. It persists sessions and forwards the writes of turns
// opened with open.
type sessionFeed struct {
	*repositories.SessionRepository
	logger *slog.Logger

	mu    sync.Mutex
	feeds map[string]*turnFeed
}

func newSessionFeed(sessions *repositories.SessionRepository, logger *slog.Logger) *sessionFeed {
	return &sessionFeed{
		SessionRepository: sessions,
		logger:            logger.With("source", "sessionFeed"),
		mu:                sync.Mutex{},
		feeds:             make(map[string]*turnFeed),
	}
}

// open starts forwarding the writes of the session. It reports false when a feed is already open for it.
func (s *sessionFeed) open(sessionID string) (*turnFeed, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.feeds[sessionID]; ok {
		return nil, false
	}
	f := &turnFeed{
		updates:      make(chan models.ChatMessage, feedBuffer),
		accepted:     make(chan struct{}),
		acceptedOnce: sync.Once{},
	}
	s.feeds[sessionID] = f
	return f, true
}

// close stops forwarding and closes the updates channel of the session.
func (s *sessionFeed) close(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.feeds[sessionID]; ok {
		close(f.updates)
		delete(s.feeds, sessionID)
	}
}

func (s *sessionFeed) Upsert(ctx context.Context, session *models.Session) error {
	if err := s.SessionRepository.Upsert(ctx, session); err != nil {
		return err //nolint:wrapcheck // the orchestrator wraps store errors
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feeds[session.ID]
	if !ok {
		return nil
	}
	f.acceptedOnce.Do(func() {
		close(f.accepted)
	})
	if len(session.Chat) == 0 {
		return nil
	}
	select {
	case f.updates <- session.Chat[len(session.Chat)-1]:
	default:
		s.logger.LogAttrs(ctx, slog.LevelDebug, "stream is behind, dropped message snapshot")
	}
	return nil
}
