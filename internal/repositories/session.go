package repositories

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/myrjola/keeper/internal/errors"
	"github.com/myrjola/keeper/internal/models"
	"github.com/myrjola/keeper/internal/sqlite"
)

// SessionRepository stores sessions as documents: Upsert replaces the session with its chat and log.
type SessionRepository struct {
	dbs    *sqlite.Database
	logger *slog.Logger
}

func NewSessionRepository(dbs *sqlite.Database, logger *slog.Logger) *SessionRepository {
	return &SessionRepository{
		dbs:    dbs,
		logger: logger.With("source", "SessionRepository"),
	}
}

type sessionRow struct {
	ID             string         `db:"id"`
	Title          string         `db:"title"`
	ScenarioID     string         `db:"scenario_id"`
	InvestigatorID string         `db:"investigator_id"`
	Language       string         `db:"language"`
	Status         string         `db:"status"`
	StateSummary   string         `db:"state_summary"`
	StateFlags     sql.NullString `db:"state_flags"`
	Created        time.Time      `db:"created"`
	Updated        time.Time      `db:"updated"`
	LastOpened     time.Time      `db:"last_opened"`
}

type chatMessageRow struct {
	ID                  string         `db:"id"`
	SessionID           string         `db:"session_id"`
	Position            int            `db:"position"`
	Role                string         `db:"role"`
	Content             string         `db:"content"`
	EditedFromMessageID sql.NullString `db:"edited_from_message_id"`
	Meta                sql.NullString `db:"meta"`
	Created             time.Time      `db:"created"`
}

type logEntryRow struct {
	ID               string         `db:"id"`
	SessionID        string         `db:"session_id"`
	Position         int            `db:"position"`
	Type             string         `db:"type"`
	Title            string         `db:"title"`
	Details          string         `db:"details"`
	RelatedMessageID sql.NullString `db:"related_message_id"`
	Created          time.Time      `db:"created"`
}

func (row sessionRow) toModel() (*models.Session, error) {
	session := models.Session{
		ID:             row.ID,
		Title:          row.Title,
		ScenarioID:     row.ScenarioID,
		InvestigatorID: row.InvestigatorID,
		Language:       models.Language(row.Language),
		Status:         models.SessionStatus(row.Status),
		CreatedAt:      row.Created,
		UpdatedAt:      row.Updated,
		LastOpenedAt:   row.LastOpened,
		StateSummary:   row.StateSummary,
		StateFlags:     nil,
		Chat:           []models.ChatMessage{},
		Log:            []models.LogEntry{},
	}
	if err := fromJSON(row.StateFlags, &session.StateFlags); err != nil {
		return nil, errors.Wrap(err, "decode state flags")
	}
	return &session, nil
}

const selectSessions = `SELECT id, title, scenario_id, investigator_id, language, status, state_summary, state_flags,
       created, updated, last_opened
FROM sessions`

// Get returns the session with its chat and log in order.
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	var (
		row         sessionRow
		messageRows []chatMessageRow
		logRows     []logEntryRow
		err         error
	)
	if err = r.dbs.ReadOnly.GetContext(ctx, &row, selectSessions+` WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "read session", slog.String("session_id", id))
	}
	session, err := row.toModel()
	if err != nil {
		return nil, err
	}

	if err = r.dbs.ReadOnly.SelectContext(ctx, &messageRows, `SELECT id, session_id, position, role, content,
       edited_from_message_id, meta, created
FROM chat_messages
WHERE session_id = ?
ORDER BY position`, id); err != nil {
		return nil, errors.Wrap(err, "select chat messages", slog.String("session_id", id))
	}
	for _, m := range messageRows {
		message := models.ChatMessage{
			ID:                  m.ID,
			SessionID:           m.SessionID,
			Role:                models.ChatRole(m.Role),
			Content:             m.Content,
			CreatedAt:           m.Created,
			EditedFromMessageID: m.EditedFromMessageID.String,
			Meta:                nil,
		}
		if err = fromJSON(m.Meta, &message.Meta); err != nil {
			return nil, errors.Wrap(err, "decode message meta", slog.String("message_id", m.ID))
		}
		session.Chat = append(session.Chat, message)
	}

	if err = r.dbs.ReadOnly.SelectContext(ctx, &logRows, `SELECT id, session_id, position, type, title, details,
       related_message_id, created
FROM log_entries
WHERE session_id = ?
ORDER BY position`, id); err != nil {
		return nil, errors.Wrap(err, "select log entries", slog.String("session_id", id))
	}
	for _, e := range logRows {
		session.Log = append(session.Log, models.LogEntry{
			ID:               e.ID,
			SessionID:        e.SessionID,
			Type:             models.LogEntryType(e.Type),
			Title:            e.Title,
			Details:          e.Details,
			RelatedMessageID: e.RelatedMessageID.String,
			CreatedAt:        e.Created,
		})
	}

	return session, nil
}

// List returns the sessions without chat and log, most recently opened first.
func (r *SessionRepository) List(ctx context.Context) ([]models.Session, error) {
	var rows []sessionRow
	if err := r.dbs.ReadOnly.SelectContext(ctx, &rows, selectSessions+` ORDER BY last_opened DESC, created DESC`); err != nil {
		return nil, errors.Wrap(err, "select sessions")
	}
	sessions := make([]models.Session, 0, len(rows))
	for _, row := range rows {
		session, err := row.toModel()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, nil
}

// Upsert replaces the session by ID. Messages and log entries are matched by ID and ordered by their position in
// the session. Rows past the end of the session's chat or log are removed.
func (r *SessionRepository) Upsert(ctx context.Context, session *models.Session) (err error) {
	var tx *sqlx.Tx
	if tx, err = r.dbs.ReadWrite.BeginTxx(ctx, nil); err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				r.logger.LogAttrs(ctx, slog.LevelError, "failed to rollback transaction",
					errors.SlogError(rollbackErr))
			}
		}
	}()

	if err = upsertSession(ctx, tx, session); err != nil {
		return err
	}
	for i, message := range session.Chat {
		if err = upsertChatMessage(ctx, tx, session.ID, i, message); err != nil {
			return err
		}
	}
	for i, entry := range session.Log {
		if err = upsertLogEntry(ctx, tx, session.ID, i, entry); err != nil {
			return err
		}
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = ? AND position >= ?`,
		session.ID, len(session.Chat)); err != nil {
		return errors.Wrap(err, "trim chat messages")
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM log_entries WHERE session_id = ? AND position >= ?`,
		session.ID, len(session.Log)); err != nil {
		return errors.Wrap(err, "trim log entries")
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

func upsertSession(ctx context.Context, tx *sqlx.Tx, session *models.Session) error {
	var (
		flags sql.NullString
		err   error
	)
	if session.StateFlags != nil {
		if flags, err = nullJSON(&session.StateFlags); err != nil {
			return err
		}
	}
	row := sessionRow{
		ID:             session.ID,
		Title:          session.Title,
		ScenarioID:     session.ScenarioID,
		InvestigatorID: session.InvestigatorID,
		Language:       string(session.Language),
		Status:         string(session.Status),
		StateSummary:   session.StateSummary,
		StateFlags:     flags,
		Created:        session.CreatedAt.UTC(),
		Updated:        session.UpdatedAt.UTC(),
		LastOpened:     session.LastOpenedAt.UTC(),
	}
	if _, err = tx.NamedExecContext(ctx, `INSERT INTO sessions (id, title, scenario_id, investigator_id, language,
                      status, state_summary, state_flags, created, updated, last_opened)
VALUES (:id, :title, :scenario_id, :investigator_id, :language, :status, :state_summary, :state_flags, :created,
        :updated, :last_opened)
ON CONFLICT (id) DO UPDATE SET title           = excluded.title,
                               scenario_id     = excluded.scenario_id,
                               investigator_id = excluded.investigator_id,
                               language        = excluded.language,
                               status          = excluded.status,
                               state_summary   = excluded.state_summary,
                               state_flags     = excluded.state_flags,
                               updated         = excluded.updated,
                               last_opened     = excluded.last_opened`, row); err != nil {
		return errors.Wrap(err, "upsert session", slog.String("session_id", session.ID))
	}
	return nil
}

func upsertChatMessage(ctx context.Context, tx *sqlx.Tx, sessionID string, position int, m models.ChatMessage) error {
	meta, err := nullJSON(m.Meta)
	if err != nil {
		return err
	}
	row := chatMessageRow{
		ID:                  m.ID,
		SessionID:           sessionID,
		Position:            position,
		Role:                string(m.Role),
		Content:             m.Content,
		EditedFromMessageID: nullString(m.EditedFromMessageID),
		Meta:                meta,
		Created:             m.CreatedAt.UTC(),
	}
	// Committed messages are immutable so unchanged rows are skipped.
	if _, err = tx.NamedExecContext(ctx, `INSERT INTO chat_messages (id, session_id, position, role, content,
                           edited_from_message_id, meta, created)
VALUES (:id, :session_id, :position, :role, :content, :edited_from_message_id, :meta, :created)
ON CONFLICT (id) DO UPDATE SET position = excluded.position,
                               content  = excluded.content,
                               meta     = excluded.meta
WHERE position IS NOT excluded.position
   OR content IS NOT excluded.content
   OR meta IS NOT excluded.meta`, row); err != nil {
		return errors.Wrap(err, "upsert chat message", slog.String("message_id", m.ID))
	}
	return nil
}

func upsertLogEntry(ctx context.Context, tx *sqlx.Tx, sessionID string, position int, e models.LogEntry) error {
	row := logEntryRow{
		ID:               e.ID,
		SessionID:        sessionID,
		Position:         position,
		Type:             string(e.Type),
		Title:            e.Title,
		Details:          e.Details,
		RelatedMessageID: nullString(e.RelatedMessageID),
		Created:          e.CreatedAt.UTC(),
	}
	if _, err := tx.NamedExecContext(ctx, `INSERT INTO log_entries (id, session_id, position, type, title, details,
                         related_message_id, created)
VALUES (:id, :session_id, :position, :type, :title, :details, :related_message_id, :created)
ON CONFLICT (id) DO NOTHING`, row); err != nil {
		return errors.Wrap(err, "insert log entry", slog.String("log_entry_id", e.ID))
	}
	return nil
}
