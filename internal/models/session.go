package models

import "time"

type SessionStatus string

const (
	SessionStatusSetup     SessionStatus = "setup"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusAbandoned SessionStatus = "abandoned"
)

type ChatRole string

const (
	ChatRolePlayer ChatRole = "player"
	ChatRoleKeeper ChatRole = "keeper"
	ChatRoleSystem ChatRole = "system"
)

type LogEntryType string

const (
	LogEntryTypeSessionStart    LogEntryType = "session_start"
	LogEntryTypeNote            LogEntryType = "note"
	LogEntryTypeKeeperSummary   LogEntryType = "keeper_summary"
	LogEntryTypeClueFound       LogEntryType = "clue_found"
	LogEntryTypeImportantChoice LogEntryType = "important_choice"
	LogEntryTypeRoll            LogEntryType = "roll"
)

// Session is the unit of play. It holds the chat between the player and the Keeper and the audit log.
//
// Chat is append-mostly. Edits are new messages referencing the edited message with EditedFromMessageID.
type Session struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	ScenarioID     string         `json:"scenarioId"`
	InvestigatorID string         `json:"investigatorId"`
	Language       Language       `json:"language"`
	Status         SessionStatus  `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	LastOpenedAt   time.Time      `json:"lastOpenedAt"`
	StateSummary   string         `json:"stateSummary"`
	StateFlags     map[string]any `json:"stateFlags,omitempty"`
	Chat           []ChatMessage  `json:"chat"`
	Log            []LogEntry     `json:"log"`
}

// Clone returns a copy of the session whose Chat and Log can be modified without touching s.
func (s *Session) Clone() *Session {
	c := *s
	c.Chat = append([]ChatMessage(nil), s.Chat...)
	c.Log = append([]LogEntry(nil), s.Log...)
	if s.StateFlags != nil {
		c.StateFlags = make(map[string]any, len(s.StateFlags))
		for k, v := range s.StateFlags {
			c.StateFlags[k] = v
		}
	}
	return &c
}

// ChatMessage is a single utterance in the session chat.
type ChatMessage struct {
	ID                  string       `json:"id"`
	SessionID           string       `json:"sessionId"`
	Role                ChatRole     `json:"role"`
	Content             string       `json:"content"`
	CreatedAt           time.Time    `json:"createdAt"`
	EditedFromMessageID string       `json:"editedFromMessageId,omitempty"`
	Meta                *MessageMeta `json:"meta,omitempty"`
}

// MessageMeta carries flags and the cached parse result of Keeper messages.
type MessageMeta struct {
	IsSetupPhase bool        `json:"isSetupPhase,omitempty"`
	IsSystemNote bool        `json:"isSystemNote,omitempty"`
	WasCancelled bool        `json:"wasCancelled,omitempty"`
	KeeperTurn   *KeeperTurn `json:"parsedKeeperTurn,omitempty"`
}

type ReplyDialect string

const (
	// ReplyDialectJSON is the preferred {"narration": ..., "choices": [...]} reply.
	ReplyDialectJSON ReplyDialect = "json"
	// ReplyDialectSections is the legacy NARRATION:/CHOICES: reply.
	ReplyDialectSections ReplyDialect = "sections"
	// ReplyDialectPlain means no structure was found and the whole text is narration.
	ReplyDialectPlain ReplyDialect = "plain"
)

// KeeperTurn is the structured form of a Keeper reply.
type KeeperTurn struct {
	Narration string       `json:"narration"`
	Choices   []string     `json:"choices"`
	Dialect   ReplyDialect `json:"dialect,omitempty"`
}

// LogEntry is an append-only audit record of a notable event in the session.
type LogEntry struct {
	ID               string       `json:"id"`
	SessionID        string       `json:"sessionId"`
	Type             LogEntryType `json:"type"`
	Title            string       `json:"title"`
	Details          string       `json:"details,omitempty"`
	RelatedMessageID string       `json:"relatedMessageId,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
}

// NewSession starts an active session for the investigator in the scenario with a session_start log entry.
func NewSession(id string, scenario *Scenario, investigator *Investigator, now time.Time) *Session {
	return &Session{
		ID:             id,
		Title:          scenario.Name,
		ScenarioID:     scenario.ID,
		InvestigatorID: investigator.ID,
		Language:       investigator.Language,
		Status:         SessionStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastOpenedAt:   now,
		StateSummary:   "",
		StateFlags:     nil,
		Chat:           []ChatMessage{},
		Log: []LogEntry{
			{
				ID:               id + "-start",
				SessionID:        id,
				Type:             LogEntryTypeSessionStart,
				Title:            "Session started",
				Details:          "",
				RelatedMessageID: "",
				CreatedAt:        now,
			},
		},
	}
}
