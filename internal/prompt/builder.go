// Package prompt assembles the message list sent to the completion endpoint for one Keeper turn.
package prompt

import (
	"fmt"
	"strings"

	"github.com/myrjola/keeper/internal/models"
	"github.com/sashabaranov/go-openai"
)

// TurnInput is everything a Keeper turn prompt is built from. Nothing in it is modified.
type TurnInput struct {
	Session      *models.Session
	Scenario     *models.Scenario
	Investigator *models.Investigator
	// History is the chat the turn continues. It usually is Session.Chat and may already end with the player
	// message carrying Utterance.
	History   []models.ChatMessage
	Utterance string
	Prompts   models.KeeperPrompts
	// HistoryLimit keeps only the most recent messages when positive.
	HistoryLimit int
}

// Instructions joins the persona prompt with the cycle rules and the reply format. Blank fragments fall back to
// the defaults.
func Instructions(p models.KeeperPrompts) string {
	return strings.Join([]string{
		orDefault(p.SystemPrompt, DefaultSystemPrompt),
		orDefault(p.CycleRules, DefaultCycleRules),
		orDefault(p.ReplyFormat, DefaultReplyFormat),
	}, "\n\n")
}

// BuildTurnMessages returns the ordered messages for a Keeper turn: instructions, the context block, the chat
// history and the new player utterance.
//
// The utterance is not appended when the history already ends with the same player message.
func BuildTurnMessages(in TurnInput) []openai.ChatCompletionMessage {
	history := limitHistory(in.History, in.HistoryLimit)

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+3) //nolint:mnd // two system entries and utterance
	messages = append(messages,
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: Instructions(in.Prompts)},
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: contextBlock(in, history)},
	)
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: wireRole(m.Role), Content: m.Content})
	}

	utterance := strings.TrimSpace(in.Utterance)
	if utterance != "" && !alreadySubmitted(in.History, utterance) {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: utterance})
	}
	return messages
}

func limitHistory(history []models.ChatMessage, limit int) []models.ChatMessage {
	if limit > 0 && len(history) > limit {
		return history[len(history)-limit:]
	}
	return history
}

func alreadySubmitted(history []models.ChatMessage, utterance string) bool {
	if len(history) == 0 {
		return false
	}
	last := history[len(history)-1]
	return last.Role == models.ChatRolePlayer && strings.TrimSpace(last.Content) == utterance
}

func wireRole(role models.ChatRole) string {
	switch role {
	case models.ChatRoleKeeper:
		return openai.ChatMessageRoleAssistant
	case models.ChatRolePlayer:
		return openai.ChatMessageRoleUser
	case models.ChatRoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleSystem
	}
}

func contextBlock(in TurnInput, history []models.ChatMessage) string {
	var b strings.Builder

	if s := in.Scenario; s != nil {
		fmt.Fprintf(&b, "Scenario: %s\n", s.Name)
		fmt.Fprintf(&b, "Scenario premise: %s\n", s.Premise)
		if m := s.Meta; m != nil {
			writeOptional(&b, "Era", m.Era)
			writeOptional(&b, "Tone", m.Tone)
			writeOptional(&b, "Setting", m.SettingDescription)
		}
	}

	if inv := in.Investigator; inv != nil {
		fmt.Fprintf(&b, "Investigator: %s, %s\n", inv.Name, inv.Occupation)
		fmt.Fprintf(&b, "Background: %s\n", inv.Background)
		fmt.Fprintf(&b, "Personality: %s\n", strings.Join(inv.PersonalityTraits, ", "))
		fmt.Fprintf(&b, "Skills: %s\n", inv.SkillsSummary)
	}

	var (
		summary  string
		language models.Language
		log      []models.LogEntry
	)
	if in.Session != nil {
		summary = strings.TrimSpace(in.Session.StateSummary)
		language = in.Session.Language
		log = in.Session.Log
	}
	if summary == "" {
		summary = noSummary
	}
	fmt.Fprintf(&b, "Session summary: %s\n", summary)
	fmt.Fprintf(&b, "Language: %s\n", languageDirective(language))

	b.WriteString("Recent log entries:\n")
	if len(log) == 0 {
		b.WriteString("- none\n")
	}
	for i := len(log) - 1; i >= 0 && i >= len(log)-maxLogEntries; i-- {
		e := log[i]
		if e.Details == "" {
			fmt.Fprintf(&b, "- %s\n", e.Title)
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", e.Title, e.Details)
	}

	b.WriteString("Conversation so far:\n")
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(string(m.Role)), m.Content)
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeOptional(b *strings.Builder, label, value string) {
	if value = strings.TrimSpace(value); value != "" {
		fmt.Fprintf(b, "%s: %s\n", label, value)
	}
}

func languageDirective(language models.Language) string {
	switch language {
	case models.LanguageRussian:
		return "Respond in Russian. Keep the JSON keys in English."
	case models.LanguageEnglish:
		return "Respond in English."
	default:
		return "Respond in English."
	}
}

func orDefault(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return strings.TrimSpace(fallback)
}

// BuildSummaryMessages returns the messages for condensing a session into its summary. The context block is the
// same one a Keeper turn sees.
func BuildSummaryMessages(in TurnInput) []openai.ChatCompletionMessage {
	history := limitHistory(in.History, in.HistoryLimit)
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: SummaryInstruction},
		{Role: openai.ChatMessageRoleUser, Content: contextBlock(in, history)},
	}
}
