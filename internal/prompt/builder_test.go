package prompt_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/myrjola/keeper/internal/models"
	"github.com/myrjola/keeper/internal/prompt"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInput() prompt.TurnInput {
	session := &models.Session{
		ID:       "s1",
		Language: models.LanguageEnglish,
		Chat: []models.ChatMessage{
			{ID: "m1", Role: models.ChatRoleKeeper, Content: "The door creaks."},
			{ID: "m2", Role: models.ChatRolePlayer, Content: "I step inside."},
			{ID: "m3", Role: models.ChatRoleSystem, Content: "Player rewrote their action."},
		},
	}
	return prompt.TurnInput{
		Session: session,
		Scenario: &models.Scenario{
			Name:    "The Haunting",
			Premise: "A house in Boston with a bad reputation.",
			Meta:    &models.ScenarioMeta{Era: "1920s"},
		},
		Investigator: &models.Investigator{
			Name:              "Harvey Walters",
			Occupation:        "Journalist",
			Background:        "Writes for the Boston Globe.",
			PersonalityTraits: []string{"curious", "stubborn"},
			SkillsSummary:     "Library Use, Persuade",
		},
		History:   session.Chat,
		Utterance: "I light a match.",
	}
}

func TestBuildTurnMessages(t *testing.T) {
	messages := prompt.BuildTurnMessages(newInput())

	require.Len(t, messages, 6)
	assert.Equal(t, openai.ChatMessageRoleSystem, messages[0].Role)
	assert.Equal(t, prompt.Instructions(models.KeeperPrompts{}), messages[0].Content)
	assert.Contains(t, messages[0].Content, prompt.DefaultReplyFormat)

	contextBlock := messages[1].Content
	assert.Equal(t, openai.ChatMessageRoleSystem, messages[1].Role)
	for _, want := range []string{
		"Scenario: The Haunting",
		"Scenario premise: A house in Boston with a bad reputation.",
		"Era: 1920s",
		"Investigator: Harvey Walters, Journalist",
		"Personality: curious, stubborn",
		"Skills: Library Use, Persuade",
		"Session summary: (no summary yet)",
		"Language: Respond in English.",
		"KEEPER: The door creaks.\nPLAYER: I step inside.\nSYSTEM: Player rewrote their action.",
	} {
		assert.Contains(t, contextBlock, want)
	}
	assert.NotContains(t, contextBlock, "Tone:")

	wantTail := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleAssistant, Content: "The door creaks."},
		{Role: openai.ChatMessageRoleUser, Content: "I step inside."},
		{Role: openai.ChatMessageRoleSystem, Content: "Player rewrote their action."},
		{Role: openai.ChatMessageRoleUser, Content: "I light a match."},
	}
	assert.Equal(t, wantTail, messages[2:])
}

func TestBuildTurnMessages_idempotent(t *testing.T) {
	in := newInput()
	before := in.Session.Clone()

	first := prompt.BuildTurnMessages(in)
	second := prompt.BuildTurnMessages(in)

	require.Equal(t, first, second)
	require.Equal(t, before, in.Session, "input session must not change")
}

func TestBuildTurnMessages_submissionGuard(t *testing.T) {
	tests := []struct {
		name      string
		last      models.ChatMessage
		utterance string
		wantAdded bool
	}{
		{
			name:      "already appended player message",
			last:      models.ChatMessage{Role: models.ChatRolePlayer, Content: "I light a match."},
			utterance: "I light a match.",
			wantAdded: false,
		},
		{
			name:      "trimmed contents match",
			last:      models.ChatMessage{Role: models.ChatRolePlayer, Content: "  I light a match.\n"},
			utterance: "I light a match. ",
			wantAdded: false,
		},
		{
			name:      "different player message",
			last:      models.ChatMessage{Role: models.ChatRolePlayer, Content: "I wait."},
			utterance: "I light a match.",
			wantAdded: true,
		},
		{
			name:      "same text from the keeper",
			last:      models.ChatMessage{Role: models.ChatRoleKeeper, Content: "I light a match."},
			utterance: "I light a match.",
			wantAdded: true,
		},
		{
			name:      "blank utterance",
			last:      models.ChatMessage{Role: models.ChatRoleKeeper, Content: "The door creaks."},
			utterance: "   ",
			wantAdded: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newInput()
			in.History = []models.ChatMessage{tt.last}
			in.Utterance = tt.utterance

			messages := prompt.BuildTurnMessages(in)

			if tt.wantAdded {
				require.Len(t, messages, 4)
				require.Equal(t, openai.ChatMessageRoleUser, messages[3].Role)
				require.Equal(t, strings.TrimSpace(tt.utterance), messages[3].Content)
				return
			}
			require.Len(t, messages, 3)
		})
	}
}

func TestBuildTurnMessages_historyLimit(t *testing.T) {
	in := newInput()
	in.HistoryLimit = 1

	messages := prompt.BuildTurnMessages(in)

	require.Len(t, messages, 4)
	assert.Equal(t, "Player rewrote their action.", messages[2].Content)
	assert.NotContains(t, messages[1].Content, "KEEPER: The door creaks.")
	assert.Contains(t, messages[1].Content, "SYSTEM: Player rewrote their action.")
}

func TestBuildTurnMessages_logEntries(t *testing.T) {
	in := newInput()
	for i := range 7 {
		in.Session.Log = append(in.Session.Log, models.LogEntry{
			Title:   fmt.Sprintf("entry %d", i),
			Details: fmt.Sprintf("details %d", i),
		})
	}
	in.Session.Log[6].Details = ""

	contextBlock := prompt.BuildTurnMessages(in)[1].Content

	assert.Contains(t, contextBlock, "Recent log entries:\n- entry 6\n- entry 5: details 5\n- entry 4: details 4\n"+
		"- entry 3: details 3\n- entry 2: details 2\n")
	assert.NotContains(t, contextBlock, "entry 1")
	assert.NotContains(t, contextBlock, "entry 0")
}

func TestBuildTurnMessages_overrides(t *testing.T) {
	in := newInput()
	in.Session.Language = models.LanguageRussian
	in.Session.StateSummary = "The investigator found a diary."
	in.Prompts = models.KeeperPrompts{
		SystemPrompt: "  You are a terse Keeper.  ",
		ReplyFormat:  prompt.LegacyReplyFormat,
	}

	messages := prompt.BuildTurnMessages(in)

	want := "You are a terse Keeper.\n\n" + prompt.DefaultCycleRules + "\n\n" + prompt.LegacyReplyFormat
	assert.Equal(t, want, messages[0].Content)
	assert.Contains(t, messages[1].Content, "Session summary: The investigator found a diary.")
	assert.Contains(t, messages[1].Content, "Respond in Russian.")
}

func TestBuildSummaryMessages(t *testing.T) {
	messages := prompt.BuildSummaryMessages(newInput())

	require.Len(t, messages, 2)
	assert.Equal(t, prompt.SummaryInstruction, messages[0].Content)
	assert.Equal(t, openai.ChatMessageRoleUser, messages[1].Role)
	assert.Contains(t, messages[1].Content, "PLAYER: I step inside.")
}
