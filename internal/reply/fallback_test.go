package reply_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/myrjola/keeper/internal/models"
	"github.com/myrjola/keeper/internal/reply"
	"github.com/myrjola/keeper/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

const silent = "The Keeper falls silent. The scene waits for you."

func TestBuildFallback(t *testing.T) {
	tests := []struct {
		name          string
		seed          string
		wantNarration string
	}{
		{
			name:          "empty seed uses silent fallback",
			seed:          "",
			wantNarration: silent,
		},
		{
			name:          "whitespace seed uses silent fallback",
			seed:          " \n\t ",
			wantNarration: silent,
		},
		{
			name:          "partial narration is kept",
			seed:          "  The lights flicker and  ",
			wantNarration: "The lights flicker and",
		},
		{
			name:          "partial legacy reply keeps only its narration",
			seed:          "NARRATION:\nThe attic is cold.\n\nCHOICES:\n1. Climb down\n2. Open the trunk",
			wantNarration: "The attic is cold.",
		},
		{
			name:          "legacy reply cut before choices",
			seed:          "NARRATION:\nThe attic is cold.",
			wantNarration: "The attic is cold.",
		},
		{
			name:          "complete JSON reply keeps only its narration",
			seed:          `{"narration":"A bell tolls.","choices":[]}`,
			wantNarration: "A bell tolls.",
		},
		{
			name:          "choices mentioned in prose",
			seed:          "He weighs his choices: stay or flee.",
			wantNarration: "He weighs his choices: stay or flee.",
		},
		{
			name:          "narration mentioned in prose",
			seed:          "Narration: the cellar door is open.",
			wantNarration: "Narration: the cellar door is open.",
		},
		{
			name:          "legacy label on the narration line",
			seed:          "NARRATION: The attic is cold.\nChoices:\n1. Climb down",
			wantNarration: "The attic is cold.",
		},
		{
			name:          "JSON reply cut mid-string",
			seed:          `{"narration":"A bell tolls.\nThe fog`,
			wantNarration: "A bell tolls.\nThe fog",
		},
	}
	parser := reply.NewParser(testhelpers.NewLogger(io.Discard))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := reply.BuildFallback(tt.seed, silent)
			turn := parser.Parse(context.Background(), raw)
			require.Equal(t, tt.wantNarration, turn.Narration)
			require.Len(t, turn.Choices, 5)
			require.Equal(t, reply.OwnActionChoice, turn.Choices[4])
			require.Equal(t, models.ReplyDialectSections, turn.Dialect)
		})
	}
}

func TestBuildFallback_Format(t *testing.T) {
	want := "NARRATION:\nThe door is locked.\n\nCHOICES:\n" +
		"1. Survey the immediate area for threats or hidden clues.\n" +
		"2. Call out cautiously to test who might answer.\n" +
		"3. Advance toward the most striking feature nearby.\n" +
		"4. Pause to steady yourself and recall what you know.\n" +
		"5. Propose your own action. Describe what you do in your own words."
	require.Equal(t, want, reply.BuildFallback("The door is locked.", silent))
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "no noise",
			text: "The candle gutters.",
			want: "The candle gutters.",
		},
		{
			name: "SSE comment line",
			text: ": OPENROUTER PROCESSING\nThe candle gutters.",
			want: "The candle gutters.",
		},
		{
			name: "noise glued to content",
			text: "The candle: OPENROUTER PROCESSING\n gutters.",
			want: "The candle gutters.",
		},
		{
			name: "repeated noise",
			text: "OpenRouter processing...\nA\nopenrouter  proc\nB",
			want: "A\nB",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, reply.Sanitize(tt.text))
		})
	}
}

func TestSanitizePartial(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "no noise", text: "The candle gutters.", want: "The candle gutters."},
		{name: "colon may start noise", text: "The candle:", want: "The candle"},
		{name: "partial provider name", text: "The candle: OPENRO", want: "The candle"},
		{name: "partial status", text: "The candle: OpenRouter pro", want: "The candle"},
		{name: "complete noise", text: "The candle: OPENROUTER PROCESSING", want: "The candle"},
		{name: "provider name in prose", text: "The openrouter lamp", want: "The openrouter lamp"},
		{name: "earlier lines are kept", text: "The hall.\n: OPEN", want: "The hall.\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, reply.SanitizePartial(tt.text))
		})
	}
}

func TestSanitizePartial_growsWithStream(t *testing.T) {
	tokens := []string{"The candle", ": OPEN", "ROUTER PRO", "CESSING\n", " gutters", " and dies."}
	var raw, previous string
	for _, token := range tokens {
		raw += token
		got := reply.SanitizePartial(raw)
		require.True(t, strings.HasPrefix(got, previous), "%q does not extend %q", got, previous)
		previous = got
	}
	require.Equal(t, "The candle gutters and dies.", previous)
	require.Equal(t, reply.Sanitize(raw), previous)
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "empty", text: "", want: ""},
		{name: "opening brace", text: `{"narr`, want: ""},
		{name: "partial json narration", text: `{"narration":"The hall is da`, want: "The hall is da"},
		{name: "escaped quote", text: `{"narration":"A sign reads \"Keep`, want: `A sign reads "Keep`},
		{name: "complete json", text: `{"narration":"Dark.","choices":["Run"]}`, want: "Dark."},
		{name: "partial section label", text: "NARRA", want: ""},
		{name: "section narration", text: "NARRATION:\nThe hall is dark.\nCHOI", want: "The hall is dark.\nCHOI"},
		{name: "section with choices", text: "NARRATION:\nThe hall is dark.\n\nCHOICES:\n1. Run", want: "The hall is dark."},
		{name: "plain text", text: "The hall", want: "The hall"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, reply.Preview(tt.text))
		})
	}
}
