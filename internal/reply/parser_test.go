package reply_test

import (
	"context"
	"io"
	"testing"

	"github.com/myrjola/keeper/internal/models"
	"github.com/myrjola/keeper/internal/reply"
	"github.com/myrjola/keeper/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

func TestParser_Parse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want models.KeeperTurn
	}{
		{
			name: "empty reply",
			raw:  "",
			want: models.KeeperTurn{Narration: "", Choices: []string{}, Dialect: models.ReplyDialectPlain},
		},
		{
			name: "minified JSON",
			raw:  `{"narration":"  The door creaks.  ","choices":["Enter","Knock"]}`,
			want: models.KeeperTurn{
				Narration: "The door creaks.",
				Choices:   []string{"Enter", "Knock"},
				Dialect:   models.ReplyDialectJSON,
			},
		},
		{
			name: "fenced JSON",
			raw:  "```json\n{\"narration\":\"You enter.\",\"choices\":[\"Look around\",\"Leave\"]}\n```",
			want: models.KeeperTurn{
				Narration: "You enter.",
				Choices:   []string{"Look around", "Leave"},
				Dialect:   models.ReplyDialectJSON,
			},
		},
		{
			name: "JSON embedded in prose",
			raw:  "Sure, here is the turn:\n{\"narration\":\"Rain hammers the roof.\",\"choices\":[\"Wait\"]}\nGood luck!",
			want: models.KeeperTurn{
				Narration: "Rain hammers the roof.",
				Choices:   []string{"Wait"},
				Dialect:   models.ReplyDialectJSON,
			},
		},
		{
			name: "JSON choices filter empty and non-string entries",
			raw:  `{"narration":"Silence.","choices":["", "Listen", 3, null, "  ", " Run "]}`,
			want: models.KeeperTurn{
				Narration: "Silence.",
				Choices:   []string{"Listen", "Run"},
				Dialect:   models.ReplyDialectJSON,
			},
		},
		{
			name: "JSON choices of wrong type",
			raw:  `{"narration":"Silence.","choices":"Listen"}`,
			want: models.KeeperTurn{Narration: "Silence.", Choices: []string{}, Dialect: models.ReplyDialectJSON},
		},
		{
			name: "JSON without choices",
			raw:  `{"narration":"Silence."}`,
			want: models.KeeperTurn{Narration: "Silence.", Choices: []string{}, Dialect: models.ReplyDialectJSON},
		},
		{
			name: "JSON with empty narration falls back to whole text",
			raw:  `{"narration":"   ","choices":["Run"]}`,
			want: models.KeeperTurn{
				Narration: `{"narration":"   ","choices":["Run"]}`,
				Choices:   []string{},
				Dialect:   models.ReplyDialectPlain,
			},
		},
		{
			name: "JSON with non-string narration falls back to whole text",
			raw:  `{"narration":42}`,
			want: models.KeeperTurn{Narration: `{"narration":42}`, Choices: []string{}, Dialect: models.ReplyDialectPlain},
		},
		{
			name: "legacy sections",
			raw: "NARRATION:\nThe cellar smells of wet earth.\nSomething shifts below.\n\n" +
				"CHOICES:\n1. Light a match\n2. Descend the stairs\n  3.   Call for help  \n5. Propose your own action.",
			want: models.KeeperTurn{
				Narration: "The cellar smells of wet earth.\nSomething shifts below.",
				Choices:   []string{"Light a match", "Descend the stairs", "Call for help", "Propose your own action."},
				Dialect:   models.ReplyDialectSections,
			},
		},
		{
			name: "legacy sections are case insensitive and ignore unnumbered lines",
			raw:  "narration: A lamp gutters.\r\nchoices:\r\n- not a choice\r\n1. Trim the wick\r\nsomething else\r\n2. Leave it",
			want: models.KeeperTurn{
				Narration: "A lamp gutters.",
				Choices:   []string{"Trim the wick", "Leave it"},
				Dialect:   models.ReplyDialectSections,
			},
		},
		{
			name: "choices without narration label",
			raw:  "The wind howls.\nCHOICES:\n1. Hide",
			want: models.KeeperTurn{
				Narration: "The wind howls.\nCHOICES:\n1. Hide",
				Choices:   []string{"Hide"},
				Dialect:   models.ReplyDialectPlain,
			},
		},
		{
			name: "plain prose",
			raw:  "  You hear footsteps upstairs.  ",
			want: models.KeeperTurn{Narration: "You hear footsteps upstairs.", Choices: []string{}, Dialect: models.ReplyDialectPlain},
		},
		{
			name: "malformed JSON falls back to legacy sections",
			raw:  "NARRATION:\nA {broken brace.\nCHOICES:\n1. Go}",
			want: models.KeeperTurn{
				Narration: "A {broken brace.",
				Choices:   []string{"Go}"},
				Dialect:   models.ReplyDialectSections,
			},
		},
	}
	parser := reply.NewParser(testhelpers.NewLogger(io.Discard))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parser.Parse(context.Background(), tt.raw)
			require.Equal(t, tt.want, got)
		})
	}
}
