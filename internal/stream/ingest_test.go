package stream_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/myrjola/keeper/internal/errors"
	"github.com/myrjola/keeper/internal/stream"
	"github.com/myrjola/keeper/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newIngestor() *stream.Ingestor {
	return stream.NewIngestor(testhelpers.NewLogger(io.Discard))
}

func TestIngestor_Ingest(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantTokens []string
	}{
		{
			name: "delta frames with done sentinel",
			body: "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\" world\"}}]}\n" +
				"data: [DONE]\n",
			wantTokens: []string{"Hello", " world"},
		},
		{
			name: "event separators and CRLF",
			body: "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\r\n\r\n" +
				"data:{\"choices\":[{\"delta\":{\"content\":\"The fog\"}}]}\r\n\r\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\" thickens.\"}}]}\r\n\r\n",
			wantTokens: []string{"The fog", " thickens."},
		},
		{
			name:       "message content fallback",
			body:       "data: {\"choices\":[{\"message\":{\"content\":\"Whole reply\"}}]}\n",
			wantTokens: []string{"Whole reply"},
		},
		{
			name: "malformed frame is skipped",
			body: "data: {\"choices\":[{\"delta\":{\"content\":\"A\"}}]}\n" +
				"data: {not json\n" +
				"data: {\"choices\":[]}\n" +
				"data:\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"B\"}}]}\n",
			wantTokens: []string{"A", "B"},
		},
		{
			name:       "raw text lines pass through verbatim",
			body:       "NARRATION:\nThe house waits.\n",
			wantTokens: []string{"NARRATION:\n", "The house waits.\n"},
		},
		{
			name:       "raw text keeps paragraph breaks",
			body:       "The house waits.\n\nA light moves upstairs.\n",
			wantTokens: []string{"The house waits.\n", "\n", "A light moves upstairs.\n"},
		},
		{
			name: "blank lines after a data frame separate events",
			body: "data: {\"choices\":[{\"delta\":{\"content\":\"A\"}}]}\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"B\"}}]}\n\n",
			wantTokens: []string{"A", "B"},
		},
		{
			name:       "unterminated trailing frame is flushed",
			body:       "data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\ndata: {\"choices\":[{\"delta\":{\"content\":\"!\"}}]}",
			wantTokens: []string{"Hi", "!"},
		},
		{
			name:       "stream without done sentinel",
			body:       "data: {\"choices\":[{\"delta\":{\"content\":\"Cut\"}}]}\n",
			wantTokens: []string{"Cut"},
		},
		{
			name:       "empty stream",
			body:       "",
			wantTokens: nil,
		},
	}
	for _, tt := range tests {
		for _, reader := range []struct {
			name string
			wrap func(io.Reader) io.Reader
		}{
			{name: "whole", wrap: func(r io.Reader) io.Reader { return r }},
			{name: "one byte chunks", wrap: iotest.OneByteReader},
			{name: "half chunks", wrap: iotest.HalfReader},
		} {
			t.Run(tt.name+"/"+reader.name, func(t *testing.T) {
				var tokens []string
				text, err := newIngestor().Ingest(context.Background(), reader.wrap(strings.NewReader(tt.body)),
					func(token string) {
						tokens = append(tokens, token)
					})
				require.NoError(t, err)
				require.Equal(t, tt.wantTokens, tokens)
				require.Equal(t, strings.Join(tt.wantTokens, ""), text)
			})
		}
	}
}

func TestIngestor_Ingest_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"one\"}}]}\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"two\"}}]}\n"

	var tokens []string
	text, err := newIngestor().Ingest(ctx, strings.NewReader(body), func(token string) {
		tokens = append(tokens, token)
		cancel()
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, text)
	require.Equal(t, []string{"one"}, tokens, "delivered tokens stay delivered")
}

func TestIngestor_Ingest_readError(t *testing.T) {
	readErr := errors.NewSentinel("connection reset")
	body := io.MultiReader(
		strings.NewReader("data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n"),
		iotest.ErrReader(readErr),
	)

	var tokens []string
	text, err := newIngestor().Ingest(context.Background(), body, func(token string) {
		tokens = append(tokens, token)
	})
	require.ErrorIs(t, err, readErr)
	require.Empty(t, text)
	require.Equal(t, []string{"partial"}, tokens)
}
