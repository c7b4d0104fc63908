// Package stream decodes chat completion streams.
//
// The source is read as newline-delimited frames. Frames prefixed with "data:" carry server-sent events in the
// OpenAI chat completion chunk format. Any other non-blank line is passed through as raw text so that plain text
// sources work as well.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/myrjola/keeper/internal/errors"
	"github.com/sashabaranov/go-openai"
)

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
)

// Stats summarises a consumed stream.
type Stats struct {
	Frames int
	// Events counts data frames. Once one is seen, blank lines are event separators.
	Events  int
	Tokens  int
	Skipped int
	Done    bool
}

type Ingestor struct {
	logger *slog.Logger
}

func NewIngestor(logger *slog.Logger) *Ingestor {
	return &Ingestor{
		logger: logger.With("source", "StreamIngestor"),
	}
}

// chunk is the subset of a completion chunk we read. Streaming chunks carry delta, some providers send the
// complete message instead.
type chunk struct {
	Choices []struct {
		Delta   openai.ChatCompletionStreamChoiceDelta `json:"delta"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Ingest reads r until EOF and calls onToken with every decoded token in arrival order. It returns the
// concatenation of all tokens.
//
// A frame that fails to decode is skipped. When ctx is done before the stream is exhausted Ingest returns the
// context error and no text. Tokens delivered so far are not retracted.
func (in *Ingestor) Ingest(ctx context.Context, r io.Reader, onToken func(token string)) (string, error) {
	var (
		text  strings.Builder
		stats Stats
		br    = bufio.NewReader(r)
	)
	emit := func(token string) {
		stats.Tokens++
		text.WriteString(token)
		if onToken != nil {
			onToken(token)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", errors.Wrap(err, "stream cancelled", slog.Int("tokens", stats.Tokens))
		}
		line, readErr := br.ReadString('\n')
		if line != "" {
			stats.Frames++
			in.frame(ctx, line, &stats, emit)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", errors.Wrap(ctxErr, "stream cancelled", slog.Int("tokens", stats.Tokens))
			}
			return "", errors.Wrap(readErr, "read stream", slog.Int("tokens", stats.Tokens))
		}
	}

	in.logger.LogAttrs(ctx, slog.LevelDebug, "stream exhausted",
		slog.Int("frames", stats.Frames),
		slog.Int("events", stats.Events),
		slog.Int("tokens", stats.Tokens),
		slog.Int("skipped", stats.Skipped),
		slog.Bool("done", stats.Done))
	return text.String(), nil
}

// frame handles a single line including its terminator if one was read.
func (in *Ingestor) frame(ctx context.Context, line string, stats *Stats, emit func(string)) {
	content := strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(content) == "" {
		// Paragraph breaks of a raw text reply are kept.
		if stats.Events == 0 {
			emit(line)
		}
		return
	}
	if !strings.HasPrefix(content, dataPrefix) {
		emit(line)
		return
	}
	stats.Events++

	payload := strings.TrimSpace(strings.TrimPrefix(content, dataPrefix))
	if payload == doneSentinel {
		stats.Done = true
		return
	}
	if payload == "" {
		return
	}

	token, err := decodeChunk(payload)
	if err != nil {
		stats.Skipped++
		in.logger.LogAttrs(ctx, slog.LevelDebug, "skipping undecodable frame",
			slog.String("payload", payload), errors.SlogError(err))
		return
	}
	if token != "" {
		emit(token)
	}
}

func decodeChunk(payload string) (string, error) {
	var c chunk
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return "", errors.Wrap(err, "unmarshal chunk")
	}
	if len(c.Choices) == 0 {
		return "", nil
	}
	if c.Choices[0].Delta.Content != "" {
		return c.Choices[0].Delta.Content, nil
	}
	return c.Choices[0].Message.Content, nil
}
