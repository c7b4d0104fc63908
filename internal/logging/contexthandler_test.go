package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/myrjola/keeper/internal/logging"
	"github.com/stretchr/testify/require"
)

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&buf, slog.LevelDebug)

	ctx := logging.WithSession(context.Background(), "session-1")
	turnCtx := logging.WithAttrs(ctx, slog.String("turn_id", "turn-1"))
	siblingCtx := logging.WithAttrs(ctx, slog.String("turn_id", "turn-2"))

	logger.InfoContext(turnCtx, "streaming")
	require.Contains(t, buf.String(), "session_id=session-1")
	require.Contains(t, buf.String(), "turn_id=turn-1")
	require.NotContains(t, buf.String(), "turn-2")

	buf.Reset()
	logger.InfoContext(siblingCtx, "streaming")
	require.Contains(t, buf.String(), "turn_id=turn-2")
	require.NotContains(t, buf.String(), "turn-1")

	buf.Reset()
	logger.InfoContext(context.Background(), "plain")
	require.NotContains(t, buf.String(), "session_id")
}
