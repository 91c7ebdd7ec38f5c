package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/collegeimprovements/swrcache/pkg/logger"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("writes json records", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithWriter(&buf))
		log.Info("hello", "n", 1)

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		require.Equal(t, "hello", rec["msg"])
		require.EqualValues(t, 1, rec["n"])
	})

	t.Run("respects level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithWriter(&buf), logger.WithLevel(slog.LevelWarn))
		log.Info("dropped")
		require.Zero(t, buf.Len())

		log.Warn("kept")
		require.NotZero(t, buf.Len())
	})

	t.Run("attaches cache key from context", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithWriter(&buf))

		ctx := logger.ContextWithKey(context.Background(), "users:42")
		log.InfoContext(ctx, "fetching")

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		require.Equal(t, "users:42", rec["cache_key"])
	})

	t.Run("no key attribute without annotation", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithWriter(&buf))
		log.InfoContext(context.Background(), "plain")

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		require.NotContains(t, rec, "cache_key")
	})
}

func TestKeyFromContext(t *testing.T) {
	t.Parallel()

	_, ok := logger.KeyFromContext(context.Background())
	require.False(t, ok)

	ctx := logger.ContextWithKey(context.Background(), "k")
	key, ok := logger.KeyFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "k", key)
}

func TestNewNope(t *testing.T) {
	t.Parallel()

	log := logger.NewNope()
	require.NotNil(t, log)
	log.Error("goes nowhere")
}

func TestNewWithSentry_FallsBackWithoutDSN(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewWithSentry(logger.SentryConfig{}, logger.WithWriter(&buf))
	log.Info("local only")
	require.NotZero(t, buf.Len())
}
