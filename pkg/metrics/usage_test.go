package metrics

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenUsageIsZero(t *testing.T) {
	require.True(t, TokenUsage{}.IsZero())
	require.False(t, TokenUsage{CompletionTokens: 1}.IsZero())
}

func TestTokenUsageLogsAsGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("llm completion", "usage", TokenUsage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, map[string]any{"prompt": float64(12), "completion": float64(3), "total": float64(15)}, entry["usage"])
}
