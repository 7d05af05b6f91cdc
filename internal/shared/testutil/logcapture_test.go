package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureHandlerKeepsDerivedAttrs(t *testing.T) {
	logger, h := NewTestLogger(nil)
	logger = logger.With(slog.String("component", "pipeline_service"))

	logger.Warn("trigger_rejected", slog.String("reason", "busy"))
	logger.WithGroup("stage").Info("finished", slog.Int("index", 2))

	records := h.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "pipeline_service", records[0].Attrs["component"])
	assert.Equal(t, "busy", records[0].Attrs["reason"])
	assert.Equal(t, int64(2), records[1].Attrs["stage.index"])

	r := AssertLogged(t, h, slog.LevelWarn, "rejected")
	assert.Equal(t, "busy", r.Attrs["reason"])

	_, ok := h.Find(slog.LevelError, "trigger_rejected")
	assert.False(t, ok)
	AssertNoErrors(t, h)
}
