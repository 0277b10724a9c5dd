package logger_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/netdispatch/pkg/logger"
)

func TestError(t *testing.T) {
	t.Parallel()

	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
}

type fetchTask struct{}

func TestTaskAttrs(t *testing.T) {
	t.Parallel()

	t.Run("task type uses the dynamic type", func(t *testing.T) {
		attr := logger.TaskType(&fetchTask{})
		assert.Equal(t, "task_type", attr.Key)
		assert.Equal(t, "*logger_test.fetchTask", attr.Value.String())
		assert.True(t, logger.TaskType(nil).Equal(slog.Attr{}))
	})

	t.Run("task id", func(t *testing.T) {
		attr := logger.TaskID("abc")
		assert.Equal(t, "task_id", attr.Key)
		assert.Equal(t, "abc", attr.Value.Any())
		assert.True(t, logger.TaskID(nil).Equal(slog.Attr{}))
		assert.True(t, logger.TaskID("").Equal(slog.Attr{}))
	})

	t.Run("category is omitted when empty", func(t *testing.T) {
		assert.Equal(t, "category", logger.Category("uploads").Key)
		assert.True(t, logger.Category("").Equal(slog.Attr{}))
	})

	t.Run("scalar helpers", func(t *testing.T) {
		assert.Equal(t, int64(3), logger.WorkerIndex(3).Value.Int64())
		assert.Equal(t, "worker", logger.WorkerIndex(3).Key)
		assert.Equal(t, "CRITICAL", logger.Priority("CRITICAL").Value.String())
		assert.Equal(t, "phase", logger.Phase("sending").Key)
		assert.Equal(t, "outcome", logger.Outcome("killed").Key)
		assert.Equal(t, "component", logger.Component("dispatch").Key)
		assert.Equal(t, "url", logger.URL("http://x").Key)
		assert.Equal(t, int64(404), logger.StatusCode(404).Value.Int64())
	})
}
