package readtool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolMetadata(t *testing.T) {
	tool := NewTool(newMemoryReader(t, nil, Options{}))

	assert.Equal(t, "read", tool.Name())
	assert.Contains(t, tool.Description(), "2000 lines or 50 KiB")

	params := tool.Parameters()
	assert.Equal(t, "object", params["type"])
	assert.Equal(t, []string{"path"}, params["required"])

	props, ok := params["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "path")
	assert.Contains(t, props, "offset")
	assert.Contains(t, props, "limit")
}

func TestToolExecute(t *testing.T) {
	tool := NewTool(newMemoryReader(t, map[string]string{"ten.txt": numberedLines(10)}, Options{}))
	ctx := context.Background()

	t.Run("JSON numbers", func(t *testing.T) {
		outcome, err := tool.Execute(ctx, map[string]interface{}{
			"path":   "ten.txt",
			"offset": float64(9),
			"limit":  float64(5),
		})
		require.NoError(t, err)
		assert.Equal(t, "line 9\nline 10", outcome.Text)
	})

	t.Run("native integers", func(t *testing.T) {
		outcome, err := tool.Execute(ctx, map[string]interface{}{
			"path":   "ten.txt",
			"offset": 2,
			"limit":  int64(1),
		})
		require.NoError(t, err)
		assert.Equal(t, "line 2\n\n[8 more lines in file. Use offset=3 to continue.]", outcome.Text)
	})

	t.Run("null arguments are omitted", func(t *testing.T) {
		outcome, err := tool.Execute(ctx, map[string]interface{}{
			"path":   "ten.txt",
			"offset": nil,
		})
		require.NoError(t, err)
		assert.Equal(t, 10, outcome.OutputLines)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := tool.Execute(ctx, map[string]interface{}{})
		assert.ErrorIs(t, err, ErrInvalidRequest)
		assert.Equal(t, KindInvalidRequest, KindOf(err))
	})

	t.Run("fractional offset", func(t *testing.T) {
		_, err := tool.Execute(ctx, map[string]interface{}{"path": "ten.txt", "offset": 1.5})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("string limit", func(t *testing.T) {
		_, err := tool.Execute(ctx, map[string]interface{}{"path": "ten.txt", "limit": "5"})
		assert.ErrorIs(t, err, ErrInvalidRequest)
		assert.Contains(t, err.Error(), "'limit' must be an integer")
	})

	t.Run("limit near the int range reads the rest", func(t *testing.T) {
		outcome, err := tool.Execute(ctx, map[string]interface{}{"path": "ten.txt", "offset": float64(9), "limit": 9.2e18})
		require.NoError(t, err)
		assert.Equal(t, "line 9\nline 10", outcome.Text)
	})

	t.Run("numbers outside the int range", func(t *testing.T) {
		_, err := tool.Execute(ctx, map[string]interface{}{"path": "ten.txt", "limit": 1e19})
		assert.ErrorIs(t, err, ErrInvalidRequest)
		assert.Contains(t, err.Error(), "'limit' is out of range")
		assert.NotContains(t, err.Error(), "-9223372036854775808")

		_, err = tool.Execute(ctx, map[string]interface{}{"path": "ten.txt", "offset": -1e19})
		assert.ErrorIs(t, err, ErrInvalidRequest)
		assert.Contains(t, err.Error(), "'offset' is out of range")
	})
}
