package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressRoundTrip(t *testing.T) {
	t.Parallel()

	t.Run("cloud batch payload keeps vendor state", func(t *testing.T) {
		t.Parallel()

		raw, err := EncodeProgress(CloudBatchProgress{
			BatchID:   "b-42",
			State:     "running",
			Extracted: 3,
			Total:     10,
		})
		require.NoError(t, err)

		decoded, err := DecodeProgress(raw)
		require.NoError(t, err)

		p, ok := decoded.(CloudBatchProgress)
		require.True(t, ok)
		assert.Equal(t, "running", p.State)
		assert.Equal(t, 3, p.Extracted)
		assert.Equal(t, 10, p.Total)
	})

	t.Run("vision payload", func(t *testing.T) {
		t.Parallel()

		raw, err := EncodeProgress(VisionProgress{Model: "gemini-2.0-flash", Completed: 2, Total: 5})
		require.NoError(t, err)

		decoded, err := DecodeProgress(raw)
		require.NoError(t, err)

		p, ok := decoded.(VisionProgress)
		require.True(t, ok)
		assert.Equal(t, 2, p.Completed)
		assert.Equal(t, 5, p.Total)
	})

	t.Run("local payload", func(t *testing.T) {
		t.Parallel()

		raw, err := EncodeProgress(LocalProgress{SourceFile: "notes.txt"})
		require.NoError(t, err)

		decoded, err := DecodeProgress(raw)
		require.NoError(t, err)
		assert.Equal(t, StrategyLocal, decoded.Kind())
	})
}

func TestDecodeProgressErrors(t *testing.T) {
	t.Parallel()

	t.Run("empty message", func(t *testing.T) {
		t.Parallel()

		_, err := DecodeProgress(nil)
		assert.ErrorIs(t, err, ErrEmptyProgress)
	})

	t.Run("unknown strategy tag", func(t *testing.T) {
		t.Parallel()

		_, err := DecodeProgress([]byte(`{"strategy":"ocr","detail":{}}`))
		assert.ErrorIs(t, err, ErrUnknownStrategy)
	})

	t.Run("malformed envelope", func(t *testing.T) {
		t.Parallel()

		_, err := DecodeProgress([]byte(`{`))
		assert.Error(t, err)
	})
}

func TestParseStrategyKind(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"local", "cloud_batch", "vision"} {
		kind, err := ParseStrategyKind(valid)
		require.NoError(t, err)
		assert.Equal(t, StrategyKind(valid), kind)
	}

	_, err := ParseStrategyKind("mineru")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}
