package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuotaReading(t *testing.T) {
	t.Run("rawに倍率を掛けた値になる", func(t *testing.T) {
		raw := 5.0
		q := NewQuotaReading(&raw, "total_usage", 1000)
		assert.True(t, q.Known())
		assert.Equal(t, 5000.0, *q.Converted)
		assert.Equal(t, "5000", q.String())
	})

	t.Run("値が無ければunknown", func(t *testing.T) {
		q := NewQuotaReading(nil, "", 1000)
		assert.False(t, q.Known())
		assert.Equal(t, "unknown", q.String())
	})
}

func TestGenerationResult_ScaledUsage(t *testing.T) {
	usage := 0.02
	r := GenerationResult{Usage: &usage}
	v, ok := r.ScaledUsage(9)
	assert.True(t, ok)
	assert.InDelta(t, 0.18, v, 1e-9)

	_, ok = GenerationResult{}.ScaledUsage(9)
	assert.False(t, ok)
}

func TestLocator(t *testing.T) {
	assert.True(t, Locator{}.IsZero())
	assert.Equal(t, "https://x/y.png", URLLocator("https://x/y.png").String())
	assert.Equal(t, "data:image/png;base64,YQ==", DataURILocator("image/png", "YQ==").Value)
}

func TestErrors(t *testing.T) {
	t.Run("本文が空ならステータスコードを含む", func(t *testing.T) {
		err := &RequestFailedError{StatusCode: 500}
		assert.Contains(t, err.Error(), "500")
		assert.ErrorIs(t, err, ErrRequestFailed)
	})

	t.Run("本文があればそのまま", func(t *testing.T) {
		err := &RequestFailedError{StatusCode: 400, Body: `{"error":"bad"}`}
		assert.Equal(t, `{"error":"bad"}`, err.Error())
	})

	t.Run("ReadErrorは元のエラーとErrReadの両方に一致する", func(t *testing.T) {
		cause := errors.New("disk")
		err := fmt.Errorf("encode: %w", &ReadError{Source: "a.png", Err: cause})
		assert.ErrorIs(t, err, ErrRead)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("QuotaErrorはErrQuotaに一致する", func(t *testing.T) {
		assert.ErrorIs(t, &QuotaError{StatusCode: 401}, ErrQuota)
		assert.ErrorIs(t, &QuotaError{Err: ErrMissingKey}, ErrMissingKey)
	})

	t.Run("UserMessage", func(t *testing.T) {
		assert.Equal(t, "プロンプトが空です", UserMessage(&ValidationError{Field: "prompt", Message: "プロンプトが空です"}))
		assert.Equal(t, "", UserMessage(nil))
		assert.Contains(t, UserMessage(fmt.Errorf("%w: foo", ErrUnknownProvider)), "foo")
	})
}
