package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversionError_Error(t *testing.T) {
	e := NewInvalidFormat("not a deck")
	assert.Equal(t, "INVALID_FORMAT: not a deck", e.Error())

	wrapped := NewCorruptedFile("bad archive", stderrors.New("unexpected EOF"))
	assert.Equal(t, "CORRUPTED_FILE: bad archive: unexpected EOF", wrapped.Error())
}

func TestConversionError_Unwrap(t *testing.T) {
	cause := stderrors.New("root cause")
	e := NewParseError("parse failed", cause)

	assert.ErrorIs(t, e, cause)

	var ce *ConversionError
	require.ErrorAs(t, fmt.Errorf("outer: %w", e), &ce)
	assert.Equal(t, CodeParseError, ce.Code)
}

func TestConversionError_Recovery(t *testing.T) {
	// Every code carries non-empty guidance, and unknown codes fall back to
	// the generic message.
	codes := []string{
		CodeInvalidFormat, CodeCorruptedFile, CodeUnsupportedVersion,
		CodeParseError, CodeExtractionError, CodeOutOfMemory,
		CodeFileTooLarge, CodeUnknown,
	}
	for _, code := range codes {
		e := &ConversionError{Code: code}
		assert.NotEmpty(t, e.Recovery(), "code %s", code)
	}

	odd := &ConversionError{Code: "NOT_A_CODE"}
	assert.Equal(t, recovery[CodeUnknown], odd.Recovery())
}

func TestConversionError_WithDetail(t *testing.T) {
	e := NewInvalidFormat("bad").WithDetail("hint", "zip").WithDetail("size", 42)
	assert.Equal(t, "zip", e.Details["hint"])
	assert.Equal(t, 42, e.Details["size"])
}

func TestNewUnsupportedVersion(t *testing.T) {
	e := NewUnsupportedVersion(99)
	assert.Equal(t, CodeUnsupportedVersion, e.Code)
	assert.Contains(t, e.Message, "99")
	assert.Equal(t, 99, e.Details["version"])
	assert.False(t, e.Recoverable)
}

func TestNewFileTooLarge(t *testing.T) {
	e := NewFileTooLarge(600, 500)
	assert.Equal(t, CodeFileTooLarge, e.Code)
	assert.Equal(t, int64(600), e.Details["size"])
	assert.Equal(t, int64(500), e.Details["limit"])
	assert.True(t, e.Recoverable)
}

func TestWrap(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.Nil(t, Wrap(nil))
	})

	t.Run("taxonomy error kept verbatim", func(t *testing.T) {
		original := NewCorruptedFile("damaged", nil)
		assert.Same(t, original, Wrap(original))
	})

	t.Run("nested taxonomy error never downgraded", func(t *testing.T) {
		inner := NewUnsupportedVersion(55)
		outer := fmt.Errorf("while reading: %w", inner)
		assert.Equal(t, CodeUnsupportedVersion, Wrap(outer).Code)
	})

	t.Run("foreign error becomes unknown", func(t *testing.T) {
		wrapped := Wrap(stderrors.New("boom"))
		assert.Equal(t, CodeUnknown, wrapped.Code)
		assert.ErrorContains(t, wrapped, "boom")
	})
}

func TestIsCode(t *testing.T) {
	e := NewExtractionError("cannot read entry", nil)
	assert.True(t, IsCode(e, CodeExtractionError))
	assert.False(t, IsCode(e, CodeParseError))
	assert.False(t, IsCode(stderrors.New("plain"), CodeExtractionError))
	assert.False(t, IsCode(nil, CodeExtractionError))
}
