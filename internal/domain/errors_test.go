package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransportError(t *testing.T) {
	baseErr := errors.New("connection refused")

	t.Run("network failure is retriable", func(t *testing.T) {
		err := NewTransportError("markets", 0, baseErr)

		assert.True(t, err.IsRetriable())
		assert.Equal(t, "markets: connection refused", err.Error())
		assert.ErrorIs(t, err, baseErr)
	})

	t.Run("throttling and 5xx are retriable", func(t *testing.T) {
		assert.True(t, NewTransportError("global", 429, baseErr).IsRetriable())
		assert.True(t, NewTransportError("global", 503, baseErr).IsRetriable())
	})

	t.Run("client errors are not", func(t *testing.T) {
		err := NewTransportError("global", 404, baseErr)
		assert.False(t, err.IsRetriable())
		assert.Equal(t, "global: status 404: connection refused", err.Error())
	})

	t.Run("IsRetriable helper", func(t *testing.T) {
		wrapped := fmt.Errorf("refresh: %w", NewTransportError("dial", 0, baseErr))

		assert.True(t, IsRetriable(wrapped))
		assert.False(t, IsRetriable(&ParseError{Op: "markets", Err: baseErr}))
		assert.False(t, IsRetriable(errors.New("plain error")))
	})
}

func TestErrorClassification(t *testing.T) {
	nf := fmt.Errorf("add position: %w", &NotFoundError{Query: "nocoin"})
	ve := &ValidationError{Field: "quantity", Reason: "must be positive"}

	assert.True(t, IsNotFound(nf))
	assert.False(t, IsNotFound(ve))
	assert.True(t, IsValidation(ve))
	assert.Equal(t, "invalid quantity: must be positive", ve.Error())
	assert.True(t, IsUpstream(&ParseError{Op: "global", Err: errors.New("eof")}))
	assert.False(t, IsUpstream(nf))
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Field: "api_key", Err: errors.New("missing value")}

	assert.False(t, err.IsRetriable())
	assert.Equal(t, "config error [api_key]: missing value", err.Error())
}
