package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		retry int
		want  time.Duration
	}{
		{-1, time.Second},
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{6, 60 * time.Second},
		{40, 60 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CalculateBackoff(tt.retry), "retry=%d", tt.retry)
	}
}

func TestScaledBackoff(t *testing.T) {
	assert.Equal(t, 40*time.Millisecond, ScaledBackoff(10*time.Millisecond, 2))
}
