package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tour-booker/client"
)

func TestSleepUntil(t *testing.T) {
	s := client.NewScheduler()

	t.Run("Past", func(t *testing.T) {
		drift, err := s.SleepUntil(context.Background(), time.Now().Add(-time.Second))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, drift, time.Second)
	})

	t.Run("Future", func(t *testing.T) {
		start := time.Now()
		target := start.Add(20 * time.Millisecond)
		drift, err := s.SleepUntil(context.Background(), target)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, drift, time.Duration(0))
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
		s.LogDrift(zerolog.Nop(), drift)
	})

	t.Run("Canceled", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := s.SleepUntil(ctx, time.Now().Add(time.Hour))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
