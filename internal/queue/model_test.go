package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecodeRetrySentinel(t *testing.T) {
	t.Run("recognizes the retry shape", func(t *testing.T) {
		delay, isRetry := decodeRetrySentinel([]byte(`{"_oxen_queue_retry_seconds": 30}`))
		assert.True(t, isRetry)
		assert.Equal(t, 30*time.Second, delay)
	})

	t.Run("plain success result is not a retry", func(t *testing.T) {
		_, isRetry := decodeRetrySentinel([]byte(`{"status": "ok"}`))
		assert.False(t, isRetry)
	})

	t.Run("empty result is not a retry", func(t *testing.T) {
		_, isRetry := decodeRetrySentinel(nil)
		assert.False(t, isRetry)
	})

	t.Run("negative retry seconds is rejected", func(t *testing.T) {
		_, isRetry := decodeRetrySentinel([]byte(`{"_oxen_queue_retry_seconds": -5}`))
		assert.False(t, isRetry)
	})

	t.Run("malformed json is not a retry", func(t *testing.T) {
		_, isRetry := decodeRetrySentinel([]byte(`not json`))
		assert.False(t, isRetry)
	})

	t.Run("fractional seconds survive the round trip", func(t *testing.T) {
		delay, isRetry := decodeRetrySentinel([]byte(`{"_oxen_queue_retry_seconds": 0.5}`))
		assert.True(t, isRetry)
		assert.Equal(t, 500*time.Millisecond, delay)
	})
}
