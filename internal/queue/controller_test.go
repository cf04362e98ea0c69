package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestController builds a Controller with no ExtraFields configured,
// so NewStore never issues a query against the (nil) pool. Paired with
// a slow polling rate, StartProcessing/StopProcessing round trips
// complete before the Dispatcher's first ScheduleNext wakes up, so the
// Store's Claim method — which would nil-pointer-deref without a real
// pool — is never reached.
func newTestController(t *testing.T) *Controller {
	t.Helper()
	c, err := NewController(context.Background(), nil, Config{
		FastestPollingRate: time.Second,
		SlowestPollingRate: time.Second,
		PollingBackoffRate: 1.1,
	}, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func noopProcessorConfig(jobType string) ProcessorConfig {
	return ProcessorConfig{
		JobType:     jobType,
		Concurrency: 1,
		Timeout:     time.Second,
		WorkFn: func(context.Context, *Job) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		},
	}
}

func TestControllerStartProcessingRejectsDuplicateJobType(t *testing.T) {
	c := newTestController(t)

	require.NoError(t, c.StartProcessing(context.Background(), noopProcessorConfig("widgets")))
	err := c.StartProcessing(context.Background(), noopProcessorConfig("widgets"))
	assert.Error(t, err)

	require.NoError(t, c.StopProcessing("widgets"))
}

func TestControllerStopProcessingRejectsUnknownJobType(t *testing.T) {
	c := newTestController(t)
	err := c.StopProcessing("does-not-exist")
	assert.Error(t, err)
}

func TestControllerDebugReportsRunningProcessors(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.StartProcessing(context.Background(), noopProcessorConfig("widgets")))
	defer c.StopProcessing("widgets")

	snap := c.Debug()
	require.Len(t, snap.Processors, 1)
	assert.Equal(t, "widgets", snap.Processors[0].JobType)
	assert.Equal(t, 1, snap.Processors[0].Concurrency)
}

func TestControllerShutdownStopsEveryProcessor(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.StartProcessing(context.Background(), noopProcessorConfig("widgets")))
	require.NoError(t, c.StartProcessing(context.Background(), noopProcessorConfig("gadgets")))

	require.NoError(t, c.Shutdown(context.Background()))
	assert.Empty(t, c.Debug().Processors)
}

func TestControllerStoreExposesUnderlyingStore(t *testing.T) {
	c := newTestController(t)
	assert.NotNil(t, c.Store())
}
