package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopWorkFn(context.Context, *Job) (json.RawMessage, error) { return nil, nil }

func TestProcessorConfigValidateRequiresJobType(t *testing.T) {
	cfg := ProcessorConfig{WorkFn: noopWorkFn}.withDefaults()
	err := cfg.validate()
	require.Error(t, err)
	var cfgErr *ErrConfig
	require.ErrorAs(t, err, &cfgErr)
}

func TestProcessorConfigValidateRequiresWorkFn(t *testing.T) {
	cfg := ProcessorConfig{JobType: "x"}.withDefaults()
	err := cfg.validate()
	require.Error(t, err)
}

func TestProcessorConfigValidateRecoveryThresholdMustExceedTimeout(t *testing.T) {
	cfg := ProcessorConfig{
		JobType:           "x",
		WorkFn:            noopWorkFn,
		Timeout:           time.Minute,
		RecoveryThreshold: 30 * time.Second,
	}.withDefaults()

	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recovery_threshold")
}

func TestProcessorConfigValidateAcceptsSaneRecoveryThreshold(t *testing.T) {
	cfg := ProcessorConfig{
		JobType:           "x",
		WorkFn:            noopWorkFn,
		Timeout:           time.Minute,
		RecoveryThreshold: 2 * time.Minute,
	}.withDefaults()

	assert.NoError(t, cfg.validate())
}

func TestProcessorConfigValidateSkipsRecoveryThresholdCheckWhenRecoveryDisabled(t *testing.T) {
	cfg := ProcessorConfig{
		JobType:           "x",
		WorkFn:            noopWorkFn,
		Timeout:           time.Minute,
		DisableRecovery:   true,
		RecoveryThreshold: 30 * time.Second,
	}.withDefaults()

	assert.NoError(t, cfg.validate())
}

func TestProcessorConfigWithDefaultsLeavesRecoveryEnabledByDefault(t *testing.T) {
	cfg := ProcessorConfig{JobType: "x", WorkFn: noopWorkFn}.withDefaults()
	assert.False(t, cfg.DisableRecovery)
}

func TestProcessorConfigBareDefaultsPassValidateWithRecoveryEnabled(t *testing.T) {
	cfg := ProcessorConfig{JobType: "x", WorkFn: noopWorkFn}.withDefaults()
	assert.False(t, cfg.DisableRecovery)
	assert.Greater(t, cfg.RecoveryThreshold, cfg.Timeout)
	assert.NoError(t, cfg.validate())
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, "oxen_queue", cfg.Table)
	assert.Equal(t, 100*time.Millisecond, cfg.FastestPollingRate)
	assert.Equal(t, 10*time.Second, cfg.SlowestPollingRate)
	assert.Equal(t, 1.1, cfg.PollingBackoffRate)
}
