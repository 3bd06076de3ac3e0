package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSelectorOptions_Defaults(t *testing.T) {
	cfg, err := resolveSelectorOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.eventBufferSize)
	assert.Nil(t, cfg.logger)
	assert.Nil(t, cfg.invariantRates)
}

func TestResolveSelectorOptions_Overrides(t *testing.T) {
	logger := NewNoOpLogger()
	rates := map[time.Duration]int{time.Second: 1}

	cfg, err := resolveSelectorOptions([]SelectorOption{
		WithLogger(logger),
		WithInvariantRateLimit(rates),
		WithEventBufferSize(64),
	})
	require.NoError(t, err)
	assert.Same(t, logger, cfg.logger)
	assert.Equal(t, rates, cfg.invariantRates)
	assert.Equal(t, 64, cfg.eventBufferSize)
}

func TestResolveSelectorOptions_NilOptionIgnored(t *testing.T) {
	cfg, err := resolveSelectorOptions([]SelectorOption{nil, WithEventBufferSize(8)})
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.eventBufferSize)
}
