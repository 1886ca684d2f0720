package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfiguredBuildsOperationalHeap(t *testing.T) {
	for _, cfg := range []Config{ConfigSingle, ConfigPerCPU, ConfigLockless} {
		t.Run(cfg.Name, func(t *testing.T) {
			cfg.CPUs = 2
			h, err := NewConfigured(cfg)
			require.NoError(t, err)
			require.True(t, h.Operational())

			p, err := h.Alloc(64, 8)
			require.NoError(t, err)
			assert.False(t, h.early.Contains(p), "a configured heap serves from slabs")
			h.Free(p, 64, 8)
		})
	}
}

func TestNewConfiguredRejectsUnknownStrategy(t *testing.T) {
	_, err := NewConfigured(Config{Strategy: Strategy(99)})
	require.Error(t, err)
}

func TestParseStrategy(t *testing.T) {
	for name, want := range map[string]Strategy{
		"single":   StrategySingle,
		"percpu":   StrategyPerCPU,
		"lockless": StrategyLockless,
	} {
		got, err := ParseStrategy(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, name, got.String())
	}

	_, err := ParseStrategy("buddy")
	require.Error(t, err)
}

func TestDefaultConfigIsLockless(t *testing.T) {
	assert.Equal(t, StrategyLockless, DefaultConfig.Strategy)
}
