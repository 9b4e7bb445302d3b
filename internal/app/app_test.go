package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/routeingest/internal/config"
	"github.com/Lllllllleong/routeingest/internal/routes"
	"github.com/Lllllllleong/routeingest/internal/services"
)

func TestHeuristics_FallsBackToDefaults(t *testing.T) {
	h := Heuristics(config.ExtractionConfig{})
	def := routes.DefaultHeuristics()
	assert.Equal(t, def.RedMin, h.RedMin)
	assert.Equal(t, def.OtherMax, h.OtherMax)
	assert.True(t, h.LooksLikeAddress("1200 Guilford Rd"))
	assert.True(t, h.IsManeuver("TURN LEFT"))
}

func TestHeuristics_Override(t *testing.T) {
	h := Heuristics(config.ExtractionConfig{RedMin: 0.9, OtherMax: 0.1, RoadSuffixes: []string{"PIKE"}, ManeuverWords: []string{"VEER"}})
	assert.Equal(t, 0.9, h.RedMin)
	assert.True(t, h.IsMarkedColor(0.95, 0.05, 0.05))
	assert.False(t, h.IsMarkedColor(0.8, 0.05, 0.05))
	assert.True(t, h.IsManeuver("VEER RIGHT"))
}

func TestCoordinatorConfig(t *testing.T) {
	cfg := &config.Config{
		Pipeline: config.PipelineConfig{BatchSize: 3, LockWait: 2 * time.Second, ContinuationDelay: time.Minute},
		Retry:    config.RetryConfig{MaxAttempts: 5, Jitter: 0.1},
	}
	cc := CoordinatorConfig(cfg)
	assert.Equal(t, 3, cc.BatchSize)
	assert.Equal(t, 2*time.Second, cc.LockWait)
	assert.Equal(t, time.Minute, cc.ContinuationDelay)
	assert.Equal(t, 5, cc.Retry.MaxAttempts)
}

func TestOpenStates_Local(t *testing.T) {
	cfg := &config.Config{State: config.StateConfig{LocalPath: t.TempDir() + "/state.json"}}
	states, closer, err := OpenStates(context.Background(), cfg, ModeLocal)
	require.NoError(t, err)
	defer closer.Close()

	state, err := states.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, state.Queue)
}

func TestOpenStates_CloudNeedsBucket(t *testing.T) {
	_, _, err := OpenStates(context.Background(), &config.Config{}, ModeCloud)
	assert.ErrorIs(t, err, services.ErrConfiguration)
}
