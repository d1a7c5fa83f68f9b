package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LLM_PROVIDER", "gigachat")
	t.Setenv("LLM_TIMEOUT", "15")
	t.Setenv("JOB_TTL", "30m")
	t.Setenv("JOB_MAX_CONCURRENT", "not-a-number")
	t.Setenv("POLICY_WARM_UP", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "gigachat", cfg.LLM.Provider)
	assert.Equal(t, 15*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 30*time.Minute, cfg.Jobs.TTL)
	assert.Equal(t, 4, cfg.Jobs.MaxConcurrent)
	assert.False(t, cfg.Policy.WarmUp)
}

func TestGetDuration(t *testing.T) {
	t.Setenv("SOME_INTERVAL", "90s")
	assert.Equal(t, 90*time.Second, getDuration("SOME_INTERVAL", time.Minute))

	t.Setenv("SOME_INTERVAL", "soon")
	assert.Equal(t, time.Minute, getDuration("SOME_INTERVAL", time.Minute))
}
