package svcconfig

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadTimerVarsAreUnprefixed(t *testing.T) {
	os.Setenv("TIMER_INTERVAL_FPS", "5")
	os.Setenv("TIMER_MAX_FPS", "30")
	defer os.Unsetenv("TIMER_INTERVAL_FPS")
	defer os.Unsetenv("TIMER_MAX_FPS")

	cfg := Load("test-service")
	assert.Equal(t, 5, cfg.TimerFPS)
	assert.Equal(t, 30, cfg.TimerMaxFPS)
}

func TestLoadTimerVarsIgnorePrefixedForm(t *testing.T) {
	os.Setenv("DECS_TIMER_INTERVAL_FPS", "99")
	defer os.Unsetenv("DECS_TIMER_INTERVAL_FPS")

	cfg := Load("test-service")
	assert.Equal(t, 1, cfg.TimerFPS, "DECS_-prefixed form must not satisfy the bare TIMER_INTERVAL_FPS contract")
}

func TestLoadOtherKnobsAreDecsPrefixed(t *testing.T) {
	os.Setenv("DECS_LOG_LEVEL", "debug")
	defer os.Unsetenv("DECS_LOG_LEVEL")

	cfg := Load("test-service")
	assert.Equal(t, "debug", cfg.LogLevel)
}
