package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/autolease")
	t.Setenv("NOTIFICATION_INTERVAL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.NotificationInterval)
	assert.Equal(t, 7, cfg.OverdueDaysForNotification)
	assert.Equal(t, "usd", cfg.StripeCurrency)
	assert.False(t, cfg.PaymentsEnabled())
}

func TestLoad_NotificationIntervalFloor(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/autolease")
	t.Setenv("NOTIFICATION_INTERVAL", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, MinNotificationInterval, cfg.NotificationInterval)
}

func TestGetEnvAsDuration_BareHours(t *testing.T) {
	t.Setenv("SWEEP_TEST", "0.5")
	assert.Equal(t, 30*time.Minute, getEnvAsDuration("SWEEP_TEST", time.Hour))
	t.Setenv("SWEEP_TEST", "nonsense")
	assert.Equal(t, time.Hour, getEnvAsDuration("SWEEP_TEST", time.Hour))
}

func TestGetEnvAsBool(t *testing.T) {
	t.Setenv("FLAG_TEST", "false")
	assert.False(t, getEnvAsBool("FLAG_TEST", true))
	t.Setenv("FLAG_TEST", "")
	assert.True(t, getEnvAsBool("FLAG_TEST", true))
}
