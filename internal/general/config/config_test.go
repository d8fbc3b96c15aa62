package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Services.DispatchServicePort)
	assert.Equal(t, 3001, cfg.Services.TrackingServicePort)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "workers_geo", cfg.Redis.GeoKey)
	assert.NotEmpty(t, cfg.JWT.SecretKey, "a secret is generated when none is configured")

	assert.InDelta(t, 5000, cfg.Policy.BaseFare, 0.001)
	assert.InDelta(t, 2000, cfg.Policy.PerKMRate, 0.001)
	assert.InDelta(t, 2.5, cfg.Policy.MinutesPerKM, 0.001)
	assert.InDelta(t, 24, cfg.Policy.AvgSpeedKMH, 0.001)
	assert.InDelta(t, 5, cfg.Policy.BoardRadiusKM, 0.001)
	assert.Equal(t, 20, cfg.Policy.BoardLimit)
	assert.Equal(t, 2*time.Minute, cfg.Policy.ProximityThreshold)
	assert.Equal(t, 10*time.Minute, cfg.Policy.PositionStaleAfter)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DISPATCH_SERVICE_PORT", "8080")
	t.Setenv("DB_NAME", "dispatch_test")
	t.Setenv("POLICY_BASE_FARE", "7500")
	t.Setenv("POLICY_PROXIMITY_THRESHOLD", "90s")
	t.Setenv("JWT_SECRET", "unit-test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Services.DispatchServicePort)
	assert.Equal(t, "dispatch_test", cfg.Database.Name)
	assert.InDelta(t, 7500, cfg.Policy.BaseFare, 0.001)
	assert.Equal(t, 90*time.Second, cfg.Policy.ProximityThreshold)
	assert.Equal(t, "unit-test-secret", cfg.JWT.SecretKey)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-port")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("DB_PORT", "70000")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadRejectsBadPolicy(t *testing.T) {
	t.Setenv("POLICY_MINUTES_PER_KM", "0")
	_, err := Load()
	require.Error(t, err)
}
