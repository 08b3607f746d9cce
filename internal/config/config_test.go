package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL": "postgres://localhost/westgate_test",
		"REDIS_URL":    "redis://localhost:6379",
		"JWT_SECRET":   "secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "A", cfg.ScheduleStyle)
	require.Equal(t, 79.0, cfg.GateFee)
	require.Equal(t, 20.0, cfg.TitleFee)
	require.Equal(t, 10.0, cfg.EnvironmentalFee)
	require.Equal(t, 1.015, cfg.InsuranceMultiplier)
	require.Equal(t, 10*time.Minute, cfg.SheetCacheTTL)
	require.Equal(t, 120, cfg.RateLimitRPM)
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["FEE_SCHEDULE_STYLE"] = "C"
	env["FEE_GATE"] = "95"
	env["SHEET_CACHE_TTL"] = "30s"

	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, "C", cfg.ScheduleStyle)
	require.Equal(t, 95.0, cfg.GateFee)
	require.Equal(t, 30*time.Second, cfg.SheetCacheTTL)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	env := baseEnv()
	env["DATABASE_URL"] = ""
	_, err := LoadForTests(env)
	require.Error(t, err)
}

func TestLoadRejectsInsuranceMultiplierBelowOne(t *testing.T) {
	env := baseEnv()
	env["FEE_INSURANCE_MULTIPLIER"] = "0.9"
	_, err := LoadForTests(env)
	require.Error(t, err)
}
