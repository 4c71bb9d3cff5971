package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("APP_MODE", "dev")
	t.Setenv("STORAGE_DRIVER", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, StorageMySQL, cfg.StorageDriver)
	assert.Equal(t, "0 2 * * *", cfg.Inventory.SweepCron)
	assert.Equal(t, 120*time.Minute, cfg.Inventory.ReservationHold)
	assert.Equal(t, time.Minute, cfg.Inventory.ReaperInterval)
	assert.Equal(t, 56*24*time.Hour, cfg.Inventory.DonorDeferral)
	assert.Equal(t, 3*24*time.Hour, cfg.Inventory.ExpiringSoon)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenTTL)
	assert.True(t, cfg.IsDev())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("APP_MODE", "prod")
	t.Setenv("STORAGE_DRIVER", "Memory")
	t.Setenv("PROD_DB_NAME", "bank_prod")
	t.Setenv("RESERVATION_HOLD_MINUTES", "30")
	t.Setenv("DONOR_DEFERRAL_DAYS", "not-a-number")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.UsesMemoryStore())
	assert.Equal(t, "bank_prod", cfg.Database.DBName)
	assert.Equal(t, 30*time.Minute, cfg.Inventory.ReservationHold)
	assert.Equal(t, 56*24*time.Hour, cfg.Inventory.DonorDeferral)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Run("app mode", func(t *testing.T) {
		t.Setenv("APP_MODE", "staging")
		_, err := FromEnv()
		assert.Error(t, err)
	})
	t.Run("storage driver", func(t *testing.T) {
		t.Setenv("APP_MODE", "dev")
		t.Setenv("STORAGE_DRIVER", "postgres")
		_, err := FromEnv()
		assert.Error(t, err)
	})
	t.Run("hold time", func(t *testing.T) {
		t.Setenv("APP_MODE", "dev")
		t.Setenv("RESERVATION_HOLD_MINUTES", "0")
		_, err := FromEnv()
		assert.Error(t, err)
	})
}

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(DatabaseConfig{Host: "db", Port: "3306", User: "bank", Password: "pw", DBName: "bloodbank"})
	assert.Equal(t, "bank:pw@tcp(db:3306)/bloodbank?charset=utf8mb4&parseTime=True&loc=UTC", dsn)
}
