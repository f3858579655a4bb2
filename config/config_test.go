package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir()) // no .env here
	t.Setenv("TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Empty(t, cfg.Telegram.AdminIDs)
	assert.Equal(t, "hostel", cfg.Shop.Variant)
	assert.Equal(t, "memory", cfg.Shop.Store)
	assert.Equal(t, 30*time.Minute, cfg.Dialog.TTL)
	assert.Equal(t, 3, cfg.Dialog.MaxAttempts)
	assert.Equal(t, 5, cfg.Shop.PageSize)
	assert.Equal(t, "83", cfg.Shop.ExchangeRate.String())
	assert.False(t, cfg.Server.AutoMigrate)
	assert.Equal(t, "postgres://postgres:@localhost:5432/hostel_market", cfg.DB.DSN())
}

func TestLoad_Overrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ADMIN_IDS", "42, 7,")
	t.Setenv("VARIANT", "Market")
	t.Setenv("STORE", "postgres")
	t.Setenv("DIALOG_TTL", "10m")
	t.Setenv("DIALOG_MAX_ATTEMPTS", "0")
	t.Setenv("EXCHANGE_RATE", "82.5")
	t.Setenv("AUTO_MIGRATE", "TRUE")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []int64{42, 7}, cfg.Telegram.AdminIDs)
	assert.Equal(t, "market", cfg.Shop.Variant)
	assert.Equal(t, "postgres", cfg.Shop.Store)
	assert.Equal(t, 10*time.Minute, cfg.Dialog.TTL)
	assert.Equal(t, 0, cfg.Dialog.MaxAttempts)
	assert.Equal(t, "82.5", cfg.Shop.ExchangeRate.String())
	assert.True(t, cfg.Server.AutoMigrate)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"ADMIN_IDS", "42,abc"},
		{"VARIANT", "restaurant"},
		{"STORE", "sqlite"},
		{"DIALOG_TTL", "forever"},
		{"DIALOG_MAX_ATTEMPTS", "-1"},
		{"EXCHANGE_RATE", "0"},
		{"PAGE_SIZE", "0"},
		{"DB_PORT", "pg"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			chdir(t, t.TempDir())
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
