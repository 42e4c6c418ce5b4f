package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	require.NotNil(t, cfg)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, StorageDriverLocal, cfg.Storage.Driver)
	assert.Equal(t, "UTC", cfg.Meetings.Timezone)
	assert.Equal(t, 30*24*time.Hour, cfg.Meetings.Lookahead)
	assert.Equal(t, int64(20*1024*1024), cfg.Files.MaxFileSizeBytes)
	assert.Contains(t, cfg.Files.AllowedMIMEs, "application/pdf")
	assert.Equal(t, "authenticated", cfg.Auth.Audience)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("STORAGE_DRIVER", "B2")
	v.Set("DASHBOARD_CACHE_TTL", "bogus")
	v.Set("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := fromViper(v)
	assert.Equal(t, StorageDriverB2, cfg.Storage.Driver)
	assert.Equal(t, time.Minute, cfg.Cache.DashboardTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}
