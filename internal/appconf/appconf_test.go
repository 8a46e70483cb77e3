package appconf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvFlagToEnvironment(t *testing.T) {
	tests := []struct {
		input    string
		expected Environment
	}{
		{"production", Production},
		{"Production", Production},
		{"test", Test},
		{"development", Development},
		{"", Development},
		{"whatever", Development},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, EnvFlagToEnvironment(tt.input))
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("STATIC_DATA_DIR", t.TempDir())
	t.Setenv("GTFS_RT_URL", "")
	t.Setenv("GTFS_RT_KEY", "")
	t.Setenv("REFRESH_INTERVAL_SEC", "")
	t.Setenv("LOCAL_TZ", "")
	t.Setenv("CORS_ALLOW_ORIGIN", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, Development, cfg.Env)
	assert.Equal(t, 30, cfg.RefreshIntervalSec)
	assert.Equal(t, "Asia/Tokyo", cfg.LocalTZ)
	require.NotNil(t, cfg.Location)
	assert.Empty(t, cfg.CORSAllowOrigins)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ENV", "production")
	t.Setenv("STATIC_DATA_DIR", t.TempDir())
	t.Setenv("GTFS_RT_URL", "https://api.example.com/gtfs/trip-updates")
	t.Setenv("GTFS_RT_KEY", "secret")
	t.Setenv("REFRESH_INTERVAL_SEC", "15")
	t.Setenv("LOCAL_TZ", "Asia/Tokyo")
	t.Setenv("CORS_ALLOW_ORIGIN", "http://localhost:5173, https://map.example.com")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, Production, cfg.Env)
	assert.Equal(t, "https://api.example.com/gtfs/trip-updates", cfg.GTFSRTURL)
	assert.Equal(t, "secret", cfg.GTFSRTKey)
	assert.Equal(t, 15, cfg.RefreshIntervalSec)
	assert.Equal(t, []string{"http://localhost:5173", "https://map.example.com"}, cfg.CORSAllowOrigins)
}

func TestLoadConfigRejectsBadTimezone(t *testing.T) {
	t.Setenv("STATIC_DATA_DIR", t.TempDir())
	t.Setenv("LOCAL_TZ", "Mars/Olympus_Mons")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigRejectsBadFeedURL(t *testing.T) {
	t.Setenv("STATIC_DATA_DIR", t.TempDir())
	t.Setenv("LOCAL_TZ", "")
	t.Setenv("GTFS_RT_URL", "not a url")

	_, err := LoadConfig()
	assert.Error(t, err)
}
