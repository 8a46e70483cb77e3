// Package appconf holds application-level configuration loaded from the
// process environment.
package appconf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Environment describes the runtime environment of the server.
type Environment int

const (
	Development Environment = iota
	Test
	Production
)

// EnvFlagToEnvironment converts a string flag value ("development", "test",
// "production") to an Environment. Unknown values map to Development.
func EnvFlagToEnvironment(flag string) Environment {
	switch strings.ToLower(strings.TrimSpace(flag)) {
	case "production":
		return Production
	case "test":
		return Test
	default:
		return Development
	}
}

func (e Environment) String() string {
	switch e {
	case Production:
		return "production"
	case Test:
		return "test"
	default:
		return "development"
	}
}

// Config is the application configuration for the HTTP server and the
// position engine.
type Config struct {
	Port      int    `validate:"gte=0,lte=65535"`
	Env       Environment
	Verbose   bool
	RateLimit int `validate:"gte=0"`

	// Static data inputs.
	StaticDataDir string `validate:"required"`

	// Upstream GTFS-RT feed.
	GTFSRTURL string `validate:"omitempty,url"`
	GTFSRTKey string

	// Fusion cycle period in seconds.
	RefreshIntervalSec int `validate:"gt=0"`

	// Timezone for service-day calculation.
	LocalTZ  string
	Location *time.Location `validate:"required"`

	// Allowed CORS origins, comma separated in the environment.
	CORSAllowOrigins []string
}

// RefreshInterval returns the fusion cycle period as a duration.
func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSec) * time.Second
}

// LoadConfig reads configuration from the environment. A .env file in the
// working directory is honored if present. The returned error indicates a
// fatal configuration problem; callers should exit with status 2.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:               getenvInt("PORT", 4000),
		Env:                EnvFlagToEnvironment(os.Getenv("ENV")),
		Verbose:            getenvBool("VERBOSE"),
		RateLimit:          getenvInt("RATE_LIMIT", 100),
		StaticDataDir:      getenvDefault("STATIC_DATA_DIR", "./data"),
		GTFSRTURL:          os.Getenv("GTFS_RT_URL"),
		GTFSRTKey:          os.Getenv("GTFS_RT_KEY"),
		RefreshIntervalSec: getenvInt("REFRESH_INTERVAL_SEC", 30),
		LocalTZ:            getenvDefault("LOCAL_TZ", "Asia/Tokyo"),
	}

	loc, err := time.LoadLocation(cfg.LocalTZ)
	if err != nil {
		return Config{}, fmt.Errorf("invalid LOCAL_TZ %q: %w", cfg.LocalTZ, err)
	}
	cfg.Location = loc

	for _, origin := range strings.Split(os.Getenv("CORS_ALLOW_ORIGIN"), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.CORSAllowOrigins = append(cfg.CORSAllowOrigins, origin)
		}
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}
