// config/config.go - Environment-driven configuration
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all tunable parameters for the game-session core.
// Every field has a default; environment variables override.
type Config struct {
	Port   string
	AppEnv string

	JWTSecret   string
	CORSOrigins string

	HostGrace        time.Duration
	PlayerGrace      time.Duration
	EmptyRoomTimeout time.Duration
	IdleRoomTimeout  time.Duration
	CleanupInterval  time.Duration

	LockTimeout time.Duration
	TokenTTL    time.Duration

	MaxPlayers    int
	MaxSpectators int
	MaxQuestions  int

	ShutdownDeadline time.Duration
}

// Load reads configuration from the environment, applying defaults.
func Load() *Config {
	return &Config{
		Port:   GetEnv("PORT", "3000"),
		AppEnv: GetEnv("APP_ENV", "development"),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		CORSOrigins: GetEnv("CORS_ORIGINS", "http://localhost:3000"),

		HostGrace:        GetEnvDuration("HOST_GRACE_MS", 60000),
		PlayerGrace:      GetEnvDuration("PLAYER_GRACE_MS", 120000),
		EmptyRoomTimeout: GetEnvDuration("EMPTY_ROOM_TIMEOUT_MS", 300000),
		IdleRoomTimeout:  GetEnvDuration("IDLE_ROOM_TIMEOUT_MS", 3600000),
		CleanupInterval:  GetEnvDuration("CLEANUP_INTERVAL_MS", 30000),

		LockTimeout: GetEnvDuration("LOCK_TIMEOUT_MS", 10000),
		TokenTTL:    GetEnvDuration("TOKEN_TTL_MS", 86400000),

		MaxPlayers:    GetEnvInt("MAX_PLAYERS", 50),
		MaxSpectators: GetEnvInt("MAX_SPECTATORS", 10),
		MaxQuestions:  GetEnvInt("MAX_QUESTIONS", 50),

		ShutdownDeadline: GetEnvDuration("SHUTDOWN_DEADLINE_MS", 30000),
	}
}

// GetEnv returns the environment value for key, or defaultVal when unset.
func GetEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// GetEnvInt returns the integer environment value for key, or defaultVal.
func GetEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

// GetEnvDuration reads a millisecond-valued environment variable.
func GetEnvDuration(key string, defaultMs int) time.Duration {
	return time.Duration(GetEnvInt(key, defaultMs)) * time.Millisecond
}
