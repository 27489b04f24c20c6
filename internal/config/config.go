package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the client's runtime settings.
type Config struct {
	APIBaseURL string
	SocketURL  string
	MirrorPath string
	Timings    Timings
}

// Timings are the fixed wall-clock windows of the question flow. They are not
// configurable per session; env overrides exist for development only.
type Timings struct {
	Intro    time.Duration
	Open     time.Duration
	Teardown time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		Intro:    3 * time.Second,
		Open:     7 * time.Second,
		Teardown: 2 * time.Second,
	}
}

// Load reads configuration from the environment, with a .env file if present.
func Load() *Config {
	_ = godotenv.Load()

	t := DefaultTimings()
	t.Intro = getEnvDuration("INTRO_SECONDS", t.Intro)
	t.Open = getEnvDuration("QUESTION_SECONDS", t.Open)
	t.Teardown = getEnvDuration("TEARDOWN_SECONDS", t.Teardown)

	return &Config{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		SocketURL:  getEnv("SOCKET_URL", "ws://localhost:8080/ws"),
		MirrorPath: getEnv("SESSION_DB_PATH", "./quizlink.db"),
		Timings:    t,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}
