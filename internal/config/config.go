package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the transcription coordination
// service.
type Config struct {
	Host       string
	Port       int
	ServerCert string
	ServerKey  string

	ShutdownTimeout time.Duration

	SupportedLangs        []string
	DefaultSourceLang     string
	DefaultTranscriptLang string
	WordSeparator         string

	MetricsNamespace string
	AllowAnyOrigin   bool

	RecordingsDir string
	DatabaseURL   string
}

// Load optionally loads a .env file (a missing file is not an error, only a
// malformed one), then reads environment variables and applies safe
// defaults.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Host:                  envOrDefault("COLETRA_API_HOST", "localhost"),
		ServerCert:            stringsTrimSpace("SERVERCERT"),
		ServerKey:             stringsTrimSpace("SERVERKEY"),
		MetricsNamespace:      envOrDefault("APP_METRICS_NAMESPACE", "transcriptionserver"),
		AllowAnyOrigin:        true,
		SupportedLangs:        splitCSVOrDefault("APP_SUPPORTED_LANGUAGES", []string{"cs", "en"}),
		DefaultSourceLang:     envOrDefault("APP_DEFAULT_SOURCE_LANGUAGE", "cs"),
		DefaultTranscriptLang: envOrDefault("APP_DEFAULT_TRANSCRIPT_LANGUAGE", "cs"),
		WordSeparator:         envOrDefault("APP_WORD_SEPARATOR", " "),
		RecordingsDir:         envOrDefault("APP_RECORDINGS_DIR", "."),
		DatabaseURL:           stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:       15 * time.Second,
	}

	var err error
	cfg.Port, err = intFromEnv("COLETRA_API_PORT", 5000)
	if err != nil {
		return Config{}, err
	}
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.Port <= 0 {
		return Config{}, fmt.Errorf("COLETRA_API_PORT must be positive")
	}
	if len(cfg.SupportedLangs) == 0 {
		return Config{}, fmt.Errorf("APP_SUPPORTED_LANGUAGES must list at least one language")
	}
	if !contains(cfg.SupportedLangs, cfg.DefaultSourceLang) {
		return Config{}, fmt.Errorf("APP_DEFAULT_SOURCE_LANGUAGE %q must be one of APP_SUPPORTED_LANGUAGES", cfg.DefaultSourceLang)
	}
	if !contains(cfg.SupportedLangs, cfg.DefaultTranscriptLang) {
		return Config{}, fmt.Errorf("APP_DEFAULT_TRANSCRIPT_LANGUAGE %q must be one of APP_SUPPORTED_LANGUAGES", cfg.DefaultTranscriptLang)
	}
	if (cfg.ServerCert == "") != (cfg.ServerKey == "") {
		return Config{}, fmt.Errorf("SERVERCERT and SERVERKEY must both be set or both be empty")
	}

	return cfg, nil
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func splitCSVOrDefault(key string, fallback []string) []string {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = trimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func stringsTrimSpace(key string) string {
	return trimSpace(os.Getenv(key))
}

func trimSpace(v string) string {
	for len(v) > 0 && (v[0] == ' ' || v[0] == '\n' || v[0] == '\t' || v[0] == '\r') {
		v = v[1:]
	}
	for len(v) > 0 {
		c := v[len(v)-1]
		if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
			v = v[:len(v)-1]
			continue
		}
		break
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
