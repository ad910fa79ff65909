// Package config provides configuration helpers for go-vizzi commands.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults for the control surface and data directory.
const (
	DefaultWebPort = "8080"
	DefaultLocale  = "en-US"
)

// OpenAIKey returns the OpenAI API key from OPENAI_API_KEY.
// Returns the empty string if not set.
func OpenAIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// OpenAIKeyRequired returns the OpenAI API key from OPENAI_API_KEY.
// Exits with a usage message if not set.
func OpenAIKeyRequired() string {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		fmt.Fprintln(os.Stderr, "Error: OPENAI_API_KEY environment variable is required")
		fmt.Fprintln(os.Stderr, "Usage: OPENAI_API_KEY=sk-... go run ./cmd/vizzi")
		os.Exit(1)
	}
	return key
}

// WebPort returns the control surface port from VIZZI_PORT or the default.
func WebPort() string {
	if port := os.Getenv("VIZZI_PORT"); port != "" {
		return port
	}
	return DefaultWebPort
}

// Locale returns the capture locale from VIZZI_LOCALE or the default.
func Locale() string {
	if loc := os.Getenv("VIZZI_LOCALE"); loc != "" {
		return loc
	}
	return DefaultLocale
}

// DataDir returns the directory for persisted preferences.
// Falls back to ~/.vizzi when VIZZI_DATA_DIR is not set.
func DataDir() string {
	if dir := os.Getenv("VIZZI_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vizzi"
	}
	return filepath.Join(home, ".vizzi")
}

// UseMockAudio reports whether the mock audio backend was requested.
// Useful on machines without a capture device.
func UseMockAudio() bool {
	return os.Getenv("VIZZI_MOCK_AUDIO") == "1"
}

// LogLevel returns the log level from VIZZI_LOG_LEVEL or "info".
func LogLevel() string {
	if lvl := os.Getenv("VIZZI_LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return "info"
}
