// Package config handles loading application configuration from environment variables.
// All settings have sensible defaults for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application settings loaded from environment variables.
type Config struct {
	Port                 string
	BusEndpoint          string
	TopicsFile           string
	WebDir               string
	ConnectRatePerMinute int
	ClientSendBuffer     int
	BusRedialWait        time.Duration
	CORSAllowedOrigins   []string
	TrustedProxies       []string
}

// Load reads configuration from environment variables, using defaults where not set.
func Load() *Config {
	return &Config{
		Port:                 getEnv("PORT", "6789"),
		BusEndpoint:          getEnv("BUS_ENDPOINT", "tcp://127.0.0.1:5555"),
		TopicsFile:           getEnv("TOPICS_FILE", "./topics.yaml"),
		WebDir:               getEnv("WEB_DIR", "./web"),
		ConnectRatePerMinute: getIntEnv("CONNECT_RATE_PER_MINUTE", 60),
		ClientSendBuffer:     getIntEnv("CLIENT_SEND_BUFFER", 64),
		BusRedialWait:        getDurationEnv("BUS_REDIAL_WAIT", time.Second),
		CORSAllowedOrigins:   getStringSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		TrustedProxies:       getStringSliceEnv("TRUSTED_PROXIES", nil),
	}
}

// TopicSpec describes one topic pinned at startup.
type TopicSpec struct {
	Topic        string `yaml:"topic"`
	HistoryLimit int    `yaml:"history_limit"`
}

type topicsFile struct {
	Topics []TopicSpec `yaml:"topics"`
}

// LoadTopics reads the startup topic list from a YAML file. A missing file is
// not an error: the relay then starts topics on client demand only.
func LoadTopics(path string) ([]TopicSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read topics file: %w", err)
	}

	var f topicsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse topics file %s: %w", path, err)
	}

	for i := range f.Topics {
		if f.Topics[i].Topic == "" {
			return nil, fmt.Errorf("topics file %s: entry %d has no topic name", path, i)
		}
		if f.Topics[i].HistoryLimit < 1 {
			f.Topics[i].HistoryLimit = 1
		}
	}
	return f.Topics, nil
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result []string
	for _, s := range strings.Split(value, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			result = append(result, s)
		}
	}
	return result
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
