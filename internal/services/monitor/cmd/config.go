package main

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"log_level"`
	BrokerURL   string `yaml:"broker_url"`
	ClientID    string `yaml:"client_id"`
	MQTTUser    string `yaml:"mqtt_user"`
	MQTTPass    string `yaml:"mqtt_pass"`
	TopicPrefix string `yaml:"topic_prefix"`
	CommandURL  string `yaml:"command_url"`

	MaxAttempts      int `yaml:"max_attempts"`
	BaseDelayMs      int `yaml:"base_delay_ms"`
	CapDelayMs       int `yaml:"cap_delay_ms"`
	ConnectTimeoutMs int `yaml:"connect_timeout_ms"`

	CommandTimeoutMs int `yaml:"command_timeout_ms"`
	BreakerFailures  int `yaml:"breaker_failures"`
	BreakerOpenMs    int `yaml:"breaker_open_ms"`
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

// loadConfig layers defaults, then the optional CONFIG_FILE yaml, then the
// environment. Env always wins.
func loadConfig() (Config, error) {
	cfg := Config{
		Port:             "8087",
		LogLevel:         "info",
		BrokerURL:        "tcp://localhost:1883",
		ClientID:         "plantwatch-client",
		TopicPrefix:      "garden",
		CommandURL:       "http://localhost:3001/send-command",
		MaxAttempts:      5,
		BaseDelayMs:      5000,
		CapDelayMs:       20000,
		ConnectTimeoutMs: 20000,
		CommandTimeoutMs: 5000,
		BreakerFailures:  3,
		BreakerOpenMs:    15000,
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.Port = getenv("PORT", cfg.Port)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.BrokerURL = getenv("BROKER_URL", cfg.BrokerURL)
	cfg.ClientID = getenv("CLIENT_ID", cfg.ClientID)
	cfg.MQTTUser = getenv("MQTT_USER", cfg.MQTTUser)
	cfg.MQTTPass = getenv("MQTT_PASS", cfg.MQTTPass)
	cfg.TopicPrefix = getenv("TOPIC_PREFIX", cfg.TopicPrefix)
	cfg.CommandURL = getenv("COMMAND_URL", cfg.CommandURL)
	cfg.MaxAttempts = getenvInt("MAX_ATTEMPTS", cfg.MaxAttempts)
	cfg.BaseDelayMs = getenvInt("BASE_DELAY_MS", cfg.BaseDelayMs)
	cfg.CapDelayMs = getenvInt("CAP_DELAY_MS", cfg.CapDelayMs)
	cfg.ConnectTimeoutMs = getenvInt("CONNECT_TIMEOUT_MS", cfg.ConnectTimeoutMs)
	cfg.CommandTimeoutMs = getenvInt("COMMAND_TIMEOUT_MS", cfg.CommandTimeoutMs)
	cfg.BreakerFailures = getenvInt("BREAKER_FAILURES", cfg.BreakerFailures)
	cfg.BreakerOpenMs = getenvInt("BREAKER_OPEN_MS", cfg.BreakerOpenMs)
	return cfg, nil
}
