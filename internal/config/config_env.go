package config

import (
	"errors"
	"strconv"
	"strings"
)

func applyEnvOverrides(cfg *Root, environ []string) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	values := envMap(environ)
	if value, ok := values["PORT"]; ok {
		cfg.Server.Port = strings.TrimSpace(value)
	}
	if value, ok := values["LOG_LEVEL"]; ok {
		cfg.Observability.LogLevel = value
	}
	if value, ok := values["APP_PASSCODE"]; ok {
		cfg.Auth.Passcode = value
	}
	if value, ok := values["RATE_LIMIT_SHORT"]; ok {
		cfg.Limits.Short = value
	}
	if value, ok := values["RATE_LIMIT_MEDIUM"]; ok {
		cfg.Limits.Medium = value
	}
	if value, ok := values["RATE_LIMIT_LONG"]; ok {
		cfg.Limits.Long = value
	}
	if value, ok := values["STATIC_DIR"]; ok {
		cfg.Static.Dir = value
	}
	if value, ok := values["COUNTER_STORE_URL"]; ok {
		cfg.Counters.StoreURL = strings.TrimSpace(value)
	}
	if value, ok := values["COUNTER_SERVICE_ENABLED"]; ok {
		parsed, err := parseBoolEnv("COUNTER_SERVICE_ENABLED", value)
		if err != nil {
			return err
		}
		cfg.Counters.ServiceEnabled = parsed
	}
	if value, ok := values["COUNTER_SERVICE_TOKEN"]; ok {
		cfg.Counters.ServiceToken = value
	}
	if value, ok := values["RELAY_ENABLED"]; ok {
		parsed, err := parseBoolEnv("RELAY_ENABLED", value)
		if err != nil {
			return err
		}
		cfg.Relay.Enabled = parsed
	}
	if value, ok := values["GENAI_BASE_URL"]; ok {
		cfg.GenAI.BaseURL = strings.TrimSpace(value)
	}
	for _, name := range []string{"GEMINI_API_KEY", "API_KEY"} {
		if value := strings.TrimSpace(values[name]); value != "" {
			cfg.GenAI.APIKey = value
			break
		}
	}
	return nil
}

func envMap(environ []string) map[string]string {
	values := make(map[string]string)
	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = value
	}
	return values
}

func parseBoolEnv(name, value string) (bool, error) {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, errors.New("invalid env value for " + name)
	}
	return parsed, nil
}
