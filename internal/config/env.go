package config

import (
	"os"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LANGSWITCH_"

// EnvLoader loads configuration overrides from environment variables.
//
// LANGSWITCH_PYTHON_PATH sets python_path, LANGSWITCH_PORT sets port.
// Empty values are treated as set, not as unset.
type EnvLoader struct {
	prefix  string
	environ func() []string
}

// NewEnvLoader creates a loader for variables starting with prefix.
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{prefix: prefix, environ: os.Environ}
}

// NewEnvLoaderFrom reads variables from a fixed list of KEY=VALUE pairs.
func NewEnvLoaderFrom(prefix string, env []string) *EnvLoader {
	return &EnvLoader{prefix: prefix, environ: func() []string { return env }}
}

// Load returns the overrides as a configuration map.
func (l *EnvLoader) Load() map[string]any {
	config := make(map[string]any)
	for _, env := range l.environ() {
		if !strings.HasPrefix(env, l.prefix) {
			continue
		}
		name, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, l.prefix))
		if key == "" {
			continue
		}
		config[key] = ParseValue(key, value)
	}
	return config
}

// ParseValue converts a textual override for key into a typed value.
// Keys whose values are always text are never coerced.
func ParseValue(key, s string) any {
	switch key {
	case KeyPythonPath, KeyScriptPath, KeyHost, KeyLogFile, KeyLogLevel, KeyParser,
		KeyEnglishShortcut, KeyHebrewShortcut:
		return s
	}
	if s == "" {
		return s
	}

	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}

	return s
}
