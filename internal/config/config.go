package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/langswitch/internal/logging"
	"github.com/dshills/langswitch/internal/syntax"
)

// Configuration keys as they appear in files and, upper-cased with the
// LANGSWITCH_ prefix, in the environment.
const (
	KeyEnabled          = "enabled"
	KeyPythonPath       = "python_path"
	KeyScriptPath       = "script_path"
	KeyEnglishShortcut  = "english_shortcut"
	KeyHebrewShortcut   = "hebrew_shortcut"
	KeyHost             = "host"
	KeyPort             = "port"
	KeyDebounce         = "debounce"
	KeyHealthCheckDelay = "health_check_delay"
	KeyLogLevel         = "log_level"
	KeyLogFile          = "log_file"
	KeyParser           = "parser"
)

// Shortcut is an ordered key chord such as alt, shiftleft, 2.
type Shortcut []string

// ParseShortcut splits a comma-separated chord. Tokens are trimmed and
// must be non-empty.
func ParseShortcut(s string) (Shortcut, error) {
	if strings.TrimSpace(s) == "" {
		return nil, ErrEmptyShortcut
	}
	parts := strings.Split(s, ",")
	out := make(Shortcut, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("%w in %q", ErrEmptyToken, s)
		}
		out = append(out, p)
	}
	return out, nil
}

// MustShortcut is ParseShortcut for constants. It panics on error.
func MustShortcut(s string) Shortcut {
	sc, err := ParseShortcut(s)
	if err != nil {
		panic(err)
	}
	return sc
}

// String returns the persisted comma-separated form.
func (s Shortcut) String() string {
	return strings.Join(s, ",")
}

// Validate checks that the chord has at least one non-blank token.
func (s Shortcut) Validate() error {
	if len(s) == 0 {
		return ErrEmptyShortcut
	}
	for _, tok := range s {
		if strings.TrimSpace(tok) == "" {
			return ErrEmptyToken
		}
	}
	return nil
}

// Tokens returns a copy of the chord's tokens.
func (s Shortcut) Tokens() []string {
	return append([]string(nil), s...)
}

// Config is the complete switcher configuration.
type Config struct {
	// Enabled turns automatic switching on.
	Enabled bool
	// PythonPath is the worker interpreter or binary.
	PythonPath string
	// ScriptPath is the worker script passed to PythonPath.
	ScriptPath string
	// EnglishShortcut selects the English layout.
	EnglishShortcut Shortcut
	// HebrewShortcut selects the Hebrew layout.
	HebrewShortcut Shortcut

	Host string
	Port int

	// Debounce is the quiet period before classifying.
	Debounce time.Duration
	// HealthCheckDelay is the wait between spawning and the first health check.
	HealthCheckDelay time.Duration

	LogLevel string
	// LogFile, if set, receives logs instead of stderr.
	LogFile string

	// Parser names the tree producer: builtin or treesitter.
	Parser string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Enabled:          true,
		PythonPath:       "python",
		ScriptPath:       "",
		EnglishShortcut:  MustShortcut("alt,shiftleft,2"),
		HebrewShortcut:   MustShortcut("alt,shiftleft,1"),
		Host:             "127.0.0.1",
		Port:             8181,
		Debounce:         50 * time.Millisecond,
		HealthCheckDelay: time.Second,
		LogLevel:         "info",
		Parser:           syntax.ParserBuiltin,
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "langswitch.toml"
	}
	return filepath.Join(dir, "langswitch", "config.toml")
}

// Addr returns host:port of the worker control channel.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks every field. Worker paths are deliberately not checked.
// All failures are returned joined, each a *ValidationError.
func (c Config) Validate() error {
	var errs []error
	add := func(key string, value any, msg string, err error) {
		errs = append(errs, &ValidationError{Key: key, Value: value, Message: msg, Err: err})
	}

	if err := c.EnglishShortcut.Validate(); err != nil {
		add(KeyEnglishShortcut, c.EnglishShortcut.String(), err.Error(), err)
	}
	if err := c.HebrewShortcut.Validate(); err != nil {
		add(KeyHebrewShortcut, c.HebrewShortcut.String(), err.Error(), err)
	}
	if strings.TrimSpace(c.Host) == "" {
		add(KeyHost, c.Host, "must not be empty", nil)
	}
	if c.Port < 1 || c.Port > 65535 {
		add(KeyPort, c.Port, "must be between 1 and 65535", nil)
	}
	if c.Debounce < 0 {
		add(KeyDebounce, c.Debounce, "must not be negative", nil)
	}
	if c.HealthCheckDelay < 0 {
		add(KeyHealthCheckDelay, c.HealthCheckDelay, "must not be negative", nil)
	}
	if !logging.ValidLevel(c.LogLevel) {
		add(KeyLogLevel, c.LogLevel, "must be debug, info, warn or error", nil)
	}
	if _, err := syntax.ParserByName(c.Parser); err != nil {
		add(KeyParser, c.Parser, "must be builtin or treesitter", err)
	}

	return errors.Join(errs...)
}

// ToMap returns the persisted form of c.
func (c Config) ToMap() map[string]any {
	return map[string]any{
		KeyEnabled:          c.Enabled,
		KeyPythonPath:       c.PythonPath,
		KeyScriptPath:       c.ScriptPath,
		KeyEnglishShortcut:  c.EnglishShortcut.String(),
		KeyHebrewShortcut:   c.HebrewShortcut.String(),
		KeyHost:             c.Host,
		KeyPort:             c.Port,
		KeyDebounce:         c.Debounce.String(),
		KeyHealthCheckDelay: c.HealthCheckDelay.String(),
		KeyLogLevel:         c.LogLevel,
		KeyLogFile:          c.LogFile,
		KeyParser:           c.Parser,
	}
}

// FromMap decodes a merged map. Missing keys keep their value in base.
func FromMap(base Config, m map[string]any) (Config, error) {
	c := base
	var errs []error
	note := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	note(decodeBool(m, KeyEnabled, &c.Enabled))
	note(decodeString(m, KeyPythonPath, &c.PythonPath))
	note(decodeString(m, KeyScriptPath, &c.ScriptPath))
	note(decodeShortcut(m, KeyEnglishShortcut, &c.EnglishShortcut))
	note(decodeShortcut(m, KeyHebrewShortcut, &c.HebrewShortcut))
	note(decodeString(m, KeyHost, &c.Host))
	note(decodeInt(m, KeyPort, &c.Port))
	note(decodeDuration(m, KeyDebounce, &c.Debounce))
	note(decodeDuration(m, KeyHealthCheckDelay, &c.HealthCheckDelay))
	note(decodeString(m, KeyLogLevel, &c.LogLevel))
	note(decodeString(m, KeyLogFile, &c.LogFile))
	note(decodeString(m, KeyParser, &c.Parser))

	if len(errs) > 0 {
		return base, errors.Join(errs...)
	}
	return c, nil
}

func mismatch(key string, v any, want string) error {
	return fmt.Errorf("%s: %w: expected %s, got %T", key, ErrTypeMismatch, want, v)
}

func decodeBool(m map[string]any, key string, dst *bool) error {
	v, ok := m[key]
	if !ok {
		return nil
	}
	b, ok := v.(bool)
	if !ok {
		return mismatch(key, v, "bool")
	}
	*dst = b
	return nil
}

func decodeString(m map[string]any, key string, dst *string) error {
	v, ok := m[key]
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return mismatch(key, v, "string")
	}
	*dst = s
	return nil
}

func decodeInt(m map[string]any, key string, dst *int) error {
	v, ok := m[key]
	if !ok {
		return nil
	}
	switch n := v.(type) {
	case int:
		*dst = n
	case int64:
		*dst = int(n)
	case uint64:
		*dst = int(n)
	case float64:
		if n != float64(int(n)) {
			return mismatch(key, v, "integer")
		}
		*dst = int(n)
	default:
		return mismatch(key, v, "integer")
	}
	return nil
}

// decodeDuration accepts a Go duration string or a number of milliseconds.
func decodeDuration(m map[string]any, key string, dst *time.Duration) error {
	v, ok := m[key]
	if !ok {
		return nil
	}
	switch d := v.(type) {
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return fmt.Errorf("%s: %w: %v", key, ErrTypeMismatch, err)
		}
		*dst = parsed
	case time.Duration:
		*dst = d
	default:
		var ms int
		if err := decodeInt(map[string]any{key: v}, key, &ms); err != nil {
			return mismatch(key, v, "duration")
		}
		*dst = time.Duration(ms) * time.Millisecond
	}
	return nil
}

// decodeShortcut accepts "a,b,c" or a list of tokens.
func decodeShortcut(m map[string]any, key string, dst *Shortcut) error {
	v, ok := m[key]
	if !ok {
		return nil
	}
	switch s := v.(type) {
	case string:
		sc, err := ParseShortcut(s)
		if err != nil {
			return &ValidationError{Key: key, Value: s, Message: err.Error(), Err: err}
		}
		*dst = sc
	case []any:
		sc := make(Shortcut, 0, len(s))
		for _, item := range s {
			tok, ok := item.(string)
			if !ok {
				return mismatch(key, item, "string token")
			}
			sc = append(sc, strings.TrimSpace(tok))
		}
		if err := sc.Validate(); err != nil {
			return &ValidationError{Key: key, Value: v, Message: err.Error(), Err: err}
		}
		*dst = sc
	default:
		return mismatch(key, v, "shortcut")
	}
	return nil
}
