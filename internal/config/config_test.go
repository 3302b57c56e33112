package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShortcut(t *testing.T) {
	tests := []struct {
		in      string
		want    Shortcut
		wantErr error
	}{
		{"alt,shiftleft,2", Shortcut{"alt", "shiftleft", "2"}, nil},
		{" ctrl , space ", Shortcut{"ctrl", "space"}, nil},
		{"f13", Shortcut{"f13"}, nil},
		{"", nil, ErrEmptyShortcut},
		{"   ", nil, ErrEmptyShortcut},
		{"alt,,2", nil, ErrEmptyToken},
		{"alt, ", nil, ErrEmptyToken},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseShortcut(tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "python", cfg.PythonPath)
	assert.Equal(t, "alt,shiftleft,2", cfg.EnglishShortcut.String())
	assert.Equal(t, "alt,shiftleft,1", cfg.HebrewShortcut.String())
	assert.Equal(t, "127.0.0.1:8181", cfg.Addr())
	assert.Equal(t, 50*time.Millisecond, cfg.Debounce)
	assert.Equal(t, time.Second, cfg.HealthCheckDelay)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.EnglishShortcut = nil
	cfg.Port = 0
	cfg.LogLevel = "loud"
	cfg.Parser = "regex"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, KeyEnglishShortcut, ve.Key)

	for _, key := range []string{KeyPort, KeyLogLevel, KeyParser} {
		assert.Contains(t, err.Error(), "invalid "+key)
	}
}

func TestValidate_IgnoresWorkerPaths(t *testing.T) {
	cfg := Default()
	cfg.PythonPath = "/does/not/exist"
	cfg.ScriptPath = "/nor/this.py"
	assert.NoError(t, cfg.Validate())
}

func TestFromMap_Types(t *testing.T) {
	m := map[string]any{
		KeyEnabled:          false,
		KeyPort:             float64(9000),
		KeyDebounce:         int64(75),
		KeyHealthCheckDelay: "2s",
		KeyEnglishShortcut:  []any{"ctrl", "1"},
		"unknown":           "ignored",
	}
	cfg, err := FromMap(Default(), m)
	require.NoError(t, err)

	assert.False(t, cfg.Enabled)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 75*time.Millisecond, cfg.Debounce)
	assert.Equal(t, 2*time.Second, cfg.HealthCheckDelay)
	assert.Equal(t, Shortcut{"ctrl", "1"}, cfg.EnglishShortcut)
	assert.Equal(t, "alt,shiftleft,1", cfg.HebrewShortcut.String())
}

func TestFromMap_Mismatch(t *testing.T) {
	_, err := FromMap(Default(), map[string]any{KeyEnabled: "maybe", KeyPort: "http"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = FromMap(Default(), map[string]any{KeyHebrewShortcut: "alt,,1"})
	assert.ErrorIs(t, err, ErrEmptyToken)
}

func TestLoad_Formats(t *testing.T) {
	files := map[string]string{
		"config.toml": "enabled = false\nport = 9001\nenglish_shortcut = \"ctrl,2\"\n",
		"config.yaml": "enabled: false\nport: 9001\nenglish_shortcut: ctrl,2\n",
		"config.yml":  "enabled: false\nport: 9001\nenglish_shortcut: [ctrl, \"2\"]\n",
		"config.json": `{"enabled": false, "port": 9001, "english_shortcut": "ctrl,2"}`,
	}

	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

			cfg, err := Load(path)
			require.NoError(t, err)
			assert.False(t, cfg.Enabled)
			assert.Equal(t, 9001, cfg.Port)
			assert.Equal(t, Shortcut{"ctrl", "2"}, cfg.EnglishShortcut)
			assert.Equal(t, "python", cfg.PythonPath, "absent keys use defaults")
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("enabled = \n"), 0o644))

	_, err := Load(path)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, path, pe.Path)
	assert.Greater(t, pe.Line, 0)
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "config.ini"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("port = 9001\n"), 0o644))

	t.Setenv("LANGSWITCH_PORT", "9002")
	t.Setenv("LANGSWITCH_ENABLED", "off")
	t.Setenv("LANGSWITCH_DEBOUNCE", "120ms")
	t.Setenv("LANGSWITCH_SCRIPT_PATH", "1")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9002, cfg.Port)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 120*time.Millisecond, cfg.Debounce)
	assert.Equal(t, "1", cfg.ScriptPath)
}

func TestEnvLoader(t *testing.T) {
	l := NewEnvLoaderFrom("LANGSWITCH_", []string{
		"LANGSWITCH_PORT=8282",
		"LANGSWITCH_HOST=",
		"LANGSWITCH_=x",
		"OTHER_PORT=1",
	})
	got := l.Load()
	assert.Equal(t, map[string]any{KeyPort: int64(8282), KeyHost: ""}, got)
}

func TestSaveAndReload(t *testing.T) {
	for _, name := range []string{"c.toml", "c.yaml", "c.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg := Default()
			cfg.ScriptPath = "/opt/lang_server.py"
			cfg.HebrewShortcut = Shortcut{"super", "space"}
			cfg.Debounce = 80 * time.Millisecond

			require.NoError(t, Save(path, cfg))
			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, got)
		})
	}
}

func TestSave_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.toml")
	cfg := Default()
	cfg.HebrewShortcut = Shortcut{}

	err := Save(path, cfg)
	assert.ErrorIs(t, err, ErrValidationFailed)
	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestSetEnabled_PreservesOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.toml")
	require.NoError(t, os.WriteFile(path, []byte("port = 9100\ncustom = \"kept\"\n"), 0o644))

	require.NoError(t, SetEnabled(path, false))

	raw, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, false, raw[KeyEnabled])
	assert.Equal(t, "kept", raw["custom"])

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 9100, cfg.Port)
}

func TestSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")

	require.NoError(t, Set(path, "port", "9200"))
	require.NoError(t, Set(path, "Debounce", "75"))
	require.NoError(t, Set(path, "hebrew_shortcut", "ctrl,space"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Port)
	assert.Equal(t, 75*time.Millisecond, cfg.Debounce)
	assert.Equal(t, Shortcut{"ctrl", "space"}, cfg.HebrewShortcut)

	err = Set(path, "colour", "blue")
	assert.ErrorIs(t, err, ErrUnknownKey)

	err = Set(path, "port", "0")
	assert.ErrorIs(t, err, ErrValidationFailed)

	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Port, "rejected value must not be written")
}

func TestDeepMerge(t *testing.T) {
	dst := map[string]any{"a": 1, "nested": map[string]any{"x": 1, "y": 2}}
	src := map[string]any{"b": 2, "nested": map[string]any{"y": 3}}

	got := DeepMerge(dst, src)
	assert.Equal(t, map[string]any{
		"a":      1,
		"b":      2,
		"nested": map[string]any{"x": 1, "y": 3},
	}, got)
	assert.Equal(t, map[string]any{"k": 1}, DeepMerge(nil, map[string]any{"k": 1}))
}
