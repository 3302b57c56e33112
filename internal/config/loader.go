package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a configuration file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatForPath picks the format from the file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Load resolves defaults, the file at path and the environment.
//
// A missing file is not an error; defaults apply. An empty path skips the
// file layer.
func Load(path string) (Config, error) {
	var file map[string]any
	if path != "" {
		var err error
		file, err = ReadFile(path)
		if err != nil {
			return Config{}, err
		}
	}

	merged := DeepMerge(Default().ToMap(), file)
	merged = DeepMerge(merged, NewEnvLoader(EnvPrefix).Load())

	cfg, err := FromMap(Default(), merged)
	if err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ReadFile parses the file at path into a map. A missing file yields nil.
func ReadFile(path string) (map[string]any, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil // File doesn't exist, not an error
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return Parse(format, path, data)
}

// Parse decodes data in the given format. source names the data in errors.
func Parse(format Format, source string, data []byte) (map[string]any, error) {
	var config map[string]any
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}

	var err error
	switch format {
	case FormatTOML:
		err = toml.Unmarshal(data, &config)
	case FormatYAML:
		err = yaml.Unmarshal(data, &config)
	case FormatJSON:
		err = json.Unmarshal(data, &config)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		pe := &ParseError{Path: source, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			pe.Line, pe.Column = derr.Position()
		}
		return nil, pe
	}
	if config == nil {
		config = map[string]any{}
	}
	return config, nil
}

// Encode renders m in the given format.
func Encode(format Format, m map[string]any) ([]byte, error) {
	switch format {
	case FormatTOML:
		return toml.Marshal(m)
	case FormatYAML:
		return yaml.Marshal(m)
	case FormatJSON:
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Save writes cfg to path, replacing the file atomically.
func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return writeMap(path, cfg.ToMap())
}

// Patch updates individual keys in the file at path, keeping every other
// key (including unknown ones) as written.
func Patch(path string, updates map[string]any) error {
	current, err := ReadFile(path)
	if err != nil {
		return err
	}
	return writeMap(path, DeepMerge(current, updates))
}

// Set validates and persists one setting given as text. The rest of the
// file is kept as written.
func Set(path, key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if _, ok := Default().ToMap()[key]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	current, err := ReadFile(path)
	if err != nil {
		return err
	}
	update := map[string]any{key: ParseValue(key, value)}

	merged := DeepMerge(DeepMerge(Default().ToMap(), current), update)
	cfg, err := FromMap(Default(), merged)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return Patch(path, update)
}

// SetEnabled persists the enabled flag.
func SetEnabled(path string, enabled bool) error {
	return Patch(path, map[string]any{KeyEnabled: enabled})
}

func writeMap(path string, m map[string]any) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}
	data, err := Encode(format, m)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// DeepMerge recursively merges src into dst.
// Values in src override values in dst.
// Maps are merged recursively; other types are replaced.
func DeepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any)
	}
	if src == nil {
		return dst
	}

	for key, srcVal := range src {
		dstVal, exists := dst[key]
		if !exists {
			dst[key] = srcVal
			continue
		}

		srcMap, srcIsMap := srcVal.(map[string]any)
		dstMap, dstIsMap := dstVal.(map[string]any)
		if srcIsMap && dstIsMap {
			dst[key] = DeepMerge(dstMap, srcMap)
		} else {
			dst[key] = srcVal
		}
	}

	return dst
}
