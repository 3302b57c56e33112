// Package config loads, validates and persists the switcher configuration.
//
// Configuration is a flat record. Values are resolved in layers, higher
// layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← LANGSWITCH_PORT=9000
//	├─────────────────────────────┤
//	│  2. Config File             │  ← ~/.config/langswitch/config.toml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// The file format follows the extension: .toml, .yaml/.yml or .json.
// Absent keys keep their defaults and unknown keys are ignored.
//
// # Basic Usage
//
//	cfg, err := config.Load(config.DefaultPath())
//	if err != nil {
//	    return err
//	}
//
// Worker paths are not checked here. The supervisor validates them when it
// starts the worker, so a half-edited configuration still loads.
//
// # Live Reload
//
// Watcher reports a freshly loaded Config whenever the file is written:
//
//	w, err := config.NewWatcher(path, config.WithReloadHandler(ctrl.ApplyConfig))
//	go w.Run(ctx)
package config
