package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"

	"github.com/mbrock/sdreader/internal/dirs"
)

// Config holds defaults read from config.json in the config directory.
// The file is JSON with comments and trailing commas allowed. Flags given
// on the command line win over it.
type Config struct {
	Output  string `json:"output,omitempty"`
	Engine  string `json:"engine,omitempty"`
	Lines   *int   `json:"lines,omitempty"`
	Catalog bool   `json:"catalog,omitempty"`
	Color   *bool  `json:"color,omitempty"`
	Debug   bool   `json:"debug,omitempty"`

	// CursorFile is used for --cursor-file when the flag is not given.
	CursorFile string `json:"cursor_file,omitempty"`
}

func configPath() string {
	return filepath.Join(dirs.ConfigDir(), "config.json")
}

// loadConfig reads path. A missing file yields the zero Config.
func loadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := parseConfig(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func parseConfig(data []byte, cfg *Config) error {
	std, err := hujson.Standardize(data)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(std))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}
