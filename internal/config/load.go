package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

var errNullConfig = errors.New("config is null")

// Load reads filename and decodes it over Default(). Errors name the file.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	cfg, err := decodeConfig(data)
	if err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filename, err)
	}
	return cfg, nil
}

// decodeConfig accepts exactly one JSON object with known fields only
func decodeConfig(data []byte) (*Config, error) {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, errNullConfig
	}
	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after the config object")
	}
	return cfg, nil
}

// Write marshals the configuration as indented JSON to the given file.
func Write(cfg *Config, filename string) error {
	data, err := json.MarshalIndent(cfg, "", "\t")
	if err != nil {
		return fmt.Errorf("failed to encode config: %v", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %v: %v", filename, err)
	}
	return nil
}
