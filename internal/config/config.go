// Package config defines the configuration of the hfql command and loads it
// from JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/omniql-engine/hfql/engine/search"
	"github.com/omniql-engine/hfql/mapping"
)

// Providers
const (
	ProviderMemory = "memory"
	ProviderMongo  = "mongo"
)

// Config is the top-level configuration of the hfql command.
type Config struct {
	// Provider selects the search backend: "memory" or "mongo".
	Provider string `json:"provider"`
	// Data is a FHIR JSON file or a directory of them, loaded by the memory provider.
	Data     string `json:"data,omitempty"`
	Mongo    Mongo  `json:"mongo"`
	Redis    Redis  `json:"redis"`
	LogLevel string `json:"logLevel"`
}

// Mongo locates the database holding one collection per resource type.
type Mongo struct {
	URI      string `json:"uri,omitempty"`
	Database string `json:"database,omitempty"`
}

// Redis configures the search cache. Caching is off when Addr is empty.
type Redis struct {
	Addr     string   `json:"addr,omitempty"`
	Password string   `json:"password,omitempty"`
	DB       int      `json:"db"`
	TTL      Duration `json:"ttl"`
}

// Enabled reports whether a Redis cache should be placed in front of the provider.
func (r Redis) Enabled() bool {
	return r.Addr != ""
}

// Duration is a time.Duration written in JSON as a Go duration string, like "90s".
type Duration struct {
	time.Duration
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %v", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Provider: ProviderMemory,
		Redis:    Redis{TTL: Duration{search.DefaultCacheTTL}},
		LogLevel: log.InfoLevel.String(),
	}
}

// Validate checks that the configuration can be used to build a client.
func (c *Config) Validate() error {
	if !mapping.IsSupportedProvider(c.Provider) {
		return fmt.Errorf("unknown provider %q, expected one of %v", c.Provider, mapping.SupportedProviders)
	}
	if c.Provider == ProviderMongo {
		if c.Mongo.URI == "" {
			return fmt.Errorf("mongo provider requires mongo.uri")
		}
		if c.Mongo.Database == "" {
			return fmt.Errorf("mongo provider requires mongo.database")
		}
	}
	if c.Redis.TTL.Duration < 0 {
		return fmt.Errorf("redis.ttl must not be negative, got %v", c.Redis.TTL)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must not be negative, got %d", c.Redis.DB)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid logLevel: %v", err)
	}
	return nil
}

// Level returns the parsed log level, or Info when it does not parse.
func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}
