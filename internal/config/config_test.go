package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("file not found", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "404.json"))
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), "404.json")
		}
	})

	t.Run("file contains garbage", func(t *testing.T) {
		_, err := Load(write("garbage.json", "koala"))
		if assert.Error(t, err) {
			assert.Regexp(t, `^invalid config .*/garbage\.json: invalid character`, err.Error())
		}
	})

	t.Run("file contains null", func(t *testing.T) {
		_, err := Load(write("null.json", "null"))
		if assert.Error(t, err) {
			assert.Regexp(t, `^invalid config .*/null\.json: config is null$`, err.Error())
			assert.ErrorIs(t, err, errNullConfig)
		}
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := Load(write("unknown.json", `{"roflcopter": true}`))
		if assert.Error(t, err) {
			assert.Regexp(t, `^invalid config .*/unknown\.json: json: unknown field "roflcopter"$`, err.Error())
		}
	})

	t.Run("more", func(t *testing.T) {
		_, err := Load(write("more.json", "{}{}"))
		if assert.Error(t, err) {
			assert.Regexp(t, `^invalid config .*/more\.json: unexpected data after the config object$`, err.Error())
		}
	})

	t.Run("trailing whitespace", func(t *testing.T) {
		cfg, err := Load(write("spaces.json", "{\"logLevel\": \"debug\"}\n\n  "))
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("bad duration", func(t *testing.T) {
		_, err := Load(write("ttl.json", `{"redis": {"ttl": "soon"}}`))
		assert.Error(t, err)
	})

	t.Run("defaults kept", func(t *testing.T) {
		cfg, err := Load(write("partial.json", `{"provider": "mongo",
			"mongo": {"uri": "mongodb://localhost", "database": "fhir"},
			"redis": {"addr": "localhost:6379"}}`))
		require.NoError(t, err)
		assert.Equal(t, ProviderMongo, cfg.Provider)
		assert.Equal(t, time.Hour, cfg.Redis.TTL.Duration)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.True(t, cfg.Redis.Enabled())
		assert.NoError(t, cfg.Validate())
	})

	t.Run("write round trip", func(t *testing.T) {
		cfg := Default()
		cfg.Data = "bundle.json"
		cfg.Redis.TTL = Duration{90 * time.Second}
		path := filepath.Join(dir, "written.json")
		require.NoError(t, Write(cfg, path))

		loaded, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, cfg, loaded)
	})
}

func Test_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		err    string
	}{
		{"default", func(*Config) {}, ""},
		{"unknown provider", func(c *Config) { c.Provider = "oracle" }, `unknown provider "oracle"`},
		{"mongo without uri", func(c *Config) { c.Provider = ProviderMongo }, "requires mongo.uri"},
		{"mongo without database", func(c *Config) {
			c.Provider = ProviderMongo
			c.Mongo.URI = "mongodb://localhost"
		}, "requires mongo.database"},
		{"negative ttl", func(c *Config) { c.Redis.TTL = Duration{-time.Second} }, "redis.ttl"},
		{"negative db", func(c *Config) { c.Redis.DB = -1 }, "redis.db"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "invalid logLevel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.err == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.err)
			}
		})
	}
}

func Test_Level(t *testing.T) {
	cfg := Default()
	assert.Equal(t, log.InfoLevel, cfg.Level())
	cfg.LogLevel = "debug"
	assert.Equal(t, log.DebugLevel, cfg.Level())
	cfg.LogLevel = "bogus"
	assert.Equal(t, log.InfoLevel, cfg.Level())
}
