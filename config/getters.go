package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var errNotLoaded = errors.New("configuration not loaded")

// value returns fn(key) when key is set, otherwise the first fallback or
// the zero value.
func value[T any](c *Config, key string, fn func(string) T, fallback []T) T {
	if c.Exists(key) {
		return fn(key)
	}
	var zero T
	if len(fallback) > 0 {
		return fallback[0]
	}
	return zero
}

// GetInt returns the int at key, or fallback when the key is unset.
func (c *Config) GetInt(key string, fallback ...int) int {
	return value(c, key, c.koanfInt, fallback)
}

// GetBool returns the bool at key, or fallback when the key is unset.
func (c *Config) GetBool(key string, fallback ...bool) bool {
	return value(c, key, c.koanfBool, fallback)
}

// GetDuration parses values such as "250ms" or "5s".
func (c *Config) GetDuration(key string, fallback ...time.Duration) time.Duration {
	return value(c, key, c.koanfDuration, fallback)
}

// GetRequiredString returns the string at key and fails when it is unset or
// blank.
func (c *Config) GetRequiredString(key string) (string, error) {
	if c == nil || c.k == nil {
		return "", errNotLoaded
	}
	if !c.k.Exists(key) {
		return "", fmt.Errorf("required configuration key '%s' is missing", key)
	}
	s := strings.TrimSpace(c.k.String(key))
	if s == "" {
		return "", fmt.Errorf("required configuration key '%s' is empty", key)
	}
	return s, nil
}

// Exists reports whether key is set by any source, defaults included.
func (c *Config) Exists(key string) bool {
	return c != nil && c.k != nil && c.k.Exists(key)
}

// All returns every key as a flat dotted map.
func (c *Config) All() map[string]any {
	if c == nil || c.k == nil {
		return nil
	}
	return c.k.All()
}

func (c *Config) koanfInt(key string) int                { return c.k.Int(key) }
func (c *Config) koanfBool(key string) bool              { return c.k.Bool(key) }
func (c *Config) koanfDuration(key string) time.Duration { return c.k.Duration(key) }
