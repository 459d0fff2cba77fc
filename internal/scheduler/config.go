// Package scheduler decides when in-memory task mutations are written through
// to durable storage.
package scheduler

import (
	"fmt"
	"time"
)

// DefaultDebounce is the minimum time between two writes triggered by
// ordinary mutations.
const DefaultDebounce = time.Second

// Config defines the persistence scheduling configuration.
type Config struct {
	// Debounce is the minimum interval between two notify-triggered writes.
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
	// AutoFlush enables the background flusher for changes left pending.
	AutoFlush bool `mapstructure:"auto_flush" yaml:"auto_flush"`
	// AutoFlushInterval is how often the background flusher checks.
	AutoFlushInterval time.Duration `mapstructure:"auto_flush_interval" yaml:"auto_flush_interval"`
}

// DefaultConfig returns the default scheduling configuration. The background
// flusher is off: a change left pending is written by the next due mutation
// or by ForceFlush.
func DefaultConfig() Config {
	return Config{
		Debounce:          DefaultDebounce,
		AutoFlush:         false,
		AutoFlushInterval: DefaultDebounce,
	}
}

// Validate rejects unusable values.
func (c Config) Validate() error {
	if c.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative, got %s", c.Debounce)
	}
	if c.AutoFlush && c.AutoFlushInterval <= 0 {
		return fmt.Errorf("auto_flush_interval must be positive when auto_flush is on, got %s", c.AutoFlushInterval)
	}
	return nil
}
