package spdy

import (
	"fmt"
	"io"
	"log"
)

// Default chunking bounds for DATA frame delivery.
const (
	DefaultMaxChunkSize = 8192
	DefaultMinChunkSize = 256
)

// Config holds the decoder configuration options.
type Config struct {
	Version      uint16      // SPDY protocol version expected on the wire
	MaxChunkSize int         // Upper bound on emitted body chunk size
	MinChunkSize int         // Chunks below this size are held back until a frame ends
	Logger       *log.Logger // Logger for decode events
}

// newSilentLogger creates a silent logger that discards all output
func newSilentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Version:      3,
		MaxChunkSize: DefaultMaxChunkSize,
		MinChunkSize: DefaultMinChunkSize,
		Logger:       newSilentLogger(),
	}
}

// Validate checks and normalizes the configuration values.
func (c *Config) Validate() error {
	if c.Version == 0 {
		c.Version = 3
	}
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("spdy: MaxChunkSize must be a positive integer: %d", c.MaxChunkSize)
	}
	if c.MinChunkSize <= 0 {
		c.MinChunkSize = DefaultMinChunkSize
	}
	if c.MinChunkSize > c.MaxChunkSize {
		c.MinChunkSize = c.MaxChunkSize
	}
	if c.Logger == nil {
		c.Logger = newSilentLogger()
	}
	return nil
}
