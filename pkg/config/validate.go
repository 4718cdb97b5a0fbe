package config

import (
	"fmt"

	"github.com/Snider/Slicer/pkg/compress"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Split.Duration < 1 {
		return fmt.Errorf("split.duration must be at least 1 second, got %d", c.Split.Duration)
	}
	if err := c.Sources.Validate(); err != nil {
		return fmt.Errorf("sources: %w", err)
	}
	if !compress.Valid(c.Bundle.Compression) {
		return fmt.Errorf("bundle.compression must be one of %v, got %q", compress.Formats, c.Bundle.Compression)
	}
	return nil
}
