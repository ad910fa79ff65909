package audioio

import (
	"fmt"
	"time"
)

// Config holds audio device configuration.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Default: 24000.
	SampleRate int

	// Channels is the number of audio channels. Default: 1 (mono).
	Channels int

	// FrameDuration is the duration of one frame. Default: 20ms.
	FrameDuration time.Duration
}

// DefaultConfig returns a Config with sensible defaults for speech audio.
func DefaultConfig() Config {
	return Config{
		SampleRate:    24000,
		Channels:      1,
		FrameDuration: 20 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("audioio: sample rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("audioio: channels must be positive, got %d", c.Channels)
	}
	if c.FrameDuration <= 0 {
		return fmt.Errorf("audioio: frame duration must be positive, got %v", c.FrameDuration)
	}
	return nil
}

// FrameSize returns the number of samples per frame per channel.
func (c *Config) FrameSize() int {
	return int(float64(c.SampleRate) * c.FrameDuration.Seconds())
}

// FrameBytes returns the size of one frame in bytes.
func (c *Config) FrameBytes() int {
	return c.FrameSize() * c.Channels * 2
}
