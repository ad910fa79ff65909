package audioio

import (
	"testing"
	"time"
)

func TestSamplesBytesRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 12345}
	data := SamplesToBytes(samples)
	got := BytesToSamples(data)

	if len(got) != len(samples) {
		t.Fatalf("length = %d, want %d", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], samples[i])
		}
	}
}

func TestResample(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		in       int
		want     int
	}{
		{"same rate passthrough", 24000, 24000, 480, 480},
		{"downsample halves", 48000, 24000, 480, 240},
		{"upsample doubles", 12000, 24000, 480, 960},
		{"empty input", 48000, 24000, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make([]int16, tt.in)
			out := Resample(in, tt.from, tt.to)
			if len(out) != tt.want {
				t.Errorf("len = %d, want %d", len(out), tt.want)
			}
		})
	}
}

func TestResamplePreservesConstantSignal(t *testing.T) {
	in := make([]int16, 100)
	for i := range in {
		in[i] = 1000
	}
	out := Resample(in, 16000, 24000)
	for i, s := range out {
		if s != 1000 {
			t.Fatalf("sample %d = %d, want 1000", i, s)
		}
	}
}

func TestStereoToMono(t *testing.T) {
	stereo := []int16{100, 200, -100, -200}
	mono := StereoToMono(stereo)
	if len(mono) != 2 {
		t.Fatalf("len = %d, want 2", len(mono))
	}
	if mono[0] != 150 || mono[1] != -150 {
		t.Errorf("mono = %v, want [150 -150]", mono)
	}
}

func TestFrameDuration(t *testing.T) {
	f := Frame{Samples: make([]int16, 480), SampleRate: 24000, Channels: 1}
	if d := f.Duration(); d != 0.02 {
		t.Errorf("Duration() = %v, want 0.02", d)
	}

	var zero Frame
	if d := zero.Duration(); d != 0 {
		t.Errorf("zero frame Duration() = %v, want 0", d)
	}
}

func TestConfigFrameSize(t *testing.T) {
	cfg := Config{SampleRate: 24000, Channels: 1, FrameDuration: 20 * time.Millisecond}
	if got := cfg.FrameSize(); got != 480 {
		t.Errorf("FrameSize() = %d, want 480", got)
	}
	if got := cfg.FrameBytes(); got != 960 {
		t.Errorf("FrameBytes() = %d, want 960", got)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", DefaultConfig(), false},
		{"zero sample rate", Config{Channels: 1, FrameDuration: time.Millisecond}, true},
		{"zero channels", Config{SampleRate: 24000, FrameDuration: time.Millisecond}, true},
		{"zero frame duration", Config{SampleRate: 24000, Channels: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
