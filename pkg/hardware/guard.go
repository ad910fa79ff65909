// Package hardware models the microphone and speaker as a single shared
// exclusive resource slot. Capture and playback never hold the device at the
// same time: acquiring one while the other is held releases the held one
// first. Every exit path must release its handle; a leaked handle leaves the
// device deaf or mute.
package hardware

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ErrBusy is returned when the requested resource kind is already held.
var ErrBusy = errors.New("hardware: audio device busy")

// Kind identifies which half of the audio device a handle owns.
type Kind int

const (
	// None means the device is free.
	None Kind = iota

	// Capture is the microphone side.
	Capture

	// Playback is the speaker side.
	Playback
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case Capture:
		return "capture"
	case Playback:
		return "playback"
	default:
		return "none"
	}
}

// Handle represents exclusive ownership of one side of the audio device.
// It is returned by the guard and must be given back via Release.
type Handle struct {
	id   string
	kind Kind
}

// Kind returns which side of the device this handle owns.
func (h *Handle) Kind() Kind {
	if h == nil {
		return None
	}
	return h.kind
}

// Guard is the exclusive-ownership wrapper around the audio device.
// The zero value is not usable; construct with NewGuard.
type Guard struct {
	mu     sync.Mutex
	held   *Handle
	logger *slog.Logger
}

// NewGuard creates a guard for a free audio device.
func NewGuard(logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		logger: logger.With("component", "hardware.guard"),
	}
}

// AcquireCapture claims the microphone side of the device.
// If playback is currently held it is released first. If capture is already
// held, AcquireCapture fails with ErrBusy.
func (g *Guard) AcquireCapture() (*Handle, error) {
	return g.acquire(Capture)
}

// AcquirePlayback claims the speaker side of the device.
// If capture is currently held it is released first. If playback is already
// held, AcquirePlayback fails with ErrBusy.
func (g *Guard) AcquirePlayback() (*Handle, error) {
	return g.acquire(Playback)
}

func (g *Guard) acquire(kind Kind) (*Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.held != nil {
		if g.held.kind == kind {
			return nil, ErrBusy
		}
		// Capture and playback never hold the device simultaneously.
		g.logger.Debug("preempting held handle",
			"held", g.held.kind.String(),
			"requested", kind.String(),
		)
		g.held = nil
	}

	h := &Handle{id: uuid.New().String(), kind: kind}
	g.held = h

	g.logger.Debug("acquired", "kind", kind.String(), "handle", h.id)
	return h, nil
}

// Release returns a handle to the guard. Releasing a nil handle, a handle
// that was already released, or a handle superseded by preemption is a no-op,
// so Release is safe on every exit path.
func (g *Guard) Release(h *Handle) {
	if h == nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.held == nil || g.held.id != h.id {
		return
	}

	g.held = nil
	g.logger.Debug("released", "kind", h.kind.String(), "handle", h.id)
}

// Held reports which side of the device is currently owned.
func (g *Guard) Held() Kind {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.held == nil {
		return None
	}
	return g.held.kind
}

// Free reports whether the device is unowned.
func (g *Guard) Free() bool {
	return g.Held() == None
}
