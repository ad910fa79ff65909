// Package transcribe provides a client for streaming speech-to-text engines.
//
// An Engine opens one Session per utterance. The session accepts PCM16 audio
// frames and emits transcript results. Result text is cumulative: every
// result carries the engine's best transcription of the whole utterance so
// far, so consumers replace their held text rather than appending.
package transcribe

import (
	"context"
	"errors"

	"github.com/vizzilabs/go-vizzi/pkg/audioio"
)

// Common errors returned by engines.
var (
	// ErrEngineUnavailable is returned when the engine cannot be reached.
	ErrEngineUnavailable = errors.New("transcribe: engine unavailable")

	// ErrSessionClosed is returned when writing to a finished session.
	ErrSessionClosed = errors.New("transcribe: session closed")

	// ErrUnsupportedLocale is returned for locales outside the supported set.
	ErrUnsupportedLocale = errors.New("transcribe: unsupported locale")
)

// Result is one transcription update from the engine.
type Result struct {
	// Text is the cumulative transcript of the utterance so far.
	Text string

	// Final marks the conclusive result for this utterance.
	// No further results follow a final one.
	Final bool

	// Err is set when the stream failed. Text and Final are zero.
	Err error
}

// Utterance is one continuous spoken input, from start of capture to
// finalization. Text is always replaced wholesale, never appended.
type Utterance struct {
	Text  string
	Final bool
}

// Engine opens streaming transcription sessions.
type Engine interface {
	// Open starts a transcription stream for one utterance in the given
	// locale. The session ends when the engine emits a final result, the
	// context is cancelled, or Cancel is called.
	Open(ctx context.Context, locale string) (Session, error)
}

// Session is a live transcription stream for a single utterance.
type Session interface {
	// WriteAudio sends one captured frame to the engine.
	WriteAudio(frame audioio.Frame) error

	// Results returns the channel of transcription updates.
	// The channel closes after a final result, an error result, or Cancel.
	Results() <-chan Result

	// Cancel abandons the stream and the underlying recognition task.
	// Safe to call multiple times.
	Cancel()
}
