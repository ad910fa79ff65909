package transcribe

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vizzilabs/go-vizzi/pkg/audioio"
)

const realtimeSTTURL = "wss://api.openai.com/v1/realtime?intent=transcription"

// Realtime is an Engine backed by a realtime transcription WebSocket API.
type Realtime struct {
	apiKey  string
	baseURL string
	model   string
	logger  *slog.Logger
}

// RealtimeOption configures the realtime engine.
type RealtimeOption func(*Realtime)

// WithBaseURL overrides the default WebSocket endpoint.
// Useful for pointing tests at a local server.
func WithBaseURL(url string) RealtimeOption {
	return func(r *Realtime) { r.baseURL = url }
}

// WithModel sets the transcription model.
func WithModel(model string) RealtimeOption {
	return func(r *Realtime) { r.model = model }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) RealtimeOption {
	return func(r *Realtime) { r.logger = logger }
}

// NewRealtime creates a realtime transcription engine.
func NewRealtime(apiKey string, opts ...RealtimeOption) (*Realtime, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("transcribe: API key required")
	}
	r := &Realtime{
		apiKey:  apiKey,
		baseURL: realtimeSTTURL,
		model:   "gpt-4o-transcribe",
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "transcribe.realtime")
	return r, nil
}

// Open dials the engine and starts a transcription stream for one utterance.
func (r *Realtime) Open(ctx context.Context, locale string) (Session, error) {
	if !LocaleSupported(locale) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLocale, locale)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+r.apiKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, r.baseURL, header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	s := &realtimeSession{
		conn:    conn,
		logger:  r.logger,
		results: make(chan Result, 8),
		cancel:  cancel,
	}

	cfg := map[string]any{
		"type": "transcription_session.update",
		"session": map[string]any{
			"input_audio_format": "pcm16",
			"input_audio_transcription": map[string]any{
				"model":    r.model,
				"language": locale,
			},
			"turn_detection": map[string]any{
				"type":                "server_vad",
				"threshold":           0.5,
				"prefix_padding_ms":   300,
				"silence_duration_ms": 500,
			},
		},
	}
	if err := s.sendJSON(cfg); err != nil {
		conn.Close()
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	go s.readLoop(sessCtx)
	return s, nil
}

// realtimeSession is one live transcription stream.
type realtimeSession struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex
	results chan Result
	cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func (s *realtimeSession) sendJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

// WriteAudio sends one PCM16 frame to the engine.
func (s *realtimeSession) WriteAudio(frame audioio.Frame) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.mu.Unlock()

	msg := map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(frame.Bytes()),
	}
	if err := s.sendJSON(msg); err != nil {
		return fmt.Errorf("transcribe: send audio: %w", err)
	}
	return nil
}

// Results returns the transcription update channel.
func (s *realtimeSession) Results() <-chan Result {
	return s.results
}

// Cancel abandons the stream. Safe to call multiple times.
func (s *realtimeSession) Cancel() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	s.conn.Close()
}

// readLoop pumps server events into the results channel until the utterance
// finalizes or the connection dies.
func (s *realtimeSession) readLoop(ctx context.Context) {
	defer close(s.results)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || ctx.Err() != nil {
				return
			}
			s.emit(ctx, Result{Err: fmt.Errorf("transcribe: stream read: %w", err)})
			return
		}

		var msg struct {
			Type       string `json:"type"`
			Delta      string `json:"delta"`
			Transcript string `json:"transcript"`
			Error      struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "conversation.item.input_audio_transcription.delta":
			// The engine reports the cumulative transcript alongside
			// each delta; forward the cumulative text.
			if msg.Transcript != "" {
				s.emit(ctx, Result{Text: msg.Transcript})
			}

		case "conversation.item.input_audio_transcription.completed":
			s.emit(ctx, Result{Text: msg.Transcript, Final: true})
			return

		case "error":
			s.emit(ctx, Result{Err: fmt.Errorf("transcribe: engine error: %s", msg.Error.Message)})
			return
		}
	}
}

func (s *realtimeSession) emit(ctx context.Context, r Result) {
	select {
	case s.results <- r:
	case <-ctx.Done():
	}
}

// Compile-time interface checks.
var (
	_ Engine  = (*Realtime)(nil)
	_ Session = (*realtimeSession)(nil)
)
