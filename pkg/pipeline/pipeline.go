// Package pipeline ties capture, classification, dispatch, synthesis, and
// playback into the voice interaction state machine.
//
// A single event-loop goroutine owns all state. Callbacks from capture and
// playback, and results from the remote-call worker, arrive as events tagged
// with the generation they belong to; a superseded generation's late event
// is detected and discarded rather than applied.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/vizzilabs/go-vizzi/pkg/capture"
	"github.com/vizzilabs/go-vizzi/pkg/dispatch"
	"github.com/vizzilabs/go-vizzi/pkg/intent"
	"github.com/vizzilabs/go-vizzi/pkg/playback"
	"github.com/vizzilabs/go-vizzi/pkg/transcribe"
	"github.com/vizzilabs/go-vizzi/pkg/tts"
	"github.com/vizzilabs/go-vizzi/pkg/voicepref"
)

// Errors returned by Start.
var (
	// ErrNotIdle is returned when Start is called while an utterance is
	// already being processed.
	ErrNotIdle = errors.New("pipeline: not idle")

	// ErrClosed is returned after the controller has been closed.
	ErrClosed = errors.New("pipeline: closed")
)

// Config wires the controller's collaborators. All fields except the
// callbacks and Logger are required.
type Config struct {
	Capture    *capture.Session
	Sink       *transcribe.Sink
	Classifier *intent.Classifier
	Dispatcher *dispatch.Dispatcher
	Synth      tts.Provider
	Playback   *playback.Session
	Voices     voicepref.Store

	// Locale selects the transcription language.
	Locale string

	// OnChange receives every state or transcript change. Invoked from the
	// controller's event loop; keep it fast.
	OnChange func(Snapshot)

	// OnError receives stage failures as they are surfaced.
	OnError func(error)

	Logger *slog.Logger
}

// Controller is the long-lived pipeline state machine. It is the only
// component exposed to the surrounding application.
type Controller struct {
	cfg    Config
	logger *slog.Logger

	events chan event
	done   chan struct{}
	once   sync.Once

	// Owned by the event loop.
	state         State
	gen           uint64
	lastErr       string
	attemptCtx    context.Context
	attemptCancel context.CancelFunc

	mu   sync.RWMutex
	snap Snapshot
}

type eventKind int

const (
	evStart eventKind = iota
	evCancel
	evResult
	evStage
	evFailed
	evSynthesized
	evPlayDone
)

type event struct {
	kind   eventKind
	gen    uint64
	result transcribe.Result
	state  State
	err    error
	audio  []byte
	reply  chan error
}

// New creates the controller and starts its event loop.
func New(cfg Config) (*Controller, error) {
	switch {
	case cfg.Capture == nil, cfg.Sink == nil, cfg.Classifier == nil,
		cfg.Dispatcher == nil, cfg.Synth == nil, cfg.Playback == nil,
		cfg.Voices == nil:
		return nil, errors.New("pipeline: incomplete configuration")
	}
	if !transcribe.LocaleSupported(cfg.Locale) {
		return nil, fmt.Errorf("pipeline: %w: %s", transcribe.ErrUnsupportedLocale, cfg.Locale)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Controller{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "pipeline"),
		events: make(chan event, 32),
		done:   make(chan struct{}),
		state:  Idle,
	}

	cfg.Playback.OnComplete = func() {
		c.post(event{kind: evPlayDone})
	}

	go c.loop()
	return c, nil
}

// Start begins a new voice interaction. Fails when the pipeline is not idle,
// when a permission is refused, or when the transcription engine cannot be
// reached.
func (c *Controller) Start() error {
	reply := make(chan error, 1)
	c.post(event{kind: evStart, reply: reply})
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrClosed
	}
}

// CancelOrStop aborts whatever the pipeline is doing and returns it to idle:
// capture is stopped and the transcript discarded, an in-flight remote call
// is cancelled, playback is halted. No-op when already idle. After it
// returns, no hardware handle is outstanding.
func (c *Controller) CancelOrStop() {
	reply := make(chan error, 1)
	c.post(event{kind: evCancel, reply: reply})
	select {
	case <-reply:
	case <-c.done:
	}
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Close stops the event loop. The pipeline is cancelled first so hardware is
// released. Safe to call multiple times.
func (c *Controller) Close() error {
	c.once.Do(func() {
		c.CancelOrStop()
		close(c.done)
	})
	return nil
}

func (c *Controller) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// loop is the single goroutine that owns pipeline state.
func (c *Controller) loop() {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

func (c *Controller) handle(ev event) {
	switch ev.kind {
	case evStart:
		ev.reply <- c.handleStart()

	case evCancel:
		c.handleCancel()
		ev.reply <- nil

	case evResult:
		if ev.gen == c.gen && c.state == Capturing {
			c.handleResult(ev.result)
		}

	case evStage:
		if ev.gen == c.gen {
			c.setState(ev.state)
		}

	case evFailed:
		if ev.gen == c.gen {
			c.fail(ev.err)
		}

	case evSynthesized:
		if ev.gen == c.gen && c.state == Synthesizing {
			c.handleSynthesized(ev.audio)
		}

	case evPlayDone:
		if c.state == Playing {
			c.toIdle()
		}
	}
}

func (c *Controller) handleStart() error {
	if c.state != Idle {
		return ErrNotIdle
	}

	c.gen++
	gen := c.gen
	c.lastErr = ""
	c.cfg.Sink.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	c.attemptCtx = ctx
	c.attemptCancel = cancel

	onResult := func(r transcribe.Result) {
		c.post(event{kind: evResult, gen: gen, result: r})
	}
	if err := c.cfg.Capture.Start(ctx, c.cfg.Locale, onResult); err != nil {
		cancel()
		c.attemptCtx = nil
		c.attemptCancel = nil
		return err
	}

	c.setState(Capturing)
	return nil
}

func (c *Controller) handleCancel() {
	if c.state == Idle {
		return
	}

	switch c.state {
	case Capturing:
		c.cfg.Capture.Stop(capture.UserCancelled)
	case Playing:
		c.cfg.Playback.Stop()
	}

	c.gen++ // superseded callbacks are discarded by generation check
	if c.attemptCancel != nil {
		c.attemptCancel()
		c.attemptCancel = nil
	}
	c.cfg.Sink.Reset()
	c.toIdle()
}

func (c *Controller) handleResult(r transcribe.Result) {
	if r.Err != nil {
		c.cfg.Capture.Stop(capture.EngineError)
		c.fail(r.Err)
		return
	}

	c.cfg.Sink.Apply(transcribe.Utterance{Text: r.Text, Final: r.Final})
	c.publish()

	if !r.Final {
		return
	}

	c.cfg.Capture.Stop(capture.EngineFinal)

	text := strings.TrimSpace(r.Text)
	if text == "" {
		// Nothing was said; never classify a blank utterance.
		c.cfg.Sink.Reset()
		c.toIdle()
		return
	}

	c.setState(Classifying)
	go c.process(c.attemptCtx, c.gen, text)
}

// process runs the remote stages for one finalized utterance: classify,
// dispatch, synthesize. It posts stage transitions and the final audio back
// to the event loop; the loop discards them if the attempt was superseded.
// Each stage boundary re-checks the attempt context so a cancelled utterance
// stops here instead of executing the remaining side effects; a collaborator
// that ignores cancellation and returns anyway cannot push the worker into
// the next stage.
func (c *Controller) process(ctx context.Context, gen uint64, text string) {
	in, err := c.cfg.Classifier.Classify(ctx, text)
	if err != nil {
		c.postFailure(ctx, gen, err)
		return
	}
	if ctx.Err() != nil {
		return
	}

	c.post(event{kind: evStage, gen: gen, state: Dispatching})
	res, err := c.cfg.Dispatcher.Dispatch(ctx, in, text)
	if err != nil {
		c.postFailure(ctx, gen, err)
		return
	}
	if ctx.Err() != nil {
		return
	}

	c.post(event{kind: evStage, gen: gen, state: Synthesizing})
	audio, err := c.cfg.Synth.Synthesize(ctx, tts.Job{
		Text:  res.Spoken,
		Voice: c.cfg.Voices.Get(),
	})
	if err != nil {
		c.postFailure(ctx, gen, err)
		return
	}

	c.post(event{kind: evSynthesized, gen: gen, audio: audio.Audio})
}

func (c *Controller) postFailure(ctx context.Context, gen uint64, err error) {
	if ctx.Err() != nil {
		return // cancelled attempt, nothing to surface
	}
	c.post(event{kind: evFailed, gen: gen, err: err})
}

func (c *Controller) handleSynthesized(audio []byte) {
	if err := c.cfg.Playback.Play(context.Background(), audio); err != nil {
		c.fail(err)
		return
	}
	c.setState(Playing)
}

// fail surfaces a stage error and returns to idle. Error is a transient
// state: observers see it, then the machine settles back to Idle.
func (c *Controller) fail(err error) {
	c.logger.Error("pipeline stage failed", "state", c.state.String(), "err", err)

	c.gen++
	if c.attemptCancel != nil {
		c.attemptCancel()
		c.attemptCancel = nil
	}

	c.lastErr = err.Error()
	c.setState(StateError)
	if cb := c.cfg.OnError; cb != nil {
		cb(err)
	}
	c.cfg.Sink.Reset()
	c.toIdle()
}

func (c *Controller) toIdle() {
	if c.attemptCancel != nil {
		c.attemptCancel()
		c.attemptCancel = nil
	}
	c.setState(Idle)
}

func (c *Controller) setState(s State) {
	if c.state != s {
		c.logger.Debug("state transition", "from", c.state.String(), "to", s.String())
	}
	c.state = s
	c.publish()
}

func (c *Controller) publish() {
	snap := Snapshot{
		State:      c.state,
		Transcript: c.cfg.Sink.Current().Text,
		IsPlaying:  c.state == Playing,
		LastError:  c.lastErr,
	}

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()

	if cb := c.cfg.OnChange; cb != nil {
		cb(snap)
	}
}
