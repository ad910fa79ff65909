package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vizzilabs/go-vizzi/pkg/audioio"
	"github.com/vizzilabs/go-vizzi/pkg/capture"
	"github.com/vizzilabs/go-vizzi/pkg/dispatch"
	"github.com/vizzilabs/go-vizzi/pkg/hardware"
	"github.com/vizzilabs/go-vizzi/pkg/intent"
	"github.com/vizzilabs/go-vizzi/pkg/llm"
	"github.com/vizzilabs/go-vizzi/pkg/places"
	"github.com/vizzilabs/go-vizzi/pkg/playback"
	"github.com/vizzilabs/go-vizzi/pkg/transcribe"
	"github.com/vizzilabs/go-vizzi/pkg/tts"
	"github.com/vizzilabs/go-vizzi/pkg/voicepref"
)

// harness assembles a controller over mocks for every collaborator.
type harness struct {
	ctrl     *Controller
	guard    *hardware.Guard
	engine   *transcribe.MockEngine
	chat     *llm.Mock
	synth    *tts.Mock
	sink     *audioio.MockSink
	play     *playback.Session
	voices   *voicepref.MemoryStore
	searcher *places.MockSearcher
	router   *places.MockRouter

	mu    sync.Mutex
	snaps []Snapshot
	errs  []error
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		guard:  hardware.NewGuard(nil),
		engine: transcribe.NewMockEngine(),
		chat:   llm.NewMock(),
		synth:  tts.NewMock(),
		voices: voicepref.NewMemoryStore(),
	}

	source := audioio.NewMockSource(audioio.DefaultConfig(), nil)
	h.sink = audioio.NewMockSink(audioio.DefaultConfig(), nil)
	h.sink.WriteDelay = 2 * time.Millisecond // keep clips audible long enough to observe Playing

	cap := capture.NewSession(h.guard, source, h.engine, capture.Granted(), nil)
	h.play = playback.NewSession(h.guard, h.sink, nil)

	h.searcher = &places.MockSearcher{
		SearchFunc: func(ctx context.Context, query string) ([]places.Place, error) {
			return []places.Place{{Name: "Eugene Public Library"}}, nil
		},
	}
	h.router = &places.MockRouter{
		RouteFunc: func(ctx context.Context, from places.Coordinate, to places.Place) (*places.Route, error) {
			return &places.Route{Destination: to}, nil
		},
	}

	ctrl, err := New(Config{
		Capture:    cap,
		Sink:       transcribe.NewSink(),
		Classifier: intent.NewClassifier(h.chat),
		Dispatcher: dispatch.New(h.chat, h.searcher, h.router, places.NoLocation{}),
		Synth:      h.synth,
		Playback:   h.play,
		Voices:     h.voices,
		Locale:     "en-US",
		OnChange: func(s Snapshot) {
			h.mu.Lock()
			h.snaps = append(h.snaps, s)
			h.mu.Unlock()
		},
		OnError: func(err error) {
			h.mu.Lock()
			h.errs = append(h.errs, err)
			h.mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.ctrl = ctrl
	t.Cleanup(func() { ctrl.Close() })
	return h
}

// classifyThenAnswer scripts the chat mock: the first call (JSON mode) gets
// the classification, later calls get the general answer.
func (h *harness) classifyThenAnswer(classification, answer string) {
	h.chat.ChatFunc = func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		if req.JSONMode {
			return &llm.ChatResponse{Content: classification}, nil
		}
		return &llm.ChatResponse{Content: answer}, nil
	}
}

func (h *harness) waitState(t *testing.T, want State) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		if h.ctrl.Snapshot().State == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("never reached state %v; now %v", want, h.ctrl.Snapshot().State)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// waitSeen waits until the state appears in the change history. Unlike
// waitState it cannot miss a short-lived state.
func (h *harness) waitSeen(t *testing.T, want State) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for !h.sawState(want) {
		select {
		case <-deadline:
			t.Fatalf("state %v never observed", want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (h *harness) sawState(want State) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.snaps {
		if s.State == want {
			return true
		}
	}
	return false
}

// playingSnap returns the first snapshot observed in the Playing state.
func (h *harness) playingSnap() (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.snaps {
		if s.State == Playing {
			return s, true
		}
	}
	return Snapshot{}, false
}

func (h *harness) errorCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.errs)
}

func TestNavigationUtteranceEndToEnd(t *testing.T) {
	h := newHarness(t)
	h.classifyThenAnswer(`{"queryType":"navigation","destination":"the library"}`, "")

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, Capturing)

	sess := h.engine.Last()
	sess.Emit(transcribe.Result{Text: "navigate"})
	sess.Emit(transcribe.Result{Text: "navigate to the library"})
	sess.Emit(transcribe.Result{Text: "navigate to the library", Final: true})

	h.waitSeen(t, Playing)

	if snap, ok := h.playingSnap(); !ok || !snap.IsPlaying {
		t.Errorf("Playing snapshot = %+v, want IsPlaying", snap)
	}
	if got := h.synth.LastCall().Job.Text; got != "Sure, here's your walking route to the library" {
		t.Errorf("synthesized text = %q", got)
	}

	// Natural completion returns to idle with the hardware free.
	h.waitState(t, Idle)
	if !h.guard.Free() {
		t.Error("guard held after playback completed")
	}
	if h.errorCount() != 0 {
		t.Errorf("unexpected errors: %v", h.errs)
	}
}

func TestGeneralUtteranceSpeaksAnswer(t *testing.T) {
	h := newHarness(t)
	h.classifyThenAnswer(`{"queryType":"general"}`, "It is sunny and 72 degrees.")

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, Capturing)

	h.engine.Last().Emit(transcribe.Result{Text: "what's the weather", Final: true})

	h.waitSeen(t, Playing)
	if got := h.synth.LastCall().Job.Text; got != "It is sunny and 72 degrees." {
		t.Errorf("synthesized text = %q", got)
	}
}

func TestSynthesisReadsVoicePreference(t *testing.T) {
	h := newHarness(t)
	h.classifyThenAnswer(`{"queryType":"general"}`, "ok")
	if err := h.voices.Set(tts.VoiceNova); err != nil {
		t.Fatal(err)
	}

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, Capturing)
	h.engine.Last().Emit(transcribe.Result{Text: "hello", Final: true})
	h.waitSeen(t, Playing)

	if got := h.synth.LastCall().Job.Voice; got != tts.VoiceNova {
		t.Errorf("synthesis voice = %q, want nova", got)
	}
}

func TestPartialUpdatesReplaceTranscript(t *testing.T) {
	h := newHarness(t)

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, Capturing)

	sess := h.engine.Last()
	sess.Emit(transcribe.Result{Text: "nav"})
	sess.Emit(transcribe.Result{Text: "navigate home"})

	deadline := time.After(2 * time.Second)
	for h.ctrl.Snapshot().Transcript != "navigate home" {
		select {
		case <-deadline:
			t.Fatalf("Transcript = %q, want replacement", h.ctrl.Snapshot().Transcript)
		case <-time.After(5 * time.Millisecond):
		}
	}
	if strings.Contains(h.ctrl.Snapshot().Transcript, "navnavigate") {
		t.Error("transcript was appended, not replaced")
	}
}

func TestEmptyFinalTranscriptGoesIdleWithoutClassification(t *testing.T) {
	h := newHarness(t)

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, Capturing)

	h.engine.Last().Emit(transcribe.Result{Text: "   ", Final: true})

	h.waitState(t, Idle)
	if !h.guard.Free() {
		t.Error("guard held after empty final")
	}
	if got := h.chat.CallCount("Chat"); got != 0 {
		t.Errorf("classification calls = %d, want 0", got)
	}
	if h.ctrl.Snapshot().Transcript != "" {
		t.Errorf("Transcript = %q, want cleared", h.ctrl.Snapshot().Transcript)
	}
}

func TestClassifierTransportErrorSurfacesAndIdles(t *testing.T) {
	h := newHarness(t)
	wantErr := errors.New("connection reset")
	h.chat.ChatFunc = func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		return nil, wantErr
	}

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, Capturing)
	h.engine.Last().Emit(transcribe.Result{Text: "navigate home", Final: true})

	h.waitState(t, Idle)
	if !h.sawState(StateError) {
		t.Error("Error state never observed")
	}
	if h.errorCount() == 0 {
		t.Error("OnError never invoked")
	}
	if got := h.synth.CallCount("Synthesize"); got != 0 {
		t.Errorf("synthesis calls = %d, want 0 after classifier failure", got)
	}
	if !h.guard.Free() {
		t.Error("guard held after classifier failure")
	}
	if h.ctrl.Snapshot().LastError == "" {
		t.Error("LastError empty after failed interaction")
	}

	// A fresh interaction clears the surfaced error.
	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	h.waitState(t, Capturing)
	if got := h.ctrl.Snapshot().LastError; got != "" {
		t.Errorf("LastError = %q after restart, want cleared", got)
	}
}

func TestSynthesisFailureNeverAcquiresPlayback(t *testing.T) {
	h := newHarness(t)
	h.classifyThenAnswer(`{"queryType":"general"}`, "answer")
	h.synth.SynthesizeFunc = func(ctx context.Context, job tts.Job) (*tts.AudioResult, error) {
		return nil, errors.New("tts unavailable")
	}

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, Capturing)
	h.engine.Last().Emit(transcribe.Result{Text: "hello", Final: true})

	h.waitState(t, Idle)
	if !h.sawState(StateError) {
		t.Error("Error state never observed")
	}
	if h.play.Playing() {
		t.Error("playback active after synthesis failure")
	}
	if !h.guard.Free() {
		t.Error("guard held after synthesis failure")
	}
}

func TestCancelDuringCapture(t *testing.T) {
	h := newHarness(t)

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, Capturing)
	h.engine.Last().Emit(transcribe.Result{Text: "half an utter"})

	h.ctrl.CancelOrStop()

	h.waitState(t, Idle)
	if !h.guard.Free() {
		t.Error("guard held after cancel")
	}
	if h.ctrl.Snapshot().Transcript != "" {
		t.Errorf("Transcript = %q, want discarded", h.ctrl.Snapshot().Transcript)
	}
	if got := h.chat.CallCount("Chat"); got != 0 {
		t.Errorf("classification calls = %d after cancel", got)
	}
}

func TestCancelWhileClassifyingSkipsRemainingStages(t *testing.T) {
	h := newHarness(t)

	// Classifier hangs until released, ignoring cancellation, then returns
	// a navigation intent as if nothing happened.
	release := make(chan struct{})
	h.chat.ChatFunc = func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		<-release
		return &llm.ChatResponse{Content: `{"queryType":"navigation","destination":"the library"}`}, nil
	}

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, Capturing)
	h.engine.Last().Emit(transcribe.Result{Text: "navigate to the library", Final: true})
	h.waitState(t, Classifying)

	h.ctrl.CancelOrStop()
	h.waitState(t, Idle)

	close(release)

	// Give the abandoned worker time to misbehave if it were going to.
	time.Sleep(100 * time.Millisecond)

	if got := len(h.searcher.Queries()); got != 0 {
		t.Errorf("place searches after cancel = %d, want 0", got)
	}
	if got := h.router.CallCount(); got != 0 {
		t.Errorf("route calls after cancel = %d, want 0", got)
	}
	if got := h.synth.CallCount("Synthesize"); got != 0 {
		t.Errorf("synthesis calls after cancel = %d, want 0", got)
	}
	if got := h.ctrl.Snapshot().State; got != Idle {
		t.Errorf("state = %v after cancelled worker finished, want Idle", got)
	}
	if !h.guard.Free() {
		t.Error("guard held after cancel during classification")
	}
}

func TestCancelWhileSynthesizingNeverPlays(t *testing.T) {
	h := newHarness(t)
	h.classifyThenAnswer(`{"queryType":"general"}`, "an answer")

	release := make(chan struct{})
	h.synth.SynthesizeFunc = func(ctx context.Context, job tts.Job) (*tts.AudioResult, error) {
		<-release
		return &tts.AudioResult{Audio: make([]byte, 960)}, nil
	}

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, Capturing)
	h.engine.Last().Emit(transcribe.Result{Text: "talk to me", Final: true})
	h.waitState(t, Synthesizing)

	h.ctrl.CancelOrStop()
	h.waitState(t, Idle)

	close(release)
	time.Sleep(100 * time.Millisecond)

	if h.play.Playing() {
		t.Error("playback started for a cancelled utterance")
	}
	if h.sawState(Playing) {
		t.Error("Playing observed after cancel during synthesis")
	}
	if !h.guard.Free() {
		t.Error("guard held after cancel during synthesis")
	}
}

func TestStopMidPlaying(t *testing.T) {
	h := newHarness(t)
	h.classifyThenAnswer(`{"queryType":"general"}`, strings.Repeat("a long answer ", 20))

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, Capturing)
	h.engine.Last().Emit(transcribe.Result{Text: "talk to me", Final: true})
	h.waitState(t, Playing)

	h.ctrl.CancelOrStop()

	h.waitState(t, Idle)
	if h.play.Playing() {
		t.Error("playback still active after stop")
	}
	if !h.guard.Free() {
		t.Error("guard held after stop mid-playing")
	}
}

func TestEngineErrorReturnsToIdle(t *testing.T) {
	h := newHarness(t)

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, Capturing)
	h.engine.Last().Emit(transcribe.Result{Err: errors.New("stream dropped")})

	h.waitState(t, Idle)
	if !h.guard.Free() {
		t.Error("guard held after engine error")
	}
	if h.errorCount() == 0 {
		t.Error("engine error not surfaced")
	}
	if got := h.chat.CallCount("Chat"); got != 0 {
		t.Errorf("classification calls = %d after engine error", got)
	}
}

func TestStartWhileBusy(t *testing.T) {
	h := newHarness(t)

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, Capturing)

	if err := h.ctrl.Start(); !errors.Is(err, ErrNotIdle) {
		t.Errorf("second Start = %v, want ErrNotIdle", err)
	}
}

func TestStartAfterCompleteInteraction(t *testing.T) {
	h := newHarness(t)
	h.classifyThenAnswer(`{"queryType":"general"}`, "ok")

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, Capturing)
	h.engine.Last().Emit(transcribe.Result{Text: "hi", Final: true})
	h.waitState(t, Idle)

	// The machine is long-lived; a fresh interaction starts cleanly.
	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	h.waitState(t, Capturing)
}

func TestUnrecognizedRoutedAsGeneral(t *testing.T) {
	h := newHarness(t)
	h.classifyThenAnswer(`{}`, "general answer")

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, Capturing)
	h.engine.Last().Emit(transcribe.Result{Text: "mumble mumble", Final: true})

	h.waitSeen(t, Playing)
	if got := h.synth.LastCall().Job.Text; got != "general answer" {
		t.Errorf("synthesized text = %q", got)
	}
	// Two chat calls: classification, then the general query.
	if got := h.chat.CallCount("Chat"); got != 2 {
		t.Errorf("Chat calls = %d, want 2", got)
	}
}

func TestNewRejectsUnsupportedLocale(t *testing.T) {
	_, err := New(Config{
		Capture:    capture.NewSession(hardware.NewGuard(nil), audioio.NewMockSource(audioio.DefaultConfig(), nil), transcribe.NewMockEngine(), capture.Granted(), nil),
		Sink:       transcribe.NewSink(),
		Classifier: intent.NewClassifier(llm.NewMock()),
		Dispatcher: dispatch.New(llm.NewMock(), &places.MockSearcher{}, &places.MockRouter{}, places.NoLocation{}),
		Synth:      tts.NewMock(),
		Playback:   playback.NewSession(hardware.NewGuard(nil), audioio.NewMockSink(audioio.DefaultConfig(), nil), nil),
		Voices:     voicepref.NewMemoryStore(),
		Locale:     "zz-ZZ",
	})
	if err == nil {
		t.Error("New with unsupported locale succeeded")
	}
}
