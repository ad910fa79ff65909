package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vizzilabs/go-vizzi/pkg/audioio"
	"github.com/vizzilabs/go-vizzi/pkg/hardware"
	"github.com/vizzilabs/go-vizzi/pkg/transcribe"
)

func newTestSession(t *testing.T, perms Permissions) (*Session, *hardware.Guard, *audioio.MockSource, *transcribe.MockEngine) {
	t.Helper()
	guard := hardware.NewGuard(nil)
	source := audioio.NewMockSource(audioio.DefaultConfig(), nil)
	engine := transcribe.NewMockEngine()
	return NewSession(guard, source, engine, perms, nil), guard, source, engine
}

func TestStartDeniedPermissionAcquiresNothing(t *testing.T) {
	tests := []struct {
		name  string
		perms StaticPermissions
	}{
		{"mic denied", StaticPermissions{MicGranted: false, SpeechGranted: true}},
		{"speech denied", StaticPermissions{MicGranted: true, SpeechGranted: false}},
		{"both denied", StaticPermissions{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, guard, source, _ := newTestSession(t, tt.perms)

			err := s.Start(context.Background(), "en-US", nil)
			if !errors.Is(err, ErrPermissionDenied) {
				t.Fatalf("Start error = %v, want ErrPermissionDenied", err)
			}
			if !guard.Free() {
				t.Error("guard held after denied permission")
			}
			if source.Started() {
				t.Error("source started after denied permission")
			}
		})
	}
}

func TestStartEngineUnavailableReleasesGuard(t *testing.T) {
	s, guard, _, engine := newTestSession(t, Granted())
	engine.OpenErr = transcribe.ErrEngineUnavailable

	err := s.Start(context.Background(), "en-US", nil)
	if !errors.Is(err, transcribe.ErrEngineUnavailable) {
		t.Fatalf("Start error = %v, want ErrEngineUnavailable", err)
	}
	if !guard.Free() {
		t.Error("guard held after engine open failure")
	}
}

func TestStartWhileGuardBusy(t *testing.T) {
	s, guard, _, _ := newTestSession(t, Granted())

	if _, err := guard.AcquireCapture(); err != nil {
		t.Fatalf("AcquireCapture: %v", err)
	}

	if err := s.Start(context.Background(), "en-US", nil); !errors.Is(err, hardware.ErrBusy) {
		t.Fatalf("Start error = %v, want ErrBusy", err)
	}
}

func TestResultsReachConsumer(t *testing.T) {
	s, _, _, engine := newTestSession(t, Granted())

	var mu sync.Mutex
	var got []transcribe.Result
	onResult := func(r transcribe.Result) {
		mu.Lock()
		got = append(got, r)
		mu.Unlock()
	}

	if err := s.Start(context.Background(), "en-US", onResult); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(UserCancelled)

	ms := engine.Last()
	ms.Emit(transcribe.Result{Text: "where"})
	ms.Emit(transcribe.Result{Text: "where am I", Final: true})

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("got %d results, want 2", n)
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if got[0].Text != "where" || got[0].Final {
		t.Errorf("first result = %+v", got[0])
	}
	if !got[1].Final || got[1].Text != "where am I" {
		t.Errorf("final result = %+v", got[1])
	}
}

func TestStopReleasesEverythingOnce(t *testing.T) {
	s, guard, source, engine := newTestSession(t, Granted())

	if err := s.Start(context.Background(), "en-US", nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ms := engine.Last()

	// Concurrent stops from both trigger paths.
	var wg sync.WaitGroup
	for _, reason := range []StopReason{UserCancelled, EngineFinal, EngineError} {
		wg.Add(1)
		go func(r StopReason) {
			defer wg.Done()
			s.Stop(r)
		}(reason)
	}
	wg.Wait()

	if !guard.Free() {
		t.Error("guard held after Stop")
	}
	if source.Started() {
		t.Error("source running after Stop")
	}
	if ms.CancelCount() == 0 {
		t.Error("engine session not cancelled")
	}
	if s.Active() {
		t.Error("session reports active after Stop")
	}
}

func TestStartAfterStop(t *testing.T) {
	s, _, _, _ := newTestSession(t, Granted())

	if err := s.Start(context.Background(), "en-US", nil); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	s.Stop(EngineFinal)

	if err := s.Start(context.Background(), "de_DE", nil); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	s.Stop(UserCancelled)
}

func TestStartWhileActive(t *testing.T) {
	s, _, _, _ := newTestSession(t, Granted())

	if err := s.Start(context.Background(), "en-US", nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(UserCancelled)

	if err := s.Start(context.Background(), "en-US", nil); !errors.Is(err, ErrAlreadyActive) {
		t.Errorf("second Start error = %v, want ErrAlreadyActive", err)
	}
}
