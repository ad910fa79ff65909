package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/vizzilabs/go-vizzi/pkg/capture"
	"github.com/vizzilabs/go-vizzi/pkg/dispatch"
	"github.com/vizzilabs/go-vizzi/pkg/pipeline"
	"github.com/vizzilabs/go-vizzi/pkg/places"
	"github.com/vizzilabs/go-vizzi/pkg/transcribe"
	"github.com/vizzilabs/go-vizzi/pkg/tts"
	"github.com/vizzilabs/go-vizzi/pkg/voicepref"
)

// fakePipeline implements Pipeline for handler tests.
type fakePipeline struct {
	mu       sync.Mutex
	startErr error
	starts   int
	stops    int
	snap     pipeline.Snapshot
}

func (f *fakePipeline) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return f.startErr
}

func (f *fakePipeline) CancelOrStop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakePipeline) Snapshot() pipeline.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

// fakeActions implements Actions for handler tests.
type fakeActions struct {
	mu     sync.Mutex
	route  *places.Route
	opened []string
	clears int
}

func (f *fakeActions) OpenAudioSpace(name string) dispatch.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, name)
	return dispatch.Result{Spoken: "Opening " + name}
}

func (f *fakeActions) ActiveRoute() *places.Route {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.route
}

func (f *fakeActions) ClearRoute() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.route = nil
	f.clears++
}

func newTestServer(pipe *fakePipeline) (*Server, voicepref.Store) {
	voices := voicepref.NewMemoryStore()
	return NewServer("0", pipe, &fakeActions{}, voices, nil), voices
}

func newTestServerWithActions(pipe *fakePipeline, actions *fakeActions) *Server {
	return NewServer("0", pipe, actions, voicepref.NewMemoryStore(), nil)
}

func doRequest(t *testing.T, s *Server, method, path, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestGetState(t *testing.T) {
	pipe := &fakePipeline{snap: pipeline.Snapshot{State: pipeline.Capturing, Transcript: "where am"}}
	s, _ := newTestServer(pipe)

	resp := doRequest(t, s, "GET", "/api/state", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var snap pipeline.Snapshot
	decode(t, resp, &snap)
	if snap.State != pipeline.Capturing || snap.Transcript != "where am" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestPostStart(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"ok", nil, http.StatusOK},
		{"not idle", pipeline.ErrNotIdle, http.StatusConflict},
		{"permission denied", capture.ErrPermissionDenied, http.StatusForbidden},
		{"engine unavailable", transcribe.ErrEngineUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipe := &fakePipeline{startErr: tt.err}
			s, _ := newTestServer(pipe)

			resp := doRequest(t, s, "POST", "/api/start", "")
			resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if pipe.starts != 1 {
				t.Errorf("starts = %d, want 1", pipe.starts)
			}
		})
	}
}

func TestPostStop(t *testing.T) {
	pipe := &fakePipeline{}
	s, _ := newTestServer(pipe)

	resp := doRequest(t, s, "POST", "/api/stop", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if pipe.stops != 1 {
		t.Errorf("stops = %d, want 1", pipe.stops)
	}
}

func TestListVoices(t *testing.T) {
	s, voices := newTestServer(&fakePipeline{})
	if err := voices.Set(tts.VoiceFable); err != nil {
		t.Fatal(err)
	}

	resp := doRequest(t, s, "GET", "/api/voices", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var got VoicesResponse
	decode(t, resp, &got)
	if got.Current != tts.VoiceFable {
		t.Errorf("current = %q, want fable", got.Current)
	}
	if len(got.Voices) != len(tts.Voices) {
		t.Errorf("voices = %v", got.Voices)
	}
}

func TestSetVoice(t *testing.T) {
	s, voices := newTestServer(&fakePipeline{})

	resp := doRequest(t, s, "PUT", "/api/voice", `{"voice":"nova"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := voices.Get(); got != tts.VoiceNova {
		t.Errorf("stored voice = %q, want nova", got)
	}
}

func TestSetVoiceRejectsUnknown(t *testing.T) {
	s, voices := newTestServer(&fakePipeline{})

	resp := doRequest(t, s, "PUT", "/api/voice", `{"voice":"robotic"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if got := voices.Get(); got != tts.DefaultVoice {
		t.Errorf("stored voice = %q, want default untouched", got)
	}
}

func TestGetActiveRoute(t *testing.T) {
	actions := &fakeActions{route: &places.Route{
		Destination:    places.Place{Name: "Eugene Public Library"},
		DistanceMeters: 950,
	}}
	s := newTestServerWithActions(&fakePipeline{}, actions)

	resp := doRequest(t, s, "GET", "/api/route", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var route places.Route
	decode(t, resp, &route)
	if route.Destination.Name != "Eugene Public Library" || route.DistanceMeters != 950 {
		t.Errorf("route = %+v", route)
	}
}

func TestGetActiveRouteWhenNone(t *testing.T) {
	s := newTestServerWithActions(&fakePipeline{}, &fakeActions{})

	resp := doRequest(t, s, "GET", "/api/route", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestDeleteRoute(t *testing.T) {
	actions := &fakeActions{route: &places.Route{}}
	s := newTestServerWithActions(&fakePipeline{}, actions)

	resp := doRequest(t, s, "DELETE", "/api/route", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if actions.clears != 1 || actions.route != nil {
		t.Errorf("clears = %d, route = %+v", actions.clears, actions.route)
	}
}

func TestOpenAudioSpace(t *testing.T) {
	actions := &fakeActions{}
	s := newTestServerWithActions(&fakePipeline{}, actions)

	resp := doRequest(t, s, "POST", "/api/spaces/open", `{"name":"Oregon Coast"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var got map[string]string
	decode(t, resp, &got)
	if got["spoken"] != "Opening Oregon Coast" {
		t.Errorf("spoken = %q", got["spoken"])
	}
	if len(actions.opened) != 1 || actions.opened[0] != "Oregon Coast" {
		t.Errorf("opened = %v", actions.opened)
	}
}

func TestOpenAudioSpaceRequiresName(t *testing.T) {
	actions := &fakeActions{}
	s := newTestServerWithActions(&fakePipeline{}, actions)

	resp := doRequest(t, s, "POST", "/api/spaces/open", `{}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if len(actions.opened) != 0 {
		t.Errorf("opened = %v, want none", actions.opened)
	}
}

func TestWebsocketRouteRequiresUpgrade(t *testing.T) {
	s, _ := newTestServer(&fakePipeline{})

	resp := doRequest(t, s, "GET", "/ws/state", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Errorf("status = %d, want 426", resp.StatusCode)
	}
}
