package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestSynthesizeSuccess(t *testing.T) {
	wantAudio := []byte("RIFFfake-wav-bytes")
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write(wantAudio)
	}))
	defer srv.Close()

	p, err := NewOpenAI(WithAPIKey("test-key"), WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	defer p.Close()

	res, err := p.Synthesize(context.Background(), Job{Text: "Sure, here's your walking route to the library"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(res.Audio) != string(wantAudio) {
		t.Errorf("Audio = %q", res.Audio)
	}
	if res.Format.Encoding != EncodingWAV {
		t.Errorf("Encoding = %q, want wav", res.Format.Encoding)
	}

	if gotBody["model"] != ModelTTS1HD {
		t.Errorf("model = %v", gotBody["model"])
	}
	if gotBody["voice"] != DefaultVoice {
		t.Errorf("voice = %v", gotBody["voice"])
	}
	if gotBody["response_format"] != "wav" {
		t.Errorf("response_format = %v", gotBody["response_format"])
	}
	if gotBody["speed"] != 1.0 {
		t.Errorf("speed = %v", gotBody["speed"])
	}
}

func TestSynthesizeJobOverrides(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte("audio"))
	}))
	defer srv.Close()

	p, _ := NewOpenAI(WithAPIKey("test-key"), WithBaseURL(srv.URL))
	defer p.Close()

	_, err := p.Synthesize(context.Background(), Job{
		Text:   "hello",
		Voice:  VoiceNova,
		Format: EncodingPCM,
		Speed:  1.25,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if gotBody["voice"] != VoiceNova {
		t.Errorf("voice = %v", gotBody["voice"])
	}
	if gotBody["response_format"] != "pcm" {
		t.Errorf("response_format = %v", gotBody["response_format"])
	}
	if gotBody["speed"] != 1.25 {
		t.Errorf("speed = %v", gotBody["speed"])
	}
}

func TestSynthesizeRejectsBadInput(t *testing.T) {
	p, _ := NewOpenAI(WithAPIKey("test-key"))
	defer p.Close()

	if _, err := p.Synthesize(context.Background(), Job{Text: "   "}); !errors.Is(err, ErrNoText) {
		t.Errorf("blank text error = %v, want ErrNoText", err)
	}
	if _, err := p.Synthesize(context.Background(), Job{Text: "hi", Voice: "robotic"}); !errors.Is(err, ErrUnknownVoice) {
		t.Errorf("bad voice error = %v, want ErrUnknownVoice", err)
	}
}

func TestSynthesizeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	p, _ := NewOpenAI(WithAPIKey("bad"), WithBaseURL(srv.URL))
	defer p.Close()

	_, err := p.Synthesize(context.Background(), Job{Text: "hi"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if !apiErr.IsUnauthorized() {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
}

func TestSynthesizeRetriesRateLimit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("audio"))
	}))
	defer srv.Close()

	p, _ := NewOpenAI(
		WithAPIKey("test-key"),
		WithBaseURL(srv.URL),
		WithRetry(2, time.Millisecond),
	)
	defer p.Close()

	if _, err := p.Synthesize(context.Background(), Job{Text: "hi"}); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("server hits = %d, want 2", got)
	}
}

func TestNewOpenAIRequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAI(); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("error = %v, want ErrNoAPIKey", err)
	}
}

func TestValidVoice(t *testing.T) {
	for _, v := range Voices {
		if !ValidVoice(v) {
			t.Errorf("ValidVoice(%q) = false", v)
		}
	}
	if ValidVoice("hal9000") {
		t.Error("ValidVoice(hal9000) = true")
	}
}
