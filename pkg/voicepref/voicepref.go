// Package voicepref persists the user's synthesis voice selection.
//
// The preference survives process restarts and is read at synthesis time, so
// changing it applies to the next spoken response without restarting the
// pipeline.
package voicepref

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vizzilabs/go-vizzi/pkg/tts"
)

// Store persists a voice selection.
type Store interface {
	// Get returns the selected voice, falling back to the default when
	// nothing has been stored.
	Get() string

	// Set records a new voice selection.
	Set(voice string) error
}

// FileStore is a JSON-file-backed Store.
type FileStore struct {
	path string

	mu    sync.Mutex
	voice string
}

type prefFile struct {
	Voice string `json:"voice"`
}

// NewFileStore creates a store backed by the given file path.
// A missing or unreadable file yields the default voice.
func NewFileStore(path string) *FileStore {
	s := &FileStore{path: path, voice: tts.DefaultVoice}

	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var pf prefFile
	if json.Unmarshal(data, &pf) == nil && tts.ValidVoice(pf.Voice) {
		s.voice = pf.Voice
	}
	return s
}

// Get returns the selected voice.
func (s *FileStore) Get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voice
}

// Set records and persists a new voice selection.
func (s *FileStore) Set(voice string) error {
	if !tts.ValidVoice(voice) {
		return fmt.Errorf("voicepref: %w: %s", tts.ErrUnknownVoice, voice)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(prefFile{Voice: voice})
	if err != nil {
		return fmt.Errorf("voicepref: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("voicepref: create directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("voicepref: write file: %w", err)
	}

	s.voice = voice
	return nil
}

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu    sync.Mutex
	voice string
}

// NewMemoryStore creates a store holding the default voice.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{voice: tts.DefaultVoice}
}

// Get returns the selected voice.
func (s *MemoryStore) Get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voice
}

// Set records a new voice selection.
func (s *MemoryStore) Set(voice string) error {
	if !tts.ValidVoice(voice) {
		return fmt.Errorf("voicepref: %w: %s", tts.ErrUnknownVoice, voice)
	}
	s.mu.Lock()
	s.voice = voice
	s.mu.Unlock()
	return nil
}

// Compile-time interface checks.
var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
