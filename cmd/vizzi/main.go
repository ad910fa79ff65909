// Command vizzi runs the hands-free voice assistant: microphone capture,
// streaming transcription, intent classification, dispatch, speech
// synthesis, and playback, with an HTTP control surface.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/vizzilabs/go-vizzi/internal/config"
	"github.com/vizzilabs/go-vizzi/internal/log"
	"github.com/vizzilabs/go-vizzi/pkg/audioio"
	"github.com/vizzilabs/go-vizzi/pkg/capture"
	"github.com/vizzilabs/go-vizzi/pkg/dispatch"
	"github.com/vizzilabs/go-vizzi/pkg/hardware"
	"github.com/vizzilabs/go-vizzi/pkg/intent"
	"github.com/vizzilabs/go-vizzi/pkg/llm"
	"github.com/vizzilabs/go-vizzi/pkg/pipeline"
	"github.com/vizzilabs/go-vizzi/pkg/places"
	"github.com/vizzilabs/go-vizzi/pkg/playback"
	"github.com/vizzilabs/go-vizzi/pkg/transcribe"
	"github.com/vizzilabs/go-vizzi/pkg/tts"
	"github.com/vizzilabs/go-vizzi/pkg/voicepref"
	"github.com/vizzilabs/go-vizzi/pkg/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	log.Init(config.LogLevel())
	logger := log.L()
	apiKey := config.OpenAIKeyRequired()

	guard := hardware.NewGuard(logger)
	audioCfg := audioio.DefaultConfig()

	var (
		source audioio.Source
		sink   audioio.Sink
		err    error
	)
	if config.UseMockAudio() {
		logger.Info("using mock audio backend")
		source = audioio.NewMockSource(audioCfg, logger)
		sink = audioio.NewMockSink(audioCfg, logger)
	} else {
		source, err = audioio.NewPortAudioSource(audioCfg, logger)
		if err != nil {
			return fmt.Errorf("open microphone: %w", err)
		}
		sink, err = audioio.NewPortAudioSink(audioCfg, logger)
		if err != nil {
			source.Close()
			return fmt.Errorf("open speaker: %w", err)
		}
	}
	defer source.Close()
	defer sink.Close()

	engine, err := transcribe.NewRealtime(apiKey, transcribe.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("transcription engine: %w", err)
	}

	provider, err := llm.NewClient(llm.WithAPIKey(apiKey), llm.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("llm client: %w", err)
	}
	defer provider.Close()

	synth, err := tts.NewOpenAI(tts.WithAPIKey(apiKey), tts.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("tts client: %w", err)
	}
	defer synth.Close()

	osm := places.NewOSM(places.WithOSMLogger(logger))
	voices := voicepref.NewFileStore(filepath.Join(config.DataDir(), "voice.json"))
	dispatcher := dispatch.New(provider, osm, osm, places.NoLocation{}, dispatch.WithLogger(logger))

	var server *web.Server

	ctrl, err := pipeline.New(pipeline.Config{
		Capture:    capture.NewSession(guard, source, engine, capture.Granted(), logger),
		Sink:       transcribe.NewSink(),
		Classifier: intent.NewClassifier(provider, intent.WithLogger(logger)),
		Dispatcher: dispatcher,
		Synth:      synth,
		Playback:   playback.NewSession(guard, sink, logger),
		Voices:     voices,
		Locale:     config.Locale(),
		OnChange: func(s pipeline.Snapshot) {
			if server != nil {
				server.PublishState(s)
			}
		},
		OnError: func(err error) {
			logger.Warn("interaction failed", "err", err)
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	defer ctrl.Close()

	server = web.NewServer(config.WebPort(), ctrl, dispatcher, voices, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("web server: %w", err)
		}
	}

	ctrl.CancelOrStop()
	return server.Shutdown()
}
