// Package dispatch executes the side effect of a classified intent and
// produces the phrase to speak back to the user.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vizzilabs/go-vizzi/pkg/intent"
	"github.com/vizzilabs/go-vizzi/pkg/llm"
	"github.com/vizzilabs/go-vizzi/pkg/places"
)

// personaPrompt is the fixed persona instruction for general queries.
const personaPrompt = "You are Vizzi, a visual guide for the visually impaired. Please respond with relevant responses to the users queries that are excessively concise and factual"

// Result is the outcome of dispatching one intent.
type Result struct {
	// Spoken is the phrase to synthesize and play back.
	Spoken string

	// Route is the computed walking route, if any. Navigation only; its
	// absence is not a dispatch failure.
	Route *places.Route
}

// Dispatcher routes a resolved intent to its side effect.
type Dispatcher struct {
	provider llm.Provider
	searcher places.Searcher
	router   places.Router
	location places.LocationProvider
	model    string
	logger   *slog.Logger

	// OnAudioSpace is invoked when an audio-space action is dispatched.
	OnAudioSpace func(name string)

	mu        sync.RWMutex
	lastRoute *places.Route
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithModel overrides the chat model for general queries.
func WithModel(model string) Option {
	return func(d *Dispatcher) { d.model = model }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// New creates a dispatcher over the given collaborators.
func New(provider llm.Provider, searcher places.Searcher, router places.Router, location places.LocationProvider, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		provider: provider,
		searcher: searcher,
		router:   router,
		location: location,
		model:    "gpt-4o",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dispatch")
	return d
}

// Dispatch executes the intent and returns the phrase to speak.
// Navigation and Unrecognized intents never reach here with missing fields;
// Unrecognized is routed as a general query.
func (d *Dispatcher) Dispatch(ctx context.Context, in intent.Intent, utterance string) (Result, error) {
	switch in.Type {
	case intent.Navigation:
		return d.Navigation(ctx, in.Destination)
	default:
		return d.GeneralQuery(ctx, utterance)
	}
}

// Navigation searches for the destination, routes to the closest match, and
// returns a confirmation phrase. The phrase uses the raw destination text
// rather than the resolved place name, since resolution is asynchronous and
// may race with speech. A failed or empty search is not a dispatch failure;
// the confirmation is produced regardless and the missing route surfaces
// through the navigation display instead. Cancellation is the exception:
// a cancelled context aborts the dispatch with no side effect.
func (d *Dispatcher) Navigation(ctx context.Context, destination string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("dispatch: navigation: %w", err)
	}

	confirmation := fmt.Sprintf("Sure, here's your walking route to %s", destination)

	origin := places.OriginOrDefault(d.location)

	results, err := d.searcher.Search(ctx, destination)
	if err != nil || len(results) == 0 {
		if cancelled(err) {
			return Result{}, fmt.Errorf("dispatch: search: %w", err)
		}
		d.logger.Warn("place search produced no match",
			"destination", destination,
			"err", err,
		)
		d.setRoute(nil)
		return Result{Spoken: confirmation}, nil
	}

	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("dispatch: navigation: %w", err)
	}

	places.SortByProximity(results, origin)
	target := results[0]

	route, err := d.router.Route(ctx, origin, target)
	if err != nil {
		if cancelled(err) {
			return Result{}, fmt.Errorf("dispatch: route: %w", err)
		}
		d.logger.Warn("routing failed", "place", target.Name, "err", err)
		d.setRoute(nil)
		return Result{Spoken: confirmation}, nil
	}

	d.logger.Info("navigation dispatched",
		"destination", destination,
		"place", target.Name,
		"distance_m", route.DistanceMeters,
	)
	d.setRoute(route)
	return Result{Spoken: confirmation, Route: route}, nil
}

// GeneralQuery forwards the text to the chat completion call with the fixed
// persona instruction and returns the response verbatim.
func (d *Dispatcher) GeneralQuery(ctx context.Context, text string) (Result, error) {
	resp, err := d.provider.Chat(ctx, &llm.ChatRequest{
		Model: d.model,
		Messages: []llm.Message{
			llm.NewSystemMessage(personaPrompt),
			llm.NewUserMessage(text),
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("dispatch: general query: %w", err)
	}
	return Result{Spoken: resp.Content}, nil
}

// OpenAudioSpace dispatches an audio-space action by name.
func (d *Dispatcher) OpenAudioSpace(name string) Result {
	if d.OnAudioSpace != nil {
		d.OnAudioSpace(name)
	}
	d.logger.Info("audio space opened", "name", name)
	return Result{Spoken: fmt.Sprintf("Opening %s", name)}
}

// ActiveRoute returns the most recently computed route, or nil.
func (d *Dispatcher) ActiveRoute() *places.Route {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastRoute
}

// ClearRoute drops the active route.
func (d *Dispatcher) ClearRoute() {
	d.setRoute(nil)
}

func (d *Dispatcher) setRoute(r *places.Route) {
	d.mu.Lock()
	d.lastRoute = r
	d.mu.Unlock()
}

// cancelled reports whether err stems from context cancellation rather than
// the collaborator itself.
func cancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
