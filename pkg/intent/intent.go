// Package intent classifies a finalized utterance into a structured intent.
//
// The classifier asks the model for a JSON object with a queryType field and
// parses it leniently: any response that does not match a known shape becomes
// Unrecognized, which downstream routing treats as a general query. Only a
// transport failure (no response, HTTP error) is surfaced as an error.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vizzilabs/go-vizzi/pkg/llm"
)

// classifierPrompt is the fixed system instruction for the classification call.
const classifierPrompt = `You are a classifier for a users query. If you determine that the user is requesting navigation to a location, respond in the following JSON:

{
    "queryType" : "navigation",
    "destination" : "Golden Gate Bridge, San Francisco"
}

Otherwise, respond with the following JSON
{
    "queryType" : "general"
}`

// Type is the classified purpose of an utterance.
type Type int

const (
	// Unrecognized means the response did not match a known shape.
	// Routed the same as General.
	Unrecognized Type = iota

	// Navigation means the user asked to navigate somewhere.
	Navigation

	// General means any other query.
	General
)

// String returns a human-readable name for the type.
func (t Type) String() string {
	switch t {
	case Navigation:
		return "navigation"
	case General:
		return "general"
	default:
		return "unrecognized"
	}
}

// Intent is the result of classifying one utterance.
type Intent struct {
	Type Type

	// Destination is set only for Navigation intents.
	Destination string
}

// Classifier turns a finalized transcript into an Intent via a JSON-mode
// completion call.
type Classifier struct {
	provider llm.Provider
	model    string
	logger   *slog.Logger
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithModel overrides the classification model.
func WithModel(model string) ClassifierOption {
	return func(c *Classifier) { c.model = model }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ClassifierOption {
	return func(c *Classifier) { c.logger = logger }
}

// NewClassifier creates a classifier over the given provider.
func NewClassifier(provider llm.Provider, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		provider: provider,
		model:    "gpt-4o",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "intent.classifier")
	return c
}

// Classify sends the utterance to the classification call and parses the
// structured response. A transport failure is returned as an error; every
// parse problem degrades to Unrecognized instead.
func (c *Classifier) Classify(ctx context.Context, utterance string) (Intent, error) {
	resp, err := c.provider.Chat(ctx, &llm.ChatRequest{
		Model: c.model,
		Messages: []llm.Message{
			llm.NewSystemMessage(classifierPrompt),
			llm.NewUserMessage(utterance),
		},
		JSONMode: true,
	})
	if err != nil {
		return Intent{}, fmt.Errorf("intent: classify: %w", err)
	}

	intent := parseResponse(resp.Content)
	c.logger.Debug("classified utterance",
		"type", intent.Type.String(),
		"destination", intent.Destination,
	)
	return intent, nil
}

// parseResponse maps the raw response body onto an Intent.
func parseResponse(body string) Intent {
	var raw map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return Intent{Type: Unrecognized}
	}

	queryType, ok := raw["queryType"].(string)
	if !ok {
		return Intent{Type: Unrecognized}
	}

	switch queryType {
	case "navigation":
		dest, ok := raw["destination"].(string)
		if !ok || strings.TrimSpace(dest) == "" {
			return Intent{Type: Unrecognized}
		}
		return Intent{Type: Navigation, Destination: dest}

	case "general":
		return Intent{Type: General}

	default:
		return Intent{Type: Unrecognized}
	}
}
