package pipeline

// State is the controller's position in the voice interaction loop.
type State int

const (
	// Idle means no utterance is being processed.
	Idle State = iota

	// Capturing means the microphone is live and transcripts are streaming.
	Capturing

	// Classifying means the finalized utterance is being classified.
	Classifying

	// Dispatching means the intent's side effect is executing.
	Dispatching

	// Synthesizing means the response phrase is being converted to audio.
	Synthesizing

	// Playing means synthesized audio is playing on the speaker.
	Playing

	// StateError is a transient state entered when a stage fails; the
	// controller surfaces the error and returns to Idle.
	StateError
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Classifying:
		return "classifying"
	case Dispatching:
		return "dispatching"
	case Synthesizing:
		return "synthesizing"
	case Playing:
		return "playing"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is the observable pipeline state exposed to the surrounding
// application. The consumer is a pure observer; it never participates in
// pipeline logic.
type Snapshot struct {
	State      State  `json:"state"`
	Transcript string `json:"transcript"`
	IsPlaying  bool   `json:"is_playing"`

	// LastError is the message from the most recent failed interaction.
	// Cleared when a new interaction starts.
	LastError string `json:"last_error,omitempty"`
}
