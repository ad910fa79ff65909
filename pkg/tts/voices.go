package tts

// Voice options for the OpenAI speech endpoint.
const (
	VoiceAlloy   = "alloy"   // Neutral voice
	VoiceEcho    = "echo"    // Male voice
	VoiceFable   = "fable"   // British accent
	VoiceOnyx    = "onyx"    // Deep male voice
	VoiceNova    = "nova"    // Female voice
	VoiceShimmer = "shimmer" // Soft female voice
)

// DefaultVoice is used when no preference has been stored.
const DefaultVoice = VoiceAlloy

// Voices lists the selectable voice IDs in display order.
var Voices = []string{
	VoiceAlloy,
	VoiceEcho,
	VoiceFable,
	VoiceOnyx,
	VoiceNova,
	VoiceShimmer,
}

// ValidVoice reports whether id names a selectable voice.
func ValidVoice(id string) bool {
	for _, v := range Voices {
		if v == id {
			return true
		}
	}
	return false
}
