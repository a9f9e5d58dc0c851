package assistant

// Messages are the lines the assistant speaks or shows on its own behalf.
type Messages struct {
	MicrophoneError      string
	ClassificationFailed string
	RateLimited          string
	PlaybackFailed       string
}

func DefaultMessages() Messages {
	return Messages{
		MicrophoneError:      "Microphone error. Please check your microphone and try again.",
		ClassificationFailed: "Sorry, something went wrong. Please try again.",
		RateLimited:          "Sorry, I'm getting too many requests right now. Please try again in a moment.",
		PlaybackFailed:       "Audio playback failed.",
	}
}
