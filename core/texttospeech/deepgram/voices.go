package deepgram

import "slices"

type deepgramVoice string

const defaultVoice deepgramVoice = "aura-2-thalia-en"

var availableVoices = []deepgramVoice{
	"aura-2-thalia-en",
	"aura-2-andromeda-en",
	"aura-2-helena-en",
	"aura-2-apollo-en",
	"aura-2-arcas-en",
	"aura-2-aries-en",
	"aura-2-amalthea-en",
	"aura-2-orion-en",
	"aura-asteria-en",
	"aura-luna-en",
	"aura-orion-en",
}

// GetAvailableVoices lists the voice models a client accepts.
func GetAvailableVoices() []string {
	voices := make([]string, 0, len(availableVoices))
	for _, voice := range availableVoices {
		voices = append(voices, string(voice))
	}
	return voices
}

// IsValidVoice reports whether voice is one of [GetAvailableVoices].
func IsValidVoice(voice string) bool {
	return slices.Contains(availableVoices, deepgramVoice(voice))
}
