package texttospeech

import (
	"net/http"

	"github.com/koscakluka/ema-assistant/core/audio"
)

// SpeechOptions are shared by streaming and clip synthesizers.
type SpeechOptions struct {
	APIKey       string
	Voice        string
	EncodingInfo audio.EncodingInfo
	HTTPClient   *http.Client
}

type SpeechOption func(*SpeechOptions)

func WithAPIKey(apiKey string) SpeechOption {
	return func(o *SpeechOptions) { o.APIKey = apiKey }
}

func WithVoice(voice string) SpeechOption {
	return func(o *SpeechOptions) { o.Voice = voice }
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SpeechOption {
	return func(o *SpeechOptions) {
		if encodingInfo.IsZero() {
			logger.Warn("Ignoring empty encoding info")
			return
		}
		o.EncodingInfo = encodingInfo
	}
}

// WithHTTPClient sets the client used for non-streaming requests, for
// example one dialing through a proxy.
func WithHTTPClient(client *http.Client) SpeechOption {
	return func(o *SpeechOptions) { o.HTTPClient = client }
}
