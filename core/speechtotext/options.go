package speechtotext

import (
	"time"

	"github.com/koscakluka/ema-assistant/core/audio"
)

const (
	DefaultLanguage        = "en-US"
	DefaultNoSpeechTimeout = 8 * time.Second
	DefaultEndpointing     = 300 * time.Millisecond
)

// RecognitionOptions configure continuous recognition sessions.
type RecognitionOptions struct {
	EncodingInfo audio.EncodingInfo
	Language     string
	Model        string

	// NoSpeechTimeout ends a session that produced no transcript at all.
	NoSpeechTimeout time.Duration
	Endpointing     time.Duration
}

type RecognitionOption func(*RecognitionOptions)

func DefaultRecognitionOptions() RecognitionOptions {
	return RecognitionOptions{
		EncodingInfo:    audio.GetDefaultEncodingInfo(),
		Language:        DefaultLanguage,
		NoSpeechTimeout: DefaultNoSpeechTimeout,
		Endpointing:     DefaultEndpointing,
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) RecognitionOption {
	return func(o *RecognitionOptions) {
		if !encodingInfo.IsZero() {
			o.EncodingInfo = encodingInfo
		}
	}
}

// WithLanguage sets the recognition language. Code-mixed speech works best
// with "multi" on models that support it.
func WithLanguage(language string) RecognitionOption {
	return func(o *RecognitionOptions) { o.Language = language }
}

func WithModel(model string) RecognitionOption {
	return func(o *RecognitionOptions) { o.Model = model }
}

func WithNoSpeechTimeout(timeout time.Duration) RecognitionOption {
	return func(o *RecognitionOptions) { o.NoSpeechTimeout = timeout }
}

func WithEndpointing(endpointing time.Duration) RecognitionOption {
	return func(o *RecognitionOptions) { o.Endpointing = endpointing }
}
