package deepgram

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-assistant/core/audio"
	"github.com/koscakluka/ema-assistant/core/texttospeech"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultStreamURL = "wss://api.deepgram.com/v1/speak"
	defaultClipURL   = "https://api.deepgram.com/v1/speak"
)

// TextToSpeechClient speaks through the Deepgram speak endpoints. Stream
// makes it a [playback.Synthesizer] and Render a [playback.Renderer].
type TextToSpeechClient struct {
	apiKey     string
	encoding   audio.EncodingInfo
	httpClient *http.Client
	dialer     *websocket.Dialer
	streamURL  string
	clipURL    string

	mu    sync.Mutex
	voice deepgramVoice
}

type ClientOption func(*TextToSpeechClient)

// WithEndpoints overrides the websocket and REST speak URLs.
func WithEndpoints(streamURL, clipURL string) ClientOption {
	return func(c *TextToSpeechClient) {
		c.streamURL = streamURL
		c.clipURL = clipURL
	}
}

func WithSpeechOptions(opts ...texttospeech.SpeechOption) ClientOption {
	return func(c *TextToSpeechClient) {
		options := texttospeech.SpeechOptions{
			APIKey:       c.apiKey,
			Voice:        string(c.voice),
			EncodingInfo: c.encoding,
			HTTPClient:   c.httpClient,
		}
		for _, opt := range opts {
			opt(&options)
		}
		c.apiKey = options.APIKey
		c.voice = deepgramVoice(options.Voice)
		c.encoding = options.EncodingInfo
		c.httpClient = options.HTTPClient
	}
}

// NewTextToSpeechClient reads the API key from DEEPGRAM_API_KEY unless one
// is passed through [WithSpeechOptions].
func NewTextToSpeechClient(opts ...ClientOption) (*TextToSpeechClient, error) {
	client := &TextToSpeechClient{
		apiKey:     os.Getenv("DEEPGRAM_API_KEY"),
		encoding:   audio.GetDefaultEncodingInfo(),
		httpClient: http.DefaultClient,
		dialer:     websocket.DefaultDialer,
		streamURL:  defaultStreamURL,
		clipURL:    defaultClipURL,
		voice:      defaultVoice,
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		return nil, errors.New("deepgram api key not found")
	}
	if !IsValidVoice(string(client.voice)) {
		return nil, fmt.Errorf("invalid voice %q", client.voice)
	}
	if err := client.encoding.Validate(); err != nil {
		return nil, fmt.Errorf("invalid encoding: %w", err)
	}

	transport := client.httpClient.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	client.httpClient = &http.Client{
		Transport: otelhttp.NewTransport(transport),
		Timeout:   client.httpClient.Timeout,
	}
	return client, nil
}

func (c *TextToSpeechClient) SetVoice(voice string) error {
	if !IsValidVoice(voice) {
		return fmt.Errorf("invalid voice %q", voice)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.voice = deepgramVoice(voice)
	return nil
}

func (c *TextToSpeechClient) Voice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.voice)
}
