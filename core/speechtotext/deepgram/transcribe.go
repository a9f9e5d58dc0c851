package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-assistant/core/audio"
	"github.com/koscakluka/ema-assistant/core/capture"
	"github.com/koscakluka/ema-assistant/core/speechtotext"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultListenURL = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"

	// closeTimeout bounds how long a stopped session waits for the final
	// results before the connection is dropped.
	closeTimeout = 3 * time.Second
)

// Recognizer streams microphone audio to the Deepgram listen endpoint. Each
// Start opens a new websocket connection.
type Recognizer struct {
	apiKey    string
	device    audio.CaptureDevice
	options   speechtotext.RecognitionOptions
	listenURL string
	dialer    *websocket.Dialer
}

type Option func(*Recognizer)

func WithAPIKey(apiKey string) Option {
	return func(r *Recognizer) { r.apiKey = apiKey }
}

func WithListenURL(listenURL string) Option {
	return func(r *Recognizer) { r.listenURL = listenURL }
}

func WithDialer(dialer *websocket.Dialer) Option {
	return func(r *Recognizer) { r.dialer = dialer }
}

func WithRecognitionOptions(opts ...speechtotext.RecognitionOption) Option {
	return func(r *Recognizer) {
		for _, opt := range opts {
			opt(&r.options)
		}
	}
}

// NewRecognizer reads the API key from DEEPGRAM_API_KEY unless [WithAPIKey]
// is given. The encoding defaults to the one reported by device.
func NewRecognizer(device audio.CaptureDevice, opts ...Option) (*Recognizer, error) {
	if device == nil {
		return nil, errors.New("no capture device")
	}

	r := &Recognizer{
		apiKey:    os.Getenv("DEEPGRAM_API_KEY"),
		device:    device,
		options:   speechtotext.DefaultRecognitionOptions(),
		listenURL: defaultListenURL,
		dialer:    websocket.DefaultDialer,
	}
	if encoding := device.EncodingInfo(); !encoding.IsZero() {
		r.options.EncodingInfo = encoding
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.apiKey == "" {
		return nil, errors.New("deepgram api key not found")
	}
	if err := checkEncoding(r.options.EncodingInfo); err != nil {
		return nil, fmt.Errorf("invalid encoding: %w", err)
	}
	return r, nil
}

func (r *Recognizer) Start(ctx context.Context, callbacks capture.Callbacks) (capture.Session, error) {
	ctx, span := tracer.Start(ctx, "start deepgram recognition")
	defer span.End()

	listenURL, err := r.url()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &capture.DeviceError{Code: capture.CodeUnknown, Err: err}
	}

	conn, _, err := r.dialer.DialContext(ctx, listenURL, http.Header{"Authorization": {"Token " + r.apiKey}})
	if err != nil {
		err = fmt.Errorf("failed to open socket connection to deepgram: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &capture.DeviceError{Code: capture.CodeNetwork, Err: err}
	}

	s := &session{conn: conn, device: r.device, callbacks: callbacks}
	if err := r.device.StartCapture(ctx, s.sendAudio); err != nil {
		_ = conn.Close()
		err = fmt.Errorf("failed to start microphone: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &capture.DeviceError{Code: capture.CodeAudioCapture, Err: err}
	}

	s.callbacks.OnStart()
	if timeout := r.options.NoSpeechTimeout; timeout > 0 {
		s.noSpeech = time.AfterFunc(timeout, s.noSpeechElapsed)
	}
	go s.read()

	return s, nil
}

func (r *Recognizer) url() (string, error) {
	listenURL, err := url.Parse(r.listenURL)
	if err != nil {
		return "", fmt.Errorf("invalid listen url: %w", err)
	}

	model := r.options.Model
	if model == "" {
		model = defaultModel
	}

	query := listenURL.Query()
	query.Set("encoding", r.options.EncodingInfo.Format.Name())
	query.Set("sample_rate", strconv.Itoa(r.options.EncodingInfo.SampleRate))
	query.Set("channels", "1")
	query.Set("model", model)
	query.Set("language", r.options.Language)
	query.Set("smart_format", "true")
	query.Set("interim_results", "true")
	query.Set("vad_events", "true")
	if r.options.Endpointing > 0 {
		query.Set("endpointing", strconv.Itoa(int(r.options.Endpointing.Milliseconds())))
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}

type session struct {
	conn      *websocket.Conn
	device    audio.CaptureDevice
	callbacks capture.Callbacks
	noSpeech  *time.Timer

	writeMu sync.Mutex

	mu       sync.Mutex
	finals   int
	heard    bool
	stopping bool
	aborted  bool

	stopDeviceOnce sync.Once
	endOnce        sync.Once
}

func (s *session) sendAudio(audio []byte) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil && !s.isClosing() {
		logger.Debug("Failed to send audio to deepgram", "error", err)
	}
}

// Stop stops the microphone and asks deepgram to flush the final results.
func (s *session) Stop() error {
	s.mu.Lock()
	if s.stopping || s.aborted {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	s.mu.Unlock()

	s.stopDevice()

	s.writeMu.Lock()
	err := s.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)})
	s.writeMu.Unlock()
	_ = s.conn.SetReadDeadline(time.Now().Add(closeTimeout))

	if err != nil {
		_ = s.conn.Close()
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}
	return nil
}

// Abort drops the connection without waiting for pending results.
func (s *session) Abort() error {
	s.mu.Lock()
	s.aborted = true
	s.mu.Unlock()

	s.stopDevice()
	return s.conn.Close()
}

func (s *session) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping || s.aborted
}

func (s *session) stopDevice() {
	s.stopDeviceOnce.Do(func() {
		if s.noSpeech != nil {
			s.noSpeech.Stop()
		}
		if err := s.device.StopCapture(); err != nil {
			logger.Warn("Failed to stop microphone", "error", err)
		}
	})
}

func (s *session) read() {
	defer s.end()

	for {
		msgType, msg, err := s.conn.ReadMessage()
		if err != nil {
			if !s.isClosing() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.callbacks.OnError(&capture.DeviceError{Code: capture.CodeNetwork, Err: err})
			}
			return
		}
		if msgType == websocket.TextMessage {
			s.process(msg)
		}
	}
}

func (s *session) process(msg []byte) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("Failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("Failed to unmarshal deepgram results", "error", err)
			return
		}
		if len(msgResp.Channel.Alternatives) == 0 {
			return
		}
		transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		if transcript == "" {
			return
		}

		s.mu.Lock()
		if !s.heard && s.noSpeech != nil {
			s.noSpeech.Stop()
		}
		s.heard = true
		result := capture.Result{
			Index:    s.finals,
			Segments: []capture.Segment{{Text: transcript, Final: msgResp.IsFinal}},
		}
		if msgResp.IsFinal {
			s.finals++
		}
		s.mu.Unlock()

		s.callbacks.OnResult(result)

	case api.TypeSpeechStartedResponse, api.TypeUtteranceEndResponse:
		logger.Debug("Deepgram voice activity", "type", parsedMsg.Type)
	}
}

func (s *session) noSpeechElapsed() {
	s.mu.Lock()
	skip := s.heard || s.stopping || s.aborted
	s.mu.Unlock()
	if skip {
		return
	}
	s.callbacks.OnError(&capture.DeviceError{Code: capture.CodeNoSpeech})
}

func (s *session) end() {
	s.endOnce.Do(func() {
		s.stopDevice()
		_ = s.conn.Close()
		s.callbacks.OnEnd()
	})
}
