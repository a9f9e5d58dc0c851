package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-assistant/core/playback"
	"go.opentelemetry.io/otel/codes"
)

type websocketMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

var (
	flushMsg = websocketMessage{Type: "Flush"}
	closeMsg = websocketMessage{Type: "Close"}
)

func speakMsg(text string) websocketMessage {
	return websocketMessage{Type: "Speak", Text: text}
}

// Stream opens a speak websocket for text and returns its audio chunks in
// order. The source ends once deepgram confirmed the flush.
func (c *TextToSpeechClient) Stream(ctx context.Context, text string) (playback.ChunkSource, error) {
	ctx, span := tracer.Start(ctx, "stream deepgram speech")
	defer span.End()

	streamURL, err := c.url(c.streamURL, url.Values{
		"encoding":    {c.encoding.Format.Name()},
		"sample_rate": {strconv.Itoa(c.encoding.SampleRate)},
		"container":   {"none"},
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	conn, _, err := c.dialer.DialContext(ctx, streamURL, http.Header{"Authorization": {"token " + c.apiKey}})
	if err != nil {
		err = fmt.Errorf("failed to open socket connection to deepgram: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	source := &chunkSource{conn: conn}
	source.stopWatch = context.AfterFunc(ctx, func() { _ = conn.Close() })

	if err := source.write(speakMsg(text)); err != nil {
		_ = source.Close()
		return nil, fmt.Errorf("failed to send text: %w", err)
	}
	if err := source.write(flushMsg); err != nil {
		_ = source.Close()
		return nil, fmt.Errorf("failed to flush text: %w", err)
	}
	return source, nil
}

func (c *TextToSpeechClient) url(base string, query url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid speak url: %w", err)
	}
	values := u.Query()
	for key, value := range query {
		values[key] = value
	}
	values.Set("model", c.Voice())
	u.RawQuery = values.Encode()
	return u.String(), nil
}

type chunkSource struct {
	conn      *websocket.Conn
	stopWatch func() bool

	writeMu   sync.Mutex
	closeOnce sync.Once
	flushed   bool
}

func (s *chunkSource) Next(ctx context.Context) ([]byte, error) {
	if s.flushed {
		return nil, io.EOF
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msgType, msg, err := s.conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("failed to read speech: %w", err)
		}

		switch msgType {
		case websocket.BinaryMessage:
			if len(msg) > 0 {
				return msg, nil
			}
		case websocket.TextMessage:
			var parsedMsg struct {
				Type        string `json:"type"`
				Description string `json:"description"`
			}
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				logger.Debug("Failed to unmarshal deepgram message", "error", err)
				continue
			}

			switch parsedMsg.Type {
			case "Flushed":
				s.flushed = true
				return nil, io.EOF
			case "Warning":
				logger.Warn("Deepgram speak warning", "description", parsedMsg.Description)
			case "Error":
				return nil, errors.New("deepgram speak error: " + parsedMsg.Description)
			}
		}
	}
}

func (s *chunkSource) write(msg websocketMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}

func (s *chunkSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.stopWatch != nil {
			s.stopWatch()
		}
		if writeErr := s.write(closeMsg); writeErr != nil {
			logger.Debug("Failed to send close message", "error", writeErr)
		}
		err = s.conn.Close()
	})
	return err
}
