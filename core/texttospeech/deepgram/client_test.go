package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-assistant/core/texttospeech"
)

func newTestClient(t *testing.T, streamURL, clipURL string) *TextToSpeechClient {
	t.Helper()
	client, err := NewTextToSpeechClient(
		WithEndpoints(streamURL, clipURL),
		WithSpeechOptions(texttospeech.WithAPIKey("test-key"), texttospeech.WithVoice("aura-2-apollo-en")),
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func TestStreamYieldsChunksUntilFlushed(t *testing.T) {
	received := make(chan websocketMessage, 8)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("model") != "aura-2-apollo-en" || r.URL.Query().Get("container") != "none" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var msg websocketMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			received <- msg
			switch msg.Type {
			case "Flush":
				for _, chunk := range []string{"one", "two", "three"} {
					_ = conn.WriteMessage(websocket.BinaryMessage, []byte(chunk))
				}
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Flushed","sequence_id":0}`))
			case "Close":
				return
			}
		}
	}))
	defer server.Close()

	client := newTestClient(t, "ws"+strings.TrimPrefix(server.URL, "http"), server.URL)
	source, err := client.Stream(context.Background(), "Pausing")
	if err != nil {
		t.Fatalf("failed to stream: %v", err)
	}

	var chunks []string
	for {
		chunk, err := source.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		chunks = append(chunks, string(chunk))
	}
	if err := source.Close(); err != nil {
		t.Logf("close: %v", err)
	}

	if strings.Join(chunks, ",") != "one,two,three" {
		t.Fatalf("unexpected chunks %v", chunks)
	}
	if first := <-received; first.Type != "Speak" || first.Text != "Pausing" {
		t.Fatalf("expected speak message first, got %+v", first)
	}
	if second := <-received; second.Type != "Flush" {
		t.Fatalf("expected flush message, got %+v", second)
	}
}

func TestStreamStopsWhenContextIsCancelled(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client := newTestClient(t, "ws"+strings.TrimPrefix(server.URL, "http"), server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	source, err := client.Stream(ctx, "hello")
	if err != nil {
		t.Fatalf("failed to stream: %v", err)
	}
	defer source.Close()

	cancel()
	if _, err := source.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestRenderReturnsClipBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token test-key" || r.URL.Query().Get("encoding") != "mp3" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body struct {
			Text string `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte("mp3:" + body.Text))
	}))
	defer server.Close()

	client := newTestClient(t, "ws://unused", server.URL)
	clip, err := client.Render(context.Background(), "Louder")
	if err != nil {
		t.Fatalf("failed to render: %v", err)
	}
	defer clip.Close()

	data, _ := io.ReadAll(clip)
	if string(data) != "mp3:Louder" {
		t.Fatalf("unexpected clip %q", data)
	}
}

func TestRenderReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusPaymentRequired)
	}))
	defer server.Close()

	client := newTestClient(t, "ws://unused", server.URL)
	if _, err := client.Render(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "quota") {
		t.Fatalf("expected status error with body, got %v", err)
	}
}

func TestVoices(t *testing.T) {
	client := newTestClient(t, "ws://unused", "http://unused")
	if err := client.SetVoice("not-a-voice"); err == nil {
		t.Fatalf("expected unknown voice to be rejected")
	}
	if err := client.SetVoice("aura-luna-en"); err != nil || client.Voice() != "aura-luna-en" {
		t.Fatalf("expected voice to change, got %q (%v)", client.Voice(), err)
	}
	if len(GetAvailableVoices()) == 0 || !IsValidVoice(string(defaultVoice)) {
		t.Fatalf("expected default voice to be available")
	}
}
