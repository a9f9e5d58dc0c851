package llms

import (
	"errors"
	"strings"
	"testing"

	"github.com/koscakluka/ema-assistant/core/intent"
)

func TestDecodePayload(t *testing.T) {
	testCases := map[string]string{
		"plain":  `{"action":"playback_control","params":{"command":"pause"},"reply":"Pausing"}`,
		"fenced": "```json\n{\"action\":\"playback_control\",\"params\":{\"command\":\"pause\"},\"reply\":\"Pausing\"}\n```",
	}
	for name, content := range testCases {
		t.Run(name, func(t *testing.T) {
			payload, err := DecodePayload(content)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if payload.Action == nil || *payload.Action != "playback_control" {
				t.Fatalf("unexpected action %v", payload.Action)
			}
			if payload.Params.Command != "pause" || payload.Reply == nil || *payload.Reply != "Pausing" {
				t.Fatalf("unexpected payload %+v", payload)
			}
		})
	}
}

func TestDecodePayloadMalformed(t *testing.T) {
	for _, content := range []string{"", "sure, pausing now", "```\n```"} {
		if _, err := DecodePayload(content); !errors.Is(err, intent.ErrMalformedResponse) {
			t.Fatalf("%q: expected malformed response, got %v", content, err)
		}
	}
}

func TestInstructionsListEveryKind(t *testing.T) {
	for _, kind := range intent.Kinds() {
		if !strings.Contains(Instructions, string(kind)) {
			t.Fatalf("expected instructions to mention %q", kind)
		}
	}
}

func TestUserPromptCarriesContext(t *testing.T) {
	prompt := UserPrompt("pause karo", intent.Context{ActivePanel: "player"})
	if !strings.Contains(prompt, `"utterance":"pause karo"`) || !strings.Contains(prompt, `"active_panel":"player"`) {
		t.Fatalf("unexpected prompt %s", prompt)
	}
}
