package llms

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/koscakluka/ema-assistant/core/intent"
)

// Instructions is the system prompt shared by every classifier backend.
var Instructions = `You are the intent classifier of a voice assistant.
Users speak English, Hindi or a mix of both (for example "pause karo",
"volume badhao"). Classify the utterance into exactly one action and write a
short spoken reply in the language the user used.

Respond with JSON only:
{"action": "<tag>", "params": {...}, "reply": "<short reply>"}

Action tags: ` + kindList() + `

Params (all strings, include only what applies):
- query: what to search for or play
- url: resource to open
- level: absolute volume or brightness, for example "40" or "40%"
- direction: "up" or "down" for relative volume or brightness changes
- location: place for weather
- duration: timer length in whole seconds
- command: play, pause, stop, next or previous for playback_control
- text: note body for add_note
- app_name: application the user named

Rules:
- Use search_media when the user wants to see options and play_media when
  they want something to start playing.
- Use playback_control only for media that is already playing.
- Use stop_listening when the user wants the assistant to stop or go quiet.
- Use reply_only for questions you can answer in one or two sentences.
- Use unknown when nothing fits.
- The active_panel field tells you what the user currently sees.`

func kindList() string {
	kinds := intent.Kinds()
	tags := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		tags = append(tags, string(kind))
	}
	return strings.Join(tags, ", ")
}

// UserPrompt encodes the utterance together with its UI context.
func UserPrompt(text string, uiContext intent.Context) string {
	prompt, _ := json.Marshal(struct {
		Utterance   string `json:"utterance"`
		ActivePanel string `json:"active_panel"`
	}{Utterance: text, ActivePanel: uiContext.ActivePanel})
	return string(prompt)
}

// DecodePayload parses model output into a payload. Output wrapped in a
// markdown code fence is accepted.
func DecodePayload(content string) (*intent.Payload, error) {
	content = strings.TrimSpace(content)
	if split := strings.Split(content, "```"); len(split) > 2 {
		content = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(split[1]), "json"))
	}
	if content == "" {
		return nil, fmt.Errorf("empty model output: %w", intent.ErrMalformedResponse)
	}

	var payload intent.Payload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("error unmarshalling response: %v: %w", err, intent.ErrMalformedResponse)
	}
	return &payload, nil
}
