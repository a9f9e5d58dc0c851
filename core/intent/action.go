package intent

import "strings"

// ActionKind tags the effect an utterance was classified as.
type ActionKind string

const (
	KindSearchMedia     ActionKind = "search_media"
	KindPlayMedia       ActionKind = "play_media"
	KindPlaybackControl ActionKind = "playback_control"
	KindSetVolume       ActionKind = "set_volume"
	KindSetBrightness   ActionKind = "set_brightness"
	KindOpenResource    ActionKind = "open_resource"
	KindGetWeather      ActionKind = "get_weather"
	KindSetTimer        ActionKind = "set_timer"
	KindAddNote         ActionKind = "add_note"
	KindReplyOnly       ActionKind = "reply_only"
	KindStopListening   ActionKind = "stop_listening"
	KindUnknown         ActionKind = "unknown"
)

// Kinds lists every tag a classifier may return.
func Kinds() []ActionKind {
	return []ActionKind{
		KindSearchMedia, KindPlayMedia, KindPlaybackControl, KindSetVolume,
		KindSetBrightness, KindOpenResource, KindGetWeather, KindSetTimer,
		KindAddNote, KindReplyOnly, KindStopListening, KindUnknown,
	}
}

// ParseActionKind maps a classifier tag to a known kind. Unrecognized tags map
// to [KindUnknown].
func ParseActionKind(tag string) ActionKind {
	normalized := ActionKind(strings.ToLower(strings.TrimSpace(tag)))
	for _, kind := range Kinds() {
		if kind == normalized {
			return kind
		}
	}
	return KindUnknown
}

// PlaybackCommand is the sub-command of [KindPlaybackControl].
type PlaybackCommand string

const (
	CommandPlay     PlaybackCommand = "play"
	CommandPause    PlaybackCommand = "pause"
	CommandStop     PlaybackCommand = "stop"
	CommandNext     PlaybackCommand = "next"
	CommandPrevious PlaybackCommand = "previous"
)

func parsePlaybackCommand(raw string) PlaybackCommand {
	switch cmd := PlaybackCommand(strings.ToLower(strings.TrimSpace(raw))); cmd {
	case CommandPlay, CommandPause, CommandStop, CommandNext, CommandPrevious:
		return cmd
	case "resume":
		return CommandPlay
	case "prev", "back":
		return CommandPrevious
	case "skip":
		return CommandNext
	default:
		return ""
	}
}

// Params holds the optional fields a classifier may attach to an action. All
// values are raw strings as produced by the model; the dispatcher parses them.
type Params struct {
	Query     string `json:"query,omitempty" jsonschema:"description=Search query for media or lookups"`
	URL       string `json:"url,omitempty" jsonschema:"description=Resource to open"`
	Level     string `json:"level,omitempty" jsonschema:"description=Absolute volume or brightness level"`
	Direction string `json:"direction,omitempty" jsonschema:"description=Relative adjustment,enum=up,enum=down"`
	Location  string `json:"location,omitempty" jsonschema:"description=Place for weather lookups"`
	Duration  string `json:"duration,omitempty" jsonschema:"description=Timer duration in whole seconds"`
	AppName   string `json:"app_name,omitempty" jsonschema:"description=Application the user referred to"`
	Command   string `json:"command,omitempty" jsonschema:"description=Playback command,enum=play,enum=pause,enum=stop,enum=next,enum=previous"`
	Text      string `json:"text,omitempty" jsonschema:"description=Free text such as a note body"`
}

// ClassifiedAction is the validated result of classifying one utterance.
type ClassifiedAction struct {
	Kind      ActionKind
	Params    Params
	ReplyText string
}

// Command returns the playback command for playback control actions and an
// empty command for everything else.
func (a ClassifiedAction) Command() PlaybackCommand {
	if a.Kind != KindPlaybackControl {
		return ""
	}
	return parsePlaybackCommand(a.Params.Command)
}

// Context is the UI context sent along with an utterance.
type Context struct {
	ActivePanel string `json:"active_panel"`
}

// Payload is the raw structured output of a [Classifier]. Action and Reply
// are pointers so missing fields can be told apart from empty ones.
type Payload struct {
	Action *string `json:"action" jsonschema:"description=Action tag"`
	Params Params  `json:"params"`
	Reply  *string `json:"reply" jsonschema:"description=Short spoken confirmation for the user"`
}

// MediaResult is one entry returned by a [Searcher].
type MediaResult struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url"`
}
