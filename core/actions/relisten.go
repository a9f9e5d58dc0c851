package actions

import "github.com/koscakluka/ema-assistant/core/intent"

// RelistenKey identifies an action for the re-listen policy. Command is only
// set for playback control.
type RelistenKey struct {
	Kind    intent.ActionKind
	Command intent.PlaybackCommand
}

// RelistenPolicy is the set of actions after which the assistant listens
// again on its own.
type RelistenPolicy map[RelistenKey]struct{}

func DefaultRelistenPolicy() RelistenPolicy {
	return RelistenPolicy{}.With(
		RelistenKey{Kind: intent.KindSetVolume},
		RelistenKey{Kind: intent.KindSetBrightness},
		RelistenKey{Kind: intent.KindSearchMedia},
		RelistenKey{Kind: intent.KindPlaybackControl, Command: intent.CommandNext},
		RelistenKey{Kind: intent.KindPlaybackControl, Command: intent.CommandPrevious},
	)
}

func (p RelistenPolicy) With(keys ...RelistenKey) RelistenPolicy {
	out := make(RelistenPolicy, len(p)+len(keys))
	for key := range p {
		out[key] = struct{}{}
	}
	for _, key := range keys {
		out[key] = struct{}{}
	}
	return out
}

func (p RelistenPolicy) Applies(action intent.ClassifiedAction) bool {
	_, ok := p[RelistenKey{Kind: action.Kind, Command: action.Command()}]
	return ok
}
