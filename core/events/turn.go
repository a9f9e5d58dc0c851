package events

import (
	"github.com/google/uuid"
	"github.com/koscakluka/ema-assistant/core/actions"
	"github.com/koscakluka/ema-assistant/core/intent"
)

const (
	KindClassificationSucceeded Kind = "turn.classification_succeeded"
	KindClassificationFailed    Kind = "turn.classification_failed"
	KindPlaybackCompleted       Kind = "turn.playback_completed"
	KindDispatchCompleted       Kind = "turn.dispatch_completed"
	KindAnnouncementCompleted   Kind = "turn.announcement_completed"
	KindRelistenDue             Kind = "timer.relisten_due"
)

type ClassificationSucceeded struct {
	TurnBase
	Action intent.ClassifiedAction
}

func NewClassificationSucceeded(turn uuid.UUID, action intent.ClassifiedAction) ClassificationSucceeded {
	return ClassificationSucceeded{TurnBase: NewTurnBase(KindClassificationSucceeded, turn), Action: action}
}

type ClassificationFailed struct {
	TurnBase
	Err error
}

func NewClassificationFailed(turn uuid.UUID, err error) ClassificationFailed {
	return ClassificationFailed{TurnBase: NewTurnBase(KindClassificationFailed, turn), Err: err}
}

// PlaybackCompleted marks the end of reply output for a turn. Err is set only
// when both the streamed and the fallback path failed.
type PlaybackCompleted struct {
	TurnBase
	Err error
}

func NewPlaybackCompleted(turn uuid.UUID, err error) PlaybackCompleted {
	return PlaybackCompleted{TurnBase: NewTurnBase(KindPlaybackCompleted, turn), Err: err}
}

type DispatchCompleted struct {
	TurnBase
	Outcome actions.Outcome
}

func NewDispatchCompleted(turn uuid.UUID, outcome actions.Outcome) DispatchCompleted {
	return DispatchCompleted{TurnBase: NewTurnBase(KindDispatchCompleted, turn), Outcome: outcome}
}

// AnnouncementCompleted marks the end of an error message spoken outside a
// normal reply.
type AnnouncementCompleted struct {
	TurnBase
	Err error
}

func NewAnnouncementCompleted(turn uuid.UUID, err error) AnnouncementCompleted {
	return AnnouncementCompleted{TurnBase: NewTurnBase(KindAnnouncementCompleted, turn), Err: err}
}

// RelistenDue fires when the re-listen delay elapsed. Generation ties it to
// the schedule call that created it.
type RelistenDue struct {
	Base
	Generation uint64
}

func NewRelistenDue(generation uint64) RelistenDue {
	return RelistenDue{Base: NewBase(KindRelistenDue), Generation: generation}
}
