package events

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// TurnEvent is an event produced on behalf of a single assistant turn. The
// loop drops turn events whose id does not match the current turn.
type TurnEvent interface {
	Event
	TurnID() uuid.UUID
}

type Base struct {
	kind      Kind
	timestamp time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}

type TurnBase struct {
	Base
	Turn uuid.UUID
}

func NewTurnBase(kind Kind, turn uuid.UUID) TurnBase {
	return TurnBase{Base: NewBase(kind), Turn: turn}
}

func (b TurnBase) TurnID() uuid.UUID {
	return b.Turn
}
