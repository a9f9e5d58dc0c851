package actions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-assistant/core/intent"
)

// MediaHandle controls media started by a [MediaLauncher].
type MediaHandle interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	SetVolume(ctx context.Context, level int) error
}

type MediaLauncher interface {
	Launch(ctx context.Context, media intent.MediaResult) (MediaHandle, error)
}

// Display shows search results and applies the local brightness filter.
type Display interface {
	ShowResults(results []intent.MediaResult)
	SetBrightness(level int)
}

type Browser interface {
	Open(ctx context.Context, url string) error
}

type Timer struct {
	ID        uuid.UUID
	Label     string
	ExpiresAt time.Time
}

type Notifier interface {
	TimerExpired(timer Timer)
}

type NoteKeeper interface {
	AddNote(ctx context.Context, text string) error
}

type Forecaster interface {
	Forecast(ctx context.Context, location string) (string, error)
}
