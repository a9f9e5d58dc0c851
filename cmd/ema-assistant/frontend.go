package main

import (
	"context"

	log "log/slog"

	assistant "github.com/koscakluka/ema-assistant/core"
	"github.com/koscakluka/ema-assistant/core/actions"
	"github.com/koscakluka/ema-assistant/core/intent"
)

// controls is the part of the assistant a front end drives.
type controls interface {
	Activate()
	Stop()
	SubmitPrompt(text string)
}

// frontend shows what the assistant does. It doubles as the dispatcher's
// display and timer notifier.
type frontend interface {
	actions.Display
	actions.Notifier
	StateChanged(from, to assistant.State)
	Transcript(final, interim string)
	Reply(text string)
	Status(status string)
	Run(ctx context.Context, c controls) error
}

func newFrontend(headless bool) frontend {
	if headless {
		return logFrontend{}
	}
	return newTerminalUI()
}

// logFrontend is used without a terminal; the control API drives it.
type logFrontend struct{}

func (logFrontend) StateChanged(from, to assistant.State) {
	log.Info("State changed", "from", from, "to", to)
}

func (logFrontend) Transcript(final, interim string) {
	log.Debug("Transcript", "final", final, "interim", interim)
}

func (logFrontend) Reply(text string)       { log.Info("Reply", "text", text) }
func (logFrontend) Status(status string)    { log.Warn("Status", "status", status) }
func (logFrontend) SetBrightness(level int) { log.Info("Brightness changed", "level", level) }

func (logFrontend) ShowResults(results []intent.MediaResult) {
	for i, r := range results {
		log.Info("Result", "n", i+1, "title", r.Title, "id", r.ID)
	}
}

func (logFrontend) TimerExpired(timer actions.Timer) {
	log.Info("Timer expired", "label", timer.Label, "id", timer.ID)
}

func (logFrontend) Run(ctx context.Context, _ controls) error {
	<-ctx.Done()
	return nil
}
