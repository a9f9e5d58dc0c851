package main

import (
	"context"
	"strings"
	"testing"

	"github.com/koscakluka/ema-assistant/core/intent"
)

type recordedRun struct{ calls []string }

func (r *recordedRun) run(_ context.Context, name string, args ...string) error {
	r.calls = append(r.calls, strings.Join(append([]string{name}, args...), " "))
	return nil
}

func TestLaunchOpensVideoAndControlsPlayback(t *testing.T) {
	rec := &recordedRun{}
	d := &desktop{run: rec.run}
	ctx := context.Background()

	handle, err := d.Launch(ctx, intent.MediaResult{ID: "abc 123", Title: "Lofi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = handle.Pause(ctx)
	_ = handle.SetVolume(ctx, 40)

	want := []string{
		"xdg-open https://www.youtube.com/watch?v=abc+123",
		"playerctl pause",
		"pactl set-sink-volume @DEFAULT_SINK@ 40%",
	}
	if strings.Join(rec.calls, "\n") != strings.Join(want, "\n") {
		t.Fatalf("unexpected commands:\n%s", strings.Join(rec.calls, "\n"))
	}
}
