package main

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"strconv"

	log "log/slog"

	"github.com/koscakluka/ema-assistant/core/actions"
	"github.com/koscakluka/ema-assistant/core/intent"
)

// desktop opens things with the desktop's default handlers and controls
// media through MPRIS (playerctl) and PulseAudio (pactl).
type desktop struct {
	run func(ctx context.Context, name string, args ...string) error
}

func newDesktop() *desktop {
	return &desktop{run: func(ctx context.Context, name string, args ...string) error {
		out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
		if err != nil {
			return fmt.Errorf("%s: %w: %s", name, err, out)
		}
		return nil
	}}
}

func (d *desktop) Open(ctx context.Context, url string) error {
	log.Debug("Opening resource", "url", url)
	return d.run(ctx, "xdg-open", url)
}

func (d *desktop) Launch(ctx context.Context, media intent.MediaResult) (actions.MediaHandle, error) {
	if err := d.Open(ctx, watchURL(media.ID)); err != nil {
		return nil, err
	}
	return mediaHandle{desktop: d}, nil
}

func watchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(id)
}

type mediaHandle struct {
	desktop *desktop
}

func (h mediaHandle) Play(ctx context.Context) error     { return h.playerctl(ctx, "play") }
func (h mediaHandle) Pause(ctx context.Context) error    { return h.playerctl(ctx, "pause") }
func (h mediaHandle) Stop(ctx context.Context) error     { return h.playerctl(ctx, "stop") }
func (h mediaHandle) Next(ctx context.Context) error     { return h.playerctl(ctx, "next") }
func (h mediaHandle) Previous(ctx context.Context) error { return h.playerctl(ctx, "previous") }

func (h mediaHandle) SetVolume(ctx context.Context, level int) error {
	return h.desktop.run(ctx, "pactl", "set-sink-volume", "@DEFAULT_SINK@", strconv.Itoa(level)+"%")
}

func (h mediaHandle) playerctl(ctx context.Context, command string) error {
	return h.desktop.run(ctx, "playerctl", command)
}
