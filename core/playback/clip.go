package playback

import (
	"context"
	"fmt"
	"io"
)

// Renderer synthesizes a complete audio clip for text.
type Renderer interface {
	Render(ctx context.Context, text string) (io.ReadCloser, error)
}

// ClipPlayer plays an encoded clip and returns when it finished or ctx was
// cancelled. Play closes clip.
type ClipPlayer interface {
	Play(ctx context.Context, clip io.ReadCloser) error
}

// ClipSpeaker is a [Speaker] that renders the whole reply before playing it.
type ClipSpeaker struct {
	Renderer Renderer
	Player   ClipPlayer
}

func (s ClipSpeaker) Speak(ctx context.Context, text string) error {
	if s.Renderer == nil || s.Player == nil {
		return fmt.Errorf("clip speaker is not configured")
	}

	clip, err := s.Renderer.Render(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to render speech: %w", err)
	}

	if err := s.Player.Play(ctx, clip); err != nil {
		return fmt.Errorf("failed to play speech: %w", err)
	}
	return nil
}
