package miniaudio

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-assistant/core/audio"
	"github.com/koscakluka/ema-assistant/core/playback"
)

// Client owns one miniaudio context with a capture and a playback device,
// both running mono linear16 at the same sample rate.
type Client struct {
	// audioContext is only kept so it can be released on Close.
	audioContext *malgo.AllocatedContext
	encoding     audio.EncodingInfo
	playbackClient
	captureClient
}

type ClientOption func(*Client)

func WithSampleRate(sampleRate int) ClientOption {
	return func(c *Client) { c.encoding.SampleRate = sampleRate }
}

func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{encoding: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(client)
	}
	if err := client.encoding.Validate(); err != nil {
		return nil, fmt.Errorf("invalid encoding: %w", err)
	}

	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("miniaudio", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	client.audioContext = audioCtx

	if err := client.playbackClient.Init(audioCtx, client.encoding); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}
	if err := client.captureClient.Init(audioCtx, client.encoding); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	return client, nil
}

func (c *Client) StartCapture(_ context.Context, onAudio func(audio []byte)) error {
	return c.captureClient.Start(onAudio)
}

func (c *Client) StopCapture() error {
	return c.captureClient.Stop()
}

// OpenSink starts the playback device and returns a sink that queues audio
// for it. Opening a sink aborts the previous one.
func (c *Client) OpenSink(ctx context.Context, callbacks playback.SinkCallbacks) (playback.Sink, error) {
	return c.playbackClient.Open(ctx, callbacks)
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return c.encoding
}

func (c *Client) Close() {
	_ = c.captureClient.Uninit()
	_ = c.playbackClient.Uninit()
	if c.audioContext != nil {
		_ = c.audioContext.Uninit()
		c.audioContext.Free()
		c.audioContext = nil
	}
}
