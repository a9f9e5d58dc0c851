package miniaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-assistant/core/audio"
	"github.com/koscakluka/ema-assistant/core/playback"
)

var errSinkClosed = errors.New("sink closed")

type playbackClient struct {
	device   *malgo.Device
	encoding audio.EncodingInfo
	buffer   buffer

	mu      sync.Mutex
	current uint64
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext, encoding audio.EncodingInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	channels := 1
	format := malgo.FormatS16

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = uint32(encoding.SampleRate)
	config.Playback.Format = format
	config.Playback.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = uint32(encoding.SampleRate / 10) // ~100ms of audio
	config.Periods = 4

	c.encoding = encoding
	silence := encoding.SilenceValue()

	var err error
	if c.device, err = malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, _ uint32) { c.buffer.read(pOutput, silence) },
	}); err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	return nil
}

func (c *playbackClient) Open(_ context.Context, callbacks playback.SinkCallbacks) (playback.Sink, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return nil, fmt.Errorf("device not initialized")
	}
	if !c.device.IsStarted() {
		if err := c.device.Start(); err != nil {
			return nil, fmt.Errorf("failed to start playback device: %w", err)
		}
	}

	c.current++
	c.buffer.clear()
	s := &sink{client: c, id: c.current, callbacks: callbacks}
	if callbacks.OnOpen != nil {
		go callbacks.OnOpen()
	}
	return s, nil
}

func (c *playbackClient) isCurrent(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == id && c.device != nil
}

func (c *playbackClient) release(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == id {
		c.current++
		c.buffer.clear()
	}
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current++
	c.buffer.clear()
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	return nil
}

// sink feeds one streamed playback into the shared device buffer.
type sink struct {
	client    *playbackClient
	id        uint64
	callbacks playback.SinkCallbacks
}

func (s *sink) Append(chunk []byte) error {
	if !s.client.isCurrent(s.id) {
		return errSinkClosed
	}
	s.client.buffer.write(chunk)
	if s.callbacks.OnAppended != nil {
		go s.callbacks.OnAppended()
	}
	return nil
}

func (s *sink) EndOfStream() error {
	if !s.client.isCurrent(s.id) {
		return errSinkClosed
	}
	s.client.buffer.mark(func() {
		if s.client.isCurrent(s.id) && s.callbacks.OnEnded != nil {
			s.callbacks.OnEnded()
		}
	})
	return nil
}

func (s *sink) Abort() error {
	s.client.release(s.id)
	return nil
}
