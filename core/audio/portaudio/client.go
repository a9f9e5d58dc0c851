package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-assistant/core/audio"
	"github.com/koscakluka/ema-assistant/core/playback"
)

// Client captures from the default input and plays to the default output
// through blocking PortAudio streams.
type Client struct {
	bufferSize int
	input      *portaudio.Stream
	output     *portaudio.Stream
	in         []int16
	out        []int16

	mu          sync.Mutex
	stopCapture chan struct{}
	captureDone chan struct{}
	outStarted  bool
	sink        *sink
	writeMu     sync.Mutex
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	c := &Client{
		bufferSize: bufferSize,
		in:         make([]int16, bufferSize),
		out:        make([]int16, bufferSize),
	}

	var err error
	if c.input, err = portaudio.OpenDefaultStream(1, 0, audio.DefaultSampleRate, bufferSize, c.in); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}
	if c.output, err = portaudio.OpenDefaultStream(0, 1, audio.DefaultSampleRate, bufferSize, c.out); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open output stream: %w", err)
	}
	return c, nil
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{SampleRate: audio.DefaultSampleRate, Format: audio.EncodingLinear16}
}

func (c *Client) StartCapture(ctx context.Context, onAudio func(audio []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopCapture != nil {
		return nil
	}
	if err := c.input.Start(); err != nil {
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	stop, done := make(chan struct{}), make(chan struct{})
	c.stopCapture, c.captureDone = stop, done
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			default:
			}
			if err := c.input.Read(); err != nil {
				logger.Warn("Failed to read from input stream", "error", err)
				continue
			}

			var buf bytes.Buffer
			_ = binary.Write(&buf, binary.LittleEndian, c.in)
			onAudio(buf.Bytes())
		}
	}()
	return nil
}

func (c *Client) StopCapture() error {
	c.mu.Lock()
	stop, done := c.stopCapture, c.captureDone
	c.stopCapture, c.captureDone = nil, nil
	c.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	if err := c.input.Stop(); err != nil {
		return fmt.Errorf("failed to stop input stream: %w", err)
	}
	return nil
}

// OpenSink aborts the previous sink and starts a new writer on the output
// stream.
func (c *Client) OpenSink(_ context.Context, callbacks playback.SinkCallbacks) (playback.Sink, error) {
	c.mu.Lock()
	if !c.outStarted {
		if err := c.output.Start(); err != nil {
			c.mu.Unlock()
			return nil, fmt.Errorf("failed to start output stream: %w", err)
		}
		c.outStarted = true
	}
	previous := c.sink
	s := newSink(c, callbacks)
	c.sink = s
	c.mu.Unlock()

	if previous != nil {
		_ = previous.Abort()
	}
	go s.run()
	if callbacks.OnOpen != nil {
		go callbacks.OnOpen()
	}
	return s, nil
}

// writeFrames plays whole buffers from audio and returns what does not fill
// one.
func (c *Client) writeFrames(audio []byte, aborted <-chan struct{}) ([]byte, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	frameBytes := c.bufferSize * 2
	for len(audio) >= frameBytes {
		select {
		case <-aborted:
			return nil, nil
		default:
		}
		if err := binary.Read(bytes.NewReader(audio[:frameBytes]), binary.LittleEndian, c.out); err != nil {
			return nil, fmt.Errorf("failed to decode audio: %w", err)
		}
		if err := c.output.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			return nil, fmt.Errorf("failed to write output stream: %w", err)
		}
		audio = audio[frameBytes:]
	}
	return audio, nil
}

func (c *Client) Close() {
	c.mu.Lock()
	current := c.sink
	c.sink = nil
	c.mu.Unlock()
	if current != nil {
		_ = current.Abort()
	}
	_ = c.StopCapture()

	if c.input != nil {
		_ = c.input.Close()
	}
	if c.output != nil {
		_ = c.output.Close()
	}
	_ = portaudio.Terminate()
}
