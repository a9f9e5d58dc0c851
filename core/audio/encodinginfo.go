package audio

import (
	"fmt"
	"time"
)

const (
	DefaultSampleRate = 16000
	DefaultFormat     = EncodingLinear16
)

// Format names a raw sample encoding.
type Format string

const (
	EncodingMulaw    Format = "mulaw"
	EncodingALaw     Format = "alaw"
	EncodingLinear16 Format = "linear16"
)

func (f Format) Name() string { return string(f) }

// ByteSize is the size of one mono sample, or -1 for unknown formats.
func (f Format) ByteSize() int {
	switch f {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

// EncodingInfo describes mono raw audio exchanged with devices and speech
// services.
type EncodingInfo struct {
	SampleRate int
	Format     Format
}

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: DefaultFormat}
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format == ""
}

func (e EncodingInfo) Validate() error {
	if e.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", e.SampleRate)
	}
	if e.Format.ByteSize() < 0 {
		return fmt.Errorf("unsupported encoding %q", e.Format)
	}
	return nil
}

// SilenceValue is the byte that encodes silence for every sample byte.
func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	}
	return 0
}

// Duration reports how long n bytes of audio play for.
func (e EncodingInfo) Duration(n int) time.Duration {
	bytesPerSecond := e.SampleRate * e.Format.ByteSize()
	if bytesPerSecond <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bytesPerSecond)
}
