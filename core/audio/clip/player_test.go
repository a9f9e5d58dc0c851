package clip

import (
	"io"
	"math"
	"strings"
	"testing"

	"github.com/faiface/beep"
)

func TestSineStaysWithinVolume(t *testing.T) {
	s := beep.Take(1000, sine(DefaultSampleRate, 440, 0.3))
	samples := make([][2]float64, 512)

	total := 0
	for {
		n, ok := s.Stream(samples)
		for _, sample := range samples[:n] {
			if math.Abs(sample[0]) > 0.3+1e-9 || sample[0] != sample[1] {
				t.Fatalf("unexpected sample %v", sample)
			}
		}
		total += n
		if !ok {
			break
		}
	}
	if total != 1000 {
		t.Fatalf("expected 1000 samples, got %d", total)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, _, err := decode(io.NopCloser(strings.NewReader("definitely not audio")))
	if err == nil {
		t.Fatalf("expected garbage clip to fail decoding")
	}
}

func TestDecodeDetectsWavHeader(t *testing.T) {
	_, _, err := decode(io.NopCloser(strings.NewReader("RIFF....WAVE")))
	if err == nil || !strings.Contains(err.Error(), "wav") {
		t.Fatalf("expected a wav decoding error, got %v", err)
	}
}
