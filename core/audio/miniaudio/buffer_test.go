package miniaudio

import (
	"bytes"
	"sync/atomic"
	"testing"
	"time"
)

func TestBufferReadPadsWithSilence(t *testing.T) {
	var b buffer
	b.write([]byte{1, 2, 3})

	out := make([]byte, 5)
	b.read(out, 0x55)

	if !bytes.Equal(out, []byte{1, 2, 3, 0x55, 0x55}) {
		t.Fatalf("unexpected output %v", out)
	}
	if b.len() != 0 {
		t.Fatalf("expected buffer to be drained, %d bytes left", b.len())
	}
}

func TestBufferMarksFireAfterPrecedingAudio(t *testing.T) {
	var b buffer
	fired := make(chan struct{}, 1)
	b.write(make([]byte, 8))
	b.mark(func() { fired <- struct{}{} })
	b.write(make([]byte, 8))

	b.read(make([]byte, 4), 0)
	select {
	case <-fired:
		t.Fatalf("mark fired before its audio was consumed")
	case <-time.After(20 * time.Millisecond):
	}

	b.read(make([]byte, 4), 0)
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatalf("expected mark to fire")
	}
	if b.len() != 8 {
		t.Fatalf("expected audio after the mark to stay buffered, got %d bytes", b.len())
	}
}

func TestBufferClearDropsMarks(t *testing.T) {
	var b buffer
	calls := atomic.Int32{}
	b.write(make([]byte, 4))
	b.mark(func() { calls.Add(1) })

	b.clear()
	b.read(make([]byte, 8), 0)
	time.Sleep(20 * time.Millisecond)

	if got := calls.Load(); got != 0 {
		t.Fatalf("expected cleared mark not to fire, got %d calls", got)
	}
}
