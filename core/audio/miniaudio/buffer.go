package miniaudio

import "sync"

// buffer holds audio waiting for the playback device together with marks
// that fire once the device consumed everything written before them.
type buffer struct {
	mu    sync.Mutex
	audio []byte
	marks []mark
}

type mark struct {
	position int
	callback func()
}

func (b *buffer) write(audio []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.audio = append(b.audio, audio...)
}

// mark registers callback at the current end of the buffer.
func (b *buffer) mark(callback func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.marks = append(b.marks, mark{position: len(b.audio), callback: callback})
}

// read fills out with buffered audio and pads the rest with silence.
func (b *buffer) read(out []byte, silence byte) {
	b.mu.Lock()
	n := copy(out, b.audio)
	b.audio = b.audio[n:]
	if len(b.audio) == 0 {
		b.audio = nil
	}

	passed := 0
	for i := range b.marks {
		b.marks[i].position -= n
		if b.marks[i].position <= 0 {
			passed++
		}
	}
	fired := b.marks[:passed]
	b.marks = b.marks[passed:]
	b.mu.Unlock()

	for i := n; i < len(out); i++ {
		out[i] = silence
	}
	if len(fired) > 0 {
		go func() {
			for _, m := range fired {
				m.callback()
			}
		}()
	}
}

// clear drops buffered audio and pending marks without firing them.
func (b *buffer) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.audio = nil
	b.marks = nil
}

func (b *buffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.audio)
}
