package usecase

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sync"
	"sync/atomic"

	"talkbridge/internal/domain"
	"talkbridge/internal/ports"
)

const defaultChunkSize = 4096

// captureBuffer accumulates the PCM bytes of one recording.
type captureBuffer struct {
	mu       sync.Mutex
	data     []byte
	err      error
	stopping atomic.Bool
}

func (b *captureBuffer) write(chunk []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, chunk...)
}

func (b *captureBuffer) fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err == nil {
		b.err = err
	}
}

func (b *captureBuffer) result() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out, b.err
}

// pumpAudio drains the capture session into buf. Levels are offered to meter
// without blocking; a full meter drops the sample.
func pumpAudio(
	audio ports.AudioSession,
	chunkSize int,
	buf *captureBuffer,
	meter chan<- float64,
	done chan struct{},
) {
	defer close(done)
	defer close(meter)

	if chunkSize < 256 {
		chunkSize = defaultChunkSize
	}

	chunk := make([]byte, chunkSize)
	for {
		n, err := audio.Read(chunk)
		if n > 0 {
			buf.write(chunk[:n])
			select {
			case meter <- pcmLevel(chunk[:n]):
			default:
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !buf.stopping.Load() {
				buf.fail(err)
			}
			return
		}
	}
}

// forwardLevels relays meter readings to the UI until the meter closes.
func forwardLevels(meter <-chan float64, speaker domain.Speaker, events ports.EventSink, done chan struct{}) {
	defer close(done)
	for level := range meter {
		events.AudioLevel(speaker, level)
	}
}

// pcmLevel returns the RMS level of s16le samples in [0, 1].
func pcmLevel(chunk []byte) float64 {
	samples := len(chunk) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < samples; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(chunk[i*2:]))) / 32768
		sum += v * v
	}
	level := math.Sqrt(sum / float64(samples))
	if level > 1 {
		return 1
	}
	return level
}
