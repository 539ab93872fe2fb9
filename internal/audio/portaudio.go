package audio

import (
	"encoding/binary"
	"sync"

	"github.com/gordonklaus/portaudio"
)

var host struct {
	mu    sync.Mutex
	users int
}

// acquireHost initializes PortAudio on first use. Every successful call must
// be paired with releaseHost.
func acquireHost() error {
	host.mu.Lock()
	defer host.mu.Unlock()

	if host.users == 0 {
		if err := portaudio.Initialize(); err != nil {
			return err
		}
	}
	host.users++
	return nil
}

func releaseHost() {
	host.mu.Lock()
	defer host.mu.Unlock()

	if host.users == 0 {
		return
	}
	host.users--
	if host.users == 0 {
		_ = portaudio.Terminate()
	}
}

func samplesToBytes(dst []byte, samples []int16) []byte {
	dst = dst[:0]
	for _, sample := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(sample))
	}
	return dst
}

// bytesToSamples fills dst from s16le bytes and zero-pads the remainder.
// It returns the number of bytes consumed.
func bytesToSamples(dst []int16, pcm []byte) int {
	n := 0
	for i := range dst {
		if n+1 < len(pcm) {
			dst[i] = int16(binary.LittleEndian.Uint16(pcm[n : n+2]))
			n += 2
			continue
		}
		dst[i] = 0
	}
	return n
}
