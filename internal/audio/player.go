package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gordonklaus/portaudio"
	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always yields interleaved stereo s16le.
const mp3Channels = 2

var ErrEmptyAudio = errors.New("audio is empty")

// PCM is decoded interleaved s16le audio.
type PCM struct {
	Data       []byte
	SampleRate int
	Channels   int
}

// DecodeMP3 decodes a complete MP3 clip.
func DecodeMP3(data []byte) (PCM, error) {
	if len(data) == 0 {
		return PCM{}, ErrEmptyAudio
	}
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return PCM{}, fmt.Errorf("decode mp3: %w", err)
	}
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return PCM{}, fmt.Errorf("decode mp3 frames: %w", err)
	}
	return PCM{Data: pcm, SampleRate: decoder.SampleRate(), Channels: mp3Channels}, nil
}

// PortAudioPlayer plays MP3 clips on the default output device.
type PortAudioPlayer struct{}

func NewPortAudioPlayer() *PortAudioPlayer {
	return &PortAudioPlayer{}
}

// Play blocks until the clip has been written or ctx is canceled.
func (p *PortAudioPlayer) Play(ctx context.Context, clip []byte) error {
	pcm, err := DecodeMP3(clip)
	if err != nil {
		return err
	}
	return p.PlayPCM(ctx, pcm)
}

func (p *PortAudioPlayer) PlayPCM(ctx context.Context, pcm PCM) error {
	if len(pcm.Data) == 0 {
		return ErrEmptyAudio
	}
	if err := acquireHost(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}
	defer releaseHost()

	buffer := make([]int16, framesPerBuffer*pcm.Channels)
	stream, err := portaudio.OpenDefaultStream(0, pcm.Channels, float64(pcm.SampleRate), framesPerBuffer, buffer)
	if err != nil {
		return fmt.Errorf("open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start output stream: %w", err)
	}
	defer stream.Stop()

	remaining := pcm.Data
	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		consumed := bytesToSamples(buffer, remaining)
		if consumed == 0 {
			break
		}
		remaining = remaining[consumed:]
		if err := stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			return fmt.Errorf("write output stream: %w", err)
		}
	}
	return nil
}
