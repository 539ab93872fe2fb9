package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gordonklaus/portaudio"

	"talkbridge/internal/ports"
)

const framesPerBuffer = 1024

// PortAudioCapture records from the default input device.
type PortAudioCapture struct{}

func NewPortAudioCapture() *PortAudioCapture {
	return &PortAudioCapture{}
}

func (c *PortAudioCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = defaultChannels
	}
	if err := acquireHost(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	buffer := make([]int16, framesPerBuffer*cfg.Channels)
	stream, err := portaudio.OpenDefaultStream(cfg.Channels, 0, float64(cfg.SampleRate), framesPerBuffer, buffer)
	if err != nil {
		releaseHost()
		return nil, fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		releaseHost()
		return nil, fmt.Errorf("start input stream: %w", err)
	}

	reader, writer := io.Pipe()
	s := &portAudioSession{
		stream: stream,
		buffer: buffer,
		reader: reader,
		writer: writer,
		done:   make(chan struct{}),
	}
	go s.record(ctx)
	return s, nil
}

type portAudioSession struct {
	stream *portaudio.Stream
	buffer []int16
	reader *io.PipeReader
	writer *io.PipeWriter

	mu       sync.Mutex
	stopping bool
	done     chan struct{}

	once    sync.Once
	stopErr error
}

func (s *portAudioSession) record(ctx context.Context) {
	defer close(s.done)

	var chunk []byte
	for {
		if ctx.Err() != nil || s.isStopping() {
			_ = s.writer.Close()
			return
		}
		if err := s.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
			_ = s.writer.CloseWithError(fmt.Errorf("read input stream: %w", err))
			return
		}
		chunk = samplesToBytes(chunk, s.buffer)
		if _, err := s.writer.Write(chunk); err != nil {
			return
		}
	}
}

func (s *portAudioSession) isStopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping
}

func (s *portAudioSession) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *portAudioSession) Close() error {
	return s.Stop()
}

// Stop ends the recording loop and releases the device. Audio already
// written to the pipe stays readable until EOF.
func (s *portAudioSession) Stop() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.stopping = true
		s.mu.Unlock()

		<-s.done
		if err := s.stream.Stop(); err != nil {
			s.stopErr = fmt.Errorf("stop input stream: %w", err)
		}
		if err := s.stream.Close(); err != nil && s.stopErr == nil {
			s.stopErr = fmt.Errorf("close input stream: %w", err)
		}
		releaseHost()
	})
	return s.stopErr
}
