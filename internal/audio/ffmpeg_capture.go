// Package audio captures microphone PCM and plays synthesized speech.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"talkbridge/internal/ports"
)

const (
	defaultSampleRate = 16000
	defaultChannels   = 1

	ffmpegStartupGrace = 250 * time.Millisecond
	ffmpegStopTimeout  = 1200 * time.Millisecond
)

var errCaptureExited = errors.New("ffmpeg exited before capture started")

// FFMPEGCapture records s16le PCM by running ffmpeg against a system input.
type FFMPEGCapture struct {
	command string
}

func NewFFMPEGCapture(command string) *FFMPEGCapture {
	if strings.TrimSpace(command) == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCapture{command: command}
}

func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	cfg = withCaptureDefaults(cfg, runtime.GOOS)

	cmd := exec.CommandContext(ctx, c.command, ffmpegArgs(cfg)...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
		close(exited)
	}()

	select {
	case err := <-exited:
		if err != nil {
			return nil, fmt.Errorf("%w: %v: %s", errCaptureExited, err, strings.TrimSpace(stderr.String()))
		}
		return nil, errCaptureExited
	case <-time.After(ffmpegStartupGrace):
	}

	return &ffmpegSession{stdout: stdout, stderr: stderr, process: cmd.Process, exited: exited}, nil
}

// withCaptureDefaults fills the input backend for the host platform.
func withCaptureDefaults(cfg ports.AudioConfig, goos string) ports.AudioConfig {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = defaultChannels
	}
	if cfg.InputFormat == "" {
		switch goos {
		case "darwin":
			cfg.InputFormat = "avfoundation"
		case "windows":
			cfg.InputFormat = "dshow"
		default:
			cfg.InputFormat = "pulse"
		}
	}
	if cfg.InputDevice == "" {
		switch cfg.InputFormat {
		case "avfoundation":
			cfg.InputDevice = ":0"
		case "dshow":
			cfg.InputDevice = "audio=default"
		default:
			cfg.InputDevice = "default"
		}
	}
	return cfg
}

func ffmpegArgs(cfg ports.AudioConfig) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

type ffmpegSession struct {
	stdout  io.ReadCloser
	stderr  *bytes.Buffer
	process *os.Process
	exited  <-chan error

	once    sync.Once
	stopErr error
}

func (s *ffmpegSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *ffmpegSession) Close() error {
	return s.Stop()
}

// Stop interrupts ffmpeg so it flushes, then kills it if it lingers.
func (s *ffmpegSession) Stop() error {
	s.once.Do(func() {
		_ = s.process.Signal(os.Interrupt)

		var err error
		select {
		case err = <-s.exited:
		case <-time.After(ffmpegStopTimeout):
			_ = s.process.Kill()
			err = <-s.exited
		}
		s.stopErr = ignoreExitStatus(err)

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && s.stopErr == nil {
			s.stopErr = closeErr
		}
		if s.stopErr != nil {
			if detail := strings.TrimSpace(s.stderr.String()); detail != "" {
				s.stopErr = fmt.Errorf("%w: %s", s.stopErr, detail)
			}
		}
	})
	return s.stopErr
}

// ignoreExitStatus drops the non-zero status ffmpeg reports after SIGINT.
func ignoreExitStatus(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
