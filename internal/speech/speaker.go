// Package speech turns synthesized clips into a ports.Speaker.
package speech

import (
	"context"
	"strings"
	"sync"
)

// Synthesizer renders text in language to an encoded clip.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, language string) ([]byte, error)
}

// Player plays an encoded clip, returning when it ends or ctx is canceled.
type Player interface {
	Play(ctx context.Context, clip []byte) error
}

// Speaker synthesizes and plays one utterance at a time. A new Speak
// interrupts the previous one.
type Speaker struct {
	synth  Synthesizer
	player Player

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
}

func NewSpeaker(synth Synthesizer, player Player) *Speaker {
	return &Speaker{synth: synth, player: player}
}

// Speak returns nil when playback was interrupted by Stop or a newer Speak.
func (s *Speaker) Speak(ctx context.Context, text, language string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	playCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.gen == gen {
			s.cancel = nil
		}
		s.mu.Unlock()
		cancel()
	}()

	clip, err := s.synth.Synthesize(playCtx, text, language)
	if err == nil {
		err = s.player.Play(playCtx, clip)
	}
	if err != nil && playCtx.Err() != nil && ctx.Err() == nil {
		return nil
	}
	return err
}

func (s *Speaker) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return nil
}

// Silent is a Speaker that never produces sound.
type Silent struct{}

func (Silent) Speak(ctx context.Context, _, _ string) error {
	return ctx.Err()
}

func (Silent) Stop() error { return nil }
