package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSynth struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeSynth) Synthesize(_ context.Context, text, language string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, language+":"+text)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("clip:" + text), nil
}

type fakePlayer struct {
	mu      sync.Mutex
	played  []string
	block   bool
	started chan struct{}
	err     error
}

func (f *fakePlayer) Play(ctx context.Context, clip []byte) error {
	f.mu.Lock()
	f.played = append(f.played, string(clip))
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func TestSpeakerSynthesizesThenPlays(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{}
	player := &fakePlayer{}
	speaker := NewSpeaker(synth, player)

	if err := speaker.Speak(context.Background(), "vanakkam", "ta"); err != nil {
		t.Fatalf("speak failed: %v", err)
	}
	if len(synth.calls) != 1 || synth.calls[0] != "ta:vanakkam" {
		t.Fatalf("unexpected synth calls: %v", synth.calls)
	}
	if len(player.played) != 1 || player.played[0] != "clip:vanakkam" {
		t.Fatalf("unexpected playback: %v", player.played)
	}
}

func TestSpeakerSkipsBlankText(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{}
	speaker := NewSpeaker(synth, &fakePlayer{})
	if err := speaker.Speak(context.Background(), "  ", "en"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(synth.calls) != 0 {
		t.Fatalf("blank text must not be synthesized")
	}
}

func TestSpeakerStopInterruptsPlayback(t *testing.T) {
	t.Parallel()

	player := &fakePlayer{block: true, started: make(chan struct{}, 1)}
	speaker := NewSpeaker(&fakeSynth{}, player)

	done := make(chan error, 1)
	go func() { done <- speaker.Speak(context.Background(), "hello", "en") }()

	<-player.started
	if err := speaker.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("stopped playback should not be an error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("speak did not return after stop")
	}
}

func TestSpeakerNewUtteranceInterruptsPrevious(t *testing.T) {
	t.Parallel()

	player := &fakePlayer{block: true, started: make(chan struct{}, 2)}
	speaker := NewSpeaker(&fakeSynth{}, player)

	first := make(chan error, 1)
	go func() { first <- speaker.Speak(context.Background(), "one", "en") }()
	<-player.started

	second := make(chan error, 1)
	go func() { second <- speaker.Speak(context.Background(), "two", "en") }()

	select {
	case err := <-first:
		if err != nil {
			t.Fatalf("interrupted utterance should return nil, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("first utterance was not interrupted")
	}

	<-player.started
	_ = speaker.Stop()
	if err := <-second; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSpeakerReportsFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("quota")
	speaker := NewSpeaker(&fakeSynth{err: boom}, &fakePlayer{})
	if err := speaker.Speak(context.Background(), "hi", "en"); !errors.Is(err, boom) {
		t.Fatalf("expected synth error, got %v", err)
	}

	device := errors.New("no output device")
	speaker = NewSpeaker(&fakeSynth{}, &fakePlayer{err: device})
	if err := speaker.Speak(context.Background(), "hi", "en"); !errors.Is(err, device) {
		t.Fatalf("expected player error, got %v", err)
	}
}

func TestSpeakerCallerCancellationIsAnError(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	speaker := NewSpeaker(&fakeSynth{}, &fakePlayer{block: true})
	if err := speaker.Speak(ctx, "hi", "en"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSilent(t *testing.T) {
	t.Parallel()

	if err := (Silent{}).Speak(context.Background(), "hi", "en"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (Silent{}).Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
