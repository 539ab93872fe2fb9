package ports

import (
	"context"
	"errors"
	"io"

	"talkbridge/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session yielding s16le PCM.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// Recognizer converts captured audio to text. languageHint may be domain.AutoLanguage.
type Recognizer interface {
	Recognize(ctx context.Context, audio []byte, languageHint string) (string, error)
}

// Translator converts text between languages. from may be domain.AutoLanguage.
type Translator interface {
	Translate(ctx context.Context, text, from, to string) (string, error)
}

// Speaker renders text as audio. Speak blocks until playback ends or Stop is called.
type Speaker interface {
	Speak(ctx context.Context, text, language string) error
	Stop() error
}

// TextExtractor finds text in a photographed image.
type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte, mimeType string) (string, error)
}

// AudioArchive stores captured clips and returns a reference to them.
type AudioArchive interface {
	Put(ctx context.Context, key string, audio []byte) (string, error)
}

// RulesEngine rewrites recognized text before it is translated.
type RulesEngine interface {
	Apply(text, language string) (string, error)
}

// ErrDuplicateRecord is returned by stores that enforce id uniqueness on Append.
var ErrDuplicateRecord = errors.New("record already exists")

// Record is one JSON-encoded entity inside a collection.
type Record struct {
	ID   string
	Data []byte
}

// Store is a durable, insertion-ordered record store.
type Store interface {
	Append(ctx context.Context, collection string, record Record) error
	// List returns records oldest first.
	List(ctx context.Context, collection string) ([]Record, error)
	Remove(ctx context.Context, collection string, id string) error
}

// BatchRemover is implemented by stores that can delete many records at once.
type BatchRemover interface {
	RemoveMany(ctx context.Context, collection string, ids []string) error
}

// EventSink emits state and results to the UI.
type EventSink interface {
	TurnStateChanged(status domain.Status, reason domain.Reason)
	AudioLevel(speaker domain.Speaker, level float64)
	TurnAppended(turn domain.Turn)
	TranslationReady(translation domain.Translation)
	SessionError(code domain.ErrorCode, detail string)
}

// TransitionHook observes state changes, e.g. for audio or haptic feedback.
type TransitionHook interface {
	OnTransition(t domain.Transition)
}
