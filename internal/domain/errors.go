package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNoSpeech      = errors.New("no speech detected")
	ErrNoText        = errors.New("no text found in image")
	ErrNothingToSave = errors.New("no turns to save")
	ErrAutoLanguage  = errors.New("conversation languages must be explicit")
)

// ErrorKind classifies failures by the stage that produced them.
type ErrorKind string

const (
	KindCapture     ErrorKind = "capture"
	KindRecognition ErrorKind = "recognition"
	KindTranslation ErrorKind = "translation"
	KindPlayback    ErrorKind = "playback"
	KindStorage     ErrorKind = "storage"
)

// Error wraps a collaborator failure with its kind.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns nil when err is nil.
func Wrap(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind ErrorKind) bool {
	var target *Error
	if !errors.As(err, &target) {
		return false
	}
	return target.Kind == kind
}
