// Package feedback beeps and notifies on conversation state changes.
package feedback

import (
	"github.com/gen2brain/beeep"

	"talkbridge/internal/domain"
)

const (
	appName = "Talkbridge"

	startFreq = 880.0
	stopFreq  = 660.0
	beepMS    = 120
)

var failureMessages = map[domain.Reason]string{
	domain.ReasonCaptureFailed:       "Microphone is unavailable",
	domain.ReasonTranscriptionFailed: "Speech could not be recognized",
	domain.ReasonTranslationFailed:   "Translation failed",
	domain.ReasonSaveFailed:          "Conversation could not be saved",
}

// Hook implements ports.TransitionHook. Sounds and notifications run on their
// own goroutine so the controller is never blocked.
type Hook struct {
	enabled bool
	beep    func(freq float64, durationMS int) error
	notify  func(title, message string) error
}

func New(enabled bool) *Hook {
	return &Hook{
		enabled: enabled,
		beep:    beeep.Beep,
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

func (h *Hook) OnTransition(t domain.Transition) {
	if !h.enabled {
		return
	}
	switch {
	case t.To == domain.TurnStateRecording && t.From != domain.TurnStateRecording:
		go func() { _ = h.beep(startFreq, beepMS) }()
	case t.From == domain.TurnStateRecording && t.To == domain.TurnStateTranscribing:
		go func() { _ = h.beep(stopFreq, beepMS) }()
	}
	if message, ok := failureMessages[t.Reason]; ok {
		go func() { _ = h.notify(appName, message) }()
	}
}
