package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"talkbridge/internal/domain"
	"talkbridge/internal/ports"
)

var (
	ErrNoActiveTurn   = errors.New("no active turn")
	ErrControllerBusy = errors.New("controller is busy with another turn")
	ErrTurnCanceled   = errors.New("turn canceled")
	ErrInvalidSpeaker = errors.New("speaker must be A or B")

	errEmptyTranslation = errors.New("translator returned empty text")
)

// ConversationSaver persists committed conversations.
type ConversationSaver interface {
	SaveConversation(ctx context.Context, session domain.ConversationSession) error
}

// ConversationDeps are the collaborators of a ConversationController.
// Rules, Hooks, Logger, Now and NewID are optional.
type ConversationDeps struct {
	Capture    ports.AudioCapture
	Recognizer ports.Recognizer
	Translator ports.Translator
	Speaker    ports.Speaker
	Rules      ports.RulesEngine
	Saver      ConversationSaver
	Events     ports.EventSink
	Hooks      []ports.TransitionHook
	Logger     *zap.Logger
	Now        func() time.Time
	NewID      func() string
}

// ConversationConfig controls capture and the initial language slots.
type ConversationConfig struct {
	Audio     ports.AudioConfig
	ChunkSize int
	Languages domain.Languages
}

// ConversationController runs the two-party speech-to-speech turn loop.
type ConversationController struct {
	capture    ports.AudioCapture
	recognizer ports.Recognizer
	translator ports.Translator
	speaker    ports.Speaker
	saver      ConversationSaver
	events     ports.EventSink
	hooks      []ports.TransitionHook
	finalizer  transcriptFinalizer
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
	cfg        ConversationConfig

	mu        sync.Mutex
	state     domain.TurnState
	active    domain.Speaker
	languages domain.Languages
	// seq identifies the current turn; results carrying an older value are dropped.
	seq       uint64
	recording *activeRecording
	stopPlay  context.CancelFunc
	buffer    *turnBuffer
	epoch     uint64
	saving    bool

	playing sync.WaitGroup
}

func NewConversationController(deps ConversationDeps, cfg ConversationConfig) *ConversationController {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = defaultChunkSize
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	events := deps.Events
	if events == nil {
		events = nopEvents{}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return &ConversationController{
		capture:    deps.Capture,
		recognizer: deps.Recognizer,
		translator: deps.Translator,
		speaker:    deps.Speaker,
		saver:      deps.Saver,
		events:     events,
		hooks:      deps.Hooks,
		finalizer:  newTranscriptFinalizer(deps.Rules, logger),
		logger:     logger.Named("conversation"),
		now:        now,
		newID:      newID,
		cfg:        cfg,
		state:      domain.TurnStateIdle,
		languages:  cfg.Languages,
		buffer:     newTurnBuffer(),
	}
}

// BeginTurn starts recording for speaker. Pressing the recording speaker's
// button again stops the turn and returns the completed Turn.
func (c *ConversationController) BeginTurn(ctx context.Context, speaker domain.Speaker) (*domain.Turn, error) {
	if !speaker.Valid() {
		return nil, ErrInvalidSpeaker
	}

	c.mu.Lock()
	if c.state == domain.TurnStateRecording && c.active == speaker {
		c.mu.Unlock()
		turn, err := c.StopTurn(ctx)
		if err != nil {
			return nil, err
		}
		return &turn, nil
	}
	defer c.mu.Unlock()

	if c.state != domain.TurnStateIdle {
		return nil, ErrControllerBusy
	}
	if err := validateLanguages(c.languages); err != nil {
		return nil, err
	}

	c.seq++
	rec, err := startRecording(ctx, c.capture, c.cfg.Audio, c.cfg.ChunkSize, speaker, c.events)
	if err != nil {
		c.logger.Warn("capture start failed", zap.String("speaker", string(speaker)), zap.Error(err))
		c.events.SessionError(domain.ErrorCodeCapture, err.Error())
		c.transitionLocked(domain.TurnStateIdle, domain.SpeakerNone, domain.ReasonCaptureFailed)
		return nil, err
	}

	c.recording = rec
	c.transitionLocked(domain.TurnStateRecording, speaker, domain.ReasonRecordingStarted)
	return nil, nil
}

// StopTurn ends the recording and runs recognition and translation. The Turn
// is appended before playback starts; playback runs in the background.
func (c *ConversationController) StopTurn(ctx context.Context) (domain.Turn, error) {
	c.mu.Lock()
	if c.state != domain.TurnStateRecording || c.recording == nil {
		c.mu.Unlock()
		return domain.Turn{}, ErrNoActiveTurn
	}
	rec := c.recording
	c.recording = nil
	seq := c.seq
	speaker := c.active
	from, to := Direction(c.languages, speaker)
	c.transitionLocked(domain.TurnStateTranscribing, speaker, domain.ReasonTranscribing)
	c.mu.Unlock()

	audio, readErr, stopErr := rec.finish()
	_ = rec.audio.Close()
	if stopErr != nil {
		c.logger.Warn("audio capture did not stop cleanly", zap.Error(stopErr))
		c.events.SessionError(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
	}
	if readErr != nil && len(audio) == 0 {
		err := domain.Wrap(domain.KindCapture, "read", readErr)
		return domain.Turn{}, c.failTurn(seq, domain.ErrorCodeCapture, domain.ReasonCaptureFailed, err)
	}

	raw, err := c.recognizer.Recognize(ctx, audio, from)
	if err != nil {
		err = domain.Wrap(domain.KindRecognition, "recognize", err)
		return domain.Turn{}, c.failTurn(seq, domain.ErrorCodeTranscription, domain.ReasonTranscriptionFailed, err)
	}

	text := c.finalizer.Finalize(raw, from)
	if text == "" {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.seq != seq {
			return domain.Turn{}, ErrTurnCanceled
		}
		c.transitionLocked(domain.TurnStateIdle, domain.SpeakerNone, domain.ReasonNoSpeech)
		return domain.Turn{}, domain.ErrNoSpeech
	}

	c.mu.Lock()
	if c.seq != seq {
		c.mu.Unlock()
		return domain.Turn{}, ErrTurnCanceled
	}
	c.transitionLocked(domain.TurnStateTranslating, speaker, domain.ReasonTranslating)
	c.mu.Unlock()

	translated, err := c.translator.Translate(ctx, text, from, to)
	if err == nil && strings.TrimSpace(translated) == "" {
		err = errEmptyTranslation
	}
	if err != nil {
		err = domain.Wrap(domain.KindTranslation, "translate", err)
		return domain.Turn{}, c.failTurn(seq, domain.ErrorCodeTranslation, domain.ReasonTranslationFailed, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq != seq {
		return domain.Turn{}, ErrTurnCanceled
	}

	turn := domain.Turn{
		ID:             c.newID(),
		Text:           text,
		Translation:    strings.TrimSpace(translated),
		OriginalLang:   from,
		TranslatedLang: to,
		Speaker:        speaker,
		Timestamp:      c.buffer.stamp(c.now()),
	}
	c.buffer.append(turn)
	c.events.TurnAppended(turn)

	c.playLocked(ctx, speaker, turn.Translation, to)
	return turn, nil
}

// CancelTurn abandons the current turn. A recording is discarded unheard,
// an in-flight recognition or translation result is dropped, and playback is
// stopped with the Turn kept.
func (c *ConversationController) CancelTurn() error {
	return c.interrupt(domain.ReasonTurnCanceled)
}

// SkipPlayback stops the current playback and keeps the Turn.
func (c *ConversationController) SkipPlayback() error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state != domain.TurnStateSpeaking {
		return ErrNoActiveTurn
	}
	return c.interrupt(domain.ReasonPlaybackSkipped)
}

// Replay speaks the last translation produced for speaker again.
func (c *ConversationController) Replay(ctx context.Context, speaker domain.Speaker) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != domain.TurnStateIdle {
		return ErrControllerBusy
	}
	turn, ok := c.buffer.lastFor(speaker)
	if !ok {
		return ErrNoActiveTurn
	}
	c.seq++
	c.playLocked(ctx, speaker, turn.Translation, turn.TranslatedLang)
	return nil
}

// EndConversation persists the buffered turns as one session. Only the turns
// present when the snapshot was taken are removed after a successful save.
func (c *ConversationController) EndConversation(ctx context.Context) (domain.ConversationSession, error) {
	c.mu.Lock()
	if c.saving {
		c.mu.Unlock()
		return domain.ConversationSession{}, ErrControllerBusy
	}
	if c.buffer.len() == 0 {
		c.notifyLocked(domain.ReasonNothingToSave)
		c.mu.Unlock()
		return domain.ConversationSession{}, domain.ErrNothingToSave
	}

	turns := c.buffer.snapshot()
	epoch := c.epoch
	session := domain.ConversationSession{
		ID:        c.newID(),
		Timestamp: c.now().UnixMilli(),
		LanguageA: c.languages.A,
		LanguageB: c.languages.B,
		Turns:     turns,
	}
	c.saving = true
	c.mu.Unlock()

	err := c.saver.SaveConversation(ctx, session)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.saving = false

	if err != nil {
		if !domain.IsKind(err, domain.KindStorage) {
			err = domain.Wrap(domain.KindStorage, "save conversation", err)
		}
		c.logger.Error("conversation save failed", zap.Int("turns", len(turns)), zap.Error(err))
		c.events.SessionError(domain.ErrorCodeStorage, err.Error())
		// Hooks see the failure as a transition that keeps the current state.
		c.transitionLocked(c.state, c.active, domain.ReasonSaveFailed)
		return domain.ConversationSession{}, err
	}

	if c.epoch == epoch {
		c.buffer.dropFirst(len(turns))
	}
	c.logger.Info("conversation saved", zap.String("session_id", session.ID), zap.Int("turns", len(turns)))
	c.notifyLocked(domain.ReasonConversationSaved)
	return session, nil
}

// DiscardConversation clears the buffered turns without writing anything.
func (c *ConversationController) DiscardConversation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffer.reset()
	c.epoch++
	c.notifyLocked(domain.ReasonConversationDropped)
}

// SetLanguages replaces both language slots. Only allowed while idle.
func (c *ConversationController) SetLanguages(a, b string) error {
	langs := domain.Languages{A: strings.TrimSpace(a), B: strings.TrimSpace(b)}
	if err := validateLanguages(langs); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.TurnStateIdle {
		return ErrControllerBusy
	}
	c.languages = langs
	c.notifyLocked(domain.ReasonReady)
	return nil
}

// Status returns the current controller status.
func (c *ConversationController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Turns returns the buffered turns in append order.
func (c *ConversationController) Turns() []domain.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.snapshot()
}

// LastTurn returns the most recent buffered turn of speaker.
func (c *ConversationController) LastTurn(speaker domain.Speaker) (domain.Turn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.lastFor(speaker)
}

func (c *ConversationController) interrupt(reason domain.Reason) error {
	c.mu.Lock()
	switch c.state {
	case domain.TurnStateIdle:
		c.mu.Unlock()
		return ErrNoActiveTurn
	case domain.TurnStateRecording:
		rec := c.recording
		c.recording = nil
		c.seq++
		if rec != nil {
			rec.discard()
		}
		c.transitionLocked(domain.TurnStateIdle, domain.SpeakerNone, reason)
		c.mu.Unlock()
		return nil
	case domain.TurnStateSpeaking:
		c.seq++
		stop := c.stopPlay
		c.stopPlay = nil
		c.transitionLocked(domain.TurnStateIdle, domain.SpeakerNone, reason)
		c.mu.Unlock()

		if err := c.speaker.Stop(); err != nil {
			c.logger.Warn("stop playback failed", zap.Error(err))
		}
		if stop != nil {
			stop()
		}
		return nil
	default:
		c.seq++
		c.transitionLocked(domain.TurnStateIdle, domain.SpeakerNone, reason)
		c.mu.Unlock()
		return nil
	}
}

// playLocked moves to speaking and starts playback in the background.
// Playback failures are logged and never undo the turn.
func (c *ConversationController) playLocked(ctx context.Context, speaker domain.Speaker, text, language string) {
	seq := c.seq
	playCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.stopPlay = cancel
	c.transitionLocked(domain.TurnStateSpeaking, speaker, domain.ReasonSpeaking)

	c.playing.Add(1)
	go func() {
		defer c.playing.Done()
		defer cancel()

		if err := c.speaker.Speak(playCtx, text, language); err != nil && playCtx.Err() == nil {
			c.logger.Warn("playback failed",
				zap.String("speaker", string(speaker)),
				zap.String("language", language),
				zap.Error(domain.Wrap(domain.KindPlayback, "speak", err)),
			)
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.seq != seq || c.state != domain.TurnStateSpeaking {
			return
		}
		c.stopPlay = nil
		c.transitionLocked(domain.TurnStateIdle, domain.SpeakerNone, domain.ReasonSpeechComplete)
	}()
}

func (c *ConversationController) failTurn(seq uint64, code domain.ErrorCode, reason domain.Reason, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq != seq {
		return ErrTurnCanceled
	}
	c.logger.Warn("turn failed", zap.String("reason", string(reason)), zap.Error(err))
	c.events.SessionError(code, err.Error())
	c.transitionLocked(domain.TurnStateIdle, domain.SpeakerNone, reason)
	return err
}

func (c *ConversationController) transitionLocked(to domain.TurnState, speaker domain.Speaker, reason domain.Reason) {
	transition := domain.Transition{From: c.state, To: to, Speaker: speaker, Reason: reason}
	if speaker == domain.SpeakerNone {
		transition.Speaker = c.active
	}
	c.state = to
	c.active = speaker

	c.events.TurnStateChanged(c.statusLocked(), reason)
	for _, hook := range c.hooks {
		hook.OnTransition(transition)
	}
}

func (c *ConversationController) notifyLocked(reason domain.Reason) {
	c.events.TurnStateChanged(c.statusLocked(), reason)
}

func (c *ConversationController) statusLocked() domain.Status {
	return domain.Status{
		State:         c.state,
		Speaker:       c.active,
		Active:        c.state != domain.TurnStateIdle,
		BufferedTurns: c.buffer.len(),
		Languages:     c.languages,
	}
}

type nopEvents struct{}

func (nopEvents) TurnStateChanged(domain.Status, domain.Reason) {}
func (nopEvents) AudioLevel(domain.Speaker, float64)            {}
func (nopEvents) TurnAppended(domain.Turn)                      {}
func (nopEvents) TranslationReady(domain.Translation)           {}
func (nopEvents) SessionError(domain.ErrorCode, string)         {}
