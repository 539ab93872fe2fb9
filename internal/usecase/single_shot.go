package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"talkbridge/internal/domain"
	"talkbridge/internal/ports"
)

const DefaultRecognitionLanguage = "en-US"

var (
	ErrEmptyText           = errors.New("text is empty")
	ErrNoTranslation       = errors.New("no translation yet")
	ErrExtractorMissing    = errors.New("text extraction is not configured")
	ErrTranslatorNotWired  = errors.New("translator is not configured")
	ErrRecognizerNotWired  = errors.New("recognizer is not configured")
	errSingleShotNotActive = ErrNoActiveTurn
)

// TranslationLog records single-shot results.
type TranslationLog interface {
	AddToHistory(ctx context.Context, t domain.Translation) error
	AddFavorite(ctx context.Context, t domain.Translation) (bool, error)
}

// SingleShotDeps are the collaborators of a SingleShotController. Speaker,
// Extractor, Archive, Rules, Logger, Now and NewID are optional.
type SingleShotDeps struct {
	Capture    ports.AudioCapture
	Recognizer ports.Recognizer
	Translator ports.Translator
	Speaker    ports.Speaker
	Extractor  ports.TextExtractor
	Archive    ports.AudioArchive
	Rules      ports.RulesEngine
	Log        TranslationLog
	Events     ports.EventSink
	Logger     *zap.Logger
	Now        func() time.Time
	NewID      func() string
}

// SingleShotConfig controls the one-way translator.
type SingleShotConfig struct {
	Audio                      ports.AudioConfig
	ChunkSize                  int
	Source                     string
	Target                     string
	DefaultRecognitionLanguage string
	SpeakResults               bool
}

// SingleShotController translates one utterance, typed text or photo at a time.
type SingleShotController struct {
	capture    ports.AudioCapture
	recognizer ports.Recognizer
	translator ports.Translator
	speaker    ports.Speaker
	extractor  ports.TextExtractor
	archive    ports.AudioArchive
	log        TranslationLog
	events     ports.EventSink
	finalizer  transcriptFinalizer
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
	cfg        SingleShotConfig

	mu        sync.Mutex
	state     domain.TurnState
	seq       uint64
	recording *activeRecording
	source    string
	target    string
	last      *domain.Translation

	speaking sync.WaitGroup
}

func NewSingleShotController(deps SingleShotDeps, cfg SingleShotConfig) *SingleShotController {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = defaultChunkSize
	}
	if strings.TrimSpace(cfg.DefaultRecognitionLanguage) == "" {
		cfg.DefaultRecognitionLanguage = DefaultRecognitionLanguage
	}
	if strings.TrimSpace(cfg.Source) == "" {
		cfg.Source = domain.AutoLanguage
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

	return &SingleShotController{
		capture:    deps.Capture,
		recognizer: deps.Recognizer,
		translator: deps.Translator,
		speaker:    deps.Speaker,
		extractor:  deps.Extractor,
		archive:    deps.Archive,
		log:        deps.Log,
		events:     events,
		finalizer:  newTranscriptFinalizer(deps.Rules, logger),
		logger:     logger.Named("single_shot"),
		now:        now,
		newID:      newID,
		cfg:        cfg,
		state:      domain.TurnStateIdle,
		source:     cfg.Source,
		target:     cfg.Target,
	}
}

// Start begins capturing speech in the source language.
func (c *SingleShotController) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != domain.TurnStateIdle {
		return ErrControllerBusy
	}
	if err := c.validateTargetLocked(); err != nil {
		return err
	}

	c.seq++
	rec, err := startRecording(ctx, c.capture, c.cfg.Audio, c.cfg.ChunkSize, domain.SpeakerNone, c.events)
	if err != nil {
		c.events.SessionError(domain.ErrorCodeCapture, err.Error())
		c.setStateLocked(domain.TurnStateIdle, domain.ReasonCaptureFailed)
		return err
	}
	c.recording = rec
	c.setStateLocked(domain.TurnStateRecording, domain.ReasonRecordingStarted)
	return nil
}

// Stop ends capture, recognizes and translates the utterance.
func (c *SingleShotController) Stop(ctx context.Context) (domain.Translation, error) {
	c.mu.Lock()
	if c.state != domain.TurnStateRecording || c.recording == nil {
		c.mu.Unlock()
		return domain.Translation{}, errSingleShotNotActive
	}
	rec := c.recording
	c.recording = nil
	seq := c.seq
	source, target := c.source, c.target
	c.setStateLocked(domain.TurnStateTranscribing, domain.ReasonTranscribing)
	c.mu.Unlock()

	audio, readErr, stopErr := rec.finish()
	_ = rec.audio.Close()
	if stopErr != nil {
		c.events.SessionError(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
	}
	if readErr != nil && len(audio) == 0 {
		err := domain.Wrap(domain.KindCapture, "read", readErr)
		return domain.Translation{}, c.fail(seq, domain.ErrorCodeCapture, domain.ReasonCaptureFailed, err)
	}
	if c.recognizer == nil {
		return domain.Translation{}, c.fail(seq, domain.ErrorCodeTranscription, domain.ReasonTranscriptionFailed, ErrRecognizerNotWired)
	}

	raw, err := c.recognizer.Recognize(ctx, audio, c.recognitionLanguage(source))
	if err != nil {
		err = domain.Wrap(domain.KindRecognition, "recognize", err)
		return domain.Translation{}, c.fail(seq, domain.ErrorCodeTranscription, domain.ReasonTranscriptionFailed, err)
	}
	text := c.finalizer.Finalize(raw, source)
	if text == "" {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.seq != seq {
			return domain.Translation{}, ErrTurnCanceled
		}
		c.setStateLocked(domain.TurnStateIdle, domain.ReasonNoSpeech)
		return domain.Translation{}, domain.ErrNoSpeech
	}

	result, err := c.translate(ctx, seq, text, source, target, domain.KindSpeech)
	if err != nil {
		return domain.Translation{}, err
	}

	if c.archive != nil {
		key := fmt.Sprintf("speech/%s.pcm", result.ID)
		ref, err := c.archive.Put(ctx, key, audio)
		if err != nil {
			c.logger.Warn("audio archive upload failed", zap.String("key", key), zap.Error(err))
		} else {
			result.AudioRef = ref
		}
	}

	return c.complete(ctx, seq, result)
}

// Cancel abandons the current capture or drops the in-flight result.
func (c *SingleShotController) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case domain.TurnStateIdle:
		return errSingleShotNotActive
	case domain.TurnStateRecording:
		if c.recording != nil {
			c.recording.discard()
			c.recording = nil
		}
	}
	c.seq++
	c.setStateLocked(domain.TurnStateIdle, domain.ReasonTurnCanceled)
	return nil
}

// TranslateText translates typed text.
func (c *SingleShotController) TranslateText(ctx context.Context, text string) (domain.Translation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Translation{}, ErrEmptyText
	}

	seq, source, target, err := c.beginProcessing(domain.TurnStateTranslating, domain.ReasonTranslating)
	if err != nil {
		return domain.Translation{}, err
	}

	result, err := c.translate(ctx, seq, text, source, target, domain.KindText)
	if err != nil {
		return domain.Translation{}, err
	}
	return c.complete(ctx, seq, result)
}

// TranslateImage extracts text from a photo and translates it.
func (c *SingleShotController) TranslateImage(ctx context.Context, image []byte, mimeType string) (domain.Translation, error) {
	if c.extractor == nil {
		return domain.Translation{}, ErrExtractorMissing
	}

	seq, source, target, err := c.beginProcessing(domain.TurnStateTranscribing, domain.ReasonTranscribing)
	if err != nil {
		return domain.Translation{}, err
	}

	extracted, err := c.extractor.ExtractText(ctx, image, mimeType)
	if err != nil {
		err = domain.Wrap(domain.KindRecognition, "extract text", err)
		return domain.Translation{}, c.fail(seq, domain.ErrorCodeTextExtract, domain.ReasonTranscriptionFailed, err)
	}
	text := strings.TrimSpace(extracted)
	if text == "" {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.seq != seq {
			return domain.Translation{}, ErrTurnCanceled
		}
		c.setStateLocked(domain.TurnStateIdle, domain.ReasonNoSpeech)
		return domain.Translation{}, domain.ErrNoText
	}

	result, err := c.translate(ctx, seq, text, source, target, domain.KindOCR)
	if err != nil {
		return domain.Translation{}, err
	}
	return c.complete(ctx, seq, result)
}

// FavoriteLast adds the most recent result to favorites.
func (c *SingleShotController) FavoriteLast(ctx context.Context) (bool, error) {
	last, ok := c.Last()
	if !ok || c.log == nil {
		return false, ErrNoTranslation
	}
	return c.log.AddFavorite(ctx, last)
}

// Last returns the most recent result.
func (c *SingleShotController) Last() (domain.Translation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return domain.Translation{}, false
	}
	return *c.last, true
}

// SetLanguages selects the source (may be auto) and target languages.
func (c *SingleShotController) SetLanguages(source, target string) error {
	source = strings.TrimSpace(source)
	target = strings.TrimSpace(target)
	if source == "" {
		source = domain.AutoLanguage
	}
	if target == "" || strings.EqualFold(target, domain.AutoLanguage) {
		return domain.ErrAutoLanguage
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.TurnStateIdle {
		return ErrControllerBusy
	}
	c.source, c.target = source, target
	c.setStateLocked(domain.TurnStateIdle, domain.ReasonReady)
	return nil
}

// SwapLanguages exchanges source and target. Not possible while the source is auto.
func (c *SingleShotController) SwapLanguages() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.TurnStateIdle {
		return ErrControllerBusy
	}
	if strings.EqualFold(c.source, domain.AutoLanguage) {
		return domain.ErrAutoLanguage
	}
	c.source, c.target = c.target, c.source
	c.setStateLocked(domain.TurnStateIdle, domain.ReasonReady)
	return nil
}

// Status returns the current controller status.
func (c *SingleShotController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *SingleShotController) beginProcessing(state domain.TurnState, reason domain.Reason) (uint64, string, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != domain.TurnStateIdle {
		return 0, "", "", ErrControllerBusy
	}
	if err := c.validateTargetLocked(); err != nil {
		return 0, "", "", err
	}
	c.seq++
	c.setStateLocked(state, reason)
	return c.seq, c.source, c.target, nil
}

func (c *SingleShotController) translate(ctx context.Context, seq uint64, text, source, target string, kind domain.TranslationKind) (domain.Translation, error) {
	c.mu.Lock()
	if c.seq != seq {
		c.mu.Unlock()
		return domain.Translation{}, ErrTurnCanceled
	}
	if c.state != domain.TurnStateTranslating {
		c.setStateLocked(domain.TurnStateTranslating, domain.ReasonTranslating)
	}
	c.mu.Unlock()

	if c.translator == nil {
		return domain.Translation{}, c.fail(seq, domain.ErrorCodeTranslation, domain.ReasonTranslationFailed, ErrTranslatorNotWired)
	}

	translated, err := c.translator.Translate(ctx, text, source, target)
	if err == nil && strings.TrimSpace(translated) == "" {
		err = errEmptyTranslation
	}
	if err != nil {
		err = domain.Wrap(domain.KindTranslation, "translate", err)
		return domain.Translation{}, c.fail(seq, domain.ErrorCodeTranslation, domain.ReasonTranslationFailed, err)
	}

	c.mu.Lock()
	canceled := c.seq != seq
	c.mu.Unlock()
	if canceled {
		return domain.Translation{}, ErrTurnCanceled
	}

	return domain.Translation{
		ID:             c.newID(),
		SourceText:     text,
		TranslatedText: strings.TrimSpace(translated),
		SourceLang:     source,
		TargetLang:     target,
		Timestamp:      c.now().UnixMilli(),
		Kind:           kind,
	}, nil
}

// complete claims the result for seq, then records, publishes and optionally
// speaks it. A canceled seq gets ErrTurnCanceled and leaves no trace.
// History failures are reported but never discard the result.
func (c *SingleShotController) complete(ctx context.Context, seq uint64, result domain.Translation) (domain.Translation, error) {
	c.mu.Lock()
	if c.seq != seq {
		c.mu.Unlock()
		return domain.Translation{}, ErrTurnCanceled
	}
	stored := result
	c.last = &stored
	c.setStateLocked(domain.TurnStateIdle, domain.ReasonTranslationReady)
	c.mu.Unlock()

	if c.log != nil {
		if err := c.log.AddToHistory(ctx, result); err != nil {
			c.logger.Warn("history write failed", zap.String("translation_id", result.ID), zap.Error(err))
			c.events.SessionError(domain.ErrorCodeStorage, err.Error())
		}
	}
	c.events.TranslationReady(result)

	if c.cfg.SpeakResults && c.speaker != nil {
		c.speaking.Add(1)
		go func() {
			defer c.speaking.Done()
			if err := c.speaker.Speak(context.WithoutCancel(ctx), result.TranslatedText, result.TargetLang); err != nil {
				c.logger.Warn("playback failed", zap.String("language", result.TargetLang), zap.Error(domain.Wrap(domain.KindPlayback, "speak", err)))
			}
		}()
	}
	return result, nil
}

func (c *SingleShotController) fail(seq uint64, code domain.ErrorCode, reason domain.Reason, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq != seq {
		return ErrTurnCanceled
	}
	c.logger.Warn("translation failed", zap.String("reason", string(reason)), zap.Error(err))
	c.events.SessionError(code, err.Error())
	c.setStateLocked(domain.TurnStateIdle, reason)
	return err
}

func (c *SingleShotController) recognitionLanguage(source string) string {
	if source == "" || strings.EqualFold(source, domain.AutoLanguage) {
		return c.cfg.DefaultRecognitionLanguage
	}
	return source
}

func (c *SingleShotController) validateTargetLocked() error {
	if strings.TrimSpace(c.target) == "" || strings.EqualFold(c.target, domain.AutoLanguage) {
		return domain.ErrAutoLanguage
	}
	return nil
}

func (c *SingleShotController) setStateLocked(state domain.TurnState, reason domain.Reason) {
	c.state = state
	c.events.TurnStateChanged(c.statusLocked(), reason)
}

func (c *SingleShotController) statusLocked() domain.Status {
	return domain.Status{
		State:     c.state,
		Active:    c.state != domain.TurnStateIdle,
		Languages: domain.Languages{A: c.source, B: c.target},
	}
}
