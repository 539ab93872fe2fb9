package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"talkbridge/internal/bootstrap"
	"talkbridge/internal/config"
	"talkbridge/internal/domain"
	"talkbridge/internal/usecase"
)

const (
	eventConversationState = "talkbridge:conversation:state"
	eventConversationLevel = "talkbridge:conversation:level"
	eventConversationTurn  = "talkbridge:conversation:turn"
	eventTranslateState    = "talkbridge:translate:state"
	eventTranslateLevel    = "talkbridge:translate:level"
	eventTranslateResult   = "talkbridge:translate:result"
	eventError             = "talkbridge:error"
)

type emitFunc func(ctx context.Context, name string, data ...interface{})

// App is the Wails application root.
type App struct {
	ctx  context.Context
	emit emitFunc

	services bootstrap.Services
	cfg      config.Config
	logger   *zap.Logger
	bootErr  error
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit, logger: zap.NewNop()}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(ctx, bootstrap.Sinks{
		Conversation: &eventSink{app: a, state: eventConversationState, level: eventConversationLevel},
		SingleShot:   &eventSink{app: a, state: eventTranslateState, level: eventTranslateLevel},
	})
	if err != nil {
		a.bootErr = err
		a.sessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.cfg = services.Config
	a.logger = services.Logger
	a.publishStatus(eventConversationState, services.Conversation.Status(), domain.ReasonReady)
	a.publishStatus(eventTranslateState, services.SingleShot.Status(), domain.ReasonReady)
}

func (a *App) shutdown(context.Context) {
	if a.services.Conversation != nil {
		_ = a.services.Conversation.CancelTurn()
	}
	if a.services.SingleShot != nil {
		_ = a.services.SingleShot.Cancel()
	}
	if err := a.services.Close(); err != nil {
		a.logger.Warn("shutdown failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// BeginTurn starts recording for speaker "A" or "B". Pressing the active
// speaker again stops the turn and returns it.
func (a *App) BeginTurn(speaker string) (*domain.Turn, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.services.Conversation.BeginTurn(a.ctx, domain.Speaker(strings.ToUpper(speaker)))
}

func (a *App) StopTurn() (domain.Turn, error) {
	if err := a.requireReady(); err != nil {
		return domain.Turn{}, err
	}
	return a.services.Conversation.StopTurn(a.ctx)
}

// CancelTurn abandons the in-flight turn. Having none is not an error here.
func (a *App) CancelTurn() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return ignoreIdle(a.services.Conversation.CancelTurn())
}

func (a *App) SkipPlayback() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return ignoreIdle(a.services.Conversation.SkipPlayback())
}

func (a *App) ReplayLast(speaker string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Conversation.Replay(a.ctx, domain.Speaker(strings.ToUpper(speaker)))
}

func (a *App) EndConversation() (domain.ConversationSession, error) {
	if err := a.requireReady(); err != nil {
		return domain.ConversationSession{}, err
	}
	return a.services.Conversation.EndConversation(a.ctx)
}

func (a *App) DiscardConversation() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.services.Conversation.DiscardConversation()
	return nil
}

func (a *App) SetConversationLanguages(languageA, languageB string) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.services.Conversation.SetLanguages(languageA, languageB); err != nil {
		return domain.Status{}, err
	}
	return a.services.Conversation.Status(), nil
}

func (a *App) GetConversationStatus() domain.Status {
	if a.services.Conversation == nil {
		return a.notReadyStatus()
	}
	return a.services.Conversation.Status()
}

func (a *App) GetTurns() []domain.Turn {
	if a.services.Conversation == nil {
		return nil
	}
	return a.services.Conversation.Turns()
}

func (a *App) StartListening() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.SingleShot.Start(a.ctx)
}

func (a *App) StopListening() (domain.Translation, error) {
	if err := a.requireReady(); err != nil {
		return domain.Translation{}, err
	}
	return a.services.SingleShot.Stop(a.ctx)
}

func (a *App) CancelListening() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return ignoreIdle(a.services.SingleShot.Cancel())
}

func (a *App) TranslateText(text string) (domain.Translation, error) {
	if err := a.requireReady(); err != nil {
		return domain.Translation{}, err
	}
	return a.services.SingleShot.TranslateText(a.ctx, text)
}

// TranslateImage accepts a base64 payload, optionally as a data URL.
func (a *App) TranslateImage(encoded, mimeType string) (domain.Translation, error) {
	if err := a.requireReady(); err != nil {
		return domain.Translation{}, err
	}
	image, detected, err := decodeImage(encoded)
	if err != nil {
		return domain.Translation{}, err
	}
	if mimeType == "" {
		mimeType = detected
	}
	return a.services.SingleShot.TranslateImage(a.ctx, image, mimeType)
}

func (a *App) FavoriteLast() (bool, error) {
	if err := a.requireReady(); err != nil {
		return false, err
	}
	return a.services.SingleShot.FavoriteLast(a.ctx)
}

func (a *App) SetTranslateLanguages(source, target string) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.services.SingleShot.SetLanguages(source, target); err != nil {
		return domain.Status{}, err
	}
	return a.services.SingleShot.Status(), nil
}

func (a *App) SwapLanguages() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.services.SingleShot.SwapLanguages(); err != nil {
		return domain.Status{}, err
	}
	return a.services.SingleShot.Status(), nil
}

func (a *App) GetTranslateStatus() domain.Status {
	if a.services.SingleShot == nil {
		return a.notReadyStatus()
	}
	return a.services.SingleShot.Status()
}

func (a *App) GetHistory() ([]domain.Translation, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.services.Library.History(a.ctx)
}

func (a *App) RemoveFromHistory(id string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Library.RemoveFromHistory(a.ctx, id)
}

func (a *App) ClearHistory() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Library.ClearHistory(a.ctx)
}

func (a *App) GetFavorites() ([]domain.Translation, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.services.Library.Favorites(a.ctx)
}

func (a *App) ToggleFavorite(t domain.Translation) (bool, error) {
	if err := a.requireReady(); err != nil {
		return false, err
	}
	return a.services.Library.ToggleFavorite(a.ctx, t)
}

func (a *App) RemoveFavorite(id string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Library.RemoveFavorite(a.ctx, id)
}

func (a *App) GetConversations() ([]domain.ConversationSession, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.services.Library.Conversations(a.ctx)
}

func (a *App) DeleteConversation(id string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Library.DeleteConversation(a.ctx, id)
}

func (a *App) ToggleConversationFavorite(session domain.ConversationSession) (bool, error) {
	if err := a.requireReady(); err != nil {
		return false, err
	}
	return a.services.Library.ToggleConversationFavorite(a.ctx, session)
}

func (a *App) GetConversationFavorites() ([]domain.ConversationSession, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.services.Library.ConversationFavorites(a.ctx)
}

func (a *App) SearchRegions(query string) []usecase.Region {
	if a.services.PhraseBook == nil {
		return nil
	}
	return a.services.PhraseBook.Search(query)
}

// PhraseSet is a region with its prefetched phrase translations.
type PhraseSet struct {
	Region  usecase.Region    `json:"region"`
	Phrases map[string]string `json:"phrases"`
}

func (a *App) PhrasesForRegion(name string) (PhraseSet, error) {
	if err := a.requireReady(); err != nil {
		return PhraseSet{}, err
	}
	region, phrases, err := a.services.PhraseBook.ForRegion(a.ctx, name)
	if err != nil {
		return PhraseSet{}, err
	}
	return PhraseSet{Region: region, Phrases: phrases}, nil
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	return map[string]string{
		"recognizer":  a.cfg.Providers.Recognizer,
		"translator":  a.cfg.Providers.Translator,
		"synthesizer": a.cfg.Providers.Synthesizer,
		"capture":     a.cfg.Providers.Capture,
		"store":       a.cfg.Providers.Store,
		"dataDir":     a.cfg.Store.DataDir,
		"rulesFile":   a.cfg.Rules.Path,
		"audioInput":  a.cfg.Audio.InputDevice,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services.Conversation == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) notReadyStatus() domain.Status {
	status := domain.Status{State: domain.TurnStateIdle}
	if a.bootErr != nil {
		status.Message = a.bootErr.Error()
	}
	return status
}

func (a *App) publish(name string, payload interface{}) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, name, payload)
}

func (a *App) publishStatus(name string, status domain.Status, reason domain.Reason) {
	a.publish(name, map[string]interface{}{
		"status":  status,
		"reason":  string(reason),
		"message": reasonMessage(reason),
	})
}

func (a *App) sessionError(code domain.ErrorCode, detail string) {
	a.publish(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

// eventSink forwards one controller's events to the frontend.
type eventSink struct {
	app   *App
	state string
	level string
}

func (s *eventSink) TurnStateChanged(status domain.Status, reason domain.Reason) {
	s.app.publishStatus(s.state, status, reason)
}

func (s *eventSink) AudioLevel(speaker domain.Speaker, level float64) {
	s.app.publish(s.level, map[string]interface{}{"speaker": string(speaker), "level": level})
}

func (s *eventSink) TurnAppended(turn domain.Turn) {
	s.app.publish(eventConversationTurn, turn)
}

func (s *eventSink) TranslationReady(translation domain.Translation) {
	s.app.publish(eventTranslateResult, translation)
}

func (s *eventSink) SessionError(code domain.ErrorCode, detail string) {
	s.app.sessionError(code, detail)
}

func ignoreIdle(err error) error {
	if errors.Is(err, usecase.ErrNoActiveTurn) {
		return nil
	}
	return err
}

func decodeImage(encoded string) ([]byte, string, error) {
	mimeType := ""
	if rest, ok := strings.CutPrefix(encoded, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", errors.New("malformed data url")
		}
		mimeType = strings.TrimSuffix(header, ";base64")
		encoded = payload
	}
	image, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return image, mimeType, nil
}

func reasonMessage(reason domain.Reason) string {
	switch reason {
	case domain.ReasonReady:
		return "Ready"
	case domain.ReasonRecordingStarted:
		return "Listening..."
	case domain.ReasonTranscribing:
		return "Recognizing speech..."
	case domain.ReasonTranslating:
		return "Translating..."
	case domain.ReasonSpeaking:
		return "Speaking translation"
	case domain.ReasonSpeechComplete:
		return "Done"
	case domain.ReasonPlaybackSkipped:
		return "Playback skipped"
	case domain.ReasonTurnCanceled:
		return "Turn canceled"
	case domain.ReasonNoSpeech:
		return "No speech detected"
	case domain.ReasonCaptureFailed:
		return "Microphone unavailable"
	case domain.ReasonTranscriptionFailed:
		return "Speech recognition failed"
	case domain.ReasonTranslationFailed:
		return "Translation failed"
	case domain.ReasonTranslationReady:
		return "Translation ready"
	case domain.ReasonNothingToSave:
		return "Nothing to save"
	case domain.ReasonConversationSaved:
		return "Conversation saved"
	case domain.ReasonConversationDropped:
		return "Conversation discarded"
	case domain.ReasonSaveFailed:
		return "Conversation could not be saved"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeCapture:
		return "Microphone error"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeTranscription:
		return "Speech recognition error"
	case domain.ErrorCodeTranslation:
		return "Translation error"
	case domain.ErrorCodeStorage:
		return "Could not save"
	case domain.ErrorCodeTextExtract:
		return "Could not read text from image"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
