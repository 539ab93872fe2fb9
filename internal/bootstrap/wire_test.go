package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"talkbridge/internal/config"
	"talkbridge/internal/domain"
	"talkbridge/internal/speech"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("TALKBRIDGE_ENV_FILE", filepath.Join(home, "absent.env"))
	t.Setenv("TALKBRIDGE_DATA_DIR", filepath.Join(home, "data"))
	t.Setenv("TALKBRIDGE_LOG_FILE", filepath.Join(home, "talkbridge.log"))
	t.Setenv("TALKBRIDGE_FEEDBACK", "off")
	return home
}

func TestBuildSuccess(t *testing.T) {
	home := isolate(t)
	t.Setenv("DEEPGRAM_API_KEY", "test-key")
	t.Setenv("OPENAI_API_KEY", "test-key")

	services, err := Build(context.Background(), Sinks{Conversation: noopEventSink{}, SingleShot: noopEventSink{}})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(func() { _ = services.Close() })

	if services.Conversation == nil || services.SingleShot == nil || services.Library == nil || services.PhraseBook == nil {
		t.Fatalf("expected all services, got %+v", services)
	}
	if got := services.Conversation.Status().Languages; got.A != "en" || got.B != "hi" {
		t.Fatalf("unexpected default languages: %+v", got)
	}

	ctx := context.Background()
	if err := services.Library.AddToHistory(ctx, domain.Translation{ID: "t1", SourceText: "hi", TranslatedText: "नमस्ते"}); err != nil {
		t.Fatalf("history write failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, "data", "translation_history.json")); err != nil {
		t.Fatalf("expected history file in data dir: %v", err)
	}
}

func TestBuildFailsOnInvalidRules(t *testing.T) {
	home := isolate(t)
	rules := filepath.Join(home, "bad.rules")
	if err := os.WriteFile(rules, []byte("not a valid rule\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("TALKBRIDGE_RULES_FILE", rules)

	if _, err := Build(context.Background(), Sinks{}); err == nil {
		t.Fatalf("expected build error due to invalid rules")
	}
}

func TestBuildRequiresOpenAIKeyForOpenAITranslator(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Build(context.Background(), Sinks{})
	if err == nil || !strings.Contains(err.Error(), "openai translator") {
		t.Fatalf("expected openai key error, got %v", err)
	}
}

func TestBuildWithYandexAndSilentSpeaker(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Providers: config.ProvidersConfig{
			Recognizer:  config.RecognizerYandex,
			Translator:  config.TranslatorYandex,
			Synthesizer: config.SynthesizerNone,
			Capture:     config.CapturePortAudio,
			Store:       config.StoreFile,
		},
		Yandex: config.YandexConfig{
			APIKey:            "key",
			STTEndpoint:       "stt.example.invalid:443",
			TranslateEndpoint: "translate.example.invalid:443",
		},
		Store:   config.StoreConfig{DataDir: t.TempDir()},
		Session: config.SessionConfig{LanguageA: "ru", LanguageB: "en", HistoryLimit: 5},
	}

	services, err := BuildWith(context.Background(), cfg, nil, Sinks{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(services.closers) != 2 {
		t.Fatalf("expected one connection per yandex endpoint, got %d closers", len(services.closers))
	}
	if err := services.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestBuildFailsOnUnreachableArchive(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Providers: config.ProvidersConfig{
			Recognizer:  config.RecognizerDeepgram,
			Translator:  config.TranslatorYandex,
			Synthesizer: config.SynthesizerNone,
			Capture:     config.CaptureFFMPEG,
			Store:       config.StoreFile,
		},
		Yandex:  config.YandexConfig{TranslateEndpoint: "translate.example.invalid:443"},
		Store:   config.StoreConfig{DataDir: t.TempDir()},
		Archive: config.ArchiveConfig{Endpoint: "127.0.0.1:1", Bucket: "clips", Region: "us-east-1", Insecure: true},
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := BuildWith(ctx, cfg, nil, Sinks{}); err == nil || !strings.Contains(err.Error(), "audio archive") {
		t.Fatalf("expected archive error, got %v", err)
	}
}

type noopEventSink struct{}

func (noopEventSink) TurnStateChanged(domain.Status, domain.Reason) {}
func (noopEventSink) AudioLevel(domain.Speaker, float64)            {}
func (noopEventSink) TurnAppended(domain.Turn)                      {}
func (noopEventSink) TranslationReady(domain.Translation)           {}
func (noopEventSink) SessionError(domain.ErrorCode, string)         {}

type stubSynthesizer struct{}

func (stubSynthesizer) Synthesize(context.Context, string, string) ([]byte, error) {
	return nil, nil
}

func TestNewSpeakerIsPerController(t *testing.T) {
	t.Parallel()

	first, ok := newSpeaker(stubSynthesizer{}).(*speech.Speaker)
	if !ok {
		t.Fatalf("expected a playback speaker")
	}
	second, ok := newSpeaker(stubSynthesizer{}).(*speech.Speaker)
	if !ok {
		t.Fatalf("expected a playback speaker")
	}
	if first == second {
		t.Fatalf("controllers must not share a speaker")
	}
	if _, ok := newSpeaker(nil).(speech.Silent); !ok {
		t.Fatalf("expected silent speaker without a synthesizer")
	}
}
