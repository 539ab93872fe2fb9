// Package bootstrap assembles the runtime graph from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"talkbridge/internal/audio"
	"talkbridge/internal/blob"
	"talkbridge/internal/config"
	"talkbridge/internal/domain"
	"talkbridge/internal/feedback"
	"talkbridge/internal/logging"
	"talkbridge/internal/ports"
	"talkbridge/internal/providers/deepgram"
	"talkbridge/internal/providers/openai"
	"talkbridge/internal/providers/yandex"
	"talkbridge/internal/rules"
	"talkbridge/internal/speech"
	"talkbridge/internal/store/filestore"
	"talkbridge/internal/store/postgres"
	"talkbridge/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Conversation *usecase.ConversationController
	SingleShot   *usecase.SingleShotController
	Library      *usecase.Library
	PhraseBook   *usecase.PhraseBook
	Config       config.Config
	Logger       *zap.Logger

	closers []func() error
}

// Close releases connections opened by Build.
func (s Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sinks receive events from the two controllers.
type Sinks struct {
	Conversation ports.EventSink
	SingleShot   ports.EventSink
}

// Build loads configuration and wires all backend dependencies.
func Build(ctx context.Context, sinks Sinks) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Path)
	if err != nil {
		return Services{}, err
	}
	return BuildWith(ctx, cfg, logger, sinks)
}

// BuildWith wires dependencies for an already resolved configuration.
func BuildWith(ctx context.Context, cfg config.Config, logger *zap.Logger, sinks Sinks) (services Services, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &wiring{cfg: cfg, logger: logger, conns: map[string]*grpc.ClientConn{}}
	defer func() {
		if err != nil {
			_ = Services{closers: w.closers}.Close()
		}
	}()

	rulesEngine, err := rules.NewEngine(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return Services{}, err
	}
	recognizer, err := w.recognizer()
	if err != nil {
		return Services{}, err
	}
	translator, err := w.translator()
	if err != nil {
		return Services{}, err
	}
	synth, err := w.synthesizer()
	if err != nil {
		return Services{}, err
	}
	store, err := w.store(ctx)
	if err != nil {
		return Services{}, err
	}
	archive, err := w.archive(ctx)
	if err != nil {
		return Services{}, err
	}
	extractor := w.extractor()
	capture := w.capture()

	library := usecase.NewLibrary(store, cfg.Session.HistoryLimit)
	audioCfg := ports.AudioConfig{
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
		InputFormat: cfg.Audio.InputFormat,
		InputDevice: cfg.Audio.InputDevice,
	}

	conversation := usecase.NewConversationController(
		usecase.ConversationDeps{
			Capture:    capture,
			Recognizer: recognizer,
			Translator: translator,
			Speaker:    newSpeaker(synth),
			Rules:      rulesEngine,
			Saver:      library,
			Events:     sinks.Conversation,
			Hooks:      []ports.TransitionHook{feedback.New(cfg.Session.Feedback)},
			Logger:     logger,
		},
		usecase.ConversationConfig{
			Audio:     audioCfg,
			ChunkSize: cfg.Session.ChunkSize,
			Languages: domain.Languages{A: cfg.Session.LanguageA, B: cfg.Session.LanguageB},
		},
	)

	singleShot := usecase.NewSingleShotController(
		usecase.SingleShotDeps{
			Capture:    capture,
			Recognizer: recognizer,
			Translator: translator,
			Speaker:    newSpeaker(synth),
			Extractor:  extractor,
			Archive:    archive,
			Rules:      rulesEngine,
			Log:        library,
			Events:     sinks.SingleShot,
			Logger:     logger,
		},
		usecase.SingleShotConfig{
			Audio:                      audioCfg,
			ChunkSize:                  cfg.Session.ChunkSize,
			Source:                     cfg.Session.SourceLanguage,
			Target:                     cfg.Session.TargetLanguage,
			DefaultRecognitionLanguage: cfg.Session.DefaultRecognitionLanguage,
			SpeakResults:               cfg.Session.SpeakResults,
		},
	)

	logger.Info("services ready",
		zap.String("recognizer", cfg.Providers.Recognizer),
		zap.String("translator", cfg.Providers.Translator),
		zap.String("synthesizer", cfg.Providers.Synthesizer),
		zap.String("capture", cfg.Providers.Capture),
		zap.String("store", cfg.Providers.Store),
		zap.Bool("archive", archive != nil),
		zap.Int("rules", rulesEngine.Len()),
	)

	return Services{
		Conversation: conversation,
		SingleShot:   singleShot,
		Library:      library,
		PhraseBook:   usecase.NewPhraseBook(translator, "en", logger),
		Config:       cfg,
		Logger:       logger,
		closers:      w.closers,
	}, nil
}

type wiring struct {
	cfg     config.Config
	logger  *zap.Logger
	conns   map[string]*grpc.ClientConn
	closers []func() error
}

func (w *wiring) yandexConn(endpoint string) (*grpc.ClientConn, error) {
	if conn, ok := w.conns[endpoint]; ok {
		return conn, nil
	}
	conn, err := yandex.Dial(endpoint)
	if err != nil {
		return nil, err
	}
	w.conns[endpoint] = conn
	w.closers = append(w.closers, conn.Close)
	return conn, nil
}

func (w *wiring) yandexCredentials() yandex.Credentials {
	return yandex.Credentials{
		APIKey:   w.cfg.Yandex.APIKey,
		IAMToken: w.cfg.Yandex.IAMToken,
		FolderID: w.cfg.Yandex.FolderID,
	}
}

func (w *wiring) openAIConfig() openai.Config {
	return openai.Config{
		APIKey:      w.cfg.OpenAI.APIKey,
		BaseURL:     w.cfg.OpenAI.BaseURL,
		ChatModel:   w.cfg.OpenAI.ChatModel,
		SpeechModel: w.cfg.OpenAI.SpeechModel,
		Voice:       w.cfg.OpenAI.Voice,
	}
}

func (w *wiring) recognizer() (ports.Recognizer, error) {
	switch w.cfg.Providers.Recognizer {
	case config.RecognizerYandex:
		conn, err := w.yandexConn(w.cfg.Yandex.STTEndpoint)
		if err != nil {
			return nil, err
		}
		return yandex.NewRecognizer(conn, w.yandexCredentials(), w.cfg.Audio.SampleRate), nil
	default:
		return deepgram.NewRecognizer(deepgram.Config{
			APIKey:      w.cfg.Deepgram.APIKey,
			APIBaseURL:  w.cfg.Deepgram.APIBaseURL,
			Model:       w.cfg.Deepgram.Model,
			SmartFormat: w.cfg.Deepgram.SmartFormat,
			SampleRate:  w.cfg.Audio.SampleRate,
			Channels:    w.cfg.Audio.Channels,
		}), nil
	}
}

func (w *wiring) translator() (ports.Translator, error) {
	switch w.cfg.Providers.Translator {
	case config.TranslatorYandex:
		conn, err := w.yandexConn(w.cfg.Yandex.TranslateEndpoint)
		if err != nil {
			return nil, err
		}
		return yandex.NewTranslator(conn, w.yandexCredentials()), nil
	default:
		translator, err := openai.NewTranslator(w.openAIConfig())
		if err != nil {
			return nil, fmt.Errorf("openai translator: %w", err)
		}
		return translator, nil
	}
}

// synthesizer returns nil when speech output is disabled.
func (w *wiring) synthesizer() (speech.Synthesizer, error) {
	switch w.cfg.Providers.Synthesizer {
	case config.SynthesizerNone:
		return nil, nil
	case config.SynthesizerYandex:
		conn, err := w.yandexConn(w.cfg.Yandex.TTSEndpoint)
		if err != nil {
			return nil, err
		}
		options := yandex.DefaultSynthesisOptions()
		options.Voice = w.cfg.Yandex.Voice
		options.Speed = w.cfg.Yandex.Speed
		return yandex.NewSynthesizer(conn, w.yandexCredentials(), options), nil
	default:
		synth, err := openai.NewSynthesizer(w.openAIConfig())
		if err != nil {
			return nil, fmt.Errorf("openai synthesizer: %w", err)
		}
		return synth, nil
	}
}

// newSpeaker gives each controller its own playback, so stopping one
// controller's speech leaves the other's running.
func newSpeaker(synth speech.Synthesizer) ports.Speaker {
	if synth == nil {
		return speech.Silent{}
	}
	return speech.NewSpeaker(synth, audio.NewPortAudioPlayer())
}

// extractor is optional; photo translation reports a missing extractor
// without an OpenAI key.
func (w *wiring) extractor() ports.TextExtractor {
	extractor, err := openai.NewTextExtractor(w.openAIConfig())
	if err != nil {
		w.logger.Info("photo translation disabled", zap.Error(err))
		return nil
	}
	return extractor
}

func (w *wiring) capture() ports.AudioCapture {
	if w.cfg.Providers.Capture == config.CapturePortAudio {
		return audio.NewPortAudioCapture()
	}
	return audio.NewFFMPEGCapture(w.cfg.Audio.RecorderCommand)
}

func (w *wiring) store(ctx context.Context) (ports.Store, error) {
	if w.cfg.Providers.Store == config.StorePostgres {
		store, err := postgres.Open(ctx, w.cfg.Store.PostgresDSN)
		if err != nil {
			return nil, err
		}
		w.closers = append(w.closers, store.Close)
		return store, nil
	}
	return filestore.New(w.cfg.Store.DataDir)
}

func (w *wiring) archive(ctx context.Context) (ports.AudioArchive, error) {
	if !w.cfg.Archive.Enabled() {
		return nil, nil
	}
	archive, err := blob.NewArchive(ctx, blob.Config{
		Endpoint:  w.cfg.Archive.Endpoint,
		AccessKey: w.cfg.Archive.AccessKey,
		SecretKey: w.cfg.Archive.SecretKey,
		Bucket:    w.cfg.Archive.Bucket,
		Region:    w.cfg.Archive.Region,
		Insecure:  w.cfg.Archive.Insecure,
		Prefix:    w.cfg.Archive.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("audio archive: %w", err)
	}
	return archive, nil
}
