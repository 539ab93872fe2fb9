// Package config resolves runtime configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	RecognizerDeepgram = "deepgram"
	RecognizerYandex   = "yandex"

	TranslatorOpenAI = "openai"
	TranslatorYandex = "yandex"

	SynthesizerOpenAI = "openai"
	SynthesizerYandex = "yandex"
	SynthesizerNone   = "none"

	CaptureFFMPEG    = "ffmpeg"
	CapturePortAudio = "portaudio"

	StoreFile     = "file"
	StorePostgres = "postgres"
)

type Config struct {
	Providers ProvidersConfig
	Deepgram  DeepgramConfig
	Yandex    YandexConfig
	OpenAI    OpenAIConfig
	Audio     AudioConfig
	Store     StoreConfig
	Archive   ArchiveConfig
	Session   SessionConfig
	Log       LogConfig
	Rules     RulesConfig
}

type ProvidersConfig struct {
	Recognizer  string
	Translator  string
	Synthesizer string
	Capture     string
	Store       string
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	SmartFormat bool
}

type YandexConfig struct {
	APIKey            string
	IAMToken          string
	FolderID          string
	STTEndpoint       string
	TTSEndpoint       string
	TranslateEndpoint string
	Voice             string
	Speed             float64
}

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ChatModel   string
	SpeechModel string
	Voice       string
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type StoreConfig struct {
	DataDir     string
	PostgresDSN string
}

// ArchiveConfig is enabled when Endpoint and Bucket are both set.
type ArchiveConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Insecure  bool
	Prefix    string
}

func (a ArchiveConfig) Enabled() bool {
	return a.Endpoint != "" && a.Bucket != ""
}

type SessionConfig struct {
	ChunkSize                  int
	HistoryLimit               int
	DefaultRecognitionLanguage string
	SourceLanguage             string
	TargetLanguage             string
	LanguageA                  string
	LanguageB                  string
	SpeakResults               bool
	Feedback                   bool
}

type LogConfig struct {
	Level string
	Path  string
}

type RulesConfig struct {
	Path           string
	IterationLimit int
}

// env reads the process environment first and the .env file second.
type env struct {
	file map[string]string
}

func (e env) get(key string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return strings.TrimSpace(e.file[key])
}

// Load resolves configuration. The .env file named by TALKBRIDGE_ENV_FILE
// (default ".env") is optional; variables already set in the environment win.
func Load() (Config, error) {
	envPath := strings.TrimSpace(os.Getenv("TALKBRIDGE_ENV_FILE"))
	if envPath == "" {
		envPath = ".env"
	}
	file, err := godotenv.Read(envPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read %s: %w", envPath, err)
	}
	e := env{file: file}

	dataDir := e.get("TALKBRIDGE_DATA_DIR")
	if dataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return Config{}, errors.New("could not determine config directory")
		}
		dataDir = filepath.Join(base, "talkbridge")
	}

	rulesPath := e.get("TALKBRIDGE_RULES_FILE")
	if rulesPath == "" {
		rulesPath = filepath.Join(dataDir, "transcript.rules")
	}

	cfg := Config{
		Providers: ProvidersConfig{
			Recognizer:  e.choice("TALKBRIDGE_RECOGNIZER", RecognizerDeepgram),
			Translator:  e.choice("TALKBRIDGE_TRANSLATOR", TranslatorOpenAI),
			Synthesizer: e.choice("TALKBRIDGE_SYNTHESIZER", SynthesizerOpenAI),
			Capture:     e.choice("TALKBRIDGE_CAPTURE", CaptureFFMPEG),
			Store:       e.choice("TALKBRIDGE_STORE", StoreFile),
		},
		Deepgram: DeepgramConfig{
			APIKey:      e.get("DEEPGRAM_API_KEY"),
			APIBaseURL:  e.orDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       e.orDefault("DEEPGRAM_MODEL", "nova-2"),
			SmartFormat: e.orDefaultBool("DEEPGRAM_SMART_FORMAT", true),
		},
		Yandex: YandexConfig{
			APIKey:            e.get("YANDEX_API_KEY"),
			IAMToken:          e.get("YANDEX_IAM_TOKEN"),
			FolderID:          e.get("YANDEX_FOLDER_ID"),
			STTEndpoint:       e.orDefault("YANDEX_STT_ENDPOINT", "stt.api.cloud.yandex.net:443"),
			TTSEndpoint:       e.orDefault("YANDEX_TTS_ENDPOINT", "tts.api.cloud.yandex.net:443"),
			TranslateEndpoint: e.orDefault("YANDEX_TRANSLATE_ENDPOINT", "translate.api.cloud.yandex.net:443"),
			Voice:             e.get("YANDEX_TTS_VOICE"),
			Speed:             e.orDefaultFloat("YANDEX_TTS_SPEED", 1.0),
		},
		OpenAI: OpenAIConfig{
			APIKey:      e.get("OPENAI_API_KEY"),
			BaseURL:     e.get("OPENAI_BASE_URL"),
			ChatModel:   e.get("OPENAI_CHAT_MODEL"),
			SpeechModel: e.get("OPENAI_SPEECH_MODEL"),
			Voice:       e.get("OPENAI_VOICE"),
		},
		Audio: AudioConfig{
			RecorderCommand: e.orDefault("TALKBRIDGE_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     e.get("TALKBRIDGE_AUDIO_INPUT_FORMAT"),
			InputDevice:     e.get("TALKBRIDGE_AUDIO_INPUT_DEVICE"),
			SampleRate:      e.orDefaultInt("TALKBRIDGE_SAMPLE_RATE", 16000),
			Channels:        e.orDefaultInt("TALKBRIDGE_CHANNELS", 1),
		},
		Store: StoreConfig{
			DataDir:     dataDir,
			PostgresDSN: e.get("TALKBRIDGE_POSTGRES_DSN"),
		},
		Archive: ArchiveConfig{
			Endpoint:  e.get("TALKBRIDGE_S3_ENDPOINT"),
			AccessKey: e.get("TALKBRIDGE_S3_ACCESS_KEY"),
			SecretKey: e.get("TALKBRIDGE_S3_SECRET_KEY"),
			Bucket:    e.get("TALKBRIDGE_S3_BUCKET"),
			Region:    e.get("TALKBRIDGE_S3_REGION"),
			Insecure:  e.orDefaultBool("TALKBRIDGE_S3_INSECURE", false),
			Prefix:    e.get("TALKBRIDGE_S3_PREFIX"),
		},
		Session: SessionConfig{
			ChunkSize:                  e.orDefaultInt("TALKBRIDGE_AUDIO_CHUNK_SIZE", 4096),
			HistoryLimit:               e.orDefaultInt("TALKBRIDGE_HISTORY_LIMIT", 100),
			DefaultRecognitionLanguage: e.orDefault("TALKBRIDGE_DEFAULT_RECOGNITION_LANGUAGE", "en-US"),
			SourceLanguage:             e.orDefault("TALKBRIDGE_SOURCE_LANGUAGE", "auto"),
			TargetLanguage:             e.orDefault("TALKBRIDGE_TARGET_LANGUAGE", "hi"),
			LanguageA:                  e.orDefault("TALKBRIDGE_LANGUAGE_A", "en"),
			LanguageB:                  e.orDefault("TALKBRIDGE_LANGUAGE_B", "hi"),
			SpeakResults:               e.orDefaultBool("TALKBRIDGE_SPEAK_RESULTS", true),
			Feedback:                   e.orDefaultBool("TALKBRIDGE_FEEDBACK", true),
		},
		Log: LogConfig{
			Level: e.orDefault("TALKBRIDGE_LOG_LEVEL", "info"),
			Path:  e.get("TALKBRIDGE_LOG_FILE"),
		},
		Rules: RulesConfig{
			Path:           rulesPath,
			IterationLimit: e.orDefaultInt("TALKBRIDGE_RULE_ITERATION_LIMIT", 30),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = 30
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = 4096
	}
	if cfg.Session.HistoryLimit <= 0 {
		cfg.Session.HistoryLimit = 100
	}
	if cfg.Yandex.Speed <= 0 {
		cfg.Yandex.Speed = 1.0
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	checks := []struct {
		name, value string
		allowed     []string
	}{
		{"TALKBRIDGE_RECOGNIZER", c.Providers.Recognizer, []string{RecognizerDeepgram, RecognizerYandex}},
		{"TALKBRIDGE_TRANSLATOR", c.Providers.Translator, []string{TranslatorOpenAI, TranslatorYandex}},
		{"TALKBRIDGE_SYNTHESIZER", c.Providers.Synthesizer, []string{SynthesizerOpenAI, SynthesizerYandex, SynthesizerNone}},
		{"TALKBRIDGE_CAPTURE", c.Providers.Capture, []string{CaptureFFMPEG, CapturePortAudio}},
		{"TALKBRIDGE_STORE", c.Providers.Store, []string{StoreFile, StorePostgres}},
	}
	for _, check := range checks {
		if !contains(check.allowed, check.value) {
			return fmt.Errorf("%s=%q is not one of %s", check.name, check.value, strings.Join(check.allowed, ", "))
		}
	}
	if c.Providers.Store == StorePostgres && c.Store.PostgresDSN == "" {
		return errors.New("TALKBRIDGE_POSTGRES_DSN is required for the postgres store")
	}
	return nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

func (e env) orDefault(key string, fallback string) string {
	if value := e.get(key); value != "" {
		return value
	}
	return fallback
}

// choice is orDefault for case-insensitive selectors.
func (e env) choice(key string, fallback string) string {
	return strings.ToLower(e.orDefault(key, fallback))
}

func (e env) orDefaultInt(key string, fallback int) int {
	value := e.get(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (e env) orDefaultFloat(key string, fallback float64) float64 {
	value := e.get(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func (e env) orDefaultBool(key string, fallback bool) bool {
	switch strings.ToLower(e.get(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
