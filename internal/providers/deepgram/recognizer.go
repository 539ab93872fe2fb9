package deepgram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"talkbridge/internal/domain"
	"talkbridge/internal/locale"
)

const defaultChunkSize = 8192

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	SmartFormat bool
	Encoding    string
	SampleRate  int
	Channels    int
	ChunkSize   int
}

// Recognizer implements ports.Recognizer over Deepgram's live websocket API.
type Recognizer struct {
	cfg    Config
	dialer *websocket.Dialer
}

func NewRecognizer(cfg Config) *Recognizer {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "linear16"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	return &Recognizer{cfg: cfg, dialer: websocket.DefaultDialer}
}

// Recognize streams one recorded utterance and returns the joined final transcript.
func (r *Recognizer) Recognize(ctx context.Context, audio []byte, languageHint string) (string, error) {
	if strings.TrimSpace(r.cfg.APIKey) == "" {
		return "", errors.New("DEEPGRAM_API_KEY is not configured")
	}
	if len(audio) == 0 {
		return "", nil
	}

	wsURL, err := buildListenURL(r.cfg, languageHint)
	if err != nil {
		return "", err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.cfg.APIKey)

	conn, _, err := r.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return "", fmt.Errorf("failed to connect to Deepgram websocket: %w", err)
	}
	return exchange(ctx, conn, audio, r.cfg.ChunkSize)
}

func buildListenURL(cfg Config, languageHint string) (string, error) {
	base := strings.TrimSpace(cfg.APIBaseURL)
	if base == "" {
		base = "https://api.deepgram.com/v1"
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	query := listenURL.Query()
	query.Set("model", cfg.Model)
	query.Set("encoding", cfg.Encoding)
	query.Set("sample_rate", fmt.Sprintf("%d", cfg.SampleRate))
	query.Set("channels", fmt.Sprintf("%d", cfg.Channels))
	query.Set("interim_results", "false")
	query.Set("smart_format", fmt.Sprintf("%t", cfg.SmartFormat))

	hint := strings.TrimSpace(languageHint)
	switch {
	case hint == "" || strings.EqualFold(hint, domain.AutoLanguage):
		query.Set("detect_language", "true")
	default:
		query.Set("language", locale.Recognition(hint))
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
