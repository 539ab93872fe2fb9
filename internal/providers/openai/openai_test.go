package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"
)

type fakeAPI struct {
	mu       sync.Mutex
	requests map[string][]byte
	reply    string
	speech   []byte
}

func newFakeAPI(t *testing.T, reply string) (*fakeAPI, Config) {
	t.Helper()

	api := &fakeAPI{requests: make(map[string][]byte), reply: reply, speech: []byte("ID3mp3")}
	server := httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(server.Close)
	return api, Config{APIKey: "test-key", BaseURL: server.URL + "/v1/"}
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.requests[r.URL.Path] = body
	f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer test-key" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch r.URL.Path {
	case "/v1/chat/completions":
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": f.reply}}},
		})
	case "/v1/audio/speech":
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(f.speech)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeAPI) request(t *testing.T, path string, out any) {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.requests[path]
	if !ok {
		t.Fatalf("no request recorded for %s", path)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode %s request: %v", path, err)
	}
}

func TestTranslatorSendsDirectionInPrompt(t *testing.T) {
	t.Parallel()

	api, cfg := newFakeAPI(t, "  வணக்கம்\n")
	translator, err := NewTranslator(cfg)
	if err != nil {
		t.Fatalf("new translator: %v", err)
	}

	got, err := translator.Translate(context.Background(), "hello", "en", "ta")
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}
	if got != "வணக்கம்" {
		t.Fatalf("unexpected translation %q", got)
	}

	var req goopenai.ChatCompletionRequest
	api.request(t, "/v1/chat/completions", &req)
	if req.Model != goopenai.GPT4oMini {
		t.Fatalf("unexpected model %q", req.Model)
	}
	if len(req.Messages) != 2 || req.Messages[1].Content != "hello" {
		t.Fatalf("unexpected messages: %+v", req.Messages)
	}
	if !strings.Contains(req.Messages[0].Content, "from language en") || !strings.Contains(req.Messages[0].Content, "into language ta") {
		t.Fatalf("prompt is missing direction: %q", req.Messages[0].Content)
	}
}

func TestTranslatorAutoSourceAndMissingTarget(t *testing.T) {
	t.Parallel()

	if prompt := systemPrompt("auto", "hi"); !strings.Contains(prompt, "whatever language") {
		t.Fatalf("auto source should let the model detect: %q", prompt)
	}

	_, cfg := newFakeAPI(t, "x")
	translator, err := NewTranslator(cfg)
	if err != nil {
		t.Fatalf("new translator: %v", err)
	}
	if _, err := translator.Translate(context.Background(), "hello", "en", "auto"); err == nil {
		t.Fatalf("expected error for auto target")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewTranslator(Config{}); !errors.Is(err, errMissingAPIKey) {
		t.Fatalf("expected missing key error, got %v", err)
	}
	if _, err := NewSynthesizer(Config{APIKey: " "}); !errors.Is(err, errMissingAPIKey) {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestSynthesizerReturnsMP3(t *testing.T) {
	t.Parallel()

	api, cfg := newFakeAPI(t, "")
	cfg.Voice = "nova"
	synth, err := NewSynthesizer(cfg)
	if err != nil {
		t.Fatalf("new synthesizer: %v", err)
	}

	audio, err := synth.Synthesize(context.Background(), "hello", "en")
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
	if string(audio) != "ID3mp3" {
		t.Fatalf("unexpected audio %q", audio)
	}

	var req goopenai.CreateSpeechRequest
	api.request(t, "/v1/audio/speech", &req)
	if req.Voice != "nova" || req.ResponseFormat != goopenai.SpeechResponseFormatMp3 || req.Input != "hello" {
		t.Fatalf("unexpected speech request: %+v", req)
	}
}

func TestTextExtractorSendsImageAsDataURL(t *testing.T) {
	t.Parallel()

	api, cfg := newFakeAPI(t, "EXIT")
	extractor, err := NewTextExtractor(cfg)
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}

	got, err := extractor.ExtractText(context.Background(), []byte{0xff, 0xd8}, "image/png")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if got != "EXIT" {
		t.Fatalf("unexpected text %q", got)
	}

	var req goopenai.ChatCompletionRequest
	api.request(t, "/v1/chat/completions", &req)
	parts := req.Messages[0].MultiContent
	if len(parts) != 2 || parts[1].ImageURL == nil {
		t.Fatalf("unexpected parts: %+v", parts)
	}
	if parts[1].ImageURL.URL != "data:image/png;base64,/9g=" {
		t.Fatalf("unexpected data url %q", parts[1].ImageURL.URL)
	}

	if got, err := extractor.ExtractText(context.Background(), nil, ""); err != nil || got != "" {
		t.Fatalf("empty image should yield no text, got %q %v", got, err)
	}
}

func TestDataURLDefaultsToJPEG(t *testing.T) {
	t.Parallel()

	if got := dataURL([]byte("a"), ""); got != "data:image/jpeg;base64,YQ==" {
		t.Fatalf("unexpected data url %q", got)
	}
}
