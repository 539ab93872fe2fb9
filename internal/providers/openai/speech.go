package openai

import (
	"context"
	"fmt"
	"io"

	goopenai "github.com/sashabaranov/go-openai"
)

// Synthesizer renders text to MP3 with the speech endpoint.
type Synthesizer struct {
	client *goopenai.Client
	model  goopenai.SpeechModel
	voice  goopenai.SpeechVoice
}

func NewSynthesizer(cfg Config) (*Synthesizer, error) {
	cfg = cfg.withDefaults()
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Synthesizer{
		client: client,
		model:  goopenai.SpeechModel(cfg.SpeechModel),
		voice:  goopenai.SpeechVoice(cfg.Voice),
	}, nil
}

// Synthesize ignores language; the model follows the text.
func (s *Synthesizer) Synthesize(ctx context.Context, text, _ string) ([]byte, error) {
	resp, err := s.client.CreateSpeech(ctx, goopenai.CreateSpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: goopenai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech failed: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech audio: %w", err)
	}
	return audio, nil
}
