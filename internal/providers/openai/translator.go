package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"talkbridge/internal/domain"
)

const translatePrompt = "You are a translation engine. Translate the user's text %s into %s. " +
	"Reply with the translation only, without quotes, notes or transliteration."

// Translator implements ports.Translator with chat completions.
type Translator struct {
	client *goopenai.Client
	model  string
}

func NewTranslator(cfg Config) (*Translator, error) {
	cfg = cfg.withDefaults()
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Translator{client: client, model: cfg.ChatModel}, nil
}

func (t *Translator) Translate(ctx context.Context, text, from, to string) (string, error) {
	if strings.TrimSpace(to) == "" || strings.EqualFold(to, domain.AutoLanguage) {
		return "", errors.New("openai: target language is required")
	}
	resp, err := t.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: t.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt(from, to)},
			{Role: goopenai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai translate failed: %w", err)
	}
	return firstChoice(resp), nil
}

func systemPrompt(from, to string) string {
	source := "from language " + strings.TrimSpace(from)
	if strings.TrimSpace(from) == "" || strings.EqualFold(from, domain.AutoLanguage) {
		source = "from whatever language it is written in"
	}
	return fmt.Sprintf(translatePrompt, source, "language "+strings.TrimSpace(to))
}
