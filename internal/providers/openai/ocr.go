package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
)

const extractPrompt = "Transcribe all readable text in this image exactly as written. " +
	"Reply with the text only. If there is no text, reply with an empty message."

// TextExtractor implements ports.TextExtractor with a vision-capable chat model.
type TextExtractor struct {
	client *goopenai.Client
	model  string
}

func NewTextExtractor(cfg Config) (*TextExtractor, error) {
	cfg = cfg.withDefaults()
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &TextExtractor{client: client, model: cfg.ChatModel}, nil
}

func (e *TextExtractor) ExtractText(ctx context.Context, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", nil
	}
	resp, err := e.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: e.model,
		Messages: []goopenai.ChatCompletionMessage{
			{
				Role: goopenai.ChatMessageRoleUser,
				MultiContent: []goopenai.ChatMessagePart{
					{Type: goopenai.ChatMessagePartTypeText, Text: extractPrompt},
					{
						Type:     goopenai.ChatMessagePartTypeImageURL,
						ImageURL: &goopenai.ChatMessageImageURL{URL: dataURL(image, mimeType)},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai text extraction failed: %w", err)
	}
	return firstChoice(resp), nil
}

func dataURL(image []byte, mimeType string) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
}
