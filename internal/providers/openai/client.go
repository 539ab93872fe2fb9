// Package openai adapts the OpenAI API to the translator, synthesizer and
// text extractor ports.
package openai

import (
	"errors"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
)

var errMissingAPIKey = errors.New("openai api key is required")

type Config struct {
	APIKey      string
	BaseURL     string
	ChatModel   string
	SpeechModel string
	Voice       string
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.ChatModel) == "" {
		c.ChatModel = goopenai.GPT4oMini
	}
	if strings.TrimSpace(c.SpeechModel) == "" {
		c.SpeechModel = string(goopenai.TTSModel1)
	}
	if strings.TrimSpace(c.Voice) == "" {
		c.Voice = string(goopenai.VoiceAlloy)
	}
	return c
}

func newClient(cfg Config) (*goopenai.Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errMissingAPIKey
	}
	clientCfg := goopenai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}
	return goopenai.NewClientWithConfig(clientCfg), nil
}

func firstChoice(resp goopenai.ChatCompletionResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}
