package usecase

import (
	"strings"

	"go.uber.org/zap"

	"talkbridge/internal/ports"
)

// transcriptFinalizer cleans recognized text before it is translated.
type transcriptFinalizer struct {
	rules  ports.RulesEngine
	logger *zap.Logger
}

func newTranscriptFinalizer(rules ports.RulesEngine, logger *zap.Logger) transcriptFinalizer {
	return transcriptFinalizer{rules: rules, logger: logger}
}

// Finalize trims raw and applies the rules for language. A failing rule set
// is logged and the trimmed text is used as is.
func (f transcriptFinalizer) Finalize(raw, language string) string {
	text := strings.TrimSpace(raw)
	if text == "" || f.rules == nil {
		return text
	}

	transformed, err := f.rules.Apply(text, language)
	if err != nil {
		f.logger.Warn("transcript rules failed", zap.String("language", language), zap.Error(err))
		return text
	}
	if strings.TrimSpace(transformed) == "" {
		return text
	}
	return strings.TrimSpace(transformed)
}
