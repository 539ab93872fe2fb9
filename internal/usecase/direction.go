package usecase

import (
	"strings"

	"talkbridge/internal/domain"
)

// Direction derives the (from, to) pair for a turn started by speaker.
// It depends only on which slot was pressed; no detection happens per turn.
func Direction(langs domain.Languages, speaker domain.Speaker) (from string, to string) {
	return langs.For(speaker), langs.For(speaker.Other())
}

func validateLanguages(langs domain.Languages) error {
	a := strings.TrimSpace(langs.A)
	b := strings.TrimSpace(langs.B)
	if a == "" || b == "" {
		return domain.ErrAutoLanguage
	}
	if strings.EqualFold(a, domain.AutoLanguage) || strings.EqualFold(b, domain.AutoLanguage) {
		return domain.ErrAutoLanguage
	}
	return nil
}
