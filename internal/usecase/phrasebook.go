package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"talkbridge/internal/ports"
)

var ErrUnknownRegion = errors.New("unknown region")

// Region is a travel destination and the language spoken there.
type Region struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	Label    string `json:"label"`
}

var defaultRegions = []Region{
	{Name: "Telangana", Language: "te", Label: "Telugu"},
	{Name: "Tamil Nadu", Language: "ta", Label: "Tamil"},
	{Name: "Andhra Pradesh", Language: "te", Label: "Telugu"},
	{Name: "Karnataka", Language: "kn", Label: "Kannada"},
	{Name: "Kerala", Language: "ml", Label: "Malayalam"},
	{Name: "Gujarat", Language: "gu", Label: "Gujarati"},
	{Name: "Maharashtra", Language: "mr", Label: "Marathi"},
}

var defaultPhrases = []string{
	"Where is the nearest bus station?",
	"How much does this cost?",
	"Can you suggest a good restaurant nearby?",
	"Where can I find a hotel?",
	"Please take me to this address.",
	"I need help.",
}

// PhraseBook prefetches translations of common traveller questions.
type PhraseBook struct {
	translator ports.Translator
	logger     *zap.Logger
	source     string
	regions    []Region
	phrases    []string
}

func NewPhraseBook(translator ports.Translator, source string, logger *zap.Logger) *PhraseBook {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(source) == "" {
		source = "en"
	}
	return &PhraseBook{
		translator: translator,
		logger:     logger.Named("phrasebook"),
		source:     source,
		regions:    defaultRegions,
		phrases:    defaultPhrases,
	}
}

// Search returns regions whose name contains query, ignoring case.
func (p *PhraseBook) Search(query string) []Region {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	var out []Region
	for _, region := range p.regions {
		if strings.Contains(strings.ToLower(region.Name), query) {
			out = append(out, region)
		}
	}
	return out
}

func (p *PhraseBook) Phrases() []string {
	return append([]string(nil), p.phrases...)
}

// ForRegion translates every phrase into the region's language.
func (p *PhraseBook) ForRegion(ctx context.Context, name string) (Region, map[string]string, error) {
	for _, region := range p.regions {
		if strings.EqualFold(region.Name, strings.TrimSpace(name)) {
			return region, TranslateBatch(ctx, p.translator, p.phrases, p.source, region.Language, p.logger), nil
		}
	}
	return Region{}, nil, ErrUnknownRegion
}

// TranslateBatch translates phrases concurrently and waits for all of them.
// A phrase whose translation fails is absent from the result.
func TranslateBatch(ctx context.Context, translator ports.Translator, phrases []string, from, to string, logger *zap.Logger) map[string]string {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]string, len(phrases))
	)
	for _, phrase := range phrases {
		wg.Add(1)
		go func(phrase string) {
			defer wg.Done()

			translated, err := translator.Translate(ctx, phrase, from, to)
			if err == nil && strings.TrimSpace(translated) == "" {
				err = errEmptyTranslation
			}
			if err != nil {
				logger.Warn("phrase translation failed", zap.String("phrase", phrase), zap.String("to", to), zap.Error(err))
				return
			}

			mu.Lock()
			out[phrase] = strings.TrimSpace(translated)
			mu.Unlock()
		}(phrase)
	}
	wg.Wait()
	return out
}
