package yandex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	translate "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/translate/v2"
	"google.golang.org/grpc"

	"talkbridge/internal/domain"
	"talkbridge/internal/locale"
)

// Translator implements ports.Translator with Yandex Translate v2.
type Translator struct {
	client translate.TranslationServiceClient
	creds  Credentials
}

func NewTranslator(conn grpc.ClientConnInterface, creds Credentials) *Translator {
	return &Translator{client: translate.NewTranslationServiceClient(conn), creds: creds}
}

func (t *Translator) Translate(ctx context.Context, text, from, to string) (string, error) {
	if err := t.creds.validate(); err != nil {
		return "", err
	}
	if strings.TrimSpace(to) == "" || strings.EqualFold(to, domain.AutoLanguage) {
		return "", errors.New("yandex: target language is required")
	}

	resp, err := t.client.Translate(t.creds.outgoing(ctx), translateRequest(text, from, to, t.creds.FolderID))
	if err != nil {
		return "", fmt.Errorf("yandex translate failed: %w", err)
	}
	translations := resp.GetTranslations()
	if len(translations) == 0 {
		return "", errors.New("yandex translate returned no translations")
	}
	return translations[0].GetText(), nil
}

func translateRequest(text, from, to, folderID string) *translate.TranslateRequest {
	req := &translate.TranslateRequest{
		TargetLanguageCode: locale.Base(to),
		Format:             translate.TranslateRequest_PLAIN_TEXT,
		Texts:              []string{text},
		FolderId:           strings.TrimSpace(folderID),
	}
	if source := strings.TrimSpace(from); source != "" && !strings.EqualFold(source, domain.AutoLanguage) {
		req.SourceLanguageCode = locale.Base(source)
	}
	return req
}
