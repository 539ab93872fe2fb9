// Package yandex adapts Yandex Cloud SpeechKit and Translate to the app ports.
package yandex

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
)

const (
	STTEndpoint       = "stt.api.cloud.yandex.net:443"
	TTSEndpoint       = "tts.api.cloud.yandex.net:443"
	TranslateEndpoint = "translate.api.cloud.yandex.net:443"
)

var errMissingCredentials = errors.New("yandex: api key or iam token is required")

// Credentials authenticate every call. APIKey wins over IAMToken.
type Credentials struct {
	APIKey   string
	IAMToken string
	FolderID string
}

func (c Credentials) validate() error {
	if strings.TrimSpace(c.APIKey) == "" && strings.TrimSpace(c.IAMToken) == "" {
		return errMissingCredentials
	}
	return nil
}

func (c Credentials) outgoing(ctx context.Context) context.Context {
	if key := strings.TrimSpace(c.APIKey); key != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Api-Key "+key)
	} else {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+strings.TrimSpace(c.IAMToken))
	}
	if folder := strings.TrimSpace(c.FolderID); folder != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "x-folder-id", folder)
	}
	return ctx
}

// Dial opens a TLS connection to a Yandex Cloud endpoint.
func Dial(endpoint string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}
	return conn, nil
}
