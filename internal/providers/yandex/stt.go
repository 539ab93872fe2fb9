package yandex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	speechkit "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/stt/v3"
	"google.golang.org/grpc"

	"talkbridge/internal/domain"
	"talkbridge/internal/locale"
)

const sttChunkSize = 8192

// Recognizer implements ports.Recognizer with SpeechKit STT v3 streaming.
type Recognizer struct {
	client     speechkit.RecognizerClient
	creds      Credentials
	sampleRate int64
}

func NewRecognizer(conn grpc.ClientConnInterface, creds Credentials, sampleRate int) *Recognizer {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &Recognizer{
		client:     speechkit.NewRecognizerClient(conn),
		creds:      creds,
		sampleRate: int64(sampleRate),
	}
}

// Recognize sends one utterance and joins the final results.
func (r *Recognizer) Recognize(ctx context.Context, audio []byte, languageHint string) (string, error) {
	if err := r.creds.validate(); err != nil {
		return "", err
	}
	if len(audio) == 0 {
		return "", nil
	}

	stream, err := r.client.RecognizeStreaming(r.creds.outgoing(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to create streaming client: %w", err)
	}

	if err := stream.Send(sessionOptions(r.sampleRate, languageHint)); err != nil {
		return "", fmt.Errorf("failed to send session options: %w", err)
	}
	for offset := 0; offset < len(audio); offset += sttChunkSize {
		end := offset + sttChunkSize
		if end > len(audio) {
			end = len(audio)
		}
		chunk := &speechkit.StreamingRequest{
			Event: &speechkit.StreamingRequest_Chunk{
				Chunk: &speechkit.AudioChunk{Data: audio[offset:end]},
			},
		}
		if err := stream.Send(chunk); err != nil {
			return "", fmt.Errorf("failed to send audio chunk: %w", err)
		}
	}
	if err := stream.CloseSend(); err != nil {
		return "", fmt.Errorf("failed to close audio stream: %w", err)
	}

	var finals []string
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to receive recognition result: %w", err)
		}
		alternatives := resp.GetFinal().GetAlternatives()
		if len(alternatives) == 0 {
			continue
		}
		if text := strings.TrimSpace(alternatives[0].GetText()); text != "" {
			finals = append(finals, text)
		}
	}
	return strings.Join(finals, " "), nil
}

func sessionOptions(sampleRate int64, languageHint string) *speechkit.StreamingRequest {
	model := &speechkit.RecognitionModelOptions{
		AudioFormat: &speechkit.AudioFormatOptions{
			AudioFormat: &speechkit.AudioFormatOptions_RawAudio{
				RawAudio: &speechkit.RawAudio{
					AudioEncoding:     speechkit.RawAudio_LINEAR16_PCM,
					SampleRateHertz:   sampleRate,
					AudioChannelCount: 1,
				},
			},
		},
		TextNormalization: &speechkit.TextNormalizationOptions{
			TextNormalization: speechkit.TextNormalizationOptions_TEXT_NORMALIZATION_ENABLED,
		},
		AudioProcessingType: speechkit.RecognitionModelOptions_FULL_DATA,
	}

	hint := strings.TrimSpace(languageHint)
	if hint != "" && !strings.EqualFold(hint, domain.AutoLanguage) {
		model.LanguageRestriction = &speechkit.LanguageRestrictionOptions{
			RestrictionType: speechkit.LanguageRestrictionOptions_WHITELIST,
			LanguageCode:    []string{locale.Recognition(hint)},
		}
	}

	return &speechkit.StreamingRequest{
		Event: &speechkit.StreamingRequest_SessionOptions{
			SessionOptions: &speechkit.StreamingOptions{RecognitionModel: model},
		},
	}
}
