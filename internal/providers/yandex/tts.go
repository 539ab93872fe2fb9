package yandex

import (
	"context"
	"errors"
	"fmt"
	"io"

	tts "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/tts/v3"
	"google.golang.org/grpc"

	"talkbridge/internal/locale"
)

var voices = map[string]string{
	"ru": "marina",
	"en": "john",
	"de": "lea",
	"kk": "madi",
	"uz": "nigora",
	"he": "naomi",
}

// SynthesisOptions tune the voice. Voice overrides the per-language default.
type SynthesisOptions struct {
	Voice  string
	Speed  float64
	Volume float64
	Model  string
}

func DefaultSynthesisOptions() SynthesisOptions {
	return SynthesisOptions{Speed: 1.0, Model: "general"}
}

// Synthesizer renders text to MP3 with SpeechKit TTS v3.
type Synthesizer struct {
	client  tts.SynthesizerClient
	creds   Credentials
	options SynthesisOptions
}

func NewSynthesizer(conn grpc.ClientConnInterface, creds Credentials, options SynthesisOptions) *Synthesizer {
	if options.Speed <= 0 {
		options.Speed = 1.0
	}
	return &Synthesizer{client: tts.NewSynthesizerClient(conn), creds: creds, options: options}
}

// Synthesize returns the complete MP3 for text.
func (s *Synthesizer) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	if err := s.creds.validate(); err != nil {
		return nil, err
	}
	voice, err := s.voiceFor(language)
	if err != nil {
		return nil, err
	}

	stream, err := s.client.UtteranceSynthesis(s.creds.outgoing(ctx), s.buildRequest(text, voice))
	if err != nil {
		return nil, fmt.Errorf("failed to start synthesis: %w", err)
	}

	var audio []byte
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to receive audio data: %w", err)
		}
		if chunk := resp.GetAudioChunk(); chunk != nil {
			audio = append(audio, chunk.GetData()...)
		}
	}
	return audio, nil
}

func (s *Synthesizer) voiceFor(language string) (string, error) {
	if s.options.Voice != "" {
		return s.options.Voice, nil
	}
	voice, ok := voices[locale.Base(language)]
	if !ok {
		return "", fmt.Errorf("yandex tts: no voice for language %q", language)
	}
	return voice, nil
}

func (s *Synthesizer) buildRequest(text, voice string) *tts.UtteranceSynthesisRequest {
	req := &tts.UtteranceSynthesisRequest{}
	if s.options.Model != "" {
		req.SetModel(s.options.Model)
	}
	req.SetText(text)

	voiceHint := &tts.Hints{}
	voiceHint.SetVoice(voice)
	speedHint := &tts.Hints{}
	speedHint.SetSpeed(s.options.Speed)
	volumeHint := &tts.Hints{}
	volumeHint.SetVolume(s.options.Volume)
	req.SetHints([]*tts.Hints{voiceHint, speedHint, volumeHint})

	containerAudio := &tts.ContainerAudio{}
	containerAudio.SetContainerAudioType(tts.ContainerAudio_MP3)
	audioSpec := &tts.AudioFormatOptions{}
	audioSpec.SetContainerAudio(containerAudio)
	req.SetOutputAudioSpec(audioSpec)

	req.SetLoudnessNormalizationType(tts.UtteranceSynthesisRequest_LUFS)
	return req
}
