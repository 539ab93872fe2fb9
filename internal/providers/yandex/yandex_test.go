package yandex

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"

	speechkit "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/stt/v3"
	translate "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/translate/v2"
	tts "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/tts/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
)

func TestCredentialsMetadata(t *testing.T) {
	t.Parallel()

	ctx := Credentials{APIKey: "key", IAMToken: "iam", FolderID: "folder"}.outgoing(context.Background())
	md, _ := metadata.FromOutgoingContext(ctx)
	if got := md.Get("authorization"); len(got) != 1 || got[0] != "Api-Key key" {
		t.Fatalf("unexpected authorization: %v", got)
	}
	if got := md.Get("x-folder-id"); len(got) != 1 || got[0] != "folder" {
		t.Fatalf("unexpected folder: %v", got)
	}

	ctx = Credentials{IAMToken: "iam"}.outgoing(context.Background())
	md, _ = metadata.FromOutgoingContext(ctx)
	if got := md.Get("authorization"); len(got) != 1 || got[0] != "Bearer iam" {
		t.Fatalf("unexpected bearer authorization: %v", got)
	}
	if got := md.Get("x-folder-id"); len(got) != 0 {
		t.Fatalf("expected no folder header, got %v", got)
	}

	if err := (Credentials{FolderID: "folder"}).validate(); !errors.Is(err, errMissingCredentials) {
		t.Fatalf("expected missing credentials, got %v", err)
	}
}

func TestSessionOptionsLanguageRestriction(t *testing.T) {
	t.Parallel()

	auto := sessionOptions(16000, "auto").GetSessionOptions().GetRecognitionModel()
	if auto.GetLanguageRestriction() != nil {
		t.Fatalf("auto hint must not restrict languages")
	}
	if rate := auto.GetAudioFormat().GetRawAudio().GetSampleRateHertz(); rate != 16000 {
		t.Fatalf("unexpected sample rate: %d", rate)
	}
	if enc := auto.GetAudioFormat().GetRawAudio().GetAudioEncoding(); enc != speechkit.RawAudio_LINEAR16_PCM {
		t.Fatalf("unexpected encoding: %v", enc)
	}

	ru := sessionOptions(16000, "ru").GetSessionOptions().GetRecognitionModel().GetLanguageRestriction()
	if ru.GetRestrictionType() != speechkit.LanguageRestrictionOptions_WHITELIST {
		t.Fatalf("expected whitelist restriction")
	}
	if codes := ru.GetLanguageCode(); len(codes) != 1 || codes[0] != "ru-RU" {
		t.Fatalf("unexpected language codes: %v", codes)
	}
}

func TestTranslateRequestOmitsAutoSource(t *testing.T) {
	t.Parallel()

	req := translateRequest("hello", "auto", "ta-IN", " folder ")
	if req.GetSourceLanguageCode() != "" {
		t.Fatalf("auto source must be omitted, got %q", req.GetSourceLanguageCode())
	}
	if req.GetTargetLanguageCode() != "ta" || req.GetFolderId() != "folder" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if texts := req.GetTexts(); len(texts) != 1 || texts[0] != "hello" {
		t.Fatalf("unexpected texts: %v", texts)
	}

	req = translateRequest("hello", "en-US", "ru", "")
	if req.GetSourceLanguageCode() != "en" {
		t.Fatalf("unexpected source: %q", req.GetSourceLanguageCode())
	}
}

func TestSynthesizerRequest(t *testing.T) {
	t.Parallel()

	s := NewSynthesizer(nil, Credentials{APIKey: "key"}, DefaultSynthesisOptions())

	voice, err := s.voiceFor("ru-RU")
	if err != nil || voice != "marina" {
		t.Fatalf("unexpected voice %q, err %v", voice, err)
	}
	if _, err := s.voiceFor("ta"); err == nil {
		t.Fatalf("expected error for unsupported language")
	}

	req := s.buildRequest("привет", voice)
	if req.GetText() != "привет" || req.GetModel() != "general" {
		t.Fatalf("unexpected request: %+v", req)
	}
	hints := req.GetHints()
	if len(hints) != 3 || hints[0].GetVoice() != "marina" || hints[1].GetSpeed() != 1.0 {
		t.Fatalf("unexpected hints: %+v", hints)
	}
	if got := req.GetOutputAudioSpec().GetContainerAudio().GetContainerAudioType(); got != tts.ContainerAudio_MP3 {
		t.Fatalf("unexpected container: %v", got)
	}

	custom := NewSynthesizer(nil, Credentials{APIKey: "key"}, SynthesisOptions{Voice: "alena"})
	if voice, err := custom.voiceFor("ta"); err != nil || voice != "alena" {
		t.Fatalf("explicit voice must win, got %q %v", voice, err)
	}
}

type translateServer struct {
	translate.UnimplementedTranslationServiceServer

	mu  sync.Mutex
	req *translate.TranslateRequest
	md  metadata.MD
}

func (s *translateServer) Translate(ctx context.Context, req *translate.TranslateRequest) (*translate.TranslateResponse, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	s.mu.Lock()
	s.req = req
	s.md = md
	s.mu.Unlock()
	return &translate.TranslateResponse{
		Translations: []*translate.TranslatedText{{Text: "வணக்கம்"}},
	}, nil
}

func TestTranslatorOverGRPC(t *testing.T) {
	t.Parallel()

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	impl := &translateServer{}
	translate.RegisterTranslationServiceServer(server, impl)
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	translator := NewTranslator(conn, Credentials{APIKey: "secret", FolderID: "b1g"})
	got, err := translator.Translate(context.Background(), "hello", "en", "ta")
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}
	if got != "வணக்கம்" {
		t.Fatalf("unexpected translation %q", got)
	}

	impl.mu.Lock()
	defer impl.mu.Unlock()
	if impl.req.GetTargetLanguageCode() != "ta" || impl.req.GetSourceLanguageCode() != "en" {
		t.Fatalf("unexpected request: %+v", impl.req)
	}
	if auth := impl.md.Get("authorization"); len(auth) != 1 || auth[0] != "Api-Key secret" {
		t.Fatalf("unexpected authorization metadata: %v", auth)
	}

	if _, err := translator.Translate(context.Background(), "hello", "en", "auto"); err == nil {
		t.Fatalf("expected error for auto target")
	}
}
