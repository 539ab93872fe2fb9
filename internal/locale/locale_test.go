package locale

import "testing"

func TestRecognition(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"en":    "en-US",
		"zh":    "zh-CN",
		"ta":    "ta-IN",
		"fr-CA": "fr-CA",
		"sw":    "sw",
	}
	for in, want := range cases {
		if got := Recognition(in); got != want {
			t.Fatalf("Recognition(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSpeech(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"ta":    "ta-IN",
		"te-IN": "te-IN",
		"pa-PK": "pa-IN",
		"en":    "en",
		"fr-FR": "fr-FR",
	}
	for in, want := range cases {
		if got := Speech(in); got != want {
			t.Fatalf("Speech(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBase(t *testing.T) {
	t.Parallel()

	if got := Base(" en-US "); got != "en" {
		t.Fatalf("unexpected base: %q", got)
	}
	if got := Base("pt_BR"); got != "pt" {
		t.Fatalf("unexpected base: %q", got)
	}
}
