// Package locale maps short language codes to the BCP-47 tags speech services expect.
package locale

import "strings"

var recognitionLocales = map[string]string{
	"en": "en-US",
	"hi": "hi-IN",
	"es": "es-ES",
	"fr": "fr-FR",
	"de": "de-DE",
	"it": "it-IT",
	"ja": "ja-JP",
	"ko": "ko-KR",
	"zh": "zh-CN",
	"pt": "pt-BR",
	"ru": "ru-RU",
	"ta": "ta-IN",
	"te": "te-IN",
	"kn": "kn-IN",
	"mr": "mr-IN",
	"bn": "bn-IN",
	"gu": "gu-IN",
	"ml": "ml-IN",
	"ur": "ur-IN",
	"pa": "pa-IN",
}

var speechLocales = map[string]string{
	"ta": "ta-IN",
	"te": "te-IN",
	"kn": "kn-IN",
	"mr": "mr-IN",
	"bn": "bn-IN",
	"gu": "gu-IN",
	"ml": "ml-IN",
	"ur": "ur-IN",
	"pa": "pa-IN",
	"hi": "hi-IN",
}

// Recognition returns the locale used for speech recognition. Full tags pass through.
func Recognition(code string) string {
	code = strings.TrimSpace(code)
	if strings.Contains(code, "-") {
		return code
	}
	if tag, ok := recognitionLocales[strings.ToLower(code)]; ok {
		return tag
	}
	return code
}

// Speech returns the locale used for speech synthesis, matching on the
// language prefix when code is already a full tag.
func Speech(code string) string {
	code = strings.TrimSpace(code)
	if tag, ok := speechLocales[strings.ToLower(code)]; ok {
		return tag
	}
	if tag, ok := speechLocales[Base(code)]; ok {
		return tag
	}
	return code
}

// Base returns the lower-cased language subtag of code, e.g. "ta" for "ta-IN".
func Base(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i >= 0 {
		return code[:i]
	}
	return code
}
