package deepgram

import "strings"

// transcript joins final segments. When no final segment arrived it falls
// back to the most recent interim text.
type transcript struct {
	finals  []string
	interim string
}

func (t *transcript) add(text string, final bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if final {
		t.finals = append(t.finals, text)
		t.interim = ""
		return
	}
	t.interim = text
}

func (t *transcript) String() string {
	if len(t.finals) == 0 {
		return t.interim
	}
	return strings.Join(t.finals, " ")
}
