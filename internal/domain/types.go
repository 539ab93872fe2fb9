package domain

// Speaker identifies one of the two physical mic slots of a conversation.
type Speaker string

const (
	SpeakerNone Speaker = ""
	SpeakerA    Speaker = "A"
	SpeakerB    Speaker = "B"
)

// Other returns the opposite slot.
func (s Speaker) Other() Speaker {
	switch s {
	case SpeakerA:
		return SpeakerB
	case SpeakerB:
		return SpeakerA
	default:
		return SpeakerNone
	}
}

// Valid reports whether s names a real slot.
func (s Speaker) Valid() bool {
	return s == SpeakerA || s == SpeakerB
}

// AutoLanguage asks a collaborator to detect the language itself.
const AutoLanguage = "auto"

// Languages holds the two fixed language slots of a conversation.
type Languages struct {
	A string `json:"languageA"`
	B string `json:"languageB"`
}

// For returns the language assigned to speaker.
func (l Languages) For(speaker Speaker) string {
	if speaker == SpeakerB {
		return l.B
	}
	return l.A
}

// TurnState models the per-turn lifecycle.
type TurnState string

const (
	TurnStateIdle         TurnState = "idle"
	TurnStateRecording    TurnState = "recording"
	TurnStateTranscribing TurnState = "transcribing"
	TurnStateTranslating  TurnState = "translating"
	TurnStateSpeaking     TurnState = "speaking"
)

// Reason provides a structured reason for state transitions.
type Reason string

const (
	ReasonReady               Reason = "ready"
	ReasonRecordingStarted    Reason = "recording_started"
	ReasonTranscribing        Reason = "transcribing"
	ReasonTranslating         Reason = "translating"
	ReasonSpeaking            Reason = "speaking"
	ReasonSpeechComplete      Reason = "speech_complete"
	ReasonPlaybackSkipped     Reason = "playback_skipped"
	ReasonTurnCanceled        Reason = "turn_canceled"
	ReasonNoSpeech            Reason = "no_speech"
	ReasonCaptureFailed       Reason = "capture_failed"
	ReasonTranscriptionFailed Reason = "transcription_failed"
	ReasonTranslationFailed   Reason = "translation_failed"
	ReasonTranslationReady    Reason = "translation_ready"
	ReasonNothingToSave       Reason = "nothing_to_save"
	ReasonConversationSaved   Reason = "conversation_saved"
	ReasonConversationDropped Reason = "conversation_discarded"
	ReasonSaveFailed          Reason = "save_failed"
)

// ErrorCode identifies errors surfaced to the user.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodeCapture       ErrorCode = "capture"
	ErrorCodeAudioStop     ErrorCode = "audio_stop"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeTranslation   ErrorCode = "translation"
	ErrorCodeStorage       ErrorCode = "storage"
	ErrorCodeTextExtract   ErrorCode = "text_extract"
)

// Transition is handed to transition hooks on every state change.
type Transition struct {
	From    TurnState
	To      TurnState
	Speaker Speaker
	Reason  Reason
}

// Status summarizes the current runtime status of a controller.
type Status struct {
	State         TurnState `json:"state"`
	Speaker       Speaker   `json:"speaker,omitempty"`
	Active        bool      `json:"active"`
	BufferedTurns int       `json:"bufferedTurns"`
	Languages     Languages `json:"languages"`
	Message       string    `json:"message,omitempty"`
}

// Turn is one recognized and translated utterance.
type Turn struct {
	ID             string  `json:"id"`
	Text           string  `json:"text"`
	Translation    string  `json:"translation"`
	OriginalLang   string  `json:"originalLang"`
	TranslatedLang string  `json:"translatedLang"`
	Speaker        Speaker `json:"speaker"`
	Timestamp      int64   `json:"timestamp"`
}

// ConversationSession is a persisted, immutable collection of turns.
type ConversationSession struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	LanguageA string `json:"languageA"`
	LanguageB string `json:"languageB"`
	Turns     []Turn `json:"turns"`
}

// TranslationKind records how the source text was obtained.
type TranslationKind string

const (
	KindText   TranslationKind = "text"
	KindSpeech TranslationKind = "speech"
	KindOCR    TranslationKind = "ocr"
)

// Translation is a single-shot translation result.
type Translation struct {
	ID             string          `json:"id"`
	SourceText     string          `json:"sourceText"`
	TranslatedText string          `json:"translatedText"`
	SourceLang     string          `json:"sourceLang"`
	TargetLang     string          `json:"targetLang"`
	Timestamp      int64           `json:"timestamp"`
	Kind           TranslationKind `json:"kind"`
	AudioRef       string          `json:"audioRef,omitempty"`
}
