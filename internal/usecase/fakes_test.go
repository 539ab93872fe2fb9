package usecase

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"talkbridge/internal/domain"
	"talkbridge/internal/ports"
)

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []ports.AudioSession
	err      error
	calls    int
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no audio session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

func (f *fakeAudioCapture) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAudioSession struct {
	mu         sync.Mutex
	chunks     [][]byte
	index      int
	stopCalls  int
	closeCalls int
	stopErr    error
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index >= len(f.chunks) {
		return 0, io.EOF
	}
	n := copy(p, f.chunks[f.index])
	f.index++
	return n, nil
}

func (f *fakeAudioSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return nil
}

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return f.stopErr
}

func audioSessions(n int) []ports.AudioSession {
	out := make([]ports.AudioSession, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &fakeAudioSession{chunks: [][]byte{{0x10, 0x00, 0xf0, 0xff}}})
	}
	return out
}

// blockingAudioSession yields nothing until stopped.
type blockingAudioSession struct {
	once      sync.Once
	stopped   chan struct{}
	stopCalls int
	mu        sync.Mutex
}

func newBlockingAudioSession() *blockingAudioSession {
	return &blockingAudioSession{stopped: make(chan struct{})}
}

func (s *blockingAudioSession) Read(_ []byte) (int, error) {
	<-s.stopped
	return 0, io.EOF
}

func (s *blockingAudioSession) Close() error { return nil }

func (s *blockingAudioSession) Stop() error {
	s.mu.Lock()
	s.stopCalls++
	s.mu.Unlock()
	s.once.Do(func() { close(s.stopped) })
	return nil
}

type recognizeCall struct {
	audio []byte
	hint  string
}

type fakeRecognizer struct {
	mu      sync.Mutex
	results []string
	err     error
	calls   []recognizeCall
	// started and release make Recognize block until the test lets it go.
	started chan struct{}
	release chan struct{}
}

func (f *fakeRecognizer) Recognize(_ context.Context, audio []byte, hint string) (string, error) {
	f.mu.Lock()
	index := len(f.calls)
	f.calls = append(f.calls, recognizeCall{audio: append([]byte(nil), audio...), hint: hint})
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if f.err != nil {
		return "", f.err
	}
	if index < len(f.results) {
		return f.results[index], nil
	}
	return "", nil
}

func (f *fakeRecognizer) snapshotCalls() []recognizeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recognizeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

type translateCall struct {
	text string
	from string
	to   string
}

type fakeTranslator struct {
	mu     sync.Mutex
	lookup map[string]string
	fail   map[string]error
	err    error
	calls  []translateCall
	delay  time.Duration

	// started and release make Translate block until the test lets it go.
	started chan struct{}
	release chan struct{}
}

func (f *fakeTranslator) Translate(_ context.Context, text, from, to string) (string, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, translateCall{text: text, from: from, to: to})
	if f.err != nil {
		return "", f.err
	}
	if err, ok := f.fail[text]; ok {
		return "", err
	}
	if out, ok := f.lookup[text]; ok {
		return out, nil
	}
	return "[" + to + "] " + text, nil
}

func (f *fakeTranslator) snapshotCalls() []translateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]translateCall, len(f.calls))
	copy(out, f.calls)
	return out
}

type speakCall struct {
	text     string
	language string
}

type fakeSpeaker struct {
	mu        sync.Mutex
	err       error
	calls     []speakCall
	stopCalls int
	block     bool
	stop      chan struct{}
	started   chan struct{}
}

func newBlockingSpeaker() *fakeSpeaker {
	return &fakeSpeaker{block: true, stop: make(chan struct{}, 1), started: make(chan struct{}, 4)}
}

func (f *fakeSpeaker) Speak(ctx context.Context, text, language string) error {
	f.mu.Lock()
	f.calls = append(f.calls, speakCall{text: text, language: language})
	block, stop, started := f.block, f.stop, f.started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block {
		select {
		case <-stop:
			return context.Canceled
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func (f *fakeSpeaker) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	if f.stop != nil {
		select {
		case f.stop <- struct{}{}:
		default:
		}
	}
	return nil
}

func (f *fakeSpeaker) snapshotCalls() []speakCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]speakCall, len(f.calls))
	copy(out, f.calls)
	return out
}

type fakeRules struct {
	transform    string
	err          error
	calls        int
	lastLanguage string
}

func (f *fakeRules) Apply(text, language string) (string, error) {
	f.calls++
	f.lastLanguage = language
	if f.err != nil {
		return "", f.err
	}
	if f.transform != "" {
		return f.transform, nil
	}
	return text, nil
}

type fakeEventSink struct {
	mu sync.Mutex

	states       []stateEvent
	levels       []float64
	turns        []domain.Turn
	translations []domain.Translation
	errors       []errEvent
}

type stateEvent struct {
	status domain.Status
	reason domain.Reason
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) TurnStateChanged(status domain.Status, reason domain.Reason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{status: status, reason: reason})
}

func (f *fakeEventSink) AudioLevel(_ domain.Speaker, level float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels = append(f.levels, level)
}

func (f *fakeEventSink) TurnAppended(turn domain.Turn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, turn)
}

func (f *fakeEventSink) TranslationReady(translation domain.Translation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.translations = append(f.translations, translation)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stateEvent, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}

func (f *fakeEventSink) lastReason() domain.Reason {
	states := f.snapshotStates()
	if len(states) == 0 {
		return ""
	}
	return states[len(states)-1].reason
}

type fakeHook struct {
	mu          sync.Mutex
	transitions []domain.Transition
}

func (h *fakeHook) OnTransition(t domain.Transition) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transitions = append(h.transitions, t)
}

func (h *fakeHook) snapshot() []domain.Transition {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.Transition, len(h.transitions))
	copy(out, h.transitions)
	return out
}

// memoryStore is an in-memory ports.Store that counts writes.
type memoryStore struct {
	mu          sync.Mutex
	collections map[string][]ports.Record
	appends     int
	removes     int
	appendErr   error
	listErr     error
	unique      bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{collections: make(map[string][]ports.Record)}
}

func (s *memoryStore) Append(_ context.Context, collection string, record ports.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	if s.unique {
		for _, existing := range s.collections[collection] {
			if existing.ID == record.ID {
				return ports.ErrDuplicateRecord
			}
		}
	}
	s.appends++
	s.collections[collection] = append(s.collections[collection], record)
	return nil
}

func (s *memoryStore) List(_ context.Context, collection string) ([]ports.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]ports.Record, len(s.collections[collection]))
	copy(out, s.collections[collection])
	return out, nil
}

func (s *memoryStore) Remove(_ context.Context, collection string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removes++
	records := s.collections[collection]
	kept := records[:0]
	for _, record := range records {
		if record.ID != id {
			kept = append(kept, record)
		}
	}
	s.collections[collection] = kept
	return nil
}

func (s *memoryStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appends + s.removes
}

func (s *memoryStore) count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.collections[collection])
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	next := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		next++
		return prefix + string(rune('a'+next-1))
	}
}

func fixedClock(start time.Time) func() time.Time {
	return func() time.Time { return start }
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// waitPlayback blocks until background playback goroutines have returned.
func (c *ConversationController) waitPlayback() {
	c.playing.Wait()
}
