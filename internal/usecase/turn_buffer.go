package usecase

import (
	"time"

	"talkbridge/internal/domain"
)

// turnBuffer holds the not-yet-persisted turns of the current conversation.
// It is only touched while the controller mutex is held.
type turnBuffer struct {
	turns         []domain.Turn
	last          map[domain.Speaker]domain.Turn
	lastTimestamp int64
}

func newTurnBuffer() *turnBuffer {
	return &turnBuffer{last: make(map[domain.Speaker]domain.Turn, 2)}
}

// stamp returns a unix-ms timestamp strictly greater than any issued before.
func (b *turnBuffer) stamp(now time.Time) int64 {
	ts := now.UnixMilli()
	if ts <= b.lastTimestamp {
		ts = b.lastTimestamp + 1
	}
	b.lastTimestamp = ts
	return ts
}

func (b *turnBuffer) append(turn domain.Turn) {
	b.turns = append(b.turns, turn)
	b.last[turn.Speaker] = turn
}

func (b *turnBuffer) len() int {
	return len(b.turns)
}

func (b *turnBuffer) snapshot() []domain.Turn {
	out := make([]domain.Turn, len(b.turns))
	copy(out, b.turns)
	return out
}

func (b *turnBuffer) lastFor(speaker domain.Speaker) (domain.Turn, bool) {
	turn, ok := b.last[speaker]
	return turn, ok
}

// dropFirst removes the n oldest turns, keeping anything appended after a snapshot.
func (b *turnBuffer) dropFirst(n int) {
	if n >= len(b.turns) {
		b.reset()
		return
	}
	b.turns = append([]domain.Turn(nil), b.turns[n:]...)
	b.last = make(map[domain.Speaker]domain.Turn, 2)
	for _, turn := range b.turns {
		b.last[turn.Speaker] = turn
	}
}

func (b *turnBuffer) reset() {
	b.turns = nil
	b.last = make(map[domain.Speaker]domain.Turn, 2)
}
