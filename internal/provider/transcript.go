package provider

import "sync"

// transcripts keeps one conversation per session.
type transcripts[T any] struct {
	mu    sync.Mutex
	limit int
	byID  map[string][]T
}

func newTranscripts[T any](limit int) *transcripts[T] {
	return &transcripts[T]{limit: limit, byID: make(map[string][]T)}
}

func (t *transcripts[T]) open(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byID[id]; !ok {
		t.byID[id] = nil
	}
}

// snapshot returns a copy of the session's messages followed by extra.
func (t *transcripts[T]) snapshot(id string, extra ...T) []T {
	t.mu.Lock()
	defer t.mu.Unlock()
	msgs := t.byID[id]
	out := make([]T, 0, len(msgs)+len(extra))
	out = append(out, msgs...)
	return append(out, extra...)
}

// append adds msgs, keeping at most limit messages.
func (t *transcripts[T]) append(id string, msgs ...T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := append(t.byID[id], msgs...)
	if t.limit > 0 && len(h) > t.limit {
		h = h[len(h)-t.limit:]
	}
	t.byID[id] = h
}

func (t *transcripts[T]) reset(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byID, id)
}

func (t *transcripts[T]) len(id string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byID[id])
}
