package input

import (
	"slices"
	"sync"
)

// Contact is the state of one pointer at poll time, in surface pixels.
// The mouse is reported on every poll with Down tracking the button; a
// touch is reported only while it is on the surface.
type Contact struct {
	ID   int
	X, Y float32
	Down bool
}

// Tracker turns per-frame pointer polls into Press/Move/Release events for
// hosts that expose state rather than callbacks. It implements Source.
type Tracker struct {
	mu     sync.Mutex
	subs   map[int]func(Event)
	nextID int

	last     map[int]Contact
	seen     map[int]bool
	vanished []int
}

// NewTracker creates a tracker with no subscribers.
func NewTracker() *Tracker {
	return &Tracker{
		subs: make(map[int]func(Event)),
		last: make(map[int]Contact),
		seen: make(map[int]bool),
	}
}

// Subscribe registers fn for every event produced by Update.
func (t *Tracker) Subscribe(fn func(Event)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.subs[id] = fn
	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

// Subscribers returns the number of registered callbacks.
func (t *Tracker) Subscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Update diffs contacts against the previous poll and emits the resulting
// events in contact order. Pointers that disappeared while down are
// released afterwards, lowest id first.
func (t *Tracker) Update(contacts []Contact) {
	t.mu.Lock()
	defer t.mu.Unlock()

	clear(t.seen)
	for _, c := range contacts {
		t.seen[c.ID] = true
		prev, known := t.last[c.ID]
		t.last[c.ID] = c

		moved := known && (prev.X != c.X || prev.Y != c.Y)
		switch {
		case c.Down && (!known || !prev.Down):
			t.emit(Event{Type: Press, ID: c.ID, X: c.X, Y: c.Y})
		case c.Down && moved:
			t.emit(Event{Type: Move, ID: c.ID, X: c.X, Y: c.Y})
		case !c.Down && known && prev.Down:
			t.emit(Event{Type: Release, ID: c.ID, X: c.X, Y: c.Y})
		case !c.Down && moved:
			// Hover. The adapter decides whether it splats.
			t.emit(Event{Type: Move, ID: c.ID, X: c.X, Y: c.Y})
		}
	}

	t.vanished = t.vanished[:0]
	for id := range t.last {
		if !t.seen[id] {
			t.vanished = append(t.vanished, id)
		}
	}
	slices.Sort(t.vanished)
	for _, id := range t.vanished {
		prev := t.last[id]
		delete(t.last, id)
		if prev.Down {
			t.emit(Event{Type: Release, ID: id, X: prev.X, Y: prev.Y})
		}
	}
}

func (t *Tracker) emit(ev Event) {
	for _, fn := range t.subs {
		fn(ev)
	}
}
