package input

import (
	"slices"
	"testing"
)

func record(t *Tracker) *[]Event {
	var got []Event
	t.Subscribe(func(ev Event) { got = append(got, ev) })
	return &got
}

func TestTrackerTransitions(t *testing.T) {
	tests := []struct {
		name  string
		polls [][]Contact
		want  []Event
	}{
		{
			name:  "idle mouse",
			polls: [][]Contact{{{ID: MouseID, X: 1, Y: 1}}, {{ID: MouseID, X: 1, Y: 1}}},
			want:  nil,
		},
		{
			name:  "hover",
			polls: [][]Contact{{{ID: MouseID, X: 1, Y: 1}}, {{ID: MouseID, X: 3, Y: 1}}},
			want:  []Event{{Type: Move, ID: MouseID, X: 3, Y: 1}},
		},
		{
			name: "click and drag",
			polls: [][]Contact{
				{{ID: MouseID, X: 1, Y: 1}},
				{{ID: MouseID, X: 1, Y: 1, Down: true}},
				{{ID: MouseID, X: 5, Y: 2, Down: true}},
				{{ID: MouseID, X: 5, Y: 2}},
			},
			want: []Event{
				{Type: Press, ID: MouseID, X: 1, Y: 1},
				{Type: Move, ID: MouseID, X: 5, Y: 2},
				{Type: Release, ID: MouseID, X: 5, Y: 2},
			},
		},
		{
			name: "touch lifts",
			polls: [][]Contact{
				{{ID: 3, X: 10, Y: 10, Down: true}},
				{{ID: 3, X: 12, Y: 10, Down: true}},
				nil,
			},
			want: []Event{
				{Type: Press, ID: 3, X: 10, Y: 10},
				{Type: Move, ID: 3, X: 12, Y: 10},
				{Type: Release, ID: 3, X: 12, Y: 10},
			},
		},
		{
			name: "vanished touches release in id order",
			polls: [][]Contact{
				{{ID: 7, Down: true}, {ID: 2, Down: true}},
				nil,
			},
			want: []Event{
				{Type: Press, ID: 7},
				{Type: Press, ID: 2},
				{Type: Release, ID: 2},
				{Type: Release, ID: 7},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker()
			got := record(tr)
			for _, poll := range tt.polls {
				tr.Update(poll)
			}
			if !slices.Equal(*got, tt.want) {
				t.Errorf("events = %v, want %v", *got, tt.want)
			}
		})
	}
}

func TestTrackerFeedsAdapter(t *testing.T) {
	a := newAdapter(t, nil)
	tr := NewTracker()
	a.Attach(tr)

	tr.Update([]Contact{{ID: MouseID, X: 50, Y: 50, Down: true}})
	tr.Update([]Contact{{ID: MouseID, X: 60, Y: 50, Down: true}})

	splats := a.Drain(100, 100)
	if len(splats) != 2 {
		t.Fatalf("got %d splats, want click + move", len(splats))
	}
	if !splats[0].Click || splats[1].Click {
		t.Errorf("unexpected splat kinds: %+v", splats)
	}

	a.Close()
	if n := tr.Subscribers(); n != 0 {
		t.Errorf("tracker still has %d subscribers after Close", n)
	}
}

func TestOrbit(t *testing.T) {
	o := Orbit{W: 200, H: 100, Radius: 0.25, Period: 2}

	tests := []struct {
		name string
		t    float64
		x, y float32
	}{
		{"start", 0, 125, 50},
		{"quarter", 0.5, 100, 75},
		{"half", 1, 75, 50},
		{"full turn", 2, 125, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := o.At(tt.t)
			if !near(c.X, tt.x) || !near(c.Y, tt.y) {
				t.Errorf("At(%v) = (%v, %v), want (%v, %v)", tt.t, c.X, c.Y, tt.x, tt.y)
			}
			if !c.Down || c.ID != MouseID {
				t.Errorf("unexpected contact %+v", c)
			}
		})
	}
}
