// Package input turns host pointer and touch events into fluid splats.
package input

// EventType is the kind of pointer event.
type EventType uint8

const (
	Press EventType = iota
	Move
	Release
)

func (t EventType) String() string {
	switch t {
	case Press:
		return "press"
	case Move:
		return "move"
	case Release:
		return "release"
	}
	return "unknown"
}

// MouseID is the source id of the mouse pointer. Touches use their own ids.
const MouseID = -1

// Event is one raw pointer event in surface pixels, origin top-left.
type Event struct {
	Type EventType
	ID   int
	X, Y float32
}

// Pointer is the per-source record, stored as an ECS component.
// Positions are texture coordinates with origin bottom-left.
type Pointer struct {
	ID    int
	Pos   [2]float32
	Prev  [2]float32
	Delta [2]float32
	Down  bool
	Moved bool
	Color [3]float32
}

// Splat is a force and color injection request.
type Splat struct {
	X, Y   float32 // Texture coordinates
	DX, DY float32 // Velocity payload
	Color  [3]float32
	Click  bool // Emitted by a press rather than movement
}

// Source is a host event stream. Subscribe registers fn and returns a
// function that removes it.
type Source interface {
	Subscribe(fn func(Event)) (unsubscribe func())
}
