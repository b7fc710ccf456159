// Package window hosts the engine in a raylib window: surface metrics,
// pointer polling and frame presentation.
package window

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/splash/config"
	"github.com/pthm-cable/splash/input"
)

// Open creates the window described by cfg. Call Close when done.
func Open(cfg config.ScreenConfig) {
	rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagWindowHighdpi | rl.FlagMsaa4xHint)
	rl.InitWindow(int32(cfg.Width), int32(cfg.Height), cfg.Title)
	rl.SetTargetFPS(int32(cfg.TargetFPS))
}

// Close destroys the window.
func Close() { rl.CloseWindow() }

// ShouldClose reports whether the user asked to close the window.
func ShouldClose() bool { return rl.WindowShouldClose() }

// Surface reports the window's size to the engine.
type Surface struct{}

// Size returns the window size in logical pixels.
func (Surface) Size() (int, int) {
	return rl.GetScreenWidth(), rl.GetScreenHeight()
}

// PixelRatio returns the window's DPI scale.
func (Surface) PixelRatio() float32 {
	if s := rl.GetWindowScaleDPI().X; s > 0 {
		return s
	}
	return 1
}

// Poller reads mouse and touch state once per frame and feeds it to an
// input.Tracker.
type Poller struct {
	*input.Tracker
	contacts []input.Contact
}

// NewPoller creates a poller. Attach it to the engine as an input source.
func NewPoller() *Poller {
	return &Poller{Tracker: input.NewTracker()}
}

// Poll samples the pointer devices. Call it once per frame before ticking
// the engine.
func (p *Poller) Poll() {
	p.contacts = p.contacts[:0]

	touches := rl.GetTouchPointCount()
	for i := int32(0); i < touches; i++ {
		pos := rl.GetTouchPosition(i)
		p.contacts = append(p.contacts, input.Contact{
			ID:   int(rl.GetTouchPointId(i)),
			X:    pos.X,
			Y:    pos.Y,
			Down: true,
		})
	}

	// Raylib mirrors the first touch onto the mouse; skip it while touching.
	if touches == 0 {
		mouse := rl.GetMousePosition()
		p.contacts = append(p.contacts, input.Contact{
			ID:   input.MouseID,
			X:    mouse.X,
			Y:    mouse.Y,
			Down: rl.IsMouseButtonDown(rl.MouseButtonLeft),
		})
	}

	p.Update(p.contacts)
}
