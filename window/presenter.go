package window

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/splash/renderer"
)

// Presenter uploads rendered frames to a texture and stretches it over the
// window. Frames are premultiplied, so they are drawn with the matching
// blend mode.
type Presenter struct {
	tex    rl.Texture2D
	loaded bool
	w, h   int
}

// NewPresenter creates a presenter. The texture is allocated on the first
// Draw.
func NewPresenter() *Presenter {
	return &Presenter{}
}

// Draw presents frame over the whole window. A nil frame draws nothing.
// Must be called between rl.BeginDrawing and rl.EndDrawing.
func (p *Presenter) Draw(frame *renderer.Frame) {
	if frame == nil || frame.W == 0 || frame.H == 0 {
		return
	}
	if !p.loaded || frame.W != p.w || frame.H != p.h {
		p.allocate(frame.W, frame.H)
	}
	rl.UpdateTexture(p.tex, frame.Pix)

	src := rl.Rectangle{X: 0, Y: 0, Width: float32(frame.W), Height: float32(frame.H)}
	dst := rl.Rectangle{X: 0, Y: 0, Width: float32(rl.GetScreenWidth()), Height: float32(rl.GetScreenHeight())}
	rl.BeginBlendMode(rl.BlendAlphaPremultiply)
	rl.DrawTexturePro(p.tex, src, dst, rl.Vector2{}, 0, rl.White)
	rl.EndBlendMode()
}

func (p *Presenter) allocate(w, h int) {
	p.Unload()
	img := rl.GenImageColor(w, h, rl.Blank)
	p.tex = rl.LoadTextureFromImage(img)
	rl.UnloadImage(img)
	rl.SetTextureFilter(p.tex, rl.FilterBilinear)
	p.w, p.h = w, h
	p.loaded = true
}

// Unload frees the texture.
func (p *Presenter) Unload() {
	if p.loaded {
		rl.UnloadTexture(p.tex)
		p.loaded = false
	}
}
