// Package renderer turns the dye field into displayable frames.
package renderer

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"

	"github.com/pthm-cable/splash/config"
	"github.com/pthm-cable/splash/grid"
	"github.com/pthm-cable/splash/kernel"
)

// Frame is an RGBA8 image with premultiplied alpha. Rows run top to bottom.
type Frame struct {
	W, H int
	Pix  []color.RGBA
}

// At returns the pixel at column x, row y (row 0 is the top).
func (f *Frame) At(x, y int) color.RGBA {
	return f.Pix[y*f.W+x]
}

// RGBA copies the frame into an image.RGBA. Both use premultiplied alpha.
func (f *Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.W, f.H))
	for i, c := range f.Pix {
		img.Pix[i*4+0] = c.R
		img.Pix[i*4+1] = c.G
		img.Pix[i*4+2] = c.B
		img.Pix[i*4+3] = c.A
	}
	return img
}

// Renderer draws the dye field into a Frame each tick.
//
// The background is filled with the color kernel, the display kernel draws
// the dye into a separate layer, and the two are blended with
// (ONE, ONE_MINUS_SRC_ALPHA) while converting to 8 bits.
type Renderer struct {
	cfg    *config.Config
	mgr    *grid.Manager
	pipe   *kernel.Pipeline
	logger *slog.Logger

	color   *kernel.Program
	plain   *kernel.Program
	shaded  *kernel.Program
	format  grid.Format
	layer   *grid.Buffer
	backing *grid.Buffer

	frame Frame
}

// New compiles the display kernels, both shading variants included.
func New(cfg *config.Config, mgr *grid.Manager, pipe *kernel.Pipeline, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	format, err := mgr.SupportedFormat(grid.FormatRGBA)
	if err != nil {
		return nil, err
	}
	r := &Renderer{cfg: cfg, mgr: mgr, pipe: pipe, logger: logger, format: format}

	if r.color, err = pipe.Compile(kernel.KindColor, colorSource, 0); err != nil {
		return nil, err
	}
	if r.plain, err = pipe.Compile(kernel.KindDisplay, displaySource, 0); err != nil {
		return nil, err
	}
	if r.shaded, err = pipe.Compile(kernel.KindDisplay, displaySource, kernel.Shading); err != nil {
		return nil, err
	}
	return r, nil
}

// FrameSize returns the frame dimensions for a surface at the given render
// scale. Each side is at least one pixel.
func FrameSize(surfaceW, surfaceH int, scale float32) (int, int) {
	if scale <= 0 {
		scale = 1
	}
	w := int(math.Round(float64(float32(surfaceW) * scale)))
	h := int(math.Round(float64(float32(surfaceH) * scale)))
	return max(w, 1), max(h, 1)
}

// Program returns the display program for the current shading setting.
func (r *Renderer) Program() *kernel.Program {
	if r.cfg.Fluid.ShadingEnabled {
		return r.shaded
	}
	return r.plain
}

// Render draws dye into the frame for a surface of surfaceW x surfaceH
// pixels and returns it. The frame is reused by the next call.
func (r *Renderer) Render(dye *grid.Buffer, surfaceW, surfaceH int) (*Frame, error) {
	w, h := FrameSize(surfaceW, surfaceH, r.cfg.Render.Scale)
	w, h = grid.FitSize(w, h, r.mgr.Capabilities().MaxSize)
	if err := r.ensure(w, h); err != nil {
		return nil, err
	}
	fc := &r.cfg.Fluid

	if !fc.Transparent {
		bg := fc.BackgroundColor
		r.color.Bind()
		r.color.Set3f(r.color.Uniform("color"), bg.R, bg.G, bg.B)
		if err := r.pipe.Blit(r.backing); err != nil {
			return nil, fmt.Errorf("background: %w", err)
		}
	} else {
		clear(r.backing.Data)
	}

	p := r.Program()
	p.Bind()
	p.Set1i(p.Uniform("uTexture"), r.pipe.Attach(0, dye))
	p.Set2f(p.Uniform("texelSize"), 1/float32(w), 1/float32(h))
	if err := r.pipe.Blit(r.layer); err != nil {
		return nil, fmt.Errorf("display: %w", err)
	}

	r.composite()
	return &r.frame, nil
}

// Frame returns the last rendered frame.
func (r *Renderer) Frame() *Frame { return &r.frame }

// Release frees the frame buffers.
func (r *Renderer) Release() {
	r.mgr.Release(r.layer)
	r.mgr.Release(r.backing)
	r.layer, r.backing = nil, nil
}

func (r *Renderer) ensure(w, h int) error {
	if r.layer != nil && r.layer.Width == w && r.layer.Height == h {
		return nil
	}
	r.Release()

	var err error
	if r.layer, err = r.mgr.Create(w, h, r.format, grid.FilterNearest); err != nil {
		return fmt.Errorf("creating display layer: %w", err)
	}
	if r.backing, err = r.mgr.Create(w, h, r.format, grid.FilterNearest); err != nil {
		r.mgr.Release(r.layer)
		r.layer = nil
		return fmt.Errorf("creating display backing: %w", err)
	}
	r.frame = Frame{W: w, H: h, Pix: make([]color.RGBA, w*h)}
	r.logger.Debug("frame resized", "width", w, "height", h)
	return nil
}

// composite blends the layer over the backing and flips rows into the
// frame. Grid rows run bottom-up; frame rows run top-down.
func (r *Renderer) composite() {
	w, h := r.frame.W, r.frame.H
	for y := 0; y < h; y++ {
		row := (h - 1 - y) * w
		for x := 0; x < w; x++ {
			src := clamp01(r.layer.At(x, y))
			dst := r.backing.At(x, y)
			inv := 1 - src[3]
			r.frame.Pix[row+x] = color.RGBA{
				R: to8(src[0] + dst[0]*inv),
				G: to8(src[1] + dst[1]*inv),
				B: to8(src[2] + dst[2]*inv),
				A: to8(src[3] + dst[3]*inv),
			}
		}
	}
}

// clamp01 mirrors the clamp a fixed-point target applies before blending.
func clamp01(c [4]float32) [4]float32 {
	for i, v := range c {
		c[i] = min(max(v, 0), 1)
	}
	return c
}

func to8(v float32) uint8 {
	if v <= 0 || v != v {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
