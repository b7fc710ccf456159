// Package grid manages the 2D float32 grids that back the fluid fields.
package grid

import (
	"fmt"
	"math"
)

// Format is the channel layout of a grid. The value is the channel count.
type Format int

const (
	FormatR    Format = 1
	FormatRG   Format = 2
	FormatRGBA Format = 4
)

// Channels returns the number of float32 components per texel.
func (f Format) Channels() int { return int(f) }

func (f Format) String() string {
	switch f {
	case FormatR:
		return "r"
	case FormatRG:
		return "rg"
	case FormatRGBA:
		return "rgba"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// ParseFormat maps a config name to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "r":
		return FormatR, nil
	case "rg":
		return FormatRG, nil
	case "rgba":
		return FormatRGBA, nil
	}
	return 0, fmt.Errorf("unknown grid format %q", s)
}

// Filter selects how a grid is sampled between texel centers.
type Filter int

const (
	FilterNearest Filter = iota
	FilterLinear
)

// Buffer is a 2D grid of float32 samples.
// Rows are stored bottom-up so texture coordinate (0,0) is the first texel.
type Buffer struct {
	Width  int
	Height int
	Format Format
	Filter Filter
	Data   []float32 // Interleaved channels, row-major

	attachment uint64
}

// Attachment returns the render-target handle issued at allocation.
// Zero means the buffer has been released.
func (b *Buffer) Attachment() uint64 { return b.attachment }

// TexelSize returns the size of one texel in texture coordinates.
func (b *Buffer) TexelSize() (float32, float32) {
	return 1 / float32(b.Width), 1 / float32(b.Height)
}

// Index returns the offset of texel (x, y) in Data.
func (b *Buffer) Index(x, y int) int {
	return (y*b.Width + x) * int(b.Format)
}

// At returns texel (x, y) widened to four channels.
// Missing channels read as zero.
func (b *Buffer) At(x, y int) [4]float32 {
	var out [4]float32
	i := b.Index(x, y)
	copy(out[:], b.Data[i:i+int(b.Format)])
	return out
}

// Set writes the first Format channels of v to texel (x, y).
func (b *Buffer) Set(x, y int, v [4]float32) {
	i := b.Index(x, y)
	copy(b.Data[i:i+int(b.Format)], v[:int(b.Format)])
}

// Fetch reads the texel containing uv with clamp-to-edge addressing.
func (b *Buffer) Fetch(u, v float32) [4]float32 {
	x := clampInt(int(math.Floor(float64(u*float32(b.Width)))), 0, b.Width-1)
	y := clampInt(int(math.Floor(float64(v*float32(b.Height)))), 0, b.Height-1)
	return b.At(x, y)
}

// Bilinear samples uv between the four surrounding texel centers.
func (b *Buffer) Bilinear(u, v float32) [4]float32 {
	st := u*float32(b.Width) - 0.5
	tt := v*float32(b.Height) - 0.5
	fx := float32(math.Floor(float64(st)))
	fy := float32(math.Floor(float64(tt)))
	ax := st - fx
	ay := tt - fy

	x0 := clampInt(int(fx), 0, b.Width-1)
	y0 := clampInt(int(fy), 0, b.Height-1)
	x1 := clampInt(int(fx)+1, 0, b.Width-1)
	y1 := clampInt(int(fy)+1, 0, b.Height-1)

	c00 := b.At(x0, y0)
	c10 := b.At(x1, y0)
	c01 := b.At(x0, y1)
	c11 := b.At(x1, y1)

	var out [4]float32
	for c := 0; c < int(b.Format); c++ {
		bottom := c00[c] + (c10[c]-c00[c])*ax
		top := c01[c] + (c11[c]-c01[c])*ax
		out[c] = bottom + (top-bottom)*ay
	}
	return out
}

// Sample reads uv using the buffer's filter.
func (b *Buffer) Sample(u, v float32) [4]float32 {
	if b.Filter == FilterLinear {
		return b.Bilinear(u, v)
	}
	return b.Fetch(u, v)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Double is a read/write pair of identically shaped buffers.
// Passes read Front, write Back, then Swap.
type Double struct {
	bufs  [2]*Buffer
	front int
}

// NewDouble pairs two distinct buffers of the same shape.
func NewDouble(a, b *Buffer) (*Double, error) {
	if a == b {
		return nil, fmt.Errorf("double buffer halves must be distinct")
	}
	if a.Width != b.Width || a.Height != b.Height || a.Format != b.Format {
		return nil, fmt.Errorf("double buffer halves differ: %dx%d %s vs %dx%d %s",
			a.Width, a.Height, a.Format, b.Width, b.Height, b.Format)
	}
	return &Double{bufs: [2]*Buffer{a, b}}, nil
}

// Front returns the buffer holding the current state.
func (d *Double) Front() *Buffer { return d.bufs[d.front] }

// Back returns the buffer the next pass writes.
func (d *Double) Back() *Buffer { return d.bufs[1-d.front] }

// Swap exchanges the front and back roles without copying.
func (d *Double) Swap() { d.front = 1 - d.front }

// Width returns the grid width in texels.
func (d *Double) Width() int { return d.bufs[0].Width }

// Height returns the grid height in texels.
func (d *Double) Height() int { return d.bufs[0].Height }

// TexelSize returns the texel size shared by both halves.
func (d *Double) TexelSize() (float32, float32) { return d.bufs[0].TexelSize() }
