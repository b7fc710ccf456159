package grid

import "gonum.org/v1/gonum/blas/blas32"

// vector views the buffer's samples as a blas32 vector.
func (b *Buffer) vector() blas32.Vector {
	return blas32.Vector{N: len(b.Data), Inc: 1, Data: b.Data}
}

// Scale multiplies every sample by s.
func (b *Buffer) Scale(s float32) {
	if len(b.Data) == 0 {
		return
	}
	blas32.Scal(s, b.vector())
}

// Energy returns the sum of absolute sample values over all channels.
func (b *Buffer) Energy() float32 {
	if len(b.Data) == 0 {
		return 0
	}
	return blas32.Asum(b.vector())
}

// CopyFrom copies src's samples into b. Shapes must match.
func (b *Buffer) CopyFrom(src *Buffer) {
	if len(b.Data) == 0 || len(src.Data) != len(b.Data) {
		return
	}
	blas32.Copy(src.vector(), b.vector())
}

// AddScaled adds a*src to b. Shapes must match.
func (b *Buffer) AddScaled(a float32, src *Buffer) {
	if len(b.Data) == 0 || len(src.Data) != len(b.Data) {
		return
	}
	blas32.Axpy(a, src.vector(), b.vector())
}

// Clear zeroes every sample.
func (b *Buffer) Clear() {
	clear(b.Data)
}

// MaxAbs returns the largest absolute sample value.
func (b *Buffer) MaxAbs() float32 {
	if len(b.Data) == 0 {
		return 0
	}
	i := blas32.Iamax(b.vector())
	v := b.Data[i]
	if v < 0 {
		return -v
	}
	return v
}
