package input

import (
	"math"
	"math/rand"

	"github.com/pthm-cable/splash/config"
)

// Palette generates splat colors. Settings are read on every call, so
// changes to the pointer config apply to the next color.
type Palette struct {
	cfg *config.PointerConfig
	rng *rand.Rand
}

// NewPalette creates a palette from pointer config.
func NewPalette(cfg *config.PointerConfig, rng *rand.Rand) *Palette {
	return &Palette{cfg: cfg, rng: rng}
}

// Generate returns the next splat color.
func (p *Palette) Generate() [3]float32 {
	tc := p.cfg.ThemeColor
	c := [3]float32{tc.R, tc.G, tc.B}
	if p.cfg.Palette == "rainbow" {
		c = HSVToRGB(p.rng.Float32(), 1, 1)
	}
	k := p.cfg.ColorIntensity
	return [3]float32{c[0] * k, c[1] * k, c[2] * k}
}

// HSVToRGB converts hue, saturation and value in [0, 1] to RGB.
func HSVToRGB(h, s, v float32) [3]float32 {
	i := int(math.Floor(float64(h * 6)))
	f := h*6 - float32(i)
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	switch ((i % 6) + 6) % 6 {
	case 0:
		return [3]float32{v, t, p}
	case 1:
		return [3]float32{q, v, p}
	case 2:
		return [3]float32{p, v, t}
	case 3:
		return [3]float32{p, q, v}
	case 4:
		return [3]float32{t, p, v}
	default:
		return [3]float32{v, p, q}
	}
}
