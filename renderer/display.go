package renderer

import (
	"math"

	"github.com/pthm-cable/splash/kernel"
)

var colorSource = kernel.Source{
	Name:     "color",
	Text:     "out = vec4(color, 1)",
	Uniforms: []kernel.Uniform{{Name: "color", Type: kernel.Vec3}},
	Build: func(l *kernel.Linker, _ kernel.Flags) (kernel.FragmentFunc, error) {
		color := l.Uniform("color")
		return func(f *kernel.Fragment) [4]float32 {
			c := f.Vec3(color)
			return [4]float32{c[0], c[1], c[2], 1}
		}, nil
	},
}

// displaySource maps dye to screen color. Alpha is the brightest channel,
// so faint dye fades into whatever is underneath.
var displaySource = kernel.Source{
	Name: "display",
	Text: `c = texture(uTexture, uv).rgb
#ifdef SHADING
dx = length(texture(uTexture, vR).rgb) - length(texture(uTexture, vL).rgb)
dy = length(texture(uTexture, vT).rgb) - length(texture(uTexture, vB).rgb)
n = normalize(vec3(dx, dy, length(texelSize)))
c *= clamp(n.z + 0.7, 0.7, 1.0)
#endif
out = vec4(c, max(c.r, max(c.g, c.b)))`,
	Uniforms: []kernel.Uniform{
		{Name: "uTexture", Type: kernel.Sampler},
		{Name: "texelSize", Type: kernel.Vec2},
	},
	Supports: kernel.Shading,
	Build: func(l *kernel.Linker, flags kernel.Flags) (kernel.FragmentFunc, error) {
		tex := l.Uniform("uTexture")
		texel := l.Uniform("texelSize")
		shading := flags.Has(kernel.Shading)
		return func(f *kernel.Fragment) [4]float32 {
			c := f.Sample(tex, f.UV)
			if shading {
				dx := length3(f.Sample(tex, f.R)) - length3(f.Sample(tex, f.L))
				dy := length3(f.Sample(tex, f.T)) - length3(f.Sample(tex, f.B))
				ts := f.Vec2(texel)
				z := float32(math.Hypot(float64(ts[0]), float64(ts[1])))
				n := float32(math.Sqrt(float64(dx*dx + dy*dy + z*z)))
				nz := float32(1)
				if n > 0 {
					nz = z / n
				}
				diffuse := min(max(nz+0.7, 0.7), 1)
				c[0] *= diffuse
				c[1] *= diffuse
				c[2] *= diffuse
			}
			return [4]float32{c[0], c[1], c[2], max(c[0], c[1], c[2])}
		}, nil
	},
}

func length3(c [4]float32) float32 {
	return float32(math.Sqrt(float64(c[0]*c[0] + c[1]*c[1] + c[2]*c[2])))
}
