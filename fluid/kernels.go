package fluid

import (
	"math"

	"github.com/pthm-cable/splash/kernel"
)

// Kernel sources for the solver passes. Neighbour coordinates (L, R, T, B)
// are one texelSize step from the fragment center; out-of-range reads
// clamp to the edge texel.

var copySource = kernel.Source{
	Name:     "copy",
	Text:     "out = texture(uTexture, uv)",
	Uniforms: []kernel.Uniform{{Name: "uTexture", Type: kernel.Sampler}},
	Build: func(l *kernel.Linker, _ kernel.Flags) (kernel.FragmentFunc, error) {
		tex := l.Uniform("uTexture")
		return func(f *kernel.Fragment) [4]float32 {
			return f.Sample(tex, f.UV)
		}, nil
	},
}

var clearSource = kernel.Source{
	Name: "clear",
	Text: "out = value * texture(uTexture, uv)",
	Uniforms: []kernel.Uniform{
		{Name: "uTexture", Type: kernel.Sampler},
		{Name: "value", Type: kernel.Float},
	},
	Build: func(l *kernel.Linker, _ kernel.Flags) (kernel.FragmentFunc, error) {
		tex := l.Uniform("uTexture")
		value := l.Uniform("value")
		return func(f *kernel.Fragment) [4]float32 {
			c := f.Fetch(tex, f.UV)
			s := f.Float(value)
			return [4]float32{c[0] * s, c[1] * s, c[2] * s, c[3] * s}
		}, nil
	},
}

var splatSource = kernel.Source{
	Name: "splat",
	Text: "p = uv - point; p.x *= aspectRatio; out = base + exp(-dot(p, p) / radius) * color",
	Uniforms: []kernel.Uniform{
		{Name: "uTarget", Type: kernel.Sampler},
		{Name: "aspectRatio", Type: kernel.Float},
		{Name: "color", Type: kernel.Vec3},
		{Name: "point", Type: kernel.Vec2},
		{Name: "radius", Type: kernel.Float},
	},
	Build: func(l *kernel.Linker, _ kernel.Flags) (kernel.FragmentFunc, error) {
		target := l.Uniform("uTarget")
		aspect := l.Uniform("aspectRatio")
		color := l.Uniform("color")
		point := l.Uniform("point")
		radius := l.Uniform("radius")
		return func(f *kernel.Fragment) [4]float32 {
			pt := f.Vec2(point)
			px := (f.UV[0] - pt[0]) * f.Float(aspect)
			py := f.UV[1] - pt[1]
			w := float32(math.Exp(float64(-(px*px + py*py) / f.Float(radius))))
			c := f.Vec3(color)
			base := f.Fetch(target, f.UV)
			return [4]float32{base[0] + w*c[0], base[1] + w*c[1], base[2] + w*c[2], 1}
		}, nil
	},
}

var advectionSource = kernel.Source{
	Name: "advection",
	Text: "coord = uv - dt * velocity(uv) * texelSize; out = source(coord) / (1 + dissipation * dt)",
	Uniforms: []kernel.Uniform{
		{Name: "uVelocity", Type: kernel.Sampler},
		{Name: "uSource", Type: kernel.Sampler},
		{Name: "texelSize", Type: kernel.Vec2},
		{Name: "dyeTexelSize", Type: kernel.Vec2},
		{Name: "dt", Type: kernel.Float},
		{Name: "dissipation", Type: kernel.Float},
	},
	Supports: kernel.ManualFiltering,
	Build: func(l *kernel.Linker, flags kernel.Flags) (kernel.FragmentFunc, error) {
		vel := l.Uniform("uVelocity")
		src := l.Uniform("uSource")
		texel := l.Uniform("texelSize")
		dyeTexel := l.Uniform("dyeTexelSize")
		dt := l.Uniform("dt")
		dissipation := l.Uniform("dissipation")

		manual := flags.Has(kernel.ManualFiltering)
		return func(f *kernel.Fragment) [4]float32 {
			ts := f.Vec2(texel)
			step := f.Float(dt)

			var v, result [4]float32
			if manual {
				v = bilerp(f, vel, f.UV, ts)
			} else {
				v = f.Sample(vel, f.UV)
			}
			coord := [2]float32{f.UV[0] - step*v[0]*ts[0], f.UV[1] - step*v[1]*ts[1]}
			if manual {
				result = bilerp(f, src, coord, f.Vec2(dyeTexel))
			} else {
				result = f.Sample(src, coord)
			}

			decay := 1 + f.Float(dissipation)*step
			return [4]float32{result[0] / decay, result[1] / decay, result[2] / decay, result[3] / decay}
		}, nil
	},
}

// bilerp is the 4-tap bilinear fetch used when hardware filtering is absent.
func bilerp(f *kernel.Fragment, h kernel.Handle, uv, tsize [2]float32) [4]float32 {
	stx := uv[0]/tsize[0] - 0.5
	sty := uv[1]/tsize[1] - 0.5
	ix := float32(math.Floor(float64(stx)))
	iy := float32(math.Floor(float64(sty)))
	fx := stx - ix
	fy := sty - iy

	a := f.Fetch(h, [2]float32{(ix + 0.5) * tsize[0], (iy + 0.5) * tsize[1]})
	b := f.Fetch(h, [2]float32{(ix + 1.5) * tsize[0], (iy + 0.5) * tsize[1]})
	c := f.Fetch(h, [2]float32{(ix + 0.5) * tsize[0], (iy + 1.5) * tsize[1]})
	d := f.Fetch(h, [2]float32{(ix + 1.5) * tsize[0], (iy + 1.5) * tsize[1]})

	var out [4]float32
	for i := range out {
		bottom := a[i] + (b[i]-a[i])*fx
		top := c[i] + (d[i]-c[i])*fx
		out[i] = bottom + (top-bottom)*fy
	}
	return out
}

var divergenceSource = kernel.Source{
	Name: "divergence",
	Text: "div = 0.5 * (R.x - L.x + T.y - B.y), walls reflect the normal component",
	Uniforms: []kernel.Uniform{
		{Name: "uVelocity", Type: kernel.Sampler},
		{Name: "texelSize", Type: kernel.Vec2},
	},
	Build: func(l *kernel.Linker, _ kernel.Flags) (kernel.FragmentFunc, error) {
		vel := l.Uniform("uVelocity")
		return func(f *kernel.Fragment) [4]float32 {
			L := f.Fetch(vel, f.L)[0]
			R := f.Fetch(vel, f.R)[0]
			T := f.Fetch(vel, f.T)[1]
			B := f.Fetch(vel, f.B)[1]

			c := f.Fetch(vel, f.UV)
			if f.L[0] < 0 {
				L = -c[0]
			}
			if f.R[0] > 1 {
				R = -c[0]
			}
			if f.T[1] > 1 {
				T = -c[1]
			}
			if f.B[1] < 0 {
				B = -c[1]
			}
			return [4]float32{0.5 * (R - L + T - B), 0, 0, 1}
		}, nil
	},
}

var curlSource = kernel.Source{
	Name: "curl",
	Text: "curl = 0.5 * (R.y - L.y - T.x + B.x)",
	Uniforms: []kernel.Uniform{
		{Name: "uVelocity", Type: kernel.Sampler},
		{Name: "texelSize", Type: kernel.Vec2},
	},
	Build: func(l *kernel.Linker, _ kernel.Flags) (kernel.FragmentFunc, error) {
		vel := l.Uniform("uVelocity")
		return func(f *kernel.Fragment) [4]float32 {
			L := f.Fetch(vel, f.L)[1]
			R := f.Fetch(vel, f.R)[1]
			T := f.Fetch(vel, f.T)[0]
			B := f.Fetch(vel, f.B)[0]
			return [4]float32{0.5 * (R - L - T + B), 0, 0, 1}
		}, nil
	},
}

var vorticitySource = kernel.Source{
	Name: "vorticity",
	Text: "force = normalize(0.5 * (|T| - |B|, |R| - |L|)) * curl * C; force.y = -force.y; vel += force * dt",
	Uniforms: []kernel.Uniform{
		{Name: "uVelocity", Type: kernel.Sampler},
		{Name: "uCurl", Type: kernel.Sampler},
		{Name: "curl", Type: kernel.Float},
		{Name: "dt", Type: kernel.Float},
		{Name: "texelSize", Type: kernel.Vec2},
	},
	Build: func(l *kernel.Linker, _ kernel.Flags) (kernel.FragmentFunc, error) {
		vel := l.Uniform("uVelocity")
		curlTex := l.Uniform("uCurl")
		strength := l.Uniform("curl")
		dt := l.Uniform("dt")
		return func(f *kernel.Fragment) [4]float32 {
			L := f.Fetch(curlTex, f.L)[0]
			R := f.Fetch(curlTex, f.R)[0]
			T := f.Fetch(curlTex, f.T)[0]
			B := f.Fetch(curlTex, f.B)[0]
			C := f.Fetch(curlTex, f.UV)[0]

			fx := 0.5 * (abs32(T) - abs32(B))
			fy := 0.5 * (abs32(R) - abs32(L))
			n := float32(math.Sqrt(float64(fx*fx+fy*fy))) + 1e-4
			s := f.Float(strength) * C / n
			fx *= s
			fy *= -s

			v := f.Fetch(vel, f.UV)
			step := f.Float(dt)
			return [4]float32{
				clamp32(v[0]+fx*step, -1000, 1000),
				clamp32(v[1]+fy*step, -1000, 1000),
				0, 1,
			}
		}, nil
	},
}

var pressureSource = kernel.Source{
	Name: "pressure",
	Text: "p = 0.25 * (L + R + B + T - divergence)",
	Uniforms: []kernel.Uniform{
		{Name: "uPressure", Type: kernel.Sampler},
		{Name: "uDivergence", Type: kernel.Sampler},
		{Name: "texelSize", Type: kernel.Vec2},
	},
	Build: func(l *kernel.Linker, _ kernel.Flags) (kernel.FragmentFunc, error) {
		pressure := l.Uniform("uPressure")
		div := l.Uniform("uDivergence")
		return func(f *kernel.Fragment) [4]float32 {
			L := f.Fetch(pressure, f.L)[0]
			R := f.Fetch(pressure, f.R)[0]
			T := f.Fetch(pressure, f.T)[0]
			B := f.Fetch(pressure, f.B)[0]
			d := f.Fetch(div, f.UV)[0]
			return [4]float32{0.25 * (L + R + B + T - d), 0, 0, 1}
		}, nil
	},
}

var gradientSubtractSource = kernel.Source{
	Name: "gradient_subtract",
	Text: "vel -= (R - L, T - B)",
	Uniforms: []kernel.Uniform{
		{Name: "uPressure", Type: kernel.Sampler},
		{Name: "uVelocity", Type: kernel.Sampler},
		{Name: "texelSize", Type: kernel.Vec2},
	},
	Build: func(l *kernel.Linker, _ kernel.Flags) (kernel.FragmentFunc, error) {
		pressure := l.Uniform("uPressure")
		vel := l.Uniform("uVelocity")
		return func(f *kernel.Fragment) [4]float32 {
			L := f.Fetch(pressure, f.L)[0]
			R := f.Fetch(pressure, f.R)[0]
			T := f.Fetch(pressure, f.T)[0]
			B := f.Fetch(pressure, f.B)[0]
			v := f.Fetch(vel, f.UV)
			return [4]float32{v[0] - (R - L), v[1] - (T - B), 0, 1}
		}, nil
	},
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
