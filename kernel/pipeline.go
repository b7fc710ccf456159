package kernel

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"github.com/pthm-cable/splash/grid"
)

// MaxUnits is the number of texture units a pipeline exposes.
const MaxUnits = 8

type programKey struct {
	kind  Kind
	flags Flags
}

// Pipeline compiles kernels, holds texture unit bindings and runs blits.
type Pipeline struct {
	cache  map[programKey]*Program
	units  [MaxUnits]*grid.Buffer
	active *Program
	logger *slog.Logger
	pool   *workerPool
}

// NewPipeline creates a pipeline. workers <= 0 uses GOMAXPROCS row workers.
func NewPipeline(logger *slog.Logger, workers int) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cache:  make(map[programKey]*Program),
		logger: logger,
		pool:   newWorkerPool(workers),
	}
}

// Compile returns the program for (kind, flags), building it on first use.
// Failures come back as *ShaderError and are not cached.
func (p *Pipeline) Compile(kind Kind, src Source, flags Flags) (*Program, error) {
	key := programKey{kind: kind, flags: flags}
	if prog, ok := p.cache[key]; ok {
		return prog, nil
	}

	prog, err := link(kind, src, flags)
	if err != nil {
		return nil, err
	}
	prog.pipe = p
	p.cache[key] = prog

	p.logger.Debug("compiled kernel", "kind", kind.String(), "name", src.Name, "defines", flags.Defines())
	return prog, nil
}

// Compiled returns the number of cached program variants.
func (p *Pipeline) Compiled() int { return len(p.cache) }

// Programs returns every cached program ordered by kind, then flags.
func (p *Pipeline) Programs() []*Program {
	progs := make([]*Program, 0, len(p.cache))
	for _, prog := range p.cache {
		progs = append(progs, prog)
	}
	slices.SortFunc(progs, func(a, b *Program) int {
		if c := cmp.Compare(a.kind, b.kind); c != 0 {
			return c
		}
		return cmp.Compare(a.flags, b.flags)
	})
	return progs
}

// Active returns the bound program, or nil.
func (p *Pipeline) Active() *Program { return p.active }

// Attach binds b to a texture unit and returns the unit.
func (p *Pipeline) Attach(unit int, b *grid.Buffer) int {
	if unit < 0 || unit >= MaxUnits {
		panic(fmt.Sprintf("kernel: texture unit %d out of range", unit))
	}
	p.units[unit] = b
	return unit
}

// Detach clears every texture unit.
func (p *Pipeline) Detach() {
	p.units = [MaxUnits]*grid.Buffer{}
}

// Blit runs the bound program over every texel of target.
func (p *Pipeline) Blit(target *grid.Buffer) error {
	prog := p.active
	if prog == nil {
		return ErrNoProgram
	}
	for _, h := range prog.samplers {
		if u := prog.unit(h); u >= 0 && u < MaxUnits && p.units[u] == target {
			return fmt.Errorf("%s into %dx%d: %w", prog.kind, target.Width, target.Height, ErrFeedbackLoop)
		}
	}

	tx, ty := target.TexelSize()
	if prog.texel >= 0 {
		tx, ty = prog.values[prog.texel][0], prog.values[prog.texel][1]
	}
	p.pool.run(target.Height, func(y0, y1 int) {
		f := Fragment{prog: prog, units: &p.units}
		for y := y0; y < y1; y++ {
			v := (float32(y) + 0.5) / float32(target.Height)
			for x := 0; x < target.Width; x++ {
				u := (float32(x) + 0.5) / float32(target.Width)
				f.X, f.Y = x, y
				f.UV = [2]float32{u, v}
				f.L = [2]float32{u - tx, v}
				f.R = [2]float32{u + tx, v}
				f.T = [2]float32{u, v + ty}
				f.B = [2]float32{u, v - ty}
				target.Set(x, y, prog.fn(&f))
			}
		}
	})
	return nil
}

// Close stops the row workers.
func (p *Pipeline) Close() {
	p.pool.stop()
}

// Fragment is the per-texel context handed to a kernel.
type Fragment struct {
	X, Y int
	UV   [2]float32
	// Neighbour coordinates one texel left, right, top and bottom.
	L, R, T, B [2]float32

	prog  *Program
	units *[MaxUnits]*grid.Buffer
}

// Float reads a float uniform.
func (f *Fragment) Float(h Handle) float32 { return f.prog.values[h][0] }

// Vec2 reads a vec2 uniform.
func (f *Fragment) Vec2(h Handle) [2]float32 {
	v := f.prog.values[h]
	return [2]float32{v[0], v[1]}
}

// Vec3 reads a vec3 uniform.
func (f *Fragment) Vec3(h Handle) [3]float32 {
	v := f.prog.values[h]
	return [3]float32{v[0], v[1], v[2]}
}

// Texture returns the buffer bound to a sampler uniform.
func (f *Fragment) Texture(h Handle) *grid.Buffer {
	return f.units[f.prog.unit(h)]
}

// Sample reads a sampler at uv with the buffer's own filter.
// An unbound unit reads as zero.
func (f *Fragment) Sample(h Handle, uv [2]float32) [4]float32 {
	b := f.Texture(h)
	if b == nil {
		return [4]float32{}
	}
	return b.Sample(uv[0], uv[1])
}

// Fetch reads the texel containing uv without filtering.
func (f *Fragment) Fetch(h Handle, uv [2]float32) [4]float32 {
	b := f.Texture(h)
	if b == nil {
		return [4]float32{}
	}
	return b.Fetch(uv[0], uv[1])
}
