package kernel

import (
	"fmt"
	"strings"
)

// Linker resolves uniform names to handles while a kernel is built.
// Lookups of undeclared names are collected as link errors.
type Linker struct {
	handles map[string]Handle
	errs    []string
}

// Uniform returns the handle of a declared uniform.
func (l *Linker) Uniform(name string) Handle {
	h, ok := l.handles[name]
	if !ok {
		l.errs = append(l.errs, fmt.Sprintf("undeclared uniform %q", name))
		return -1
	}
	return h
}

// Program is a linked kernel variant with its uniform table.
type Program struct {
	kind     Kind
	flags    Flags
	listing  string
	uniforms map[string]Handle
	types    []UniformType
	values   [][4]float32
	samplers []Handle
	texel    Handle // "texelSize" uniform, sets neighbour offsets
	fn       FragmentFunc
	pipe     *Pipeline
}

func link(kind Kind, src Source, flags Flags) (*Program, error) {
	if src.Build == nil {
		return nil, &ShaderError{Kind: kind, Flags: flags, Stage: StageCompile, Log: "empty source"}
	}
	if unknown := flags &^ src.Supports; unknown != 0 {
		return nil, &ShaderError{Kind: kind, Flags: flags, Stage: StageCompile,
			Log: fmt.Sprintf("unsupported flags %s", unknown)}
	}

	p := &Program{
		kind:     kind,
		flags:    flags,
		listing:  WithDefines(src.Text, flags),
		uniforms: make(map[string]Handle, len(src.Uniforms)),
		types:    make([]UniformType, len(src.Uniforms)),
		values:   make([][4]float32, len(src.Uniforms)),
		texel:    -1,
	}
	for i, u := range src.Uniforms {
		if _, dup := p.uniforms[u.Name]; dup {
			return nil, &ShaderError{Kind: kind, Flags: flags, Stage: StageCompile,
				Log: fmt.Sprintf("uniform %q declared twice", u.Name)}
		}
		h := Handle(i)
		p.uniforms[u.Name] = h
		p.types[i] = u.Type
		if u.Type == Sampler {
			p.samplers = append(p.samplers, h)
		}
		if u.Name == "texelSize" && u.Type == Vec2 {
			p.texel = h
		}
	}

	l := &Linker{handles: p.uniforms}
	fn, err := src.Build(l, flags)
	if err != nil {
		return nil, &ShaderError{Kind: kind, Flags: flags, Stage: StageLink, Log: err.Error()}
	}
	if len(l.errs) > 0 {
		return nil, &ShaderError{Kind: kind, Flags: flags, Stage: StageLink, Log: strings.Join(l.errs, "; ")}
	}
	if fn == nil {
		return nil, &ShaderError{Kind: kind, Flags: flags, Stage: StageLink, Log: "no fragment function"}
	}
	p.fn = fn
	return p, nil
}

// Kind returns the base kernel of the program.
func (p *Program) Kind() Kind { return p.kind }

// Flags returns the feature flags the program was compiled with.
func (p *Program) Flags() Flags { return p.flags }

// Listing returns the kernel text with its defines.
func (p *Program) Listing() string { return p.listing }

// Bind makes p the program used by subsequent blits.
func (p *Program) Bind() {
	p.pipe.active = p
}

// Uniform returns the handle of the named uniform, or -1.
func (p *Program) Uniform(name string) Handle {
	if h, ok := p.uniforms[name]; ok {
		return h
	}
	return -1
}

func (p *Program) valid(h Handle) bool { return h >= 0 && int(h) < len(p.values) }

// Set1f sets a float uniform.
func (p *Program) Set1f(h Handle, x float32) {
	if p.valid(h) {
		p.values[h] = [4]float32{x}
	}
}

// Set2f sets a vec2 uniform.
func (p *Program) Set2f(h Handle, x, y float32) {
	if p.valid(h) {
		p.values[h] = [4]float32{x, y}
	}
}

// Set3f sets a vec3 uniform.
func (p *Program) Set3f(h Handle, x, y, z float32) {
	if p.valid(h) {
		p.values[h] = [4]float32{x, y, z}
	}
}

// Set1i points a sampler uniform at a texture unit.
func (p *Program) Set1i(h Handle, unit int) {
	if p.valid(h) {
		p.values[h] = [4]float32{float32(unit)}
	}
}

func (p *Program) unit(h Handle) int {
	return int(p.values[h][0])
}
