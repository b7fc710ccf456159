// Package kernel compiles and runs per-texel fragment kernels over grid buffers.
//
// A kernel is written as a Source whose Build function resolves uniform
// handles through a Linker and returns the fragment function. The Pipeline
// caches one Program per (Kind, Flags) pair and runs the bound program over
// every texel of a target buffer with Blit.
package kernel

import (
	"errors"
	"fmt"
)

// Kind identifies a base kernel.
type Kind int

const (
	KindCopy Kind = iota
	KindClear
	KindColor
	KindSplat
	KindAdvection
	KindDivergence
	KindCurl
	KindVorticity
	KindPressure
	KindGradientSubtract
	KindDisplay
)

var kindNames = [...]string{
	KindCopy:             "copy",
	KindClear:            "clear",
	KindColor:            "color",
	KindSplat:            "splat",
	KindAdvection:        "advection",
	KindDivergence:       "divergence",
	KindCurl:             "curl",
	KindVorticity:        "vorticity",
	KindPressure:         "pressure",
	KindGradientSubtract: "gradient_subtract",
	KindDisplay:          "display",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// UniformType is the declared type of a kernel uniform.
type UniformType int

const (
	Float UniformType = iota
	Vec2
	Vec3
	Sampler
)

// Uniform declares a named kernel input.
type Uniform struct {
	Name string
	Type UniformType
}

// Handle addresses a uniform within one program. -1 is the invalid handle;
// setting it is a no-op.
type Handle int

// FragmentFunc computes one output texel.
type FragmentFunc func(f *Fragment) [4]float32

// Source describes a kernel before compilation.
type Source struct {
	Name     string
	Text     string // Human-readable listing; flags are prepended as defines
	Uniforms []Uniform
	Supports Flags // Flags this kernel has variants for
	Build    func(l *Linker, flags Flags) (FragmentFunc, error)
}

var (
	// ErrNoProgram is returned by Blit when no program is bound.
	ErrNoProgram = errors.New("kernel: no program bound")
	// ErrFeedbackLoop is returned by Blit when the target is also sampled.
	ErrFeedbackLoop = errors.New("kernel: target is attached for reading")
)

// Stage is the step of program creation that failed.
type Stage int

const (
	StageCompile Stage = iota
	StageLink
)

func (s Stage) String() string {
	if s == StageLink {
		return "link"
	}
	return "compile"
}

// ShaderError reports a kernel that could not be compiled or linked.
type ShaderError struct {
	Kind  Kind
	Flags Flags
	Stage Stage
	Log   string
}

func (e *ShaderError) Error() string {
	return fmt.Sprintf("kernel: %s [%s] %s failed: %s", e.Kind, e.Flags, e.Stage, e.Log)
}
