package grid

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// ErrNoContext means the device cannot render into any grid format.
// The engine has no fallback below this capability.
var ErrNoContext = errors.New("grid: no renderable format available")

// AllocationError reports a grid that could not be made renderable.
type AllocationError struct {
	Width, Height int
	Format        Format
	Reason        string
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("grid: cannot allocate %dx%d %s: %s", e.Width, e.Height, e.Format, e.Reason)
}

// Capabilities describes what the grid backend can render into.
type Capabilities struct {
	Renderable      map[Format]bool
	LinearFiltering bool
	MaxSize         int // Largest allowed dimension (0 = unlimited)
}

// DefaultCapabilities supports every format with linear filtering.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		Renderable: map[Format]bool{
			FormatR:    true,
			FormatRG:   true,
			FormatRGBA: true,
		},
		LinearFiltering: true,
	}
}

// CapabilitiesFromNames builds capabilities from config format names.
func CapabilitiesFromNames(formats []string, linear bool, maxSize int) (Capabilities, error) {
	caps := Capabilities{
		Renderable:      make(map[Format]bool, len(formats)),
		LinearFiltering: linear,
		MaxSize:         maxSize,
	}
	for _, name := range formats {
		f, err := ParseFormat(name)
		if err != nil {
			return Capabilities{}, err
		}
		caps.Renderable[f] = true
	}
	return caps, nil
}

// Resampler copies src into dst, filtering across the size change.
type Resampler interface {
	Resample(src, dst *Buffer) error
}

// Manager allocates, resizes and releases grid buffers.
type Manager struct {
	caps       Capabilities
	logger     *slog.Logger
	nextHandle uint64
	live       int
}

// NewManager creates a manager for the given device capabilities.
func NewManager(caps Capabilities, logger *slog.Logger) (*Manager, error) {
	any := false
	for _, ok := range caps.Renderable {
		any = any || ok
	}
	if !any {
		return nil, ErrNoContext
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{caps: caps, logger: logger}, nil
}

// Capabilities returns the device capabilities.
func (m *Manager) Capabilities() Capabilities { return m.caps }

// Live returns the number of allocated, unreleased buffers.
func (m *Manager) Live() int { return m.live }

// SupportedFormat returns the narrowest renderable format that holds f.
// Missing formats widen R -> RG -> RGBA.
func (m *Manager) SupportedFormat(f Format) (Format, error) {
	for cur := f; ; {
		if m.caps.Renderable[cur] {
			return cur, nil
		}
		switch cur {
		case FormatR:
			cur = FormatRG
		case FormatRG:
			cur = FormatRGBA
		default:
			return 0, &AllocationError{Format: f, Reason: "format not renderable"}
		}
	}
}

// Create allocates a zeroed grid.
func (m *Manager) Create(w, h int, format Format, filter Filter) (*Buffer, error) {
	if w <= 0 || h <= 0 {
		return nil, &AllocationError{Width: w, Height: h, Format: format, Reason: "non-positive size"}
	}
	if m.caps.MaxSize > 0 && (w > m.caps.MaxSize || h > m.caps.MaxSize) {
		return nil, &AllocationError{Width: w, Height: h, Format: format,
			Reason: fmt.Sprintf("exceeds max size %d", m.caps.MaxSize)}
	}
	if !m.caps.Renderable[format] {
		return nil, &AllocationError{Width: w, Height: h, Format: format, Reason: "format not renderable"}
	}
	if filter == FilterLinear && !m.caps.LinearFiltering {
		filter = FilterNearest
	}

	m.nextHandle++
	m.live++
	return &Buffer{
		Width:      w,
		Height:     h,
		Format:     format,
		Filter:     filter,
		Data:       make([]float32, w*h*int(format)),
		attachment: m.nextHandle,
	}, nil
}

// CreateDouble allocates two independent grids of the same shape.
func (m *Manager) CreateDouble(w, h int, format Format, filter Filter) (*Double, error) {
	a, err := m.Create(w, h, format, filter)
	if err != nil {
		return nil, err
	}
	b, err := m.Create(w, h, format, filter)
	if err != nil {
		m.Release(a)
		return nil, err
	}
	return NewDouble(a, b)
}

// ResizeDouble brings d to w x h. It is a no-op when the size is unchanged.
// The front buffer is resampled so live state survives; the back buffer is
// reallocated blank unless resampleBack is set.
func (m *Manager) ResizeDouble(d *Double, w, h int, r Resampler, resampleBack bool) error {
	if d.Width() == w && d.Height() == h {
		return nil
	}
	front, back := d.Front(), d.Back()

	newFront, err := m.resize(front, w, h, r)
	if err != nil {
		return err
	}
	var newBack *Buffer
	if resampleBack {
		newBack, err = m.resize(back, w, h, r)
	} else {
		newBack, err = m.Create(w, h, back.Format, back.Filter)
	}
	if err != nil {
		m.Release(newFront)
		return err
	}

	m.Release(front)
	m.Release(back)
	d.bufs[d.front] = newFront
	d.bufs[1-d.front] = newBack

	m.logger.Debug("resized double buffer", "width", w, "height", h, "format", front.Format.String())
	return nil
}

// resize allocates a w x h copy of src filled through r.
func (m *Manager) resize(src *Buffer, w, h int, r Resampler) (*Buffer, error) {
	dst, err := m.Create(w, h, src.Format, src.Filter)
	if err != nil {
		return nil, err
	}
	if err := r.Resample(src, dst); err != nil {
		m.Release(dst)
		return nil, fmt.Errorf("resampling %dx%d -> %dx%d: %w", src.Width, src.Height, w, h, err)
	}
	return dst, nil
}

// Release frees a buffer. Releasing twice is harmless.
func (m *Manager) Release(b *Buffer) {
	if b == nil || b.attachment == 0 {
		return
	}
	b.attachment = 0
	b.Data = nil
	m.live--
}

// ReleaseDouble frees both halves of d.
func (m *Manager) ReleaseDouble(d *Double) {
	if d == nil {
		return
	}
	m.Release(d.bufs[0])
	m.Release(d.bufs[1])
}

// Resolution returns grid dimensions for a requested resolution on a
// surface of the given size. The short axis gets round(res) texels and the
// long axis round(res * aspect), so texels stay square on screen.
func Resolution(res int, surfaceW, surfaceH int) (int, int, error) {
	if surfaceW <= 0 || surfaceH <= 0 {
		return 0, 0, fmt.Errorf("grid: surface has no area (%dx%d)", surfaceW, surfaceH)
	}
	aspect := float64(surfaceW) / float64(surfaceH)
	if aspect < 1 {
		aspect = 1 / aspect
	}
	minor := int(math.Round(float64(res)))
	major := int(math.Round(float64(res) * aspect))
	if surfaceW > surfaceH {
		return major, minor, nil
	}
	return minor, major, nil
}

// FitResolution is Resolution scaled down by FitSize.
func FitResolution(res, surfaceW, surfaceH, maxSize int) (int, int, error) {
	w, h, err := Resolution(res, surfaceW, surfaceH)
	if err != nil {
		return 0, 0, err
	}
	w, h = FitSize(w, h, maxSize)
	return w, h, nil
}

// FitSize scales w x h down, aspect kept, until neither axis exceeds
// maxSize (0 = unlimited). No axis drops below one texel.
func FitSize(w, h, maxSize int) (int, int) {
	major := max(w, h)
	if maxSize <= 0 || major <= maxSize {
		return w, h
	}
	scale := float64(maxSize) / float64(major)
	fit := func(n int) int {
		return min(maxSize, max(1, int(math.Round(float64(n)*scale))))
	}
	return fit(w), fit(h)
}
