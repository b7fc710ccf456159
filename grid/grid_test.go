package grid

import (
	"errors"
	"math"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(DefaultCapabilities(), nil)
	if err != nil {
		t.Fatalf("creating manager: %v", err)
	}
	return m
}

func TestDoubleSwapTwiceRestores(t *testing.T) {
	m := newTestManager(t)
	d, err := m.CreateDouble(8, 4, FormatRG, FilterLinear)
	if err != nil {
		t.Fatal(err)
	}

	front, back := d.Front(), d.Back()
	if front == back {
		t.Fatal("front and back must be distinct buffers")
	}

	d.Swap()
	if d.Front() != back || d.Back() != front {
		t.Error("single swap should exchange roles")
	}
	d.Swap()
	if d.Front() != front || d.Back() != back {
		t.Error("double swap should restore original roles")
	}
}

func TestNewDoubleRejectsSameBuffer(t *testing.T) {
	m := newTestManager(t)
	b, _ := m.Create(4, 4, FormatR, FilterNearest)
	if _, err := NewDouble(b, b); err == nil {
		t.Error("expected error pairing a buffer with itself")
	}
	c, _ := m.Create(4, 2, FormatR, FilterNearest)
	if _, err := NewDouble(b, c); err == nil {
		t.Error("expected error pairing buffers of different shape")
	}
}

func TestResolution(t *testing.T) {
	tests := []struct {
		name         string
		res          int
		w, h         int
		wantW, wantH int
	}{
		{"square", 128, 800, 800, 128, 128},
		{"landscape 2:1", 128, 1600, 800, 256, 128},
		{"portrait 1:2", 128, 800, 1600, 128, 256},
		{"landscape 16:9", 128, 1920, 1080, 228, 128},
		{"portrait 9:16", 256, 1080, 1920, 256, 455},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, err := Resolution(tt.res, tt.w, tt.h)
			if err != nil {
				t.Fatal(err)
			}
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("Resolution(%d, %d, %d) = %dx%d, want %dx%d",
					tt.res, tt.w, tt.h, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestFitResolution(t *testing.T) {
	tests := []struct {
		name         string
		res, max     int
		w, h         int
		wantW, wantH int
	}{
		{"unlimited", 128, 0, 1600, 800, 256, 128},
		{"fits", 128, 256, 1600, 800, 256, 128},
		{"wide surface", 16, 64, 256, 64, 64, 16},
		{"tall surface", 128, 128, 800, 1600, 64, 128},
		{"resolution over max", 5000, 4096, 800, 800, 4096, 4096},
		{"extreme aspect keeps one texel", 4, 8, 10000, 1, 8, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, err := FitResolution(tt.res, tt.w, tt.h, tt.max)
			if err != nil {
				t.Fatal(err)
			}
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("FitResolution(%d, %d, %d, %d) = %dx%d, want %dx%d",
					tt.res, tt.w, tt.h, tt.max, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestResolutionZeroSurface(t *testing.T) {
	if _, _, err := Resolution(128, 0, 600); err == nil {
		t.Error("expected error for zero-width surface")
	}
	if _, _, err := Resolution(128, 600, 0); err == nil {
		t.Error("expected error for zero-height surface")
	}
}

func TestCreateAllocationErrors(t *testing.T) {
	caps := DefaultCapabilities()
	caps.MaxSize = 64
	delete(caps.Renderable, FormatR)
	m, err := NewManager(caps, nil)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		w, h   int
		format Format
	}{
		{"zero width", 0, 8, FormatRG},
		{"negative height", 8, -1, FormatRG},
		{"too large", 128, 8, FormatRG},
		{"unsupported format", 8, 8, FormatR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Create(tt.w, tt.h, tt.format, FilterNearest)
			var allocErr *AllocationError
			if !errors.As(err, &allocErr) {
				t.Fatalf("expected AllocationError, got %v", err)
			}
		})
	}
	if m.Live() != 0 {
		t.Errorf("failed allocations should not count as live, got %d", m.Live())
	}
}

func TestSupportedFormatFallback(t *testing.T) {
	tests := []struct {
		name       string
		renderable []Format
		want       Format
		wantErr    bool
	}{
		{"native", []Format{FormatR, FormatRG, FormatRGBA}, FormatR, false},
		{"widen to rg", []Format{FormatRG, FormatRGBA}, FormatRG, false},
		{"widen to rgba", []Format{FormatRGBA}, FormatRGBA, false},
		{"exact only", []Format{FormatR}, FormatR, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := Capabilities{Renderable: map[Format]bool{}}
			for _, f := range tt.renderable {
				caps.Renderable[f] = true
			}
			m, err := NewManager(caps, nil)
			if err != nil {
				t.Fatal(err)
			}
			got, err := m.SupportedFormat(FormatR)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if got != tt.want {
				t.Errorf("SupportedFormat(r) = %s, want %s", got, tt.want)
			}
		})
	}

	caps := Capabilities{Renderable: map[Format]bool{FormatR: true}}
	m, _ := NewManager(caps, nil)
	if _, err := m.SupportedFormat(FormatRG); err == nil {
		t.Error("expected error when no format at least as wide as rg is renderable")
	}
}

func TestNewManagerNoContext(t *testing.T) {
	_, err := NewManager(Capabilities{}, nil)
	if !errors.Is(err, ErrNoContext) {
		t.Errorf("expected ErrNoContext, got %v", err)
	}
}

func TestLinearDowngrade(t *testing.T) {
	caps := DefaultCapabilities()
	caps.LinearFiltering = false
	m, _ := NewManager(caps, nil)
	b, err := m.Create(4, 4, FormatRGBA, FilterLinear)
	if err != nil {
		t.Fatal(err)
	}
	if b.Filter != FilterNearest {
		t.Error("expected linear filter to downgrade to nearest")
	}
}

// nearestResampler copies by nearest sampling, enough to exercise resize.
type nearestResampler struct{ calls int }

func (r *nearestResampler) Resample(src, dst *Buffer) error {
	r.calls++
	for y := 0; y < dst.Height; y++ {
		for x := 0; x < dst.Width; x++ {
			u := (float32(x) + 0.5) / float32(dst.Width)
			v := (float32(y) + 0.5) / float32(dst.Height)
			dst.Set(x, y, src.Fetch(u, v))
		}
	}
	return nil
}

func TestResizeDouble(t *testing.T) {
	m := newTestManager(t)
	d, _ := m.CreateDouble(4, 4, FormatR, FilterNearest)
	for i := range d.Front().Data {
		d.Front().Data[i] = 1
		d.Back().Data[i] = 2
	}
	oldFront := d.Front()

	r := &nearestResampler{}
	if err := m.ResizeDouble(d, 4, 4, r, false); err != nil {
		t.Fatal(err)
	}
	if r.calls != 0 || d.Front() != oldFront {
		t.Fatal("resize to the same size should be a no-op")
	}

	if err := m.ResizeDouble(d, 8, 2, r, false); err != nil {
		t.Fatal(err)
	}
	if d.Width() != 8 || d.Height() != 2 {
		t.Fatalf("expected 8x2, got %dx%d", d.Width(), d.Height())
	}
	if oldFront.Attachment() != 0 {
		t.Error("old front should be released")
	}
	if got := d.Front().Energy(); got != 16 {
		t.Errorf("front should be resampled, energy %v want 16", got)
	}
	if got := d.Back().Energy(); got != 0 {
		t.Errorf("back should be blank, energy %v", got)
	}
	if m.Live() != 2 {
		t.Errorf("expected 2 live buffers, got %d", m.Live())
	}

	for i := range d.Back().Data {
		d.Back().Data[i] = 2
	}
	if err := m.ResizeDouble(d, 4, 4, r, true); err != nil {
		t.Fatal(err)
	}
	if d.Back().Energy() == 0 {
		t.Error("back should be resampled when requested")
	}
}

func TestReleaseTwice(t *testing.T) {
	m := newTestManager(t)
	b, _ := m.Create(2, 2, FormatR, FilterNearest)
	m.Release(b)
	m.Release(b)
	if m.Live() != 0 {
		t.Errorf("expected 0 live buffers, got %d", m.Live())
	}
}

func TestBilinear(t *testing.T) {
	m := newTestManager(t)
	b, _ := m.Create(2, 1, FormatR, FilterLinear)
	b.Data[0] = 0
	b.Data[1] = 1

	tests := []struct {
		u    float32
		want float32
	}{
		{0.25, 0},  // first texel center
		{0.5, 0.5}, // midway between centers
		{0.75, 1},  // second texel center
		{0.0, 0},   // clamped
		{1.0, 1},   // clamped
	}
	for _, tt := range tests {
		got := b.Sample(tt.u, 0.5)[0]
		if math.Abs(float64(got-tt.want)) > 1e-6 {
			t.Errorf("Sample(%v) = %v, want %v", tt.u, got, tt.want)
		}
	}
}

func TestOps(t *testing.T) {
	m := newTestManager(t)
	a, _ := m.Create(2, 2, FormatRG, FilterNearest)
	b, _ := m.Create(2, 2, FormatRG, FilterNearest)
	for i := range a.Data {
		a.Data[i] = float32(i) - 4
	}

	if got := a.Energy(); got != 16 {
		t.Errorf("Energy = %v, want 16", got)
	}
	if got := a.MaxAbs(); got != 4 {
		t.Errorf("MaxAbs = %v, want 4", got)
	}

	b.CopyFrom(a)
	b.Scale(0.5)
	if got := b.Energy(); got != 8 {
		t.Errorf("scaled Energy = %v, want 8", got)
	}

	b.AddScaled(-0.5, a)
	if got := b.Energy(); got != 0 {
		t.Errorf("after AddScaled Energy = %v, want 0", got)
	}

	a.Clear()
	if a.Energy() != 0 {
		t.Error("Clear should zero every sample")
	}
}
