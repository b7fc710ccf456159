package input

import (
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/splash/config"
)

// Adapter queues raw pointer events and converts them into splats once per
// tick. Push is safe from any goroutine; everything else runs on the tick
// goroutine.
type Adapter struct {
	cfg    *config.Config
	logger *slog.Logger

	events  chan Event
	closed  atomic.Bool
	dropped atomic.Int64

	mu     sync.Mutex
	unsubs []func()

	world    *ecs.World
	pointers *ecs.Map1[Pointer]
	filter   *ecs.Filter1[Pointer]
	byID     map[int]ecs.Entity

	palette    *Palette
	rng        *rand.Rand
	colorTimer float32

	splats []Splat
}

// NewAdapter creates an adapter with an event queue of
// cfg.Pointer.QueueSize entries.
func NewAdapter(cfg *config.Config, rng *rand.Rand, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	world := ecs.NewWorld()
	return &Adapter{
		cfg:      cfg,
		logger:   logger,
		events:   make(chan Event, cfg.Pointer.QueueSize),
		world:    world,
		pointers: ecs.NewMap1[Pointer](world),
		filter:   ecs.NewFilter1[Pointer](world),
		byID:     make(map[int]ecs.Entity),
		palette:  NewPalette(&cfg.Pointer, rng),
		rng:      rng,
	}
}

// Push queues an event without blocking. Events arriving after Close or
// while the queue is full are dropped.
func (a *Adapter) Push(ev Event) {
	if a.closed.Load() {
		return
	}
	select {
	case a.events <- ev:
	default:
		a.dropped.Add(1)
	}
}

// Attach subscribes the adapter to a host event source.
func (a *Adapter) Attach(src Source) {
	unsub := src.Subscribe(a.Push)
	a.mu.Lock()
	a.unsubs = append(a.unsubs, unsub)
	a.mu.Unlock()
}

// Close detaches every source and stops accepting events.
func (a *Adapter) Close() {
	if a.closed.Swap(true) {
		return
	}
	a.mu.Lock()
	unsubs := a.unsubs
	a.unsubs = nil
	a.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
}

// Closed reports whether Close has been called.
func (a *Adapter) Closed() bool { return a.closed.Load() }

// Dropped returns the number of events lost to a full queue or a
// zero-sized surface.
func (a *Adapter) Dropped() int64 { return a.dropped.Load() }

// Drain applies every queued event against a surface of w x h pixels and
// returns the splats for this tick: click splats in event order, then one
// splat per moved pointer. The returned slice is reused by the next call.
func (a *Adapter) Drain(w, h int) []Splat {
	a.splats = a.splats[:0]

drain:
	for {
		select {
		case ev := <-a.events:
			if w <= 0 || h <= 0 {
				a.dropped.Add(1)
				break
			}
			a.apply(ev, float32(w), float32(h))
		default:
			break drain
		}
	}

	force := a.cfg.Fluid.SplatForce
	query := a.filter.Query()
	for query.Next() {
		p := query.Get()
		if !p.Moved {
			continue
		}
		p.Moved = false
		a.splats = append(a.splats, Splat{
			X:     p.Pos[0],
			Y:     p.Pos[1],
			DX:    p.Delta[0] * force,
			DY:    p.Delta[1] * force,
			Color: p.Color,
		})
	}
	return a.splats
}

func (a *Adapter) apply(ev Event, w, h float32) {
	pos := [2]float32{ev.X / w, 1 - ev.Y/h}

	switch ev.Type {
	case Press:
		p := a.pointer(ev.ID)
		p.Pos = pos
		p.Prev = pos
		p.Delta = [2]float32{}
		p.Down = true
		p.Moved = false
		p.Color = a.palette.Generate()
		a.splats = append(a.splats, a.clickSplat(pos))

	case Move:
		e, ok := a.byID[ev.ID]
		hover := a.cfg.Pointer.HoverSplats
		if !ok && !hover {
			return
		}
		var p *Pointer
		if ok {
			p = a.pointers.Get(e)
		} else {
			p = a.pointer(ev.ID)
			p.Pos = pos
			p.Color = a.palette.Generate()
		}
		if !p.Down && !hover {
			return
		}
		p.Prev = p.Pos
		p.Pos = pos
		aspect := w / h
		p.Delta = [2]float32{
			CorrectDeltaX(p.Pos[0]-p.Prev[0], aspect),
			CorrectDeltaY(p.Pos[1]-p.Prev[1], aspect),
		}
		p.Moved = p.Delta[0] != 0 || p.Delta[1] != 0

	case Release:
		if e, ok := a.byID[ev.ID]; ok {
			a.pointers.Get(e).Down = false
		}

	default:
		a.logger.Warn("unknown pointer event", "type", ev.Type.String(), "id", ev.ID)
	}
}

// pointer returns the record for id, creating it on first use.
func (a *Adapter) pointer(id int) *Pointer {
	e, ok := a.byID[id]
	if !ok {
		e = a.pointers.NewEntity(&Pointer{ID: id})
		a.byID[id] = e
	}
	return a.pointers.Get(e)
}

func (a *Adapter) clickSplat(pos [2]float32) Splat {
	pc := &a.cfg.Pointer
	c := a.palette.Generate()
	boost := pc.ClickColorBoost
	return Splat{
		X:     pos[0],
		Y:     pos[1],
		DX:    pc.ClickVelocityX * (a.rng.Float32() - 0.5),
		DY:    pc.ClickVelocityY * (a.rng.Float32() - 0.5),
		Color: [3]float32{c[0] * boost, c[1] * boost, c[2] * boost},
		Click: true,
	}
}

// Recolor advances the color timer by dt seconds and gives every pointer a
// new color each time it wraps. A zero update speed disables it.
func (a *Adapter) Recolor(dt float32) {
	speed := a.cfg.Fluid.ColorUpdateSpeed
	if speed <= 0 {
		return
	}
	a.colorTimer += dt * speed
	if a.colorTimer < 1 {
		return
	}
	a.colorTimer = wrap(a.colorTimer, 0, 1)

	query := a.filter.Query()
	for query.Next() {
		query.Get().Color = a.palette.Generate()
	}
}

// Pointers returns a copy of every pointer record.
func (a *Adapter) Pointers() []Pointer {
	var out []Pointer
	query := a.filter.Query()
	for query.Next() {
		out = append(out, *query.Get())
	}
	return out
}

// CorrectDeltaX scales a horizontal delta on portrait surfaces.
func CorrectDeltaX(delta, aspect float32) float32 {
	if aspect < 1 {
		delta *= aspect
	}
	return delta
}

// CorrectDeltaY scales a vertical delta on landscape surfaces.
func CorrectDeltaY(delta, aspect float32) float32 {
	if aspect > 1 {
		delta /= aspect
	}
	return delta
}

func wrap(v, lo, hi float32) float32 {
	r := hi - lo
	if r == 0 {
		return lo
	}
	m := float32(int((v-lo)/r)) * r
	return v - m
}
