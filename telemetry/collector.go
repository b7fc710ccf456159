package telemetry

// FieldSample is one tick's measurement of a grid.
type FieldSample struct {
	Energy float32 // Sum of absolute sample values
	Peak   float32 // Largest absolute sample value
}

// Collector accumulates per-tick samples and input counts within time
// windows and produces WindowStats.
type Collector struct {
	windowSec float64

	simTime         float64
	windowStartTime float64
	windowStartTick int64

	ticks        int
	splats       int
	clickSplats  int
	resizes      int
	droppedStart int64
	droppedNow   int64

	velocity []float64
	dye      []float64
	velPeak  float32
	dyePeak  float32
	dyeLast  float32
}

// NewCollector creates a collector that closes a window every windowSec
// seconds of simulated time.
func NewCollector(windowSec float64) *Collector {
	if windowSec <= 0 {
		windowSec = 5
	}
	return &Collector{windowSec: windowSec}
}

// RecordSplat records one applied splat.
func (c *Collector) RecordSplat(click bool) {
	c.splats++
	if click {
		c.clickSplats++
	}
}

// RecordResize records a grid resize.
func (c *Collector) RecordResize() {
	c.resizes++
}

// RecordDropped records the adapter's running total of dropped events.
func (c *Collector) RecordDropped(total int64) {
	c.droppedNow = total
}

// Sample records the state of both fields after a tick of dt seconds.
func (c *Collector) Sample(dt float32, velocity, dye FieldSample) {
	c.simTime += float64(dt)
	c.ticks++
	c.velocity = append(c.velocity, float64(velocity.Energy))
	c.dye = append(c.dye, float64(dye.Energy))
	c.velPeak = max(c.velPeak, velocity.Peak)
	c.dyePeak = max(c.dyePeak, dye.Peak)
	c.dyeLast = dye.Energy
}

// SimTime returns the accumulated simulated seconds.
func (c *Collector) SimTime() float64 { return c.simTime }

// ShouldFlush returns true once the current window has lasted windowSec.
func (c *Collector) ShouldFlush() bool {
	return c.ticks > 0 && c.simTime-c.windowStartTime >= c.windowSec
}

// Flush produces a WindowStats ending at currentTick and resets counters
// for the next window. pointers is the number of live pointer records.
func (c *Collector) Flush(currentTick int64, pointers int) WindowStats {
	velMean, velP10, velP50, velP90 := ComputeEnergyStats(c.velocity)
	dyeMean, dyeP10, dyeP50, dyeP90 := ComputeEnergyStats(c.dye)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      c.simTime,
		Ticks:           c.ticks,

		Splats:        c.splats,
		ClickSplats:   c.clickSplats,
		DroppedEvents: c.droppedNow - c.droppedStart,
		Pointers:      pointers,
		Resizes:       c.resizes,

		VelocityEnergyMean: velMean,
		VelocityEnergyP10:  velP10,
		VelocityEnergyP50:  velP50,
		VelocityEnergyP90:  velP90,
		VelocityPeak:       float64(c.velPeak),

		DyeEnergyMean: dyeMean,
		DyeEnergyP10:  dyeP10,
		DyeEnergyP50:  dyeP50,
		DyeEnergyP90:  dyeP90,
		DyeEnergyEnd:  float64(c.dyeLast),
		DyePeak:       float64(c.dyePeak),
	}

	c.windowStartTick = currentTick
	c.windowStartTime = c.simTime
	c.droppedStart = c.droppedNow
	c.ticks = 0
	c.splats = 0
	c.clickSplats = 0
	c.resizes = 0
	c.velocity = c.velocity[:0]
	c.dye = c.dye[:0]
	c.velPeak = 0
	c.dyePeak = 0

	return stats
}
