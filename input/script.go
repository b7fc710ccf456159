package input

import "math"

// Orbit is a scripted drag: the mouse held down while circling the centre
// of a W x H surface. Headless runs and frame dumps use it in place of a
// user.
type Orbit struct {
	W, H   int
	Radius float32 // Fraction of the short side
	Period float64 // Seconds per revolution
}

// At returns the pointer contact t seconds into the script.
func (o Orbit) At(t float64) Contact {
	period := o.Period
	if period <= 0 {
		period = 1
	}
	r := float64(o.Radius) * float64(min(o.W, o.H))
	angle := 2 * math.Pi * t / period
	return Contact{
		ID:   MouseID,
		X:    float32(float64(o.W)/2 + r*math.Cos(angle)),
		Y:    float32(float64(o.H)/2 + r*math.Sin(angle)),
		Down: true,
	}
}
