package botdetect

import "math"

// Signal weights. The weights sum to 100, and no single signal reaches the usual ban
// threshold on its own; a ban always requires corroboration across signals.
const (
	weightLowVolume    = 30
	weightCollinear    = 25
	weightFlatSpeed    = 25
	weightFlatTiming   = 20
	minEventsForHuman  = 5
	minSampleDurations = 3
)

// Named signals reported in Result.Signals.
const (
	SignalLowVolume  = "low-interaction-volume"
	SignalCollinear  = "collinear-mouse-path"
	SignalFlatSpeed  = "flat-speed-variance"
	SignalFlatTiming = "flat-timing-variance"
)

// MousePoint is one sampled cursor position. T is milliseconds since telemetry
// collection began.
type MousePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T float64 `json:"t"`
}

// Telemetry is an interaction sample submitted by a client.
//
// Telemetry instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type Telemetry struct {
	MouseEvents []MousePoint `json:"mouseEvents"`
	KeyEvents   int          `json:"keyEvents"`
	Clicks      int          `json:"clicks"`
	Scrolls     int          `json:"scrolls"`
	// DurationMS is how long the sample covers, in milliseconds.
	DurationMS float64 `json:"durationMs"`
}

// Result defines a public type used by authcore APIs.
//
// Result instances are intended to be configured during initialization and then treated
// as immutable unless documented otherwise.
type Result struct {
	// Score is 0-100; higher means more automation-like.
	Score   int
	Signals []string
}

// Analyze scores a telemetry sample. An empty sample over a meaningful duration scores
// high; a sample with natural movement noise scores near zero.
func Analyze(t Telemetry) Result {
	var r Result

	totalEvents := len(t.MouseEvents) + t.KeyEvents + t.Clicks + t.Scrolls
	if t.DurationMS >= 1000 && totalEvents < minEventsForHuman {
		r.Score += weightLowVolume
		r.Signals = append(r.Signals, SignalLowVolume)
	}
	if pathCollinear(t.MouseEvents) {
		r.Score += weightCollinear
		r.Signals = append(r.Signals, SignalCollinear)
	}
	speeds, intervals := kinematics(t.MouseEvents)
	if len(speeds) >= minSampleDurations && variationCoefficient(speeds) < 0.05 {
		r.Score += weightFlatSpeed
		r.Signals = append(r.Signals, SignalFlatSpeed)
	}
	if len(intervals) >= minSampleDurations && variationCoefficient(intervals) < 0.05 {
		r.Score += weightFlatTiming
		r.Signals = append(r.Signals, SignalFlatTiming)
	}
	if r.Score > 100 {
		r.Score = 100
	}
	return r
}

// pathCollinear reports whether every sampled point lies on the line through the first
// two distinct points. Real cursor movement always carries jitter; a perfectly straight
// multi-point path is synthesized.
func pathCollinear(points []MousePoint) bool {
	if len(points) < 3 {
		return false
	}
	const epsilon = 1e-6
	a := points[0]
	var b MousePoint
	found := false
	for _, p := range points[1:] {
		if p.X != a.X || p.Y != a.Y {
			b, found = p, true
			break
		}
	}
	if !found {
		return false
	}
	dx, dy := b.X-a.X, b.Y-a.Y
	scale := math.Hypot(dx, dy)
	for _, p := range points {
		cross := dx*(p.Y-a.Y) - dy*(p.X-a.X)
		if math.Abs(cross)/scale > epsilon {
			return false
		}
	}
	return true
}

// kinematics derives per-segment speeds and inter-sample intervals from the mouse trace.
// Segments with non-increasing timestamps are skipped.
func kinematics(points []MousePoint) (speeds, intervals []float64) {
	for i := 1; i < len(points); i++ {
		dt := points[i].T - points[i-1].T
		if dt <= 0 {
			continue
		}
		dist := math.Hypot(points[i].X-points[i-1].X, points[i].Y-points[i-1].Y)
		speeds = append(speeds, dist/dt)
		intervals = append(intervals, dt)
	}
	return speeds, intervals
}

// variationCoefficient returns stddev/mean, or +Inf when the mean is zero.
func variationCoefficient(samples []float64) float64 {
	if len(samples) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	mean := sum / float64(len(samples))
	if mean == 0 {
		return math.Inf(1)
	}
	var sq float64
	for _, s := range samples {
		d := s - mean
		sq += d * d
	}
	return math.Sqrt(sq/float64(len(samples))) / mean
}
