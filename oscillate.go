package main

import (
	"log"
	"strconv"
	"time"
)

// Category selects the feedback pattern for a run.
type Category int

const (
	CategoryNone Category = iota
	CategoryObstacle
	CategoryMovement
)

// ParseCategory maps the command line argument to a category. Anything
// outside the known numeric values, including a missing or malformed
// argument, means no feedback.
func ParseCategory(arg string) Category {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return CategoryNone
	}
	switch n {
	case 1:
		return CategoryObstacle
	case 2:
		return CategoryMovement
	default:
		return CategoryNone
	}
}

func (c Category) String() string {
	switch c {
	case CategoryObstacle:
		return "obstacle"
	case CategoryMovement:
		return "movement"
	default:
		return "none"
	}
}

// PatternParams holds the oscillation tuning derived for one category. Fixed
// once derived, never mutated during a run.
type PatternParams struct {
	SwitchInterval time.Duration
	Strength       float64
}

var patternTable = map[Category]PatternParams{
	CategoryNone:     {},
	CategoryObstacle: {SwitchInterval: 25 * time.Millisecond, Strength: 1.0},
	CategoryMovement: {SwitchInterval: 25 * time.Millisecond, Strength: 1.0},
}

// Params looks up the oscillation tuning for the category. Unknown
// categories share the zero tuning of CategoryNone.
func (c Category) Params() PatternParams {
	return patternTable[c]
}

// effectDevice is the slice of Session the oscillator drives.
type effectDevice interface {
	UploadEffect(level int16, direction int, length time.Duration) error
	EraseEffect() error
	StartEffect() error
	StopEffect() error
}

// Oscillator plays a direction-alternating constant force pattern on a
// device for a bounded wall-clock window.
type Oscillator struct {
	dev  effectDevice
	poll time.Duration
}

func NewOscillator(dev effectDevice) *Oscillator {
	return &Oscillator{dev: dev, poll: 10 * time.Millisecond}
}

// Run plays the pattern until total elapses. Whenever more than the switch
// interval has passed, the push direction flips and the previous effect is
// replaced by a freshly created one, so the first submitted effect already
// carries the flipped direction. A failed upload aborts the run; a failed
// start is reported and playback continues with the next flip. On normal
// exit the live effect is stopped but stays uploaded until teardown.
func (o *Oscillator) Run(p PatternParams, total time.Duration) error {
	level := forceLevel(p.Strength)
	direction := 1
	start := time.Now()
	lastSwitch := start
	end := start.Add(total)

	ticker := time.NewTicker(o.poll)
	defer ticker.Stop()

	for time.Now().Before(end) {
		if time.Since(lastSwitch) > p.SwitchInterval {
			direction = -direction
			lastSwitch = time.Now()

			if err := o.dev.EraseEffect(); err != nil {
				log.Printf("⚠️ Dropping previous effect: %v", err)
			}
			if err := o.dev.UploadEffect(level, direction, p.SwitchInterval); err != nil {
				return err
			}
			if err := o.dev.StartEffect(); err != nil {
				log.Printf("⚠️ Starting oscillation effect: %v", err)
			}
		}
		<-ticker.C
	}

	if err := o.dev.StopEffect(); err != nil {
		log.Printf("⚠️ Stopping effect: %v", err)
	}
	return nil
}
