package analyzer

import "github.com/san-kum/pose-coach/server/models"

// PhaseTracker infers the movement phase from the driver measurement:
// idle -> descending -> bottom -> ascending -> idle. A completed cycle
// counts one repetition.
type PhaseTracker struct {
	spec  PhaseSpec
	phase models.Phase
	reps  int
}

func NewPhaseTracker(spec PhaseSpec) *PhaseTracker {
	return &PhaseTracker{spec: spec, phase: models.PhaseIdle}
}

func (pt *PhaseTracker) Phase() models.Phase { return pt.phase }

func (pt *PhaseTracker) Reps() int { return pt.reps }

func (pt *PhaseTracker) Reset() {
	pt.phase = models.PhaseIdle
	pt.reps = 0
}

// Update advances the machine with a new driver value. ok=false means the
// driver could not be measured this frame and the phase is kept.
func (pt *PhaseTracker) Update(value float64, ok bool) models.Phase {
	if !ok || pt.spec.Driver == "" {
		return pt.phase
	}

	v, top, bottom := pt.normalize(value)
	h := pt.spec.Hysteresis

	switch pt.phase {
	case models.PhaseIdle:
		if v < top-h {
			pt.phase = models.PhaseDescending
			if v <= bottom {
				pt.phase = models.PhaseBottom
			}
		}
	case models.PhaseDescending:
		switch {
		case v <= bottom:
			pt.phase = models.PhaseBottom
		case v >= top:
			// went back up without reaching the bottom
			pt.phase = models.PhaseIdle
		}
	case models.PhaseBottom:
		if v > bottom+h {
			pt.phase = models.PhaseAscending
			if v >= top {
				pt.phase = models.PhaseIdle
				pt.reps++
			}
		}
	case models.PhaseAscending:
		switch {
		case v >= top:
			pt.phase = models.PhaseIdle
			pt.reps++
		case v <= bottom:
			pt.phase = models.PhaseBottom
		}
	}
	return pt.phase
}

// Classify guesses a phase from a single measurement without history.
// Between top and bottom the direction is unknown and descending is
// reported.
func (pt *PhaseTracker) Classify(value float64) models.Phase {
	v, top, bottom := pt.normalize(value)
	switch {
	case v >= top:
		return models.PhaseIdle
	case v <= bottom:
		return models.PhaseBottom
	default:
		return models.PhaseDescending
	}
}

func (pt *PhaseTracker) normalize(value float64) (v, top, bottom float64) {
	if pt.spec.Increasing {
		return -value, -pt.spec.Top, -pt.spec.Bottom
	}
	return value, pt.spec.Top, pt.spec.Bottom
}
