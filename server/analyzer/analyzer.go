// Package analyzer turns poses into form feedback by comparing joint
// angles with an exercise template.
//
// An Analyzer keeps cross-frame state (smoothing window, phase, reps) and
// is owned by a single goroutine; it is not safe for concurrent use.
// Evaluate is a pure function of its inputs and may be shared.
package analyzer

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/pose-coach/server/models"
	"github.com/san-kum/pose-coach/server/pose"
)

const DefaultWindowSize = 5

type Analyzer struct {
	template *Template
	space    pose.Space
	window   *Window
	phase    *PhaseTracker
}

type Option func(*Analyzer)

// WithWindow sets how many recent poses are smoothed together.
func WithWindow(size int) Option {
	return func(a *Analyzer) {
		a.window = NewWindow(size)
	}
}

// WithAspect sets the frame width/height ratio used when measuring angles.
func WithAspect(aspect float64) Option {
	return func(a *Analyzer) {
		if aspect > 0 {
			a.space.Aspect = aspect
		}
	}
}

func New(t *Template, opts ...Option) *Analyzer {
	space := pose.DefaultSpace()
	space.Use3D = t.Use3D
	a := &Analyzer{
		template: t,
		space:    space,
		window:   NewWindow(DefaultWindowSize),
		phase:    NewPhaseTracker(t.Phase),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Analyzer) Template() *Template { return a.template }

func (a *Analyzer) Phase() models.Phase { return a.phase.Phase() }

func (a *Analyzer) Reps() int { return a.phase.Reps() }

// Reset drops the smoothing window, phase and rep count.
func (a *Analyzer) Reset() {
	a.window.Reset()
	a.phase.Reset()
}

// Analyze smooths p with recent poses, advances the phase machine and
// evaluates the template for the resulting phase.
func (a *Analyzer) Analyze(p *models.Pose) models.Evaluation {
	smoothed := a.window.Push(p)
	value, ok := a.driverValue(smoothed)
	phase := a.phase.Update(value, ok)

	ev := a.Evaluate(smoothed, phase)
	ev.Reps = a.phase.Reps()
	return ev
}

// GuessPhase classifies a single pose without history. ok is false when
// the template has no driver or it cannot be measured.
func (a *Analyzer) GuessPhase(p *models.Pose) (models.Phase, bool) {
	value, ok := a.driverValue(p)
	if !ok {
		return models.PhaseIdle, false
	}
	return a.phase.Classify(value), true
}

// Evaluate checks every rule that has a band for phase. Rules whose
// landmarks are not visible are skipped and do not count as evaluated.
func (a *Analyzer) Evaluate(p *models.Pose, phase models.Phase) models.Evaluation {
	ev := models.Evaluation{
		Exercise: a.template.ID,
		Phase:    phase,
		Items:    []models.FeedbackItem{},
	}

	for i := range a.template.Rules {
		r := &a.template.Rules[i]
		band, ok := r.Bands[phase]
		if !ok {
			continue
		}
		for _, s := range r.sides() {
			value, ok := a.measure(p, r, s.joints)
			if !ok {
				continue
			}
			ev.Evaluated++
			item := a.judge(r, s.name, band, value)
			if item.Type == models.FeedbackSuccess {
				ev.Passed++
			}
			ev.Items = append(ev.Items, item)
		}
	}

	ev.Score = Score(ev.Passed, ev.Evaluated)
	return ev
}

// Score is round(100 * passed / evaluated), or nil when nothing was
// evaluated.
func Score(passed, evaluated int) *int {
	if evaluated <= 0 {
		return nil
	}
	s := int(math.Round(100 * float64(passed) / float64(evaluated)))
	return &s
}

// Measure returns the rule's value for p on the rule's primary side.
func (a *Analyzer) Measure(p *models.Pose, ruleID string) (float64, bool) {
	r, ok := a.template.Rule(ruleID)
	if !ok {
		return 0, false
	}
	return a.measure(p, r, r.joints)
}

func (a *Analyzer) measure(p *models.Pose, r *Rule, joints []int) (float64, bool) {
	if p == nil || len(joints) == 0 {
		return 0, false
	}
	lms := make([]models.Landmark, len(joints))
	for i, j := range joints {
		if j >= len(p.Landmarks) || !pose.Visible(p.Landmarks[j]) {
			return 0, false
		}
		lms[i] = p.Landmarks[j]
	}

	switch r.Kind {
	case KindAngle:
		return a.space.Angle(lms[0], lms[1], lms[2])
	case KindIncline:
		return a.space.Incline(lms[0], lms[1])
	}
	return 0, false
}

// driverValue averages the driver rule over the sides that are visible.
func (a *Analyzer) driverValue(p *models.Pose) (float64, bool) {
	r, ok := a.template.Rule(a.template.Phase.Driver)
	if !ok {
		return 0, false
	}
	var sum float64
	var n int
	for _, s := range r.sides() {
		if v, ok := a.measure(p, r, s.joints); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func (a *Analyzer) judge(r *Rule, side string, band Band, value float64) models.FeedbackItem {
	id := r.ID
	if side != "" {
		id += "." + side
	}

	if band.Contains(value) {
		msg := r.Success
		if msg == "" {
			msg = fmt.Sprintf("%s looks good", humanize(r.ID))
		}
		return models.FeedbackItem{
			ID:       id,
			Type:     models.FeedbackSuccess,
			BodyPart: r.BodyPart,
			Message:  withSide(msg, r, side),
		}
	}

	deviation, ref, fallback := band.Min-value, band.Below, "below"
	direction := models.DirectionNone
	if value > band.Max {
		deviation, ref, fallback = value-band.Max, band.Above, "above"
	}

	typ := models.FeedbackWarning
	if deviation > r.Tolerance {
		typ = models.FeedbackError
	}

	msg := fmt.Sprintf("%s is %.0f° %s the %.0f-%.0f° range", humanize(r.ID), deviation, fallback, band.Min, band.Max)
	suggestion := fmt.Sprintf("Adjust your %s to bring it back into range", r.BodyPart)

	if m, ok := a.template.Mistake(ref); ok {
		switch m.Severity {
		case SeverityLow:
			typ = models.FeedbackWarning
		case SeverityHigh:
			typ = models.FeedbackError
		}
		msg, suggestion, direction = m.Message, m.Suggestion, m.Direction
		id += ":" + m.ID
	} else {
		id += ":" + fallback
	}

	return models.FeedbackItem{
		ID:         id,
		Type:       typ,
		BodyPart:   r.BodyPart,
		Message:    withSide(msg, r, side),
		Suggestion: suggestion,
		Direction:  direction,
	}
}

type side struct {
	name   string
	joints []int
}

// sides lists the landmark sets a rule is evaluated on: its own joints and,
// for mirrored rules, the same joints on the opposite side of the body.
func (r *Rule) sides() []side {
	if !r.Mirror {
		return []side{{joints: r.joints}}
	}
	primary := side{name: sideName(r.Joints), joints: r.joints}

	mirrored := make([]int, len(r.joints))
	for i, j := range r.joints {
		mirrored[i] = pose.Opposite(j)
	}
	other := "right"
	if primary.name == "right" {
		other = "left"
	}
	return []side{primary, {name: other, joints: mirrored}}
}

func sideName(joints []string) string {
	for _, j := range joints {
		switch {
		case strings.HasPrefix(j, "left_"):
			return "left"
		case strings.HasPrefix(j, "right_"):
			return "right"
		}
	}
	return ""
}

func withSide(msg string, r *Rule, side string) string {
	if !r.Mirror || side == "" {
		return msg
	}
	return fmt.Sprintf("%s (%s side)", msg, side)
}

func humanize(id string) string {
	s := strings.ReplaceAll(id, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
