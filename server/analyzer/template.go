package analyzer

import (
	"errors"
	"fmt"

	"github.com/san-kum/pose-coach/server/models"
	"github.com/san-kum/pose-coach/server/pose"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

var ErrInvalidTemplate = errors.New("invalid exercise template")

type RuleKind string

const (
	// KindAngle measures the joint angle at the middle of three landmarks.
	KindAngle RuleKind = "angle"
	// KindIncline measures a two landmark segment against the vertical.
	KindIncline RuleKind = "incline"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Template is the reference description of one exercise: which angles to
// watch, the accepted band per movement phase and the catalog of common
// mistakes reported when a band is left.
type Template struct {
	ID       string     `yaml:"id" json:"id"`
	Name     string     `yaml:"name" json:"name"`
	Version  int        `yaml:"version" json:"version"`
	Use3D    bool       `yaml:"use_3d" json:"use_3d"`
	Phase    PhaseSpec  `yaml:"phase" json:"phase"`
	Rules    []Rule     `yaml:"rules" json:"rules"`
	Mistakes []Mistake  `yaml:"mistakes" json:"mistakes"`
	mistakes map[string]Mistake
	rules    map[string]int
}

// PhaseSpec drives the movement state machine from one rule's measurement.
// With Increasing unset the driver angle shrinks on the way down.
type PhaseSpec struct {
	Driver     string  `yaml:"driver" json:"driver"`
	Top        float64 `yaml:"top" json:"top"`
	Bottom     float64 `yaml:"bottom" json:"bottom"`
	Hysteresis float64 `yaml:"hysteresis" json:"hysteresis"`
	Increasing bool    `yaml:"increasing" json:"increasing"`
}

type Rule struct {
	ID        string                `yaml:"id" json:"id"`
	Kind      RuleKind              `yaml:"kind" json:"kind"`
	Joints    []string              `yaml:"joints" json:"joints"`
	Mirror    bool                  `yaml:"mirror" json:"mirror"`
	BodyPart  models.BodyPart       `yaml:"body_part" json:"body_part"`
	Tolerance float64               `yaml:"tolerance" json:"tolerance"`
	Success   string                `yaml:"success" json:"success"`
	Bands     map[models.Phase]Band `yaml:"bands" json:"bands"`
	joints    []int
}

// Band is an inclusive [Min, Max] range in degrees. Below and Above name
// the mistake reported on either side.
type Band struct {
	Min   float64 `yaml:"min" json:"min"`
	Max   float64 `yaml:"max" json:"max"`
	Below string  `yaml:"below" json:"below,omitempty"`
	Above string  `yaml:"above" json:"above,omitempty"`
}

func (b Band) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

type Mistake struct {
	ID         string           `yaml:"id" json:"id"`
	Severity   Severity         `yaml:"severity" json:"severity"`
	Message    string           `yaml:"message" json:"message"`
	Suggestion string           `yaml:"suggestion" json:"suggestion"`
	Direction  models.Direction `yaml:"direction" json:"direction,omitempty"`
}

// ParseTemplate decodes and validates a YAML template.
func ParseTemplate(data []byte) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if err := t.compile(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Mistake looks up a catalog entry by id.
func (t *Template) Mistake(id string) (Mistake, bool) {
	m, ok := t.mistakes[id]
	return m, ok
}

// Rule looks up a rule by id.
func (t *Template) Rule(id string) (*Rule, bool) {
	i, ok := t.rules[id]
	if !ok {
		return nil, false
	}
	return &t.Rules[i], true
}

func (t *Template) compile() error {
	var errs error
	add := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidTemplate, t.ID, fmt.Sprintf(format, args...)))
	}

	if t.ID == "" {
		add("missing id")
	}
	if len(t.Rules) == 0 {
		add("no rules")
	}

	t.mistakes = make(map[string]Mistake, len(t.Mistakes))
	for _, m := range t.Mistakes {
		if m.ID == "" {
			add("mistake without id")
			continue
		}
		if _, dup := t.mistakes[m.ID]; dup {
			add("duplicate mistake %q", m.ID)
		}
		switch m.Severity {
		case SeverityLow, SeverityMedium, SeverityHigh:
		case "":
			m.Severity = SeverityMedium
		default:
			add("mistake %q has unknown severity %q", m.ID, m.Severity)
		}
		if !m.Direction.Valid() {
			add("mistake %q has unknown direction %q", m.ID, m.Direction)
		}
		if m.Message == "" || m.Suggestion == "" {
			add("mistake %q needs a message and a suggestion", m.ID)
		}
		t.mistakes[m.ID] = m
	}

	t.rules = make(map[string]int, len(t.Rules))
	for i := range t.Rules {
		r := &t.Rules[i]
		if _, dup := t.rules[r.ID]; dup || r.ID == "" {
			add("rule %d has a missing or duplicate id %q", i, r.ID)
		}
		t.rules[r.ID] = i

		want := 3
		switch r.Kind {
		case KindAngle:
		case KindIncline:
			want = 2
		default:
			add("rule %q has unknown kind %q", r.ID, r.Kind)
		}
		if len(r.Joints) != want {
			add("rule %q needs %d joints, got %d", r.ID, want, len(r.Joints))
		}
		r.joints = r.joints[:0]
		for _, name := range r.Joints {
			idx, ok := pose.Index(name)
			if !ok {
				add("rule %q references unknown landmark %q", r.ID, name)
				continue
			}
			r.joints = append(r.joints, idx)
		}
		if r.Mirror && sideName(r.Joints) == "" {
			add("rule %q is mirrored but has no left or right landmark", r.ID)
		}
		if !r.BodyPart.Valid() {
			add("rule %q has unknown body part %q", r.ID, r.BodyPart)
		}
		if r.Tolerance < 0 {
			add("rule %q has negative tolerance", r.ID)
		}
		if len(r.Bands) == 0 {
			add("rule %q has no bands", r.ID)
		}
		for phase, b := range r.Bands {
			if !phase.Valid() {
				add("rule %q has band for unknown phase %q", r.ID, phase)
			}
			if b.Min > b.Max {
				add("rule %q band %s has min %.1f above max %.1f", r.ID, phase, b.Min, b.Max)
			}
			for _, ref := range []string{b.Below, b.Above} {
				if ref == "" {
					continue
				}
				if _, ok := t.mistakes[ref]; !ok {
					add("rule %q band %s references unknown mistake %q", r.ID, phase, ref)
				}
			}
		}
	}

	if t.Phase.Driver != "" {
		if _, ok := t.rules[t.Phase.Driver]; !ok {
			add("phase driver %q is not a rule", t.Phase.Driver)
		}
		top, bottom := t.Phase.Top, t.Phase.Bottom
		if t.Phase.Increasing {
			top, bottom = -top, -bottom
		}
		if top <= bottom {
			add("phase top %.1f and bottom %.1f are in the wrong order", t.Phase.Top, t.Phase.Bottom)
		}
		if t.Phase.Hysteresis < 0 || 2*t.Phase.Hysteresis >= top-bottom {
			add("phase hysteresis %.1f does not fit between top and bottom", t.Phase.Hysteresis)
		}
	}

	return errs
}
