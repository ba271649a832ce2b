// Package presenter turns analyzer evaluations into what the user sees: a
// score gauge with a rating, the feedback list grouped by type and short
// lived toast alerts during movement.
package presenter

import (
	"errors"
	"fmt"

	"github.com/san-kum/pose-coach/server/models"
)

type Rating string

const (
	RatingGood      Rating = "good"
	RatingFair      Rating = "fair"
	RatingNeedsWork Rating = "needs_work"
)

var ErrInvalidThresholds = errors.New("invalid score thresholds")

// Thresholds are the lowest scores rated good and fair.
type Thresholds struct {
	Good int `json:"good"`
	Fair int `json:"fair"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Good: 80, Fair: 60}
}

type Counts struct {
	Success int `json:"success"`
	Warning int `json:"warning"`
	Error   int `json:"error"`
	Info    int `json:"info"`
}

type Group struct {
	Type  models.FeedbackType   `json:"type"`
	Count int                   `json:"count"`
	Items []models.FeedbackItem `json:"items"`
}

type Summary struct {
	Exercise  string                `json:"exercise"`
	Score     *int                  `json:"score"`
	ShowScore bool                  `json:"show_score"`
	Rating    Rating                `json:"rating,omitempty"`
	Counts    Counts                `json:"counts"`
	Groups    []Group               `json:"groups"`
	Items     []models.FeedbackItem `json:"items"`
	Phase     models.Phase          `json:"phase"`
	Reps      int                   `json:"reps"`
}

// groupOrder lists problems first.
var groupOrder = []models.FeedbackType{
	models.FeedbackError,
	models.FeedbackWarning,
	models.FeedbackInfo,
	models.FeedbackSuccess,
}

type Presenter struct {
	thresholds Thresholds
}

func New(t Thresholds) (*Presenter, error) {
	if t.Fair < 0 || t.Good > 100 || t.Fair > t.Good {
		return nil, fmt.Errorf("%w: good=%d fair=%d", ErrInvalidThresholds, t.Good, t.Fair)
	}
	return &Presenter{thresholds: t}, nil
}

func (p *Presenter) Thresholds() Thresholds { return p.thresholds }

func (p *Presenter) Rate(score int) Rating {
	switch {
	case score >= p.thresholds.Good:
		return RatingGood
	case score >= p.thresholds.Fair:
		return RatingFair
	default:
		return RatingNeedsWork
	}
}

// Summarize builds the display state for one evaluation. An undefined
// score hides the gauge instead of showing 0.
func (p *Presenter) Summarize(ev models.Evaluation) Summary {
	s := Summary{
		Exercise: ev.Exercise,
		Score:    ev.Score,
		Items:    ev.Items,
		Phase:    ev.Phase,
		Reps:     ev.Reps,
	}
	if s.Items == nil {
		s.Items = []models.FeedbackItem{}
	}
	if ev.Score != nil {
		s.ShowScore = true
		s.Rating = p.Rate(*ev.Score)
	}

	byType := make(map[models.FeedbackType][]models.FeedbackItem)
	for _, item := range ev.Items {
		byType[item.Type] = append(byType[item.Type], item)
		switch item.Type {
		case models.FeedbackSuccess:
			s.Counts.Success++
		case models.FeedbackWarning:
			s.Counts.Warning++
		case models.FeedbackError:
			s.Counts.Error++
		case models.FeedbackInfo:
			s.Counts.Info++
		}
	}
	s.Groups = []Group{}
	for _, t := range groupOrder {
		if items := byType[t]; len(items) > 0 {
			s.Groups = append(s.Groups, Group{Type: t, Count: len(items), Items: items})
		}
	}
	return s
}

// Alert picks the item worth interrupting the user for: the first error,
// else the first warning, and only while a repetition is in progress.
func (p *Presenter) Alert(ev models.Evaluation) (models.FeedbackItem, bool) {
	if !ev.Phase.Moving() {
		return models.FeedbackItem{}, false
	}
	var warning *models.FeedbackItem
	for i := range ev.Items {
		switch ev.Items[i].Type {
		case models.FeedbackError:
			return ev.Items[i], true
		case models.FeedbackWarning:
			if warning == nil {
				warning = &ev.Items[i]
			}
		}
	}
	if warning != nil {
		return *warning, true
	}
	return models.FeedbackItem{}, false
}
