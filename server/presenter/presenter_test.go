package presenter

import (
	"testing"

	"github.com/san-kum/pose-coach/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func score(v int) *int { return &v }

func item(id string, t models.FeedbackType) models.FeedbackItem {
	return models.FeedbackItem{ID: id, Type: t, BodyPart: models.BodyPartKnees, Message: id}
}

func TestNew_ValidatesThresholds(t *testing.T) {
	_, err := New(Thresholds{Good: 50, Fair: 70})
	assert.ErrorIs(t, err, ErrInvalidThresholds)
	_, err = New(Thresholds{Good: 120, Fair: 70})
	assert.ErrorIs(t, err, ErrInvalidThresholds)

	p, err := New(DefaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, Thresholds{Good: 80, Fair: 60}, p.Thresholds())
}

func TestRate(t *testing.T) {
	p, err := New(DefaultThresholds())
	require.NoError(t, err)

	assert.Equal(t, RatingGood, p.Rate(100))
	assert.Equal(t, RatingGood, p.Rate(80))
	assert.Equal(t, RatingFair, p.Rate(79))
	assert.Equal(t, RatingFair, p.Rate(60))
	assert.Equal(t, RatingNeedsWork, p.Rate(59))
	assert.Equal(t, RatingNeedsWork, p.Rate(0))

	custom, err := New(Thresholds{Good: 90, Fair: 90})
	require.NoError(t, err)
	assert.Equal(t, RatingNeedsWork, custom.Rate(89))
	assert.Equal(t, RatingGood, custom.Rate(90))
}

func TestSummarize_GroupsAndCounts(t *testing.T) {
	p, err := New(DefaultThresholds())
	require.NoError(t, err)

	ev := models.Evaluation{
		Exercise: "squat",
		Phase:    models.PhaseBottom,
		Reps:     2,
		Items: []models.FeedbackItem{
			item("a", models.FeedbackSuccess),
			item("b", models.FeedbackWarning),
			item("c", models.FeedbackSuccess),
			item("d", models.FeedbackError),
		},
		Passed:    2,
		Evaluated: 4,
		Score:     score(50),
	}

	s := p.Summarize(ev)
	assert.True(t, s.ShowScore)
	assert.Equal(t, 50, *s.Score)
	assert.Equal(t, RatingNeedsWork, s.Rating)
	assert.Equal(t, Counts{Success: 2, Warning: 1, Error: 1}, s.Counts)
	assert.Equal(t, 2, s.Reps)
	assert.Equal(t, models.PhaseBottom, s.Phase)
	assert.Len(t, s.Items, 4)

	require.Len(t, s.Groups, 3)
	assert.Equal(t, models.FeedbackError, s.Groups[0].Type)
	assert.Equal(t, models.FeedbackWarning, s.Groups[1].Type)
	assert.Equal(t, models.FeedbackSuccess, s.Groups[2].Type)
	assert.Equal(t, 2, s.Groups[2].Count)
	assert.Equal(t, "a", s.Groups[2].Items[0].ID)
}

func TestSummarize_UndefinedScoreHidesGauge(t *testing.T) {
	p, err := New(DefaultThresholds())
	require.NoError(t, err)

	s := p.Summarize(models.Evaluation{Exercise: "squat", Phase: models.PhaseIdle})
	assert.False(t, s.ShowScore)
	assert.Nil(t, s.Score)
	assert.Empty(t, s.Rating)
	assert.NotNil(t, s.Items)
	assert.NotNil(t, s.Groups)
}

func TestAlert(t *testing.T) {
	p, err := New(DefaultThresholds())
	require.NoError(t, err)

	ev := models.Evaluation{
		Phase: models.PhaseDescending,
		Items: []models.FeedbackItem{
			item("ok", models.FeedbackSuccess),
			item("warn", models.FeedbackWarning),
			item("err", models.FeedbackError),
		},
	}
	got, ok := p.Alert(ev)
	require.True(t, ok)
	assert.Equal(t, "err", got.ID)

	ev.Items = ev.Items[:2]
	got, ok = p.Alert(ev)
	require.True(t, ok)
	assert.Equal(t, "warn", got.ID)

	ev.Items = ev.Items[:1]
	_, ok = p.Alert(ev)
	assert.False(t, ok)

	ev.Phase = models.PhaseIdle
	ev.Items = []models.FeedbackItem{item("err", models.FeedbackError)}
	_, ok = p.Alert(ev)
	assert.False(t, ok, "no alerts outside a repetition")
}
