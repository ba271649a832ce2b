package presenter

import (
	"sync"
	"time"

	"github.com/san-kum/pose-coach/server/models"
)

const DefaultToastDuration = 3000 * time.Millisecond

// ToastSink receives toast lifecycle events. Calls are made with the
// toaster lock held and must not call back into the Toaster.
type ToastSink interface {
	ShowToast(item models.FeedbackItem, d time.Duration)
	HideToast(id string)
}

// Toaster shows one alert at a time. A toast hides itself after the
// configured duration, when dismissed, or when replaced by a different
// alert. Pushing the alert that is already showing extends it. A dismissed
// alert stays quiet for one duration so the next frame does not bring it
// straight back.
type Toaster struct {
	mu       sync.Mutex
	sink     ToastSink
	duration time.Duration
	now      func() time.Time

	active *models.FeedbackItem
	timer  *time.Timer
	gen    uint64
	quiet  map[string]time.Time
	closed bool
}

func NewToaster(sink ToastSink, duration time.Duration) *Toaster {
	if duration <= 0 {
		duration = DefaultToastDuration
	}
	return &Toaster{
		sink:     sink,
		duration: duration,
		now:      time.Now,
		quiet:    make(map[string]time.Time),
	}
}

// Push shows item, replacing any other toast. It reports whether the item
// is showing afterwards.
func (t *Toaster) Push(item models.FeedbackItem) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false
	}
	if until, ok := t.quiet[item.ID]; ok {
		if t.now().Before(until) {
			return false
		}
		delete(t.quiet, item.ID)
	}

	if t.active != nil && t.active.ID == item.ID {
		t.arm()
		return true
	}

	t.active = &item
	t.arm()
	t.sink.ShowToast(item, t.duration)
	return true
}

// Dismiss hides the toast with the given id if it is showing.
func (t *Toaster) Dismiss(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.active == nil || t.active.ID != id {
		return false
	}
	t.quiet[id] = t.now().Add(t.duration)
	t.hide()
	return true
}

func (t *Toaster) Active() (models.FeedbackItem, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil {
		return models.FeedbackItem{}, false
	}
	return *t.active, true
}

// Close cancels the pending timer. No sink calls happen after it returns.
func (t *Toaster) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.active = nil
	t.closed = true
}

func (t *Toaster) arm() {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(t.duration, func() { t.expire(gen) })
}

func (t *Toaster) expire(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || gen != t.gen || t.active == nil {
		return
	}
	t.hide()
}

func (t *Toaster) hide() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	id := t.active.ID
	t.active = nil
	t.gen++
	t.sink.HideToast(id)
}
