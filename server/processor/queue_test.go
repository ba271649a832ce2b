package processor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessingQueue_RecoversFromPanic(t *testing.T) {
	q := NewProcessingQueue(1, 1, func(item *QueueItem) {
		panic("boom")
	})
	defer q.Shutdown(time.Second)

	results := make(chan *ProcessingResult, 1)
	require.NoError(t, q.Enqueue(&QueueItem{Ctx: context.Background(), ResultChan: results}))

	select {
	case r := <-results:
		assert.ErrorContains(t, r.Error, "worker panic: boom")
	case <-time.After(time.Second):
		t.Fatal("no result after panic")
	}
}

func TestProcessingQueue_SkipsCancelledJobs(t *testing.T) {
	ran := make(chan struct{}, 1)
	q := NewProcessingQueue(1, 1, func(item *QueueItem) {
		ran <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, q.Enqueue(&QueueItem{Ctx: ctx, ResultChan: make(chan *ProcessingResult, 1)}))
	require.Eventually(t, func() bool { return q.GetQueueStats().StaleSkipped == 1 }, time.Second, time.Millisecond)
	require.NoError(t, q.Shutdown(time.Second))

	assert.Empty(t, ran)
}

func TestProcessingQueue_ShutdownDrainsQueued(t *testing.T) {
	release := make(chan struct{})
	q := NewProcessingQueue(2, 1, func(item *QueueItem) {
		<-release
		item.ResultChan <- &ProcessingResult{}
	})

	first := make(chan *ProcessingResult, 1)
	second := make(chan *ProcessingResult, 1)
	require.NoError(t, q.Enqueue(&QueueItem{Ctx: context.Background(), ResultChan: first}))
	require.Eventually(t, func() bool { return q.Size() == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(&QueueItem{Ctx: context.Background(), ResultChan: second}))

	stats := q.GetQueueStats()
	assert.Equal(t, 1, stats.CurrentSize)
	assert.Equal(t, 50.0, stats.UtilizationPercent)
	assert.Eventually(t, func() bool { return q.GetQueueStats().BusyWorkers == 1 }, time.Second, time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- q.Shutdown(time.Second) }()

	r := <-second
	assert.ErrorIs(t, r.Error, ErrShuttingDown)

	close(release)
	require.NoError(t, <-done)
	assert.NoError(t, (<-first).Error)
	assert.ErrorIs(t, q.Enqueue(&QueueItem{ResultChan: first}), ErrShuttingDown)
}

func TestProcessingQueue_RejectsWhenFull(t *testing.T) {
	release := make(chan struct{})
	q := NewProcessingQueue(1, 1, func(item *QueueItem) {
		<-release
	})
	defer q.Shutdown(time.Second)
	defer close(release)

	require.NoError(t, q.Enqueue(&QueueItem{Ctx: context.Background()}))
	require.Eventually(t, func() bool { return q.Size() == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(&QueueItem{Ctx: context.Background()}))

	assert.ErrorIs(t, q.Enqueue(&QueueItem{Ctx: context.Background()}), ErrQueueFull)
}
