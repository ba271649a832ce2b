package processor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ProcessingQueue is a bounded analysis queue served by a fixed worker pool.
// Enqueue never blocks: a full queue rejects the job instead of buffering it.
type ProcessingQueue struct {
	items   chan *QueueItem
	workers int
	handle  func(*QueueItem)
	wg      sync.WaitGroup
	stop    chan struct{}

	mutex   sync.RWMutex
	running bool

	busy    atomic.Int32
	stale   atomic.Int64
	maxWait atomic.Int64
}

// QueueItem is one analysis request waiting for a worker.
type QueueItem struct {
	Ctx        context.Context
	Request    *Request
	ResultChan chan *ProcessingResult
	StartTime  time.Time
}

type ProcessingResult struct {
	Result *Result
	Error  error
}

func NewProcessingQueue(queueSize, workers int, handle func(*QueueItem)) *ProcessingQueue {
	pq := &ProcessingQueue{
		items:   make(chan *QueueItem, queueSize),
		workers: workers,
		handle:  handle,
		stop:    make(chan struct{}),
		running: true,
	}

	pq.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go pq.worker()
	}

	return pq
}

func (pq *ProcessingQueue) worker() {
	defer pq.wg.Done()

	for {
		select {
		case <-pq.stop:
			return
		case item := <-pq.items:
			if item == nil {
				continue
			}
			pq.run(item)
		}
	}
}

func (pq *ProcessingQueue) run(item *QueueItem) {
	if !item.StartTime.IsZero() {
		waited := int64(time.Since(item.StartTime))
		for {
			prev := pq.maxWait.Load()
			if waited <= prev || pq.maxWait.CompareAndSwap(prev, waited) {
				break
			}
		}
	}

	// the caller already gave up, the frame is stale
	if item.Ctx != nil && item.Ctx.Err() != nil {
		pq.stale.Add(1)
		return
	}

	pq.busy.Add(1)
	defer pq.busy.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			deliver(item, &ProcessingResult{Error: fmt.Errorf("worker panic: %v", r)})
		}
	}()

	pq.handle(item)
}

// Enqueue hands the item to the pool. It returns ErrQueueFull when every slot
// is taken and ErrShuttingDown once Shutdown has started.
func (pq *ProcessingQueue) Enqueue(item *QueueItem) error {
	pq.mutex.RLock()
	defer pq.mutex.RUnlock()

	if !pq.running {
		return ErrShuttingDown
	}

	select {
	case pq.items <- item:
		return nil
	default:
		return ErrQueueFull
	}
}

func (pq *ProcessingQueue) Size() int {
	return len(pq.items)
}

func (pq *ProcessingQueue) Capacity() int {
	return cap(pq.items)
}

func (pq *ProcessingQueue) IsRunning() bool {
	pq.mutex.RLock()
	defer pq.mutex.RUnlock()
	return pq.running
}

// Shutdown stops accepting jobs, fails the queued ones and waits for the
// workers to finish their current job.
func (pq *ProcessingQueue) Shutdown(timeout time.Duration) error {
	pq.mutex.Lock()
	if !pq.running {
		pq.mutex.Unlock()
		return nil
	}
	pq.running = false
	pq.mutex.Unlock()

	close(pq.stop)
	pq.DrainQueue()

	done := make(chan struct{})
	go func() {
		pq.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("queue shutdown: workers still busy after %s", timeout)
	}
}

// DrainQueue fails every queued job and returns how many there were.
func (pq *ProcessingQueue) DrainQueue() int {
	drained := 0
	for {
		select {
		case item := <-pq.items:
			if item == nil {
				continue
			}
			deliver(item, &ProcessingResult{Error: ErrShuttingDown})
			drained++
		default:
			return drained
		}
	}
}

func deliver(item *QueueItem, result *ProcessingResult) {
	select {
	case item.ResultChan <- result:
	default:
	}
}

func (pq *ProcessingQueue) GetQueueStats() QueueStats {
	size, capacity := pq.Size(), pq.Capacity()
	utilization := 0.0
	if capacity > 0 {
		utilization = float64(size) / float64(capacity) * 100
	}
	return QueueStats{
		CurrentSize:        size,
		MaxCapacity:        capacity,
		Workers:            pq.workers,
		BusyWorkers:        int(pq.busy.Load()),
		StaleSkipped:       pq.stale.Load(),
		MaxWaitMs:          float64(pq.maxWait.Load()) / float64(time.Millisecond),
		IsRunning:          pq.IsRunning(),
		UtilizationPercent: utilization,
	}
}

type QueueStats struct {
	CurrentSize        int     `json:"current_size"`
	MaxCapacity        int     `json:"max_capacity"`
	Workers            int     `json:"workers"`
	BusyWorkers        int     `json:"busy_workers"`
	StaleSkipped       int64   `json:"stale_skipped"`
	MaxWaitMs          float64 `json:"max_wait_ms"`
	IsRunning          bool    `json:"is_running"`
	UtilizationPercent float64 `json:"utilization_percent"`
}
