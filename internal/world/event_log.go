package world

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	EventBufferSize    = 1024                   // Circular buffer size
	MaxEventsPerSec    = 10000                  // Global rate limit
	MaxEventsPerKey    = 20                     // Per-key (body pair) rate limit per second
	BatchFlushSize     = 64                     // Events per batch write
	BatchFlushInterval = 100 * time.Millisecond // How often to flush
	KeyLimiterCleanup  = 5 * time.Minute        // Cleanup interval for key limiters
)

// EventLog is a bounded, rate-limited JSONL log of world events.
// Emit never waits on the sink: events go to a ring buffer drained by a
// writer goroutine, and the oldest are dropped when it falls behind.
type EventLog struct {
	// Circular buffer; ringMu guards all three fields
	ringMu    sync.Mutex
	buffer    [EventBufferSize]Event
	writeHead uint64 // last sequence written
	readHead  uint64 // last sequence consumed

	globalLimiter *rate.Limiter
	keyLimiters   sync.Map // map[string]*keyLimiterEntry

	// Async writer
	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	// Output sink; nil keeps events in memory only
	out   io.Writer
	close func() error
	outMu sync.Mutex

	droppedCount uint64 // atomic
	totalCount   uint64 // atomic
	writtenCount uint64 // atomic
}

type keyLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64 // Unix nano
}

// NewEventLog creates a new bounded event log
func NewEventLog() *EventLog {
	return &EventLog{
		globalLimiter: rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		stopChan:      make(chan struct{}),
	}
}

// Start opens filePath for append and begins the writer goroutines. An empty
// path runs the log without output.
func (el *EventLog) Start(filePath string) error {
	if filePath == "" {
		return el.StartWriter(nil)
	}
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	if err := el.StartWriter(file); err != nil {
		file.Close()
		return err
	}
	el.close = file.Close
	return nil
}

// StartWriter begins the writer goroutines with w as the sink.
func (el *EventLog) StartWriter(w io.Writer) error {
	if !el.running.CompareAndSwap(false, true) {
		return nil
	}
	el.out = w
	el.writerWg.Add(2)
	go el.writerLoop()
	go el.cleanupLoop()
	return nil
}

// Stop flushes pending events and closes the sink.
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()

		el.outMu.Lock()
		if el.close != nil {
			el.close()
		}
		el.outMu.Unlock()
	})
}

// Emit adds an event with rate limiting
// Returns false if rate limited or the log is not running
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}

	if !el.globalLimiter.Allow() {
		atomic.AddUint64(&el.droppedCount, 1)
		return false
	}

	// Per-key rate limit (a resting pair must not flood the log)
	if event.Key != "" {
		if !el.getKeyLimiter(event.Key).Allow() {
			atomic.AddUint64(&el.droppedCount, 1)
			return false
		}
	}

	el.ringMu.Lock()
	head := el.writeHead + 1
	if head-el.readHead > EventBufferSize {
		// Drop oldest events (rolling window)
		el.readHead++
		atomic.AddUint64(&el.droppedCount, 1)
	}
	event.Sequence = head
	el.buffer[head%EventBufferSize] = event
	el.writeHead = head
	el.ringMu.Unlock()

	atomic.AddUint64(&el.totalCount, 1)
	return true
}

// EmitSimple is a convenience method to emit an event with automatic creation
func (el *EventLog) EmitSimple(eventType EventType, stepNum uint64, key string, payload interface{}) bool {
	return el.Emit(NewEvent(eventType, stepNum, key, payload))
}

func (el *EventLog) getKeyLimiter(key string) *rate.Limiter {
	now := time.Now().UnixNano()
	if entry, ok := el.keyLimiters.Load(key); ok {
		e := entry.(*keyLimiterEntry)
		e.lastUsed.Store(now)
		return e.limiter
	}

	entry := &keyLimiterEntry{limiter: rate.NewLimiter(MaxEventsPerKey, MaxEventsPerKey/4)}
	entry.lastUsed.Store(now)
	actual, _ := el.keyLimiters.LoadOrStore(key, entry)
	return actual.(*keyLimiterEntry).limiter
}

func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)
	for {
		select {
		case <-el.stopChan:
			// Drain everything left
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}
		case <-ticker.C:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

func (el *EventLog) cleanupLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(KeyLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-el.stopChan:
			return
		case <-ticker.C:
			el.cleanupKeyLimiters(time.Now().Add(-KeyLimiterCleanup))
		}
	}
}

// cleanupKeyLimiters removes limiters unused since cutoff
func (el *EventLog) cleanupKeyLimiters(cutoff time.Time) {
	el.keyLimiters.Range(func(key, value interface{}) bool {
		if value.(*keyLimiterEntry).lastUsed.Load() < cutoff.UnixNano() {
			el.keyLimiters.Delete(key)
		}
		return true
	})
}

// collectBatch reads available events from circular buffer
func (el *EventLog) collectBatch(batch []Event) []Event {
	el.ringMu.Lock()
	defer el.ringMu.Unlock()

	for el.readHead < el.writeHead && len(batch) < BatchFlushSize {
		el.readHead++
		batch = append(batch, el.buffer[el.readHead%EventBufferSize])
	}
	return batch
}

// flushBatch appends events to the sink as newline-delimited JSON
func (el *EventLog) flushBatch(batch []Event) {
	el.outMu.Lock()
	defer el.outMu.Unlock()

	if el.out == nil {
		return
	}

	w := bufio.NewWriter(el.out)
	enc := json.NewEncoder(w)
	for _, event := range batch {
		if err := enc.Encode(event); err != nil {
			continue
		}
		atomic.AddUint64(&el.writtenCount, 1)
	}
	w.Flush()
}

// GetStats returns event log counters
func (el *EventLog) GetStats() map[string]interface{} {
	el.ringMu.Lock()
	pending := el.writeHead - el.readHead
	el.ringMu.Unlock()

	return map[string]interface{}{
		"total":   atomic.LoadUint64(&el.totalCount),
		"dropped": atomic.LoadUint64(&el.droppedCount),
		"written": atomic.LoadUint64(&el.writtenCount),
		"pending": pending,
		"running": el.running.Load(),
	}
}

// GetDroppedCount returns the number of dropped events
func (el *EventLog) GetDroppedCount() uint64 {
	return atomic.LoadUint64(&el.droppedCount)
}

// GetTotalCount returns the total number of events accepted
func (el *EventLog) GetTotalCount() uint64 {
	return atomic.LoadUint64(&el.totalCount)
}
