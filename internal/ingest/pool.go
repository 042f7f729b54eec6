package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Pipeline drains device messages from a bounded queue with a fixed
// worker pool.
//
// MQTT handlers must not block, so Enqueue is non-blocking: when the
// queue is full the message is dropped and counted rather than applying
// backpressure to the broker connection. History is append-only and the
// broker redelivers QoS 1 messages on reconnect, so a dropped message
// under overload is an accepted trade.
type Pipeline struct {
	handlers *Handlers
	logger   Logger

	queue   chan Message
	workers int
	timeout time.Duration

	wg       sync.WaitGroup
	started  atomic.Bool
	stopOnce sync.Once

	// stateMu orders Enqueue sends against the queue close in Stop.
	stateMu sync.RWMutex
	stopped bool

	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// PipelineConfig sizes the worker pool.
type PipelineConfig struct {
	// Workers is the number of goroutines draining the queue.
	Workers int

	// QueueSize is the buffered queue capacity.
	QueueSize int

	// MessageTimeout bounds the processing of a single message.
	MessageTimeout time.Duration
}

// NewPipeline creates a message pipeline. Call Start to begin draining.
func NewPipeline(handlers *Handlers, cfg PipelineConfig) *Pipeline {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.MessageTimeout <= 0 {
		cfg.MessageTimeout = 10 * time.Second
	}

	return &Pipeline{
		handlers: handlers,
		logger:   noopLogger{},
		queue:    make(chan Message, cfg.QueueSize),
		workers:  cfg.Workers,
		timeout:  cfg.MessageTimeout,
	}
}

// SetLogger sets the logger for the pipeline.
func (p *Pipeline) SetLogger(logger Logger) {
	p.logger = logger
}

// Start launches the worker pool. Workers exit when ctx is cancelled
// or the queue is closed by Stop.
func (p *Pipeline) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}

	for n := 0; n < p.workers; n++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}

	p.logger.Info("ingest pipeline started",
		"workers", p.workers,
		"queue_size", cap(p.queue),
	)
}

// Stop closes the queue and waits for in-flight messages to finish.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		p.stateMu.Lock()
		p.stopped = true
		close(p.queue)
		p.stateMu.Unlock()
		p.wg.Wait()
		p.logger.Info("ingest pipeline stopped",
			"processed", p.processed.Load(),
			"failed", p.failed.Load(),
			"dropped", p.dropped.Load(),
		)
	})
}

// Enqueue parses a device topic and queues the message for processing.
//
// Intended as the MQTT subscription handler:
//
//	client.Subscribe(mqtt.Topics{}.AllDeviceTopics(), 1, pipeline.Enqueue)
//
// Returns ErrInvalidTopic or ErrUnknownCategory for unroutable topics
// and ErrQueueFull when the message had to be dropped.
func (p *Pipeline) Enqueue(topic string, payload []byte) error {
	if !p.started.Load() {
		return ErrNotStarted
	}

	deviceID, category, err := ParseTopic(topic)
	if err != nil {
		p.logger.Warn("unroutable message", "topic", topic, "error", err)
		return err
	}

	msg := Message{
		Topic:      topic,
		DeviceID:   deviceID,
		Category:   category,
		Payload:    payload,
		EnqueuedAt: time.Now(),
	}

	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	if p.stopped {
		return ErrNotStarted
	}

	select {
	case p.queue <- msg:
		return nil
	default:
		p.dropped.Add(1)
		p.logger.Warn("queue full, message dropped",
			"device_id", deviceID,
			"category", category,
			"dropped_total", p.dropped.Load(),
		)
		return ErrQueueFull
	}
}

// worker drains the queue until it is closed or ctx is cancelled.
func (p *Pipeline) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-p.queue:
			if !ok {
				return
			}
			p.process(ctx, msg)
		}
	}
}

// process handles one message under the per-message timeout.
func (p *Pipeline) process(ctx context.Context, msg Message) {
	msgCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.handlers.Handle(msgCtx, msg); err != nil {
		p.failed.Add(1)
		return
	}
	p.processed.Add(1)
}

// Stats is a point-in-time snapshot of pipeline counters.
type Stats struct {
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
	Queued    int   `json:"queued"`
	Workers   int   `json:"workers"`
}

// GetStats returns the pipeline counters.
func (p *Pipeline) GetStats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
		Queued:    len(p.queue),
		Workers:   p.workers,
	}
}
