// Package writer memoizes decisions off the request path. A decision is
// returned to the caller first and written to the memo afterwards by a small
// worker pool; when the pool falls behind, writes are dropped rather than
// delaying the next request.
package writer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"fraud-gate/pkg/cache"
	"fraud-gate/pkg/engine"
	"fraud-gate/pkg/logging"
	"fraud-gate/pkg/metrics"

	"go.uber.org/zap"
)

// AsyncWriter provides non-blocking memo writes using a worker pool and a
// bounded queue.
type AsyncWriter struct {
	layer      cache.Layer
	queue      chan writeOp
	workers    int
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
	config     AsyncWriterConfig
	metrics    metrics.Collector
	logger     *logging.Logger
	layerName  string

	// mu orders Write against Close: once closed is set no op is enqueued,
	// so nothing lands in the queue after the workers have drained it.
	mu     sync.RWMutex
	closed bool

	// Statistics (accessed atomically)
	droppedWrites int64
	totalWrites   int64
	failedWrites  int64
	pending       int64

	// Metrics ticker for periodic queue depth reporting
	metricsTicker *time.Ticker
	metricsStop   chan struct{}
}

// writeOp represents a pending write operation.
type writeOp struct {
	key      string
	decision engine.Decision
	ttl      time.Duration
}

// AsyncWriterConfig configures the async writer behavior.
type AsyncWriterConfig struct {
	// QueueSize is the bounded queue size (default: 1000)
	QueueSize int `mapstructure:"queue_size"`

	// Workers is the number of concurrent workers (default: 2)
	Workers int `mapstructure:"workers"`

	// MaxWaitTime is the max time to wait if queue is full (default: 10ms).
	MaxWaitTime time.Duration `mapstructure:"max_wait"`

	// WriteTimeout bounds each write to the layer (default: 1s).
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// MetricsInterval is how often queue depth is reported (default: 5s).
	MetricsInterval time.Duration `mapstructure:"metrics_interval"`
}

// DefaultAsyncWriterConfig returns the writer defaults.
func DefaultAsyncWriterConfig() AsyncWriterConfig {
	return AsyncWriterConfig{
		QueueSize:       1000,
		Workers:         2,
		MaxWaitTime:     10 * time.Millisecond,
		WriteTimeout:    time.Second,
		MetricsInterval: 5 * time.Second,
	}
}

func (c AsyncWriterConfig) withDefaults() AsyncWriterConfig {
	d := DefaultAsyncWriterConfig()
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.MaxWaitTime == 0 {
		c.MaxWaitTime = d.MaxWaitTime
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.MetricsInterval <= 0 {
		c.MetricsInterval = d.MetricsInterval
	}
	return c
}

// NewAsyncWriter creates a new async writer with bounded queue and worker pool.
// The writer starts processing immediately and must be closed with Close().
func NewAsyncWriter(layer cache.Layer, config AsyncWriterConfig) *AsyncWriter {
	return NewAsyncWriterWithMetrics(layer, config, metrics.NoOpCollector{})
}

// NewAsyncWriterWithMetrics creates a new async writer with custom metrics collector.
func NewAsyncWriterWithMetrics(layer cache.Layer, config AsyncWriterConfig, collector metrics.Collector) *AsyncWriter {
	config = config.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	w := &AsyncWriter{
		layer:         layer,
		queue:         make(chan writeOp, config.QueueSize),
		workers:       config.Workers,
		ctx:           ctx,
		cancelFunc:    cancel,
		config:        config,
		metrics:       metrics.OrNoOp(collector),
		logger:        logging.L().Named("writer").Named(layer.Name()),
		layerName:     layer.Name(),
		metricsTicker: time.NewTicker(config.MetricsInterval),
		metricsStop:   make(chan struct{}),
	}

	for i := 0; i < config.Workers; i++ {
		w.wg.Add(1)
		go w.worker()
	}

	go w.reportMetrics()

	return w
}

// Name returns the name of the layer being written to.
func (w *AsyncWriter) Name() string {
	return w.layerName
}

// Write enqueues a decision. If the queue is full it waits up to MaxWaitTime
// and then drops the write with ErrQueueFull.
func (w *AsyncWriter) Write(ctx context.Context, key string, d engine.Decision, ttl time.Duration) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWriterClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	op := writeOp{key: key, decision: d, ttl: ttl}

	// Fast path: room in the queue.
	select {
	case w.queue <- op:
		w.accepted()
		return nil
	default:
	}

	timer := time.NewTimer(w.config.MaxWaitTime)
	defer timer.Stop()

	select {
	case w.queue <- op:
		w.accepted()
		return nil
	case <-timer.C:
		atomic.AddInt64(&w.droppedWrites, 1)
		w.metrics.RecordWriteDropped(w.layerName)
		return ErrQueueFull
	case <-ctx.Done():
		return ctx.Err()
	case <-w.ctx.Done():
		return ErrWriterClosed
	}
}

func (w *AsyncWriter) accepted() {
	atomic.AddInt64(&w.totalWrites, 1)
	atomic.AddInt64(&w.pending, 1)
}

// worker processes write operations until the writer is closed, then drains
// what is left in the queue.
func (w *AsyncWriter) worker() {
	defer w.wg.Done()

	for {
		select {
		case op := <-w.queue:
			w.process(op)
		case <-w.ctx.Done():
			for {
				select {
				case op := <-w.queue:
					w.process(op)
				default:
					return
				}
			}
		}
	}
}

func (w *AsyncWriter) process(op writeOp) {
	defer atomic.AddInt64(&w.pending, -1)

	ctx, cancel := context.WithTimeout(context.Background(), w.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	err := w.layer.Set(ctx, op.key, op.decision, op.ttl)
	w.metrics.RecordMemoSet(w.layerName, err == nil, time.Since(start))

	if err != nil {
		atomic.AddInt64(&w.failedWrites, 1)
		w.logger.Debug("memo write failed",
			zap.String("key", op.key),
			zap.String("class", cache.ClassifyError(err)),
			zap.Error(err),
		)
	}
}

// Flush waits until every accepted write has been applied, or timeout passes.
func (w *AsyncWriter) Flush(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for atomic.LoadInt64(&w.pending) > 0 {
		if time.Now().After(deadline) {
			return ErrFlushTimeout
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

// Close stops accepting new writes and waits for workers to drain the queue.
// It is safe to call more than once.
func (w *AsyncWriter) Close() error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()

		close(w.metricsStop)
		w.metricsTicker.Stop()
		w.cancelFunc()
		w.wg.Wait()
	})
	return nil
}

// reportMetrics periodically reports queue depth.
func (w *AsyncWriter) reportMetrics() {
	for {
		select {
		case <-w.metricsTicker.C:
			w.metrics.RecordQueueDepth(w.layerName, len(w.queue))
		case <-w.metricsStop:
			return
		}
	}
}

// Stats returns current statistics about the async writer.
func (w *AsyncWriter) Stats() AsyncWriterStats {
	return AsyncWriterStats{
		QueueDepth:    len(w.queue),
		DroppedWrites: atomic.LoadInt64(&w.droppedWrites),
		TotalWrites:   atomic.LoadInt64(&w.totalWrites),
		FailedWrites:  atomic.LoadInt64(&w.failedWrites),
	}
}
