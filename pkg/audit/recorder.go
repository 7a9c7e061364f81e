package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultBufferSize is the async queue capacity.
	DefaultBufferSize = 1024

	// DefaultWriteTimeout bounds one storage write.
	DefaultWriteTimeout = 5 * time.Second
)

// Config configures the recorder.
type Config struct {
	// BufferSize is the async queue capacity. Default: DefaultBufferSize.
	BufferSize int

	// WriteTimeout bounds each storage write. Default: DefaultWriteTimeout.
	WriteTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	return c
}

// Recorder writes records to storage asynchronously. A nil *Recorder is a
// valid no-op, so callers can hold one unconditionally whether or not
// auditing is enabled.
type Recorder struct {
	storage Storage
	cfg     Config
	logger  *slog.Logger

	records chan *Record
	done    chan struct{}
	wg      sync.WaitGroup

	dropped   atomic.Int64
	closeOnce sync.Once
}

// NewRecorder creates a recorder over the given storage and starts its
// background writer.
func NewRecorder(storage Storage, cfg Config, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	r := &Recorder{
		storage: storage,
		cfg:     cfg,
		logger:  logger.With("component", "audit.recorder"),
		records: make(chan *Record, cfg.BufferSize),
		done:    make(chan struct{}),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("audit recorder started",
		"buffer_size", cfg.BufferSize,
		"write_timeout", cfg.WriteTimeout,
	)
	return r
}

// Record enqueues one record, filling ID and Time when unset. It never
// blocks: with the queue full or the recorder shut down the record is
// dropped and counted.
func (r *Recorder) Record(record *Record) {
	if r == nil || record == nil {
		return
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Time.IsZero() {
		record.Time = time.Now().UTC()
	}

	select {
	case <-r.done:
		r.dropped.Add(1)
		return
	default:
	}

	select {
	case r.records <- record:
	default:
		n := r.dropped.Add(1)
		r.logger.Warn("audit queue full, dropping record",
			"operation", record.Operation,
			"request_id", record.RequestID,
			"dropped_total", n,
		)
	}
}

// Dropped returns how many records were dropped since start.
func (r *Recorder) Dropped() int64 {
	if r == nil {
		return 0
	}
	return r.dropped.Load()
}

// Close drains the queue, stops the writer, and closes the storage.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}

	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
		err = r.storage.Close()
		r.logger.Info("audit recorder stopped", "dropped_total", r.dropped.Load())
	})
	return err
}

// worker drains the record channel into storage until shutdown.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.records:
			r.write(record)

		case <-r.done:
			for {
				select {
				case record := <-r.records:
					r.write(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(record *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
	defer cancel()

	if err := r.storage.Store(ctx, record); err != nil {
		r.logger.Error("failed to store audit record",
			"record_id", record.ID,
			"operation", record.Operation,
			"error", err,
		)
		return
	}

	r.logger.Debug("audit record stored",
		"record_id", record.ID,
		"operation", record.Operation,
		"status", record.Status,
	)
}
