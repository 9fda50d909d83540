// Package historian drains the action queue into durable storage in batches.
package historian

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jason-s-yu/pokerdice/internal/cache"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Queue yields raw queued payloads. Pop blocks for at most timeout and reports
// ok=false when nothing arrived.
type Queue interface {
	Pop(ctx context.Context, timeout time.Duration) (payload string, ok bool, err error)
}

// Writer persists one batch atomically. *database.ActionWriter satisfies it.
type Writer interface {
	WriteActions(ctx context.Context, batch []cache.GameActionRecord) error
}

// RedisQueue pops from a Redis list with BLPop.
type RedisQueue struct {
	rdb  *redis.Client
	name string
}

func NewRedisQueue(rdb *redis.Client, name string) *RedisQueue {
	if name == "" {
		name = cache.DefaultQueueName
	}
	return &RedisQueue{rdb: rdb, name: name}
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (string, bool, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return "", false, nil
	}
	return res[1], true, nil
}

// Options tune batching. Zero values fall back to the defaults below.
type Options struct {
	BatchSize  int
	FlushDelay time.Duration
	PopTimeout time.Duration
}

// Service accumulates queued actions and flushes them when the batch fills or the
// flush delay elapses.
type Service struct {
	queue  Queue
	writer Writer
	log    *logrus.Entry

	batchSize  int
	flushDelay time.Duration
	popTimeout time.Duration

	mu      sync.Mutex
	batch   []cache.GameActionRecord
	flushed int
}

func New(queue Queue, writer Writer, opts Options, logger *logrus.Logger) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = 500 * time.Millisecond
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = 3 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		queue:      queue,
		writer:     writer,
		log:        logger.WithField("component", "historian"),
		batchSize:  opts.BatchSize,
		flushDelay: opts.FlushDelay,
		popTimeout: opts.PopTimeout,
		batch:      make([]cache.GameActionRecord, 0, opts.BatchSize),
	}
}

// Run consumes the queue until ctx is done, then flushes what is left.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.flushDelay)
	defer ticker.Stop()

	s.log.Info("historian started")
	defer s.log.Info("historian stopped")

	for {
		select {
		case <-ctx.Done():
			// ctx is already cancelled; give the last write its own deadline.
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.Flush(flushCtx)
			cancel()
			return

		case <-ticker.C:
			s.Flush(ctx)

		default:
			payload, ok, err := s.queue.Pop(ctx, s.popTimeout)
			if err != nil {
				if ctx.Err() == nil {
					s.log.WithError(err).Error("queue pop failed")
				}
				continue
			}
			if !ok {
				continue
			}
			rec, err := cache.DecodeGameAction(payload)
			if err != nil {
				s.log.WithError(err).Warn("dropping malformed action")
				continue
			}
			s.add(ctx, rec)
		}
	}
}

func (s *Service) add(ctx context.Context, rec cache.GameActionRecord) {
	s.mu.Lock()
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.batchSize
	s.mu.Unlock()
	if full {
		s.Flush(ctx)
	}
}

// Flush writes the pending batch in one transaction. A failed batch is logged and dropped.
func (s *Service) Flush(ctx context.Context) {
	s.mu.Lock()
	if len(s.batch) == 0 {
		s.mu.Unlock()
		return
	}
	pending := make([]cache.GameActionRecord, len(s.batch))
	copy(pending, s.batch)
	s.batch = s.batch[:0]
	s.mu.Unlock()

	if err := s.writer.WriteActions(ctx, pending); err != nil {
		s.log.WithError(fmt.Errorf("flush %d actions: %w", len(pending), err)).Error("failed to persist actions")
		return
	}
	s.mu.Lock()
	s.flushed += len(pending)
	s.mu.Unlock()
	s.log.WithField("count", len(pending)).Debug("flushed actions")
}

// Flushed returns how many actions have been persisted.
func (s *Service) Flushed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushed
}

// Pending returns how many actions are waiting for the next flush.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batch)
}
