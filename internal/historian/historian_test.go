// internal/historian/historian_test.go
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pokerdice/internal/cache"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanQueue feeds payloads from a channel.
type chanQueue struct {
	items chan string
}

func newChanQueue() *chanQueue { return &chanQueue{items: make(chan string, 64)} }

func (q *chanQueue) Pop(ctx context.Context, timeout time.Duration) (string, bool, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case p := <-q.items:
		return p, true, nil
	case <-t.C:
		return "", false, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

func (q *chanQueue) push(t *testing.T, rec cache.GameActionRecord) {
	t.Helper()
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	q.items <- string(data)
}

// recordingWriter keeps every batch it was handed.
type recordingWriter struct {
	mu      sync.Mutex
	batches [][]cache.GameActionRecord
	fail    bool
}

func (w *recordingWriter) WriteActions(_ context.Context, batch []cache.GameActionRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errors.New("db down")
	}
	w.batches = append(w.batches, batch)
	return nil
}

func (w *recordingWriter) sizes() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]int, 0, len(w.batches))
	for _, b := range w.batches {
		out = append(out, len(b))
	}
	return out
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func record(i uint64) cache.GameActionRecord {
	return cache.GameActionRecord{
		GameID:        uuid.New(),
		ActionIndex:   i,
		ActorUserID:   uuid.New(),
		ActionType:    "dice_rolled",
		ActionPayload: map[string]any{"dice": "A A A A A"},
		Timestamp:     time.Now().UnixMilli(),
	}
}

func start(t *testing.T, s *Service) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("historian did not stop")
		}
	}
}

func TestFlushesWhenBatchFills(t *testing.T) {
	q, w := newChanQueue(), &recordingWriter{}
	s := New(q, w, Options{BatchSize: 2, FlushDelay: time.Hour, PopTimeout: 10 * time.Millisecond}, quietLogger())
	stop := start(t, s)

	for i := range uint64(5) {
		q.push(t, record(i+1))
	}
	require.Eventually(t, func() bool { return s.Flushed() == 4 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{2, 2}, w.sizes())
	require.Eventually(t, func() bool { return s.Pending() == 1 }, 2*time.Second, 5*time.Millisecond)

	stop()
	assert.Equal(t, []int{2, 2, 1}, w.sizes(), "remaining actions are flushed on shutdown")
	assert.Equal(t, 5, s.Flushed())
	assert.Zero(t, s.Pending())
}

func TestFlushesOnTimer(t *testing.T) {
	q, w := newChanQueue(), &recordingWriter{}
	s := New(q, w, Options{BatchSize: 100, FlushDelay: 20 * time.Millisecond, PopTimeout: 5 * time.Millisecond}, quietLogger())
	stop := start(t, s)
	defer stop()

	q.push(t, record(1))
	require.Eventually(t, func() bool { return s.Flushed() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1}, w.sizes())
}

func TestMalformedPayloadsAreSkipped(t *testing.T) {
	q, w := newChanQueue(), &recordingWriter{}
	s := New(q, w, Options{BatchSize: 1, FlushDelay: time.Hour, PopTimeout: 5 * time.Millisecond}, quietLogger())
	stop := start(t, s)
	defer stop()

	q.items <- "{not json"
	q.push(t, record(7))
	require.Eventually(t, func() bool { return s.Flushed() == 1 }, 2*time.Second, 5*time.Millisecond)

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Equal(t, uint64(7), w.batches[0][0].ActionIndex)
}

func TestFailedBatchIsDropped(t *testing.T) {
	w := &recordingWriter{fail: true}
	s := New(newChanQueue(), w, Options{BatchSize: 10}, quietLogger())
	s.add(context.Background(), record(1))
	require.Equal(t, 1, s.Pending())

	s.Flush(context.Background())
	assert.Zero(t, s.Pending())
	assert.Zero(t, s.Flushed())
}

// TestRedisQueueRoundTrip needs a Redis server; set POKERDICE_TEST_REDIS_ADDR to run it.
func TestRedisQueueRoundTrip(t *testing.T) {
	addr := os.Getenv("POKERDICE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("POKERDICE_TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb, err := cache.ConnectRedis(ctx, addr, 0)
	require.NoError(t, err)
	defer rdb.Close()

	queue := "pokerdice_test_" + uuid.NewString()
	defer rdb.Del(context.Background(), queue)

	pub := cache.NewPublisher(rdb, queue)
	rec := record(42)
	require.NoError(t, pub.PublishGameAction(ctx, rec))

	payload, ok, err := NewRedisQueue(rdb, queue).Pop(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	got, err := cache.DecodeGameAction(payload)
	require.NoError(t, err)
	assert.Equal(t, rec.GameID, got.GameID)
	assert.Equal(t, rec.ActionIndex, got.ActionIndex)

	_, ok, err = NewRedisQueue(rdb, queue).Pop(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}
