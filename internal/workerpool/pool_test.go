package workerpool

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanmcp/internal/queue"
)

type fakeThrottler struct {
	throttle bool
}

func (f *fakeThrottler) ShouldThrottle() bool { return f.throttle }

func docIDByPath(task *queue.Task) string { return task.Path }

func TestPool_IndexesFileSuccessfully(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package a"), 0o644))

	q := queue.New(queue.Config{})
	idx := &fakeIndexer{}
	p := New(q, nil, idx, nil, docIDByPath, Config{Workers: 1, DisableBatching: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	require.True(t, q.Push(queue.NewTask(path, queue.OpIndex, queue.Normal)))

	require.Eventually(t, func() bool { return idx.indexCallCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	idx.mu.Lock()
	defer idx.mu.Unlock()
	require.Len(t, idx.indexed[0], 1)
	assert.Equal(t, path, idx.indexed[0][0].ID)
	assert.Equal(t, "package a", idx.indexed[0][0].Content)
}

func TestPool_DeleteDispatchesToStore(t *testing.T) {
	q := queue.New(queue.Config{})
	idx := &fakeIndexer{}
	p := New(q, nil, idx, nil, docIDByPath, Config{Workers: 1, DisableBatching: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	require.True(t, q.Push(queue.NewTask("gone.go", queue.OpDelete, queue.Normal)))

	require.Eventually(t, func() bool {
		idx.mu.Lock()
		defer idx.mu.Unlock()
		return len(idx.deleted) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPool_DropsLowPriorityUnderBackpressure(t *testing.T) {
	q := queue.New(queue.Config{})
	idx := &fakeIndexer{}
	throttle := &fakeThrottler{throttle: true}
	p := New(q, throttle, idx, nil, docIDByPath, Config{Workers: 1, DisableBatching: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	require.True(t, q.Push(queue.NewTask("low.go", queue.OpIndex, queue.Low)))

	require.Eventually(t, func() bool { return q.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, idx.indexCallCount(), "throttled low-priority task must never reach the store")
}

func TestPool_PermanentFailureDropsWithoutRetry(t *testing.T) {
	q := queue.New(queue.Config{})
	idx := &fakeIndexer{}
	p := New(q, nil, idx, nil, docIDByPath, Config{Workers: 1, DisableBatching: true, MaxTaskRetries: 5})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	require.True(t, q.Push(queue.NewTask("/no/such/file.go", queue.OpIndex, queue.Normal)))

	require.Eventually(t, func() bool { return q.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, uint64(1), q.Stats().TotalPushed, "task must not have been requeued")
	assert.Equal(t, 0, idx.indexCallCount())
}

func TestPool_RetryableFailureRequeuesThenDrops(t *testing.T) {
	q := queue.New(queue.Config{})
	idx := &fakeIndexer{}
	alwaysFails := ExtractorFunc(func(ctx context.Context, absPath string) (string, error) {
		return "", errors.New("transient extraction failure")
	})
	p := New(q, nil, idx, alwaysFails, docIDByPath, Config{
		Workers: 1, DisableBatching: true, MaxTaskRetries: 2, MaxExtractionRetries: 1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	require.True(t, q.Push(queue.NewTask("flaky.go", queue.OpIndex, queue.Normal)))

	// Every attempt fails; after MaxTaskRetries requeues the task is
	// dropped and the queue settles empty.
	require.Eventually(t, func() bool { return q.Len() == 0 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, idx.indexCallCount(), "extraction never succeeded so the store is never written to")
}

func TestPool_BasePathValidationRejectsEscapingPath(t *testing.T) {
	dir := t.TempDir()
	q := queue.New(queue.Config{})
	idx := &fakeIndexer{}
	p := New(q, nil, idx, nil, docIDByPath, Config{Workers: 1, DisableBatching: true, BasePath: dir})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	require.True(t, q.Push(queue.NewTask("../../etc/passwd", queue.OpIndex, queue.Normal)))

	require.Eventually(t, func() bool { return q.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, idx.indexCallCount())
}

func TestPool_StartIsIdempotent(t *testing.T) {
	q := queue.New(queue.Config{})
	idx := &fakeIndexer{}
	p := New(q, nil, idx, nil, docIDByPath, Config{Workers: 2, DisableBatching: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	p.Start(ctx) // must not spawn a second set of workers
	defer p.Stop()
}
