package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PriorityOrdering(t *testing.T) {
	q := New(Config{})

	require.True(t, q.Push(NewTask("low.go", OpIndex, Low)))
	require.True(t, q.Push(NewTask("normal.go", OpIndex, Normal)))
	require.True(t, q.Push(NewTask("high.go", OpIndex, High)))
	require.True(t, q.Push(NewTask("critical.go", OpIndex, Critical)))

	var order []string
	for i := 0; i < 4; i++ {
		task, ok := q.Pop(time.Second)
		require.True(t, ok)
		order = append(order, task.Path)
	}

	assert.Equal(t, []string{"critical.go", "high.go", "normal.go", "low.go"}, order)
}

func TestQueue_FIFOWithinPriority(t *testing.T) {
	q := New(Config{})

	for i := 0; i < 5; i++ {
		task := NewTask(string(rune('a'+i))+".go", OpIndex, Normal)
		require.True(t, q.Push(task))
	}

	var order []string
	for i := 0; i < 5; i++ {
		task, ok := q.Pop(time.Second)
		require.True(t, ok)
		order = append(order, task.Path)
	}
	assert.Equal(t, []string{"a.go", "b.go", "c.go", "d.go", "e.go"}, order)
}

func TestQueue_PopTimesOutWhenEmpty(t *testing.T) {
	q := New(Config{})
	task, ok := q.Pop(10 * time.Millisecond)
	assert.False(t, ok)
	assert.Nil(t, task)
}

func TestQueue_PopUnblocksOnPush(t *testing.T) {
	q := New(Config{})

	done := make(chan *Task, 1)
	go func() {
		task, ok := q.Pop(2 * time.Second)
		if ok {
			done <- task
		} else {
			done <- nil
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.True(t, q.Push(NewTask("a.go", OpIndex, Normal)))

	select {
	case task := <-done:
		require.NotNil(t, task)
		assert.Equal(t, "a.go", task.Path)
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock after Push")
	}
}

func TestQueue_DropsLowBeforeNormalBeforeHighWhenFull(t *testing.T) {
	q := New(Config{MaxSize: 3})

	require.True(t, q.Push(NewTask("low.go", OpIndex, Low)))
	require.True(t, q.Push(NewTask("normal.go", OpIndex, Normal)))
	require.True(t, q.Push(NewTask("high.go", OpIndex, High)))

	// Queue full: pushing another High should drop the queued Low first.
	require.True(t, q.Push(NewTask("high2.go", OpIndex, High)))
	assert.Equal(t, 3, q.Len())

	remaining := map[string]bool{}
	for q.Len() > 0 {
		task, ok := q.Pop(time.Second)
		require.True(t, ok)
		remaining[task.Path] = true
	}
	assert.False(t, remaining["low.go"], "low-priority task should have been dropped")
	assert.True(t, remaining["normal.go"])
	assert.True(t, remaining["high.go"])
	assert.True(t, remaining["high2.go"])
}

func TestQueue_RejectsPushWhenOnlyCriticalRemainAndFull(t *testing.T) {
	q := New(Config{MaxSize: 2})

	require.True(t, q.Push(NewTask("c1.go", OpIndex, Critical)))
	require.True(t, q.Push(NewTask("c2.go", OpIndex, Critical)))

	ok := q.Push(NewTask("c3.go", OpIndex, Critical))
	assert.False(t, ok, "push must be rejected once only Critical tasks remain and capacity is exhausted")
	assert.Equal(t, 2, q.Len())
}

func TestQueue_RemoveByPath(t *testing.T) {
	q := New(Config{})
	require.True(t, q.Push(NewTask("a.go", OpIndex, Normal)))
	require.True(t, q.Push(NewTask("b.go", OpIndex, Normal)))
	require.True(t, q.Push(NewTask("a.go", OpUpdate, Low)))

	removed := q.RemoveByPath("a.go")
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, q.Len())

	task, ok := q.Pop(time.Second)
	require.True(t, ok)
	assert.Equal(t, "b.go", task.Path)
}

// TestQueue_RemoveByPathLargeHeapDoesNotSkipEntries guards against a
// heap.Remove-while-iterating-by-index bug: container/heap's Remove
// swaps the removed slot with the heap's last element and sifts, which
// can relocate an unvisited matching entry behind the loop cursor. A
// small 3-task queue doesn't have enough heap churn to expose this;
// this test pushes enough tasks, with the target path scattered across
// priorities, to force multiple swap-and-sift relocations per removal.
func TestQueue_RemoveByPathLargeHeapDoesNotSkipEntries(t *testing.T) {
	q := New(Config{MaxSize: 200})

	const target = "victim.go"
	wantRemoved := 0
	priorities := []Priority{Critical, High, Normal, Low}
	for i := 0; i < 100; i++ {
		prio := priorities[i%len(priorities)]
		if i%3 == 0 {
			require.True(t, q.Push(NewTask(target, OpIndex, prio)))
			wantRemoved++
		} else {
			require.True(t, q.Push(NewTask("keep.go", OpIndex, prio)))
		}
	}

	removed := q.RemoveByPath(target)
	assert.Equal(t, wantRemoved, removed)

	for q.Len() > 0 {
		task, ok := q.Pop(time.Second)
		require.True(t, ok)
		assert.NotEqual(t, target, task.Path, "RemoveByPath must leave no matching task behind")
	}
}

func TestQueue_ConservationPushedEqualsPoppedPlusSize(t *testing.T) {
	q := New(Config{})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q.Push(NewTask("f.go", OpIndex, Normal))
		}(i)
	}
	wg.Wait()

	popped := 0
	for {
		_, ok := q.Pop(50 * time.Millisecond)
		if !ok {
			break
		}
		popped++
	}

	stats := q.Stats()
	assert.Equal(t, stats.TotalPushed, stats.TotalPopped+stats.TotalDropped+uint64(q.Len()))
	assert.Equal(t, 50, popped)
}

func TestQueue_Stats(t *testing.T) {
	q := New(Config{MaxSize: 10})
	require.True(t, q.Push(NewTask("a.go", OpIndex, High)))
	require.True(t, q.Push(NewTask("b.go", OpIndex, Low)))

	stats := q.Stats()
	assert.Equal(t, uint64(2), stats.TotalPushed)
	assert.Equal(t, 1, stats.PerPriorityCounts[High])
	assert.Equal(t, 1, stats.PerPriorityCounts[Low])
	assert.InDelta(t, 20.0, stats.UtilizationPercent, 0.01)
}
