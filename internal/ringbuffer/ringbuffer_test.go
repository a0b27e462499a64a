package ringbuffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuffer_FIFOOrderWithinCapacity(t *testing.T) {
	b := New[int](5)
	for i := 1; i <= 3; i++ {
		b.Add(i)
	}
	assert.Equal(t, []int{1, 2, 3}, b.Items())
	assert.Equal(t, 3, b.Size())
}

func TestBuffer_EvictsOldestPastCapacity(t *testing.T) {
	b := New[int](3)
	for i := 1; i <= 5; i++ {
		b.Add(i)
	}
	assert.Equal(t, []int{3, 4, 5}, b.Items())
	assert.Equal(t, 3, b.Size())
}

func TestBuffer_Clear(t *testing.T) {
	b := New[string](2)
	b.Add("a")
	b.Add("b")
	b.Clear()
	assert.Equal(t, 0, b.Size())
	assert.Empty(t, b.Items())

	b.Add("c")
	assert.Equal(t, []string{"c"}, b.Items())
}

func TestBuffer_ZeroCapacityTreatedAsOne(t *testing.T) {
	b := New[int](0)
	b.Add(1)
	b.Add(2)
	assert.Equal(t, []int{2}, b.Items())
}

func TestBuffer_ConcurrentAddIsSafe(t *testing.T) {
	b := New[int](100)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b.Add(i)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, b.Size())
}
