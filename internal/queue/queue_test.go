package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFO(t *testing.T) {
	q := NewMemory(10)
	for _, p := range []string{"a.clip", "b.clip", "a.clip"} {
		require.NoError(t, q.Push(p))
	}
	assert.Equal(t, 3, q.Len())

	ctx := context.Background()
	for _, want := range []string{"a.clip", "b.clip", "a.clip"} {
		got, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestPushFullDrops(t *testing.T) {
	q := NewMemory(1)
	require.NoError(t, q.Push("a.clip"))
	assert.ErrorIs(t, q.Push("b.clip"), ErrQueueFull)
	assert.Equal(t, 1, q.Len())
}

func TestDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewMemory(0).Cap())
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := NewMemory(1)
	got := make(chan string, 1)
	go func() {
		p, _ := q.Pop(context.Background())
		got <- p
	}()

	select {
	case <-got:
		t.Fatal("Pop returned before Push")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, q.Push("late.clip"))
	select {
	case p := <-got:
		assert.Equal(t, "late.clip", p)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Push")
	}
}

func TestPopContextCancel(t *testing.T) {
	q := NewMemory(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCloseDrainsThenStops(t *testing.T) {
	q := NewMemory(2)
	require.NoError(t, q.Push("a.clip"))
	q.Close()
	q.Close()

	assert.ErrorIs(t, q.Push("b.clip"), ErrQueueClosed)

	p, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a.clip", p)

	_, err = q.Pop(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestConcurrentProducers(t *testing.T) {
	q := NewMemory(1000)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.NoError(t, q.Push(fmt.Sprintf("%d-%d.clip", i, j)))
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 500, q.Len())
}
