package thread_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/habiliai/supportagent/thread"
)

func TestLocker_SerialisesSameThread(t *testing.T) {
	locker := thread.NewLocker()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		overlap bool
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock("customer_a")
			defer unlock()

			mu.Lock()
			active++
			if active > 1 {
				overlap = true
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.False(t, overlap)
	assert.Equal(t, 0, locker.Len())
}

func TestLocker_DifferentThreadsDoNotBlock(t *testing.T) {
	locker := thread.NewLocker()

	unlockA := locker.Lock("customer_a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := locker.Lock("customer_b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another thread blocked")
	}
	assert.Equal(t, 1, locker.Len())
}

func TestLocker_UnlockIsIdempotent(t *testing.T) {
	locker := thread.NewLocker()

	unlock := locker.Lock("customer_a")
	unlock()
	unlock()

	unlock = locker.Lock("customer_a")
	unlock()
	assert.Equal(t, 0, locker.Len())
}
