package ledger

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockTable_ReleaseRemovesEntries(t *testing.T) {
	lt := newLockTable()

	release := lt.acquire(3, 1, 3)
	assert.Equal(t, 2, lt.size())
	release()
	assert.Equal(t, 0, lt.size())
}

func TestLockTable_Exclusive(t *testing.T) {
	lt := newLockTable()
	release := lt.acquire(1, 2)

	acquired := make(chan struct{})
	go func() {
		r := lt.acquire(2)
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
		t.Fatal("lock on account 2 acquired while held")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("lock never handed over")
	}
}

func TestLockTable_ReverseOrderNoDeadlock(t *testing.T) {
	lt := newLockTable()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 200; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r := lt.acquire(1, 2)
			counter++
			r()
		}()
		go func() {
			defer wg.Done()
			r := lt.acquire(2, 1)
			counter++
			r()
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("deadlock")
	}
	assert.Equal(t, 400, counter)
	assert.Equal(t, 0, lt.size())
}

func TestLockTable_WithReleasesOnReturnAndPanic(t *testing.T) {
	lt := newLockTable()

	err := lt.with([]uint{2, 1}, func() error {
		assert.Equal(t, 2, lt.size())
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")
	assert.Equal(t, 0, lt.size())

	assert.Panics(t, func() {
		_ = lt.with([]uint{5}, func() error { panic("boom") })
	})
	assert.Equal(t, 0, lt.size())
}
