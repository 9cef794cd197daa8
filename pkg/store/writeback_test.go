package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Writeback_Flushes_Dirty_Entries_On_Kick(t *testing.T) {
	mc := newTestMap(t, 1<<20)
	_, _, err := mc.Set([]byte("k"), []byte("v"), true)
	require.NoError(t, err)

	var mu sync.Mutex
	var flushed []string
	wb := NewWriteback(mc, func(key, value []byte) error {
		mu.Lock()
		flushed = append(flushed, string(key))
		mu.Unlock()
		return nil
	})

	done := make(chan struct{})
	go func() {
		wb.Run(time.Hour) // rely on Kick, not the timer
		close(done)
	}()

	wb.Kick()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(flushed) == 1 && flushed[0] == "k"
	}, time.Second, 5*time.Millisecond)

	wb.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func Test_Writeback_Stop_Before_Any_Kick_Returns_Promptly(t *testing.T) {
	mc := newTestMap(t, 1<<20)
	wb := NewWriteback(mc, func(key, value []byte) error { return nil })

	done := make(chan struct{})
	go func() {
		wb.Run(time.Hour)
		close(done)
	}()

	wb.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
