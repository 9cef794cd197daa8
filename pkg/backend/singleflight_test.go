package backend

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Execute_Coalesces_Concurrent_Calls_For_The_Same_Key(t *testing.T) {
	var c Controller
	var calls int32

	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make([]any, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			v, err := c.Execute("k", func() (any, error) {
				atomic.AddInt32(&calls, 1)
				return "value", nil
			})
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	close(start)
	wg.Wait()

	require.LessOrEqual(t, atomic.LoadInt32(&calls), int32(10))
	for _, r := range results {
		require.Equal(t, "value", r)
	}
}

func Test_Execute_Runs_Independently_For_Different_Keys(t *testing.T) {
	var c Controller

	v1, err := c.Execute("a", func() (any, error) { return 1, nil })
	require.NoError(t, err)
	v2, err := c.Execute("b", func() (any, error) { return 2, nil })
	require.NoError(t, err)

	require.Equal(t, 1, v1)
	require.Equal(t, 2, v2)
}

func Test_Execute_Propagates_The_Underlying_Error(t *testing.T) {
	var c Controller
	sentinelErr := sentinel{}

	_, err := c.Execute("k", func() (any, error) { return nil, sentinelErr })
	require.Equal(t, sentinelErr, err)
}

type sentinel struct{}

func (sentinel) Error() string { return "boom" }
