package spin

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock_MutualExclusion(t *testing.T) {
	var l Lock
	counter := 0

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				l.Lock()
				counter++
				l.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 8000, counter)
	assert.Equal(t, uint64(8000), l.Acquisitions())
}

func TestTryLock(t *testing.T) {
	var l Lock

	require.True(t, l.TryLock())
	assert.False(t, l.TryLock(), "second TryLock must fail while held")
	l.Unlock()
	require.True(t, l.TryLock())
	l.Unlock()

	assert.Equal(t, uint64(2), l.Acquisitions())
}

func TestUnlock_Unheld(t *testing.T) {
	var l Lock
	require.Panics(t, func() { l.Unlock() })
}
