package scan

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryBeginIsExclusive(t *testing.T) {
	p := NewProgress()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p.TryBegin("pass", 10, 1) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestObserveClampsToTotal(t *testing.T) {
	p := NewProgress()
	require.True(t, p.TryBegin("pass", 2, 1))

	for _, addr := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		p.Observe(addr)
	}

	s := p.Snapshot()
	assert.Equal(t, 2, s.ScannedAddresses)
	assert.Equal(t, "10.0.0.3", s.CurrentAddress)
	assert.Equal(t, 1.0, s.Fraction())
}

func TestFinishClearsState(t *testing.T) {
	p := NewProgress()
	start := time.Unix(1700000000, 0)
	p.now = func() time.Time { return start }
	require.True(t, p.TryBegin("pass", 5, 2))
	p.Observe("10.0.0.1")

	p.now = func() time.Time { return start.Add(3 * time.Second) }
	elapsed := p.Finish()

	s := p.Snapshot()
	assert.Equal(t, 3*time.Second, elapsed)
	assert.False(t, s.Scanning)
	assert.Empty(t, s.CurrentAddress)
	assert.Equal(t, 3*time.Second, s.Elapsed(start.Add(time.Hour)))
	assert.Equal(t, 3.0, s.LastPassSeconds)

	// A new pass can begin and resets counters.
	require.True(t, p.TryBegin("next", 7, 1))
	assert.Zero(t, p.Snapshot().ScannedAddresses)
	assert.Zero(t, p.Snapshot().LastPassSeconds)
}

func TestElapsedWhileScanning(t *testing.T) {
	start := time.Unix(1700000000, 0)
	s := State{Scanning: true, StartedAt: start}
	assert.Equal(t, 5*time.Second, s.Elapsed(start.Add(5*time.Second)))
}
