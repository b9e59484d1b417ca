package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock_StartsAtEpoch(t *testing.T) {
	clock := NewManualClock()
	assert.Equal(t, Epoch, clock.Now())
}

func TestManualClock_Advance(t *testing.T) {
	clock := NewManualClock()

	got := clock.Advance(5 * time.Second)
	assert.Equal(t, Epoch.Add(5*time.Second), got)
	assert.Equal(t, got, clock.Now())

	clock.Advance(-time.Hour)
	assert.Equal(t, Epoch.Add(5*time.Second), clock.Now(), "clock must not run backwards")
}

func TestManualClock_Set(t *testing.T) {
	clock := NewManualClock()

	later := Epoch.Add(time.Minute)
	clock.Set(later)
	assert.Equal(t, later, clock.Now())

	clock.Set(Epoch)
	assert.Equal(t, later, clock.Now(), "Set must ignore earlier instants")
}

func TestManualClock_Reset(t *testing.T) {
	clock := NewManualClock()
	clock.Advance(time.Hour)

	clock.Reset()
	assert.Equal(t, Epoch, clock.Now())
}

func TestManualClock_ThreadSafe(t *testing.T) {
	clock := NewManualClock()
	const goroutines = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			clock.Advance(time.Second)
			_ = clock.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, Epoch.Add(goroutines*time.Second), clock.Now())
}
