package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock_StartsAtEpoch(t *testing.T) {
	assert.Equal(t, Epoch, NewManualClock().Now())
}

func TestManualClock_AfterFiresOnAdvance(t *testing.T) {
	clock := NewManualClock()
	ch := clock.After(300 * time.Millisecond)
	assert.Equal(t, 1, clock.Pending())

	clock.Advance(299 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("timer fired early")
	default:
	}

	clock.Advance(time.Millisecond)
	select {
	case fired := <-ch:
		assert.Equal(t, Epoch.Add(300*time.Millisecond), fired)
	default:
		t.Fatal("timer did not fire")
	}
	assert.Zero(t, clock.Pending())
}

func TestManualClock_ZeroDurationFiresImmediately(t *testing.T) {
	clock := NewManualClock()
	select {
	case <-clock.After(0):
	default:
		t.Fatal("zero timer should fire immediately")
	}
}

func TestManualClock_Tick(t *testing.T) {
	clock := NewManualClock()
	first := clock.Tick()
	second := clock.Tick()
	assert.True(t, second.After(first))
	assert.Equal(t, Epoch.Add(2*time.Second), second)
}

func TestSequentialIDs(t *testing.T) {
	ids := NewSequentialIDs("view")
	assert.Equal(t, "view-0001", ids.Next())
	assert.Equal(t, "view-0002", ids.Next())

	assert.Equal(t, "id-0001", NewSequentialIDs("").Next())
}
