package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake_AfterFiresOnAdvance(t *testing.T) {
	start := time.UnixMilli(1_000_000)
	fc := NewFake(start)

	ch := fc.After(time.Second)
	select {
	case <-ch:
		t.Fatal("timer fired before advance")
	default:
	}

	fc.Advance(999 * time.Millisecond)
	assert.Equal(t, 1, fc.Waiters())

	fc.Advance(time.Millisecond)
	select {
	case got := <-ch:
		assert.Equal(t, start.Add(time.Second), got)
	default:
		t.Fatal("timer did not fire")
	}
	assert.Equal(t, 0, fc.Waiters())
}

func TestFake_NonPositiveFiresImmediately(t *testing.T) {
	fc := NewFake(time.Unix(0, 0))
	select {
	case <-fc.After(0):
	default:
		t.Fatal("zero duration should fire immediately")
	}
}

func TestFake_SetIgnoresPast(t *testing.T) {
	start := time.Unix(100, 0)
	fc := NewFake(start)
	fc.Set(time.Unix(50, 0))
	assert.Equal(t, start, fc.Now())
}

func TestFake_BlockUntil(t *testing.T) {
	fc := NewFake(time.Unix(0, 0))

	go func() {
		time.Sleep(10 * time.Millisecond)
		fc.After(time.Minute)
	}()

	assert.True(t, fc.BlockUntil(1, time.Second))
	assert.False(t, fc.BlockUntil(2, 20*time.Millisecond))
}

func TestReal(t *testing.T) {
	var c Clock = NewReal()
	before := time.Now()
	assert.False(t, c.Now().Before(before))
	<-c.After(time.Millisecond)
}
