package debounce

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock runs scheduled functions when Advance passes their deadline.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

type recorder struct {
	mu    sync.Mutex
	fired []string
}

func (r *recorder) record(v string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, v)
}

func (r *recorder) values() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fired...)
}

func TestDebouncer_RapidInputFiresOnceAfterQuiet(t *testing.T) {
	clock := &fakeClock{}
	rec := &recorder{}
	d := New(300*time.Millisecond, rec.record).WithAfterFunc(clock.AfterFunc)

	for _, v := range []string{"b", "bu", "buy", "buy m", "buy milk"} {
		d.Trigger(v)
		clock.Advance(100 * time.Millisecond)
	}
	assert.Empty(t, rec.values(), "nothing fires while typing")

	clock.Advance(199 * time.Millisecond)
	assert.Empty(t, rec.values())

	clock.Advance(time.Millisecond)
	assert.Equal(t, []string{"buy milk"}, rec.values())

	clock.Advance(time.Second)
	assert.Len(t, rec.values(), 1)
	assert.False(t, d.Pending())
}

func TestDebouncer_SeparateBursts(t *testing.T) {
	clock := &fakeClock{}
	rec := &recorder{}
	d := New(300*time.Millisecond, rec.record).WithAfterFunc(clock.AfterFunc)

	d.Trigger("a")
	clock.Advance(300 * time.Millisecond)
	d.Trigger("b")
	clock.Advance(300 * time.Millisecond)

	assert.Equal(t, []string{"a", "b"}, rec.values())
}

func TestDebouncer_Stop(t *testing.T) {
	clock := &fakeClock{}
	rec := &recorder{}
	d := New(300*time.Millisecond, rec.record).WithAfterFunc(clock.AfterFunc)

	d.Trigger("a")
	d.Stop()
	clock.Advance(time.Second)
	assert.Empty(t, rec.values())
}

func TestDebouncer_Flush(t *testing.T) {
	clock := &fakeClock{}
	rec := &recorder{}
	d := New(300*time.Millisecond, rec.record).WithAfterFunc(clock.AfterFunc)

	assert.False(t, d.Flush())
	d.Trigger("now")
	assert.True(t, d.Flush())
	assert.Equal(t, []string{"now"}, rec.values())

	clock.Advance(time.Second)
	assert.Len(t, rec.values(), 1, "flushed value does not fire again")
}

func TestDebouncer_FlushWaitsForRunningCall(t *testing.T) {
	clock := &fakeClock{}
	rec := &recorder{}
	started := make(chan struct{})
	release := make(chan struct{})
	d := New(300*time.Millisecond, func(v string) {
		close(started)
		<-release
		rec.record(v)
	}).WithAfterFunc(clock.AfterFunc)

	d.Trigger("last")
	go clock.Advance(300 * time.Millisecond)
	<-started

	flushed := make(chan bool)
	go func() { flushed <- d.Flush() }()
	select {
	case <-flushed:
		t.Fatal("Flush returned while the fired value was still being handled")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	assert.False(t, <-flushed, "the value had already left the pending slot")
	assert.Equal(t, []string{"last"}, rec.values())
}

func TestDebouncer_WaitIdle(t *testing.T) {
	d := New(time.Hour, func(string) {})
	d.Wait()
	d.Trigger("x")
	d.Stop()
	d.Wait()
	assert.False(t, d.Pending())
}

func TestDebouncer_LateTimerIgnored(t *testing.T) {
	var scheduled []func()
	rec := &recorder{}
	d := New(time.Hour, rec.record).WithAfterFunc(func(_ time.Duration, f func()) Timer {
		scheduled = append(scheduled, f)
		return stuckTimer{}
	})

	d.Trigger("old")
	d.Trigger("new")
	require.Len(t, scheduled, 2)

	scheduled[0]()
	assert.Empty(t, rec.values(), "superseded timer does nothing")
	scheduled[1]()
	assert.Equal(t, []string{"new"}, rec.values())
}

// stuckTimer models a timer whose function already started running.
type stuckTimer struct{}

func (stuckTimer) Stop() bool { return false }

func TestDebouncer_RealTimer(t *testing.T) {
	done := make(chan string, 4)
	d := New(20*time.Millisecond, func(v string) { done <- v })

	d.Trigger("x")
	d.Trigger("y")

	select {
	case v := <-done:
		assert.Equal(t, "y", v)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced function never fired")
	}
	select {
	case v := <-done:
		t.Fatalf("unexpected second fire: %q", v)
	case <-time.After(60 * time.Millisecond):
	}
}
