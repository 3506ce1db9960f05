package testhelpers

import (
	"fmt"
	"sync"
	"time"
)

// ScriptedRandom replays a fixed sequence of draws
type ScriptedRandom struct {
	mu     sync.Mutex
	values []int
	pos    int
}

// NewScriptedRandom returns a source that yields values in order
func NewScriptedRandom(values ...int) *ScriptedRandom {
	return &ScriptedRandom{values: values}
}

// Intn returns the next scripted value. It panics when the script is exhausted
// or a value falls outside [0, n), so a test never silently draws something unintended.
func (r *ScriptedRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pos >= len(r.values) {
		panic(fmt.Sprintf("scripted random exhausted after %d draws", r.pos))
	}
	v := r.values[r.pos]
	if v < 0 || v >= n {
		panic(fmt.Sprintf("scripted value %d out of range [0,%d) at draw %d", v, n, r.pos))
	}
	r.pos++
	return v
}

// Push appends more draws to the script
func (r *ScriptedRandom) Push(values ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, values...)
}

// Remaining reports how many draws are left
func (r *ScriptedRandom) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values) - r.pos
}

// Cards converts card ranks 1-13 into the draws the blackjack dealer consumes
func Cards(ranks ...int) []int {
	out := make([]int, len(ranks))
	for i, r := range ranks {
		out[i] = r - 1
	}
	return out
}

// FakeClock is a settable clock
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
