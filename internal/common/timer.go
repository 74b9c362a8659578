package common

import (
	"fmt"
	"strings"
	"time"
)

// Lap is one named interval measured by a Timer.
type Lap struct {
	Name     string
	Duration time.Duration
}

// Timer measures a run and the named stages inside it.
type Timer struct {
	start time.Time
	last  time.Time
	laps  []Lap
}

// NewTimer starts a new timer.
func NewTimer() *Timer {
	now := time.Now()
	return &Timer{start: now, last: now}
}

// Lap records the time since the previous lap (or the start) under name.
func (t *Timer) Lap(name string) time.Duration {
	now := time.Now()
	d := now.Sub(t.last)
	t.last = now
	t.laps = append(t.laps, Lap{Name: name, Duration: d})
	return d
}

// Laps returns the recorded laps in order.
func (t *Timer) Laps() []Lap {
	return append([]Lap(nil), t.laps...)
}

// Elapsed returns the time since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// ElapsedMs returns Elapsed in whole milliseconds.
func (t *Timer) ElapsedMs() int64 {
	return t.Elapsed().Milliseconds()
}

func (t *Timer) String() string {
	parts := make([]string, 0, len(t.laps))
	for _, l := range t.laps {
		parts = append(parts, fmt.Sprintf("%s=%v", l.Name, l.Duration.Round(time.Microsecond)))
	}
	return strings.Join(parts, " ")
}
