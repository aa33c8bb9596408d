package trace

import (
	"bufio"
	"io"
	"sync"
)

// RingTracer retains the most recent events in a fixed buffer. It backs the
// failure dump of the CLI: older events are overwritten, never flushed.
type RingTracer struct {
	level Level

	mu      sync.Mutex
	buf     []Event
	written uint64 // events stored since creation
}

// NewRingTracer returns a ring holding capacity events; capacity <= 0
// selects DefaultRingSize.
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = DefaultRingSize
	}
	return &RingTracer{level: level, buf: make([]Event, capacity)}
}

// Emit stores a copy of ev when the level accepts it.
func (t *RingTracer) Emit(ev *Event) {
	if ev == nil || !t.level.Accepts(ev) {
		return
	}
	stored := *ev
	if stored.Seq == 0 {
		stored.Seq = NextSeq()
	}
	t.mu.Lock()
	t.buf[t.written%uint64(len(t.buf))] = stored
	t.written++
	t.mu.Unlock()
}

// Len is the number of retained events.
func (t *RingTracer) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lenLocked()
}

// Overwritten is the number of events lost to wrap-around.
func (t *RingTracer) Overwritten() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.written - uint64(t.lenLocked())
}

func (t *RingTracer) lenLocked() int {
	if t.written < uint64(len(t.buf)) {
		return int(t.written)
	}
	return len(t.buf)
}

// Snapshot copies the retained events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.lenLocked()
	out := make([]Event, n)
	size := uint64(len(t.buf))
	first := t.written - uint64(n)
	for i := range out {
		out[i] = t.buf[(first+uint64(i))%size]
	}
	return out
}

// Dump writes the retained events to w, oldest first.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	bw := bufio.NewWriter(w)
	for _, ev := range t.Snapshot() {
		if _, err := bw.Write(FormatEvent(&ev, format)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Flush does nothing; events live only in memory.
func (t *RingTracer) Flush() error { return nil }

// Close does nothing; the retained events stay readable.
func (t *RingTracer) Close() error { return nil }

// Level returns the filter level.
func (t *RingTracer) Level() Level { return t.level }

// Enabled reports whether any event can be stored.
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }
