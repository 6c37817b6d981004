package guda

import (
	"fmt"
	"sync"
	"time"
)

// Event marks a point in a stream. Recording an event enqueues a timestamp
// that is taken when every task submitted before it has finished, which makes
// pairs of events the device-side timer for a sequence of launches.
type Event struct {
	mu        sync.Mutex
	stream    *Stream
	recorded  chan struct{}
	stamp     time.Time
	destroyed bool
}

// EventCreate creates an unrecorded event.
func (ctx *Context) EventCreate() (*Event, error) {
	return &Event{}, nil
}

// EventRecord enqueues ev on stream, replacing any earlier recording.
func (ctx *Context) EventRecord(ev *Event, stream *Stream) error {
	if ev == nil {
		return NewInvalidArgError("EventRecord", "nil event")
	}
	if stream == nil {
		stream = ctx.defaultStream
	}

	ev.mu.Lock()
	if ev.destroyed {
		ev.mu.Unlock()
		return NewInvalidArgError("EventRecord", "event has been destroyed")
	}
	recorded := make(chan struct{})
	ev.stream = stream
	ev.recorded = recorded
	ev.mu.Unlock()

	return stream.submit(streamTask{
		always: true,
		fn: func() error {
			ev.mu.Lock()
			ev.stamp = time.Now()
			ev.mu.Unlock()
			close(recorded)
			return nil
		},
	})
}

// EventSynchronize blocks until ev has been reached by its stream and returns
// the stream's sticky error, so failed launches before ev surface here.
func (ctx *Context) EventSynchronize(ev *Event) error {
	if ev == nil {
		return NewInvalidArgError("EventSynchronize", "nil event")
	}
	ev.mu.Lock()
	recorded, stream := ev.recorded, ev.stream
	ev.mu.Unlock()
	if recorded == nil {
		return NewInvalidArgError("EventSynchronize", "event was never recorded")
	}

	<-recorded
	return stream.Err()
}

// EventElapsedTime returns the milliseconds between two completed events.
func (ctx *Context) EventElapsedTime(start, end *Event) (float32, error) {
	if start == nil || end == nil {
		return 0, NewInvalidArgError("EventElapsedTime", "nil event")
	}
	t0, err := start.completedAt()
	if err != nil {
		return 0, err
	}
	t1, err := end.completedAt()
	if err != nil {
		return 0, err
	}
	return float32(t1.Sub(t0).Seconds() * 1e3), nil
}

func (ev *Event) completedAt() (time.Time, error) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	if ev.recorded == nil {
		return time.Time{}, NewInvalidArgError("EventElapsedTime", "event was never recorded")
	}
	select {
	case <-ev.recorded:
		return ev.stamp, nil
	default:
		return time.Time{}, NewDeviceError("EventElapsedTime", fmt.Sprintf("event on stream %d not ready", ev.stream.id))
	}
}

// EventDestroy releases ev. Destroying an event twice is a no-op.
func (ctx *Context) EventDestroy(ev *Event) error {
	if ev == nil {
		return NewInvalidArgError("EventDestroy", "nil event")
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()
	ev.destroyed = true
	return nil
}
