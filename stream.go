package guda

import (
	"sync"
)

// Stream represents an ordered sequence of operations that execute
// asynchronously. Operations within a stream execute in order, but
// operations in different streams may execute concurrently.
//
// Errors are sticky as in CUDA: once a task fails, later work submitted to
// the stream is skipped (events still complete) and every synchronization
// reports the first failure.
type Stream struct {
	id    int
	tasks chan streamTask
	done  chan struct{}
	wg    sync.WaitGroup

	errMu sync.Mutex
	err   error

	mu        sync.Mutex // guards destroyed and sends on tasks
	destroyed bool
}

type streamTask struct {
	fn     func() error
	always bool // run even after the stream recorded an error
}

func newStream(id int) *Stream {
	s := &Stream{
		id:    id,
		tasks: make(chan streamTask, StreamQueueDepth),
		done:  make(chan struct{}),
	}
	// Start worker goroutine for stream
	go s.worker()
	return s
}

// ID returns the stream identifier within its context.
func (s *Stream) ID() int {
	return s.id
}

// worker processes tasks for a stream
func (s *Stream) worker() {
	for task := range s.tasks {
		if task.always || s.Err() == nil {
			if err := task.fn(); err != nil {
				s.setErr(err)
			}
		}
		s.wg.Done()
	}
	close(s.done)
}

// Synchronize waits for all tasks in the stream to complete and returns the
// stream's sticky error, if any.
func (s *Stream) Synchronize() error {
	s.wg.Wait()
	return s.Err()
}

// Err returns the first error recorded by the stream.
func (s *Stream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Stream) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Submit adds a task to the stream
func (s *Stream) Submit(task func() error) error {
	return s.submit(streamTask{fn: task})
}

func (s *Stream) submit(task streamTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrStreamDestroyed
	}
	s.wg.Add(1)
	s.tasks <- task
	return nil
}

// destroy drains the stream and stops its worker.
func (s *Stream) destroy() error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil
	}
	s.destroyed = true
	close(s.tasks)
	s.mu.Unlock()

	<-s.done
	return s.Err()
}
