// Package eventloop runs continuations on a small fixed set of workers.
//
// Blocking work never runs on a loop worker: it is started with Go on its own
// goroutine, and its completion enqueues the continuations registered on the
// returned Promise.
package eventloop

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var (
	// ErrQueueFull is returned when the continuation queue has no room left.
	ErrQueueFull = errors.New("event loop queue full")
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("event loop closed")
)

type Config struct {
	Workers   int
	QueueSize int
	Logger    *logrus.Logger
}

// Loop is a fixed pool of workers draining a bounded queue.
type Loop struct {
	cfg   Config
	queue chan func()
	wg    sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool

	submitted atomic.Int64
	rejected  atomic.Int64
}

// Stats is a point-in-time view of the loop.
type Stats struct {
	Workers   int
	Pending   int
	Capacity  int
	Submitted int64
	Rejected  int64
}

func New(cfg Config) *Loop {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 4096
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Loop{
		cfg:   cfg,
		queue: make(chan func(), cfg.QueueSize),
	}
}

// Start launches the workers. Calling it more than once is a no-op.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started || l.closed {
		return
	}
	l.started = true

	for i := 0; i < l.cfg.Workers; i++ {
		l.wg.Add(1)
		go l.work(i)
	}
	l.cfg.Logger.Infof("event loop started with %d workers (queue %d)", l.cfg.Workers, l.cfg.QueueSize)
}

func (l *Loop) work(id int) {
	defer l.wg.Done()
	for task := range l.queue {
		l.run(id, task)
	}
}

func (l *Loop) run(id int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.cfg.Logger.WithField("worker", id).Errorf("event loop task panicked: %v", r)
		}
	}()
	task()
}

// Submit enqueues task without blocking.
func (l *Loop) Submit(task func()) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.rejected.Add(1)
		return ErrClosed
	}

	select {
	case l.queue <- task:
		l.submitted.Add(1)
		return nil
	default:
		l.rejected.Add(1)
		return ErrQueueFull
	}
}

// Close stops accepting work, lets the workers drain the queue and waits for them.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.queue)
	started := l.started
	l.mu.Unlock()

	if !started {
		return
	}
	l.wg.Wait()
	l.cfg.Logger.Info("event loop stopped")
}

func (l *Loop) Stats() Stats {
	return Stats{
		Workers:   l.cfg.Workers,
		Pending:   len(l.queue),
		Capacity:  cap(l.queue),
		Submitted: l.submitted.Load(),
		Rejected:  l.rejected.Load(),
	}
}
