// Package scheduler fires one-shot actions at wall-clock instants. Every
// trigger is identified by a key; registering an existing key replaces the
// pending trigger.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// maxSleepCap bounds a single sleep so that wall-clock jumps (NTP sync after
// boot, suspend) are noticed within a minute.
const maxSleepCap = 60 * time.Second

// DefaultMisfireGrace is how late a trigger may still fire.
const DefaultMisfireGrace = 60 * time.Second

var ErrInvalidTrigger = errors.New("invalid trigger")

type Action func()

// Trigger is a pending registration as reported by ListPending.
type Trigger struct {
	Key string    `json:"key"`
	At  time.Time `json:"at"`
}

type Option func(*Scheduler)

// WithClock replaces time.Now, used to decide what is due.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithMisfireGrace(d time.Duration) Option {
	return func(s *Scheduler) { s.grace = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

type Scheduler struct {
	mu    sync.Mutex
	queue triggerHeap
	byKey map[string]*entry
	seq   uint64

	wake  chan struct{}
	done  chan struct{}
	fired sync.WaitGroup

	now   func() time.Time
	grace time.Duration
	log   zerolog.Logger
}

// New starts the scheduler loop. It exits when ctx is cancelled; pending
// triggers are then never fired.
func New(ctx context.Context, opts ...Option) *Scheduler {
	s := &Scheduler{
		byKey: make(map[string]*entry),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
		now:   time.Now,
		grace: DefaultMisfireGrace,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run(ctx)
	return s
}

// ScheduleAt registers action to run at the given instant, replacing any
// pending trigger with the same key.
func (s *Scheduler) ScheduleAt(at time.Time, key string, action Action) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidTrigger)
	}
	if action == nil {
		return fmt.Errorf("%w: nil action for %s", ErrInvalidTrigger, key)
	}

	s.mu.Lock()
	if old, ok := s.byKey[key]; ok {
		heapRemove(&s.queue, old)
	}
	s.seq++
	e := &entry{key: key, at: at, action: action, seq: s.seq}
	heap.Push(&s.queue, e)
	s.byKey[key] = e
	s.mu.Unlock()

	s.notify()
	return nil
}

// Cancel removes a pending trigger and reports whether one existed.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	e, ok := s.byKey[key]
	if ok {
		heapRemove(&s.queue, e)
		delete(s.byKey, key)
	}
	s.mu.Unlock()

	if ok {
		s.notify()
	}
	return ok
}

// CancelAll removes every pending trigger and returns how many there were.
func (s *Scheduler) CancelAll() int {
	s.mu.Lock()
	n := len(s.queue)
	s.queue = nil
	s.byKey = make(map[string]*entry)
	s.mu.Unlock()

	s.notify()
	return n
}

// ListPending returns the pending triggers in ascending order of instant.
func (s *Scheduler) ListPending() []Trigger {
	s.mu.Lock()
	out := make([]Trigger, 0, len(s.queue))
	entries := make([]*entry, len(s.queue))
	copy(entries, s.queue)
	s.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return triggerHeap(entries).Less(i, j) })
	for _, e := range entries {
		out = append(out, Trigger{Key: e.key, At: e.at})
	}
	return out
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Wait blocks until the loop has exited and every fired action has returned.
func (s *Scheduler) Wait() {
	<-s.done
	s.fired.Wait()
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		s.fireDue()

		if timer != nil {
			timer.Stop()
		}
		timer = time.NewTimer(s.sleepDuration())

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

func (s *Scheduler) sleepDuration() time.Duration {
	s.mu.Lock()
	next := s.queue.peek()
	s.mu.Unlock()

	if next == nil {
		return maxSleepCap
	}
	return min(max(next.at.Sub(s.now()), 0), maxSleepCap)
}

func (s *Scheduler) fireDue() {
	var due, missed []*entry

	s.mu.Lock()
	now := s.now()
	for e := s.queue.peek(); e != nil && !e.at.After(now); e = s.queue.peek() {
		heap.Pop(&s.queue)
		delete(s.byKey, e.key)
		if now.Sub(e.at) > s.grace {
			missed = append(missed, e)
		} else {
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	for _, e := range missed {
		s.log.Warn().Str("key", e.key).Time("at", e.at).Dur("late", now.Sub(e.at)).Msg("trigger missed its grace period, dropped")
	}
	for _, e := range due {
		s.fire(e)
	}
}

func (s *Scheduler) fire(e *entry) {
	s.fired.Add(1)
	go func() {
		defer s.fired.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error().Str("key", e.key).Interface("panic", r).Msg("trigger action panicked")
			}
		}()
		s.log.Debug().Str("key", e.key).Time("at", e.at).Msg("trigger fired")
		e.action()
	}()
}
