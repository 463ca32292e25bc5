package syncer

import (
	"sort"
	"sync"
	"time"
)

// Task is a unit of delayed work. Tasks are keyed by Name: scheduling a task
// replaces a queued one with the same name.
type Task struct {
	Name      string
	Attempt   int
	NotBefore time.Time
}

// Queue is an inspectable delayed work queue. It has no timers of its own;
// the owner polls Due with its clock.
type Queue struct {
	mu    sync.Mutex
	tasks []Task
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Schedule(t Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.remove(t.Name)
	q.tasks = append(q.tasks, t)
	sort.SliceStable(q.tasks, func(i, j int) bool {
		return q.tasks[i].NotBefore.Before(q.tasks[j].NotBefore)
	})
}

// Due removes and returns the tasks whose NotBefore is not after now.
func (q *Queue) Due(now time.Time) []Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for n < len(q.tasks) && !q.tasks[n].NotBefore.After(now) {
		n++
	}
	if n == 0 {
		return nil
	}
	due := append([]Task(nil), q.tasks[:n]...)
	q.tasks = append(q.tasks[:0], q.tasks[n:]...)
	return due
}

// Pending returns a copy of the queued tasks, earliest first.
func (q *Queue) Pending() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Task(nil), q.tasks...)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Has reports whether a task called name is queued.
func (q *Queue) Has(name string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.tasks {
		if t.Name == name {
			return true
		}
	}
	return false
}

// Cancel drops the task called name and reports whether one was queued.
func (q *Queue) Cancel(name string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.remove(name)
}

func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = nil
}

func (q *Queue) remove(name string) bool {
	for i, t := range q.tasks {
		if t.Name == name {
			q.tasks = append(q.tasks[:i], q.tasks[i+1:]...)
			return true
		}
	}
	return false
}

// Backoff returns base × 2^attempt.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	return base << attempt
}
