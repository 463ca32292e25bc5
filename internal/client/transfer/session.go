package transfer

import (
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

type Kind int

const (
	KindBuffered Kind = iota + 1
	KindStreamed
	KindChunked
)

func (k Kind) String() string {
	switch k {
	case KindBuffered:
		return "BUFFERED"
	case KindStreamed:
		return "STREAMED"
	case KindChunked:
		return "CHUNKED"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

type Status int

const (
	StatusInitialized Status = iota
	StatusInProgress
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusInitialized:
		return "INITIALIZED"
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusCompleted:
		return "COMPLETED"
	case StatusFailed:
		return "FAILED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Progress is the poll and callback view of a session.
type Progress struct {
	SessionID   string
	Kind        Kind
	Status      Status
	Transferred int64
	Total       int64
	NextIndex   int
}

// Percent returns the completed share in [0, 100]. An empty transfer is
// complete once it reaches a terminal state.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		if p.Status == StatusCompleted {
			return 100
		}
		return 0
	}
	v := float64(p.Transferred) * 100 / float64(p.Total)
	if v > 100 {
		v = 100
	}
	return v
}

// session is guarded by its own mutex; appends to one session are
// serialized while different sessions proceed independently.
type session struct {
	mu sync.Mutex

	id           string
	kind         Kind
	originalName string
	contentType  string
	total        int64
	transferred  int64
	status       Status
	tempPath     string
	nextIndex    int
	chunks       int
	digest       *xxhash.Digest
	updatedAt    time.Time
	finishedAt   time.Time
}

func (s *session) progress() Progress {
	return Progress{
		SessionID:   s.id,
		Kind:        s.kind,
		Status:      s.status,
		Transferred: s.transferred,
		Total:       s.total,
		NextIndex:   s.nextIndex,
	}
}

func (s *session) finish(st Status, now time.Time) {
	s.status = st
	s.updatedAt = now
	s.finishedAt = now
}

// registry indexes live and recently finished sessions. Only the manager
// mutates it.
type registry struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func newRegistry() *registry {
	return &registry{sessions: map[string]*session{}}
}

func (r *registry) put(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.id] = s
}

func (r *registry) get(id string) (*session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *registry) drop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *registry) all() []*session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
