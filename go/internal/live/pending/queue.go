package pending

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Key identifies the workflow a request is meant for
type Key string

// RequestType is the intent carried by a pending request
type RequestType string

const (
	RequestOpen  RequestType = "open"
	RequestClose RequestType = "close"
)

// Request is a server-initiated UI intent that may arrive before its target
// is mounted
type Request struct {
	Type    RequestType
	Payload any
}

// Handler consumes requests for one workflow
type Handler func(Request)

// Queue buffers requests per workflow key in arrival order. Keys never block
// each other.
type Queue struct {
	mu      sync.Mutex
	pending map[Key][]Request
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{
		pending: make(map[Key][]Request),
	}
}

// Enqueue appends a request to the key's queue
func (q *Queue) Enqueue(key Key, req Request) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[key] = append(q.pending[key], req)
}

// Len returns the number of requests waiting for key
func (q *Queue) Len(key Key) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[key])
}

// DrainInto hands every queued request for key to handler in arrival order and
// leaves the key empty. It returns how many requests were delivered.
func (q *Queue) DrainInto(key Key, handler Handler) int {
	q.mu.Lock()
	reqs := q.pending[key]
	delete(q.pending, key)
	q.mu.Unlock()

	for _, req := range reqs {
		handler(req)
	}

	if len(reqs) > 0 {
		log.Debug().
			Str("workflow", string(key)).
			Int("requests", len(reqs)).
			Msg("drained pending requests")
	}
	return len(reqs)
}
