package pending

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Router delivers requests to mounted workflow handlers and parks the rest in
// a Queue until the handler mounts.
type Router struct {
	queue *Queue

	mu       sync.Mutex
	handlers map[Key]Handler
}

// NewRouter creates a router with nothing mounted
func NewRouter() *Router {
	return &Router{
		queue:    NewQueue(),
		handlers: make(map[Key]Handler),
	}
}

// Deliver sends req to the handler for key, or queues it if none is mounted
func (r *Router) Deliver(key Key, req Request) {
	r.mu.Lock()
	handler, mounted := r.handlers[key]
	r.mu.Unlock()

	if !mounted {
		r.queue.Enqueue(key, req)
		log.Debug().
			Str("workflow", string(key)).
			Str("request", string(req.Type)).
			Msg("workflow not mounted, request queued")
		return
	}
	handler(req)
}

// Mount registers the handler for key and drains anything that arrived earlier.
// Mounting replaces a previous handler.
func (r *Router) Mount(key Key, handler Handler) {
	r.mu.Lock()
	r.handlers[key] = handler
	r.mu.Unlock()

	r.queue.DrainInto(key, handler)
}

// Unmount detaches the handler. Later requests start a fresh queue.
func (r *Router) Unmount(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, key)
}

// Mounted reports whether a handler is registered for key
func (r *Router) Mounted(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handlers[key]
	return ok
}

// Pending returns how many requests are waiting for key
func (r *Router) Pending(key Key) int {
	return r.queue.Len(key)
}
