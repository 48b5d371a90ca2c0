// Package transport delivers raw channel frames to the dispatcher, in the
// order the server sent them.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by Run after Close
var ErrClosed = errors.New("source closed")

// Source is one inbound channel. Frames is closed when Run returns.
type Source interface {
	Frames() <-chan []byte
	Run(ctx context.Context) error
	Close() error
}

// forward hands a frame to the consumer without outliving ctx or the source
func forward(ctx context.Context, frames chan<- []byte, done <-chan struct{}, frame []byte) bool {
	select {
	case frames <- frame:
		return true
	case <-ctx.Done():
		return false
	case <-done:
		return false
	}
}
