/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package outofband

import (
	"context"
	"errors"
	"sync"
	"time"
)

// errReuseTimeout never leaves the package, a reuse that fails falls back to a new connection.
var errReuseTimeout = errors.New("handshake reuse was not accepted in time")

// reuseWaiter is released once by the reuse-accepted message of its thread. The reuse succeeds
// only when that message arrives for the same record over the same connection.
type reuseWaiter struct {
	oobID  string
	connID string
	result chan bool
	once   sync.Once
}

func (w *reuseWaiter) resolve(ok bool) {
	w.once.Do(func() {
		w.result <- ok
		close(w.result)
	})
}

// reuseWaiters correlates handshake-reuse-accepted messages with the calls waiting for them.
type reuseWaiters struct {
	mu      sync.Mutex
	waiters map[string]*reuseWaiter
	done    chan struct{}
	closed  bool
}

func newReuseWaiters() *reuseWaiters {
	return &reuseWaiters{
		waiters: map[string]*reuseWaiter{},
		done:    make(chan struct{}),
	}
}

func (r *reuseWaiters) add(threadID, oobID, connID string) *reuseWaiter {
	w := &reuseWaiter{oobID: oobID, connID: connID, result: make(chan bool, 1)}

	r.mu.Lock()
	r.waiters[threadID] = w
	r.mu.Unlock()

	return w
}

func (r *reuseWaiters) remove(threadID string) {
	r.mu.Lock()
	delete(r.waiters, threadID)
	r.mu.Unlock()
}

// get returns the waiter of the thread, nil when nobody waits on it.
func (r *reuseWaiters) get(threadID string) *reuseWaiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.waiters[threadID]
}

// wait blocks until the waiter is resolved. Timeout, cancellation and shutdown all end in errReuseTimeout.
func (r *reuseWaiters) wait(ctx context.Context, threadID string, w *reuseWaiter, timeout time.Duration) error {
	defer r.remove(threadID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ok := <-w.result:
		if !ok {
			return errReuseTimeout
		}

		return nil
	case <-timer.C:
	case <-ctx.Done():
	case <-r.done:
	}

	return errReuseTimeout
}

func (r *reuseWaiters) close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.closed {
		r.closed = true
		close(r.done)
	}
}
