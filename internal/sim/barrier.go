package sim

import (
	"errors"
	"sync"
)

var errDivergence = errors.New("sim: workgroupBarrier reached in non-uniform control flow")

// barrier is a reusable workgroup barrier. Every live invocation of the
// workgroup must call wait before any returns from it. An invocation that
// finishes while others wait, or waiting after one finished, is a
// divergence error.
type barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	size    int
	waiting int
	exited  bool
	gen     uint64
	err     error
}

func newBarrier(size int) *barrier {
	b := &barrier{size: size}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *barrier) wait() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err == nil && b.exited {
		b.err = errDivergence
		b.cond.Broadcast()
	}
	if b.err != nil {
		return b.err
	}
	b.waiting++
	if b.waiting == b.size {
		b.waiting = 0
		b.gen++
		b.cond.Broadcast()
		return nil
	}
	gen := b.gen
	for gen == b.gen && b.err == nil {
		b.cond.Wait()
	}
	return b.err
}

// exit records that an invocation finished.
func (b *barrier) exit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.exited = true
	if b.waiting > 0 && b.err == nil {
		b.err = errDivergence
		b.cond.Broadcast()
	}
}

// abort releases every waiter with err.
func (b *barrier) abort(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err == nil {
		b.err = err
	}
	b.cond.Broadcast()
}
