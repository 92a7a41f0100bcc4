package jobs

import "context"

// Pool bounds concurrent transcodes with a buffered-channel semaphore.
type Pool struct {
	slots chan struct{}
}

// NewPool returns a pool admitting size concurrent holders (at least one).
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{slots: make(chan struct{}, size)}
}

// Acquire blocks until a slot is free or ctx is done. The returned release
// func must be called exactly once.
func (p *Pool) Acquire(ctx context.Context) (func(), error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case p.slots <- struct{}{}:
	}
	// A slot may be won in the same instant ctx is cancelled.
	if err := ctx.Err(); err != nil {
		<-p.slots
		return nil, err
	}
	return func() { <-p.slots }, nil
}

// InUse reports how many slots are held.
func (p *Pool) InUse() int { return len(p.slots) }

// Size reports the pool capacity.
func (p *Pool) Size() int { return cap(p.slots) }
