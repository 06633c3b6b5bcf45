package engine

import (
	"context"
	"sync"
)

// Unit handles synchronization management, startup, and shutdown for engines.
type Unit struct {
	admitLock sync.Mutex // used for conditionally admitting work
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewUnit returns a new unit.
func NewUnit() *Unit {
	ctx, cancel := context.WithCancel(context.Background())
	return &Unit{
		ctx:    ctx,
		cancel: cancel,
	}
}

// admit returns true if the unit is not shutting down and the work was
// admitted to the wait group.
func (u *Unit) admit() bool {
	u.admitLock.Lock()
	defer u.admitLock.Unlock()
	select {
	case <-u.ctx.Done():
		return false
	default:
	}
	u.wg.Add(1)
	return true
}

// Do synchronously executes the input function f unless the unit has shut
// down.
func (u *Unit) Do(f func() error) error {
	if !u.admit() {
		return nil
	}
	defer u.wg.Done()
	return f()
}

// Launch asynchronously executes the input function unless the unit has shut
// down.
func (u *Unit) Launch(f func()) {
	if !u.admit() {
		return
	}
	go func() {
		defer u.wg.Done()
		f()
	}()
}

// Ready returns a channel that is closed when the unit is ready. The unit is
// ready when all startup functions have completed.
func (u *Unit) Ready(checks ...func()) <-chan struct{} {
	ready := make(chan struct{})
	go func() {
		for _, check := range checks {
			check()
		}
		close(ready)
	}()
	return ready
}

// Ctx returns a context that is cancelled when the unit shuts down.
func (u *Unit) Ctx() context.Context {
	return u.ctx
}

// Quit returns a channel that is closed when the unit begins shutdown.
func (u *Unit) Quit() <-chan struct{} {
	return u.ctx.Done()
}

// Done returns a channel that is closed when the unit is done. The unit is
// done when (i) shutdown was commenced, (ii) all pending work completed, and
// (iii) all actions have completed.
func (u *Unit) Done(actions ...func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		u.admitLock.Lock()
		u.cancel()
		u.admitLock.Unlock()
		u.wg.Wait()
		for _, action := range actions {
			action()
		}
		close(done)
	}()
	return done
}
