package sh8601

import (
	"sync/atomic"
	"time"
)

// FlushState reports whether a pixel transfer is outstanding.
type FlushState uint32

const (
	FlushIdle FlushState = iota
	FlushPending
)

func (s FlushState) String() string {
	if s == FlushPending {
		return "Pending"
	}
	return "Idle"
}

// flushSync hands the completion of an asynchronous pixel transfer to the
// goroutine waiting for it.
//
// done holds at most one result. complete is called by the panel IO, begin
// and wait only by the rendering goroutine.
type flushSync struct {
	done    chan error
	state   atomic.Uint32
	timeout time.Duration
}

func newFlushSync(timeout time.Duration) *flushSync {
	return &flushSync{done: make(chan error, 1), timeout: timeout}
}

// complete signals the end of a transfer with its result. It never blocks; a
// second signal before the first is consumed is dropped.
func (f *flushSync) complete(err error) {
	select {
	case f.done <- err:
	default:
	}
}

func (f *flushSync) begin() bool {
	return f.state.CompareAndSwap(uint32(FlushIdle), uint32(FlushPending))
}

// abort returns to Idle after a submission that never reached the bus.
func (f *flushSync) abort() {
	f.state.Store(uint32(FlushIdle))
}

func (f *flushSync) current() FlushState {
	return FlushState(f.state.Load())
}

// wait consumes the completion of the outstanding transfer and returns its
// result. With nothing outstanding it returns immediately. On timeout the
// transfer stays pending.
func (f *flushSync) wait() error {
	if f.current() == FlushIdle {
		return nil
	}
	var err error
	if f.timeout <= 0 {
		err = <-f.done
	} else {
		t := time.NewTimer(f.timeout)
		defer t.Stop()
		select {
		case err = <-f.done:
		case <-t.C:
			return ErrTransferTimeout
		}
	}
	f.state.Store(uint32(FlushIdle))
	return err
}
