package helpers

import (
	"sync"
	"time"
)

// DefaultWait is the debounce and throttle window when none is given.
const DefaultWait = 300 * time.Millisecond

// Debounce returns a function that delays fn until wait has passed without
// another call; fn receives the arguments of the last call. cancel drops a
// pending call.
func Debounce[T any](fn func(T), wait time.Duration) (call func(T), cancel func()) {
	if wait <= 0 {
		wait = DefaultWait
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)

	call = func(arg T) {
		mu.Lock()
		defer mu.Unlock()

		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(wait, func() { fn(arg) })
	}

	cancel = func() {
		mu.Lock()
		defer mu.Unlock()

		if timer != nil {
			timer.Stop()
			timer = nil
		}
	}

	return call, cancel
}

// Throttle returns a function that runs fn at most once per limit; calls
// inside the window are dropped.
func Throttle[T any](fn func(T), limit time.Duration) func(T) {
	if limit <= 0 {
		limit = DefaultWait
	}

	var (
		mu       sync.Mutex
		blocking bool
	)

	return func(arg T) {
		mu.Lock()
		if blocking {
			mu.Unlock()
			return
		}
		blocking = true
		mu.Unlock()

		time.AfterFunc(limit, func() {
			mu.Lock()
			blocking = false
			mu.Unlock()
		})

		fn(arg)
	}
}
