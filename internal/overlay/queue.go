package overlay

import (
	"rxoverlay/internal/hotkey"
)

// actionQueue hands actions from the hook thread to the UI thread.
// Sends never block: the hook callback must return within the OS
// low-level hook timeout no matter what the UI thread is doing.
type actionQueue struct {
	ch chan hotkey.Action
}

func newActionQueue(capacity int) *actionQueue {
	return &actionQueue{ch: make(chan hotkey.Action, capacity)}
}

// enqueue offers a without blocking. It reports false when the queue
// is full.
func (q *actionQueue) enqueue(a hotkey.Action) bool {
	select {
	case q.ch <- a:
		return true
	default:
		return false
	}
}

// tryDequeue removes the oldest queued action without blocking.
func (q *actionQueue) tryDequeue() (hotkey.Action, bool) {
	select {
	case a := <-q.ch:
		return a, true
	default:
		return 0, false
	}
}

// depth returns the number of queued actions.
func (q *actionQueue) depth() int {
	return len(q.ch)
}
