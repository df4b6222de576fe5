package parallel

import "sync"

// MailBox is an unbounded FIFO of messages posted by one rank for another.
// Posting never blocks; receiving blocks until a message arrives or the
// owning world is aborted.
type MailBox[T any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []T
	aborted bool
}

func NewMailBox[T any]() *MailBox[T] {
	mb := &MailBox[T]{}
	mb.cond = sync.NewCond(&mb.mu)
	return mb
}

func (mb *MailBox[T]) PostMessage(msg T) {
	mb.mu.Lock()
	mb.queue = append(mb.queue, msg)
	mb.mu.Unlock()
	mb.cond.Signal()
}

// ReceiveMessage returns false if the mailbox was aborted while empty
func (mb *MailBox[T]) ReceiveMessage() (msg T, ok bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for len(mb.queue) == 0 && !mb.aborted {
		mb.cond.Wait()
	}
	if len(mb.queue) == 0 {
		return
	}
	msg, ok = mb.queue[0], true
	var zero T
	mb.queue[0] = zero
	mb.queue = mb.queue[1:]
	return
}

func (mb *MailBox[T]) Pending() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return len(mb.queue)
}

func (mb *MailBox[T]) abort() {
	mb.mu.Lock()
	mb.aborted = true
	mb.mu.Unlock()
	mb.cond.Broadcast()
}
