package ioruntime

// Executor drains its run queue to completion, then blocks in poll(2) for
// the next batch of readiness events, forever. There is exactly one
// Executor per OS thread; it never hands work to another goroutine.
type Executor struct {
	acceptor *Acceptor
	runq     *IntrusiveQueue
}

// NewExecutor returns an Executor that polls acceptor for readiness once its
// run queue drains.
func NewExecutor(acceptor *Acceptor) *Executor {
	return &Executor{
		acceptor: acceptor,
		runq:     NewIntrusiveQueue(),
	}
}

// Schedule enqueues t to run on this Executor's next drain pass.
func (e *Executor) Schedule(t Task) {
	e.runq.Push(t)
}

// Run drains the queue, polls for readiness, and repeats until poll returns
// an error (e.g. the acceptor was closed).
func (e *Executor) Run() error {
	for {
		for {
			t := e.runq.Pop()
			if t == nil {
				break
			}
			t.Run()
		}

		if err := e.acceptor.PollAll(e); err != nil {
			return err
		}
	}
}
