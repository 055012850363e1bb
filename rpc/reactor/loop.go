package reactor

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/csIPC/lib/util"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("ipc/reactor")

// Loop is a single-threaded event loop. See the package documentation.
type Loop struct {
	name  string
	tasks *util.LockFreeMPSC[func()]

	threadID atomic.Int64 // 0 while the loop is not running
	started  atomic.Bool
	running  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewLoop creates a loop. Callbacks may be queued before it runs.
func NewLoop(name string) *Loop {
	return &Loop{
		name:    name,
		tasks:   util.NewLockFreeMPSC[func()](),
		running: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Name returns the name the loop was created with
func (l *Loop) Name() string {
	return l.name
}

func (l *Loop) String() string {
	return fmt.Sprintf("loop(%s)", l.name)
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Run executes queued callbacks on the calling goroutine until Stop is called
// and the queue is drained. The goroutine is locked to its OS thread while
// Run is active. Run panics if the loop already ran.
func (l *Loop) Run() {
	if !l.started.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("reactor: %s started twice", l))
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	l.threadID.Store(currentThreadID())
	close(l.running)
	log.Debugf("%s running on thread %d", l, l.threadID.Load())

	defer func() {
		l.threadID.Store(0)
		close(l.done)
		log.Debugf("%s exited", l)
	}()

	for task := range l.tasks.Recv() {
		task()
	}
}

// Start runs the loop on a new goroutine and returns once it is running
func (l *Loop) Start() {
	go l.Run()
	<-l.running
}

// Stop rejects new callbacks and lets the loop exit after the already queued
// ones ran. Called from outside the loop it waits for the exit. Stop is
// idempotent.
func (l *Loop) Stop() {
	l.stopOnce.Do(l.tasks.Close)
	if l.IsInLoopThread() || !l.started.Load() {
		return
	}
	<-l.done
}

// Done is closed once Run returned
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Pending returns the number of queued callbacks that have not run yet
func (l *Loop) Pending() int {
	return l.tasks.Len()
}

// --------------------------------------------------------------------------
// Marshaling
// --------------------------------------------------------------------------

// RunInLoop runs fn immediately if the caller is on the loop thread, otherwise
// it queues fn like QueueInLoop.
func (l *Loop) RunInLoop(fn func()) {
	if l.IsInLoopThread() {
		fn()
		return
	}
	l.QueueInLoop(fn)
}

// QueueInLoop queues fn to run on the loop thread. It returns false if the
// loop was stopped and fn will never run.
func (l *Loop) QueueInLoop(fn func()) bool {
	if !l.tasks.Push(fn) {
		log.Warningf("%s is stopped, dropping callback", l)
		return false
	}
	return true
}

// --------------------------------------------------------------------------
// Thread ownership
// --------------------------------------------------------------------------

// IsInLoopThread reports whether the caller runs on the loop's OS thread
func (l *Loop) IsInLoopThread() bool {
	id := l.threadID.Load()
	return id != 0 && id == currentThreadID()
}

// AssertInLoopThread panics if the caller is not on the loop's OS thread
func (l *Loop) AssertInLoopThread() {
	if !l.IsInLoopThread() {
		panic(fmt.Sprintf("reactor: %s accessed from thread %d, owned by thread %d",
			l, currentThreadID(), l.threadID.Load()))
	}
}
