package dapp

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/spsmatrix/dapp/utils"
)

var errLoopClosed = fmt.Errorf("controller closed")

type flowTask struct {
	id   string
	name string
	fn   func(ctx context.Context) error
	done chan struct{}
	err  error
}

// Flow is a dispatched task whose outcome can be awaited.
type Flow struct {
	task *flowTask
}

// Wait blocks until the flow completed or ctx is done. The flow itself keeps
// running when ctx ends first.
func (f *Flow) Wait(ctx context.Context) error {
	select {
	case <-f.task.done:
		return f.task.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ID identifies the flow in logs and api responses.
func (f *Flow) ID() string {
	return f.task.id
}

// Done is closed once the flow completed.
func (f *Flow) Done() <-chan struct{} {
	return f.task.done
}

// flowLoop runs all flows one after another on a single goroutine.
type flowLoop struct {
	logger logrus.FieldLogger
	queue  chan *flowTask
	ctx    context.Context
	cancel context.CancelFunc
	exited chan struct{}
}

func newFlowLoop(logger logrus.FieldLogger, capacity int) *flowLoop {
	loop := &flowLoop{
		logger: logger,
		queue:  make(chan *flowTask, capacity),
		exited: make(chan struct{}),
	}
	loop.ctx, loop.cancel = context.WithCancel(context.Background())
	go loop.run()
	return loop
}

func (l *flowLoop) run() {
	defer close(l.exited)

	for {
		select {
		case <-l.ctx.Done():
			l.drain()
			return
		case task := <-l.queue:
			l.execute(task)
		}
	}
}

func (l *flowLoop) execute(task *flowTask) {
	defer close(task.done)
	defer func() {
		if err := recover(); err != nil {
			l.logger.WithFields(logrus.Fields{"flow": task.name, "id": task.id}).Errorf("uncaught panic in flow: %v", err)
			task.err = fmt.Errorf("flow %v panicked: %v", task.name, err)
		}
	}()

	l.logger.WithFields(logrus.Fields{"flow": task.name, "id": task.id}).Trace("flow started")
	task.err = task.fn(l.ctx)
}

func (l *flowLoop) drain() {
	for {
		select {
		case task := <-l.queue:
			task.err = errLoopClosed
			close(task.done)
		default:
			return
		}
	}
}

// post queues fn. It only blocks while the queue is full.
func (l *flowLoop) post(name string, fn func(ctx context.Context) error) *Flow {
	task := &flowTask{
		id:   uuid.NewString(),
		name: name,
		fn:   fn,
		done: make(chan struct{}),
	}

	select {
	case l.queue <- task:
	case <-l.ctx.Done():
		task.err = errLoopClosed
		close(task.done)
	}

	return &Flow{task: task}
}

// runSync posts fn and waits for it.
func (l *flowLoop) runSync(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return l.post(name, fn).Wait(ctx)
}

func (l *flowLoop) close() {
	l.cancel()
	<-l.exited
}

// spawn runs fn on its own goroutine until the loop closes.
func (l *flowLoop) spawn(name string, fn func(ctx context.Context)) {
	go func() {
		defer utils.HandleSubroutinePanic(name)
		fn(l.ctx)
	}()
}
