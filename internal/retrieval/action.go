package retrieval

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Action runs a fetch with at most one execution in flight. Triggers that arrive while
// an execution is in flight coalesce into a single follow-up run that reads the input
// current when it starts.
type Action[In, Out any] struct {
	kind   Kind
	work   func(ctx context.Context, in In) (Out, error)
	ctx    context.Context
	logger *zap.Logger

	onSuccess func(in In, out Out)
	onError   func(in In, err error)
	onStatus  func(ActivityStatus)

	mu           sync.Mutex
	idle         *sync.Cond
	input        In
	hasInput     bool
	running      bool
	pending      bool
	pendingInput *In
}

// NewAction creates an idle action. Executions stop being started once ctx is done.
func NewAction[In, Out any](ctx context.Context, kind Kind, work func(context.Context, In) (Out, error), logger *zap.Logger) *Action[In, Out] {
	a := &Action[In, Out]{
		kind:   kind,
		work:   work,
		ctx:    ctx,
		logger: logger.With(zap.String("kind", kind.String())),
	}
	a.idle = sync.NewCond(&a.mu)
	return a
}

// OnSuccess sets the handler for successful results. Handlers must be set before the first trigger.
func (a *Action[In, Out]) OnSuccess(fn func(in In, out Out)) {
	a.onSuccess = fn
}

func (a *Action[In, Out]) OnError(fn func(in In, err error)) {
	a.onError = fn
}

func (a *Action[In, Out]) OnStatus(fn func(ActivityStatus)) {
	a.onStatus = fn
}

// SetInput replaces the input the next execution will read
func (a *Action[In, Out]) SetInput(in In) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.input = in
	a.hasInput = true
}

// Input returns the current input and whether one was set
func (a *Action[In, Out]) Input() (In, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.input, a.hasInput
}

// Trigger starts an execution with the current input, or schedules one follow-up run
// if an execution is in flight. It returns false if no input was set yet.
func (a *Action[In, Out]) Trigger() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.hasInput || a.ctx.Err() != nil {
		return false
	}
	if a.running {
		a.pending = true
		a.pendingInput = nil
		return true
	}
	a.start(a.input)
	return true
}

// retry runs in exactly as captured, even if the current input has moved on
func (a *Action[In, Out]) retry(in In) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ctx.Err() != nil {
		return
	}
	if a.running {
		a.pending = true
		a.pendingInput = &in
		return
	}
	a.start(in)
}

func (a *Action[In, Out]) IsExecuting() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Wait blocks until no execution is in flight or pending
func (a *Action[In, Out]) Wait() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for a.running {
		a.idle.Wait()
	}
}

// start must be called with mu held
func (a *Action[In, Out]) start(in In) {
	a.running = true
	go a.loop(in)
}

func (a *Action[In, Out]) loop(in In) {
	for {
		a.execute(in)

		a.mu.Lock()
		if !a.pending || a.ctx.Err() != nil {
			a.running = false
			a.pending = false
			a.pendingInput = nil
			a.idle.Broadcast()
			a.mu.Unlock()
			return
		}
		if a.pendingInput != nil {
			in = *a.pendingInput
		} else {
			in = a.input
		}
		a.pending = false
		a.pendingInput = nil
		a.mu.Unlock()
	}
}

func (a *Action[In, Out]) execute(in In) {
	invocationID := uuid.New().String()
	a.emit(ActivityStatus{Kind: a.kind, State: Executing})

	startTime := time.Now()
	out, err := a.work(a.ctx, in)
	duration := time.Since(startTime)

	if err != nil {
		a.logger.Warn("Retrieval failed",
			zap.String("invocation_id", invocationID),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		if a.onError != nil {
			a.onError(in, err)
		}
		a.emit(ActivityStatus{
			Kind:  a.kind,
			State: Failed,
			Err:   err,
			retry: func() { a.retry(in) },
		})
		return
	}

	a.logger.Debug("Retrieval succeeded",
		zap.String("invocation_id", invocationID),
		zap.Duration("duration", duration),
	)
	if a.onSuccess != nil {
		a.onSuccess(in, out)
	}
	a.emit(ActivityStatus{Kind: a.kind, State: Succeeded})
}

func (a *Action[In, Out]) emit(status ActivityStatus) {
	if a.onStatus != nil {
		a.onStatus(status)
	}
}
