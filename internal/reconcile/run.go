package reconcile

import (
	"context"
	"sync"

	"salescast/internal/model"
)

// Run is the handle of one retrain submission and its poll loop.
type Run struct {
	ID         string
	Generation uint64
	Target     model.HyperparameterSet

	done      chan struct{}
	closeOnce sync.Once

	// written under the controller lock, read after done is closed
	phase Phase
	err   error
	state PollState
}

func newRun(id string, gen uint64, target model.HyperparameterSet) *Run {
	return &Run{ID: id, Generation: gen, Target: target, done: make(chan struct{}), phase: PhaseSubmitting}
}

func (r *Run) close() { r.closeOnce.Do(func() { close(r.done) }) }

// Done is closed once the run stops acting on controller state.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run ends or ctx is done.
func (r *Run) Wait(ctx context.Context) (Phase, error) {
	select {
	case <-r.done:
		return r.phase, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Result returns the last phase the run reached and why it ended, or an
// empty phase while the run is still active.
func (r *Run) Result() (Phase, error) {
	select {
	case <-r.done:
		return r.phase, r.err
	default:
		return "", nil
	}
}

// State blocks until the run ends and returns its frozen poll state.
func (r *Run) State() PollState {
	<-r.done
	return r.state
}
