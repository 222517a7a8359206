package reconcile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"salescast/internal/logging"
	"salescast/internal/metrics"
	"salescast/internal/model"
	"salescast/internal/schedule"
)

// Controller drives retrain submissions and reconciles ActiveParameters with
// the server once a job lands. At most one run is active; a new submission
// supersedes the previous one.
type Controller struct {
	reader    ConfigReader
	submitter RetrainSubmitter
	sink      Sink
	opts      Options
	now       func() time.Time

	mu     sync.Mutex
	gen    uint64
	phase  Phase
	run    *Run
	cancel context.CancelFunc
	active *model.HyperparameterSet
	closed bool
	wg     sync.WaitGroup
}

func New(reader ConfigReader, submitter RetrainSubmitter, sink Sink, opts Options) *Controller {
	if sink == nil {
		sink = Sinks(nil)
	}
	return &Controller{
		reader:    reader,
		submitter: submitter,
		sink:      sink,
		opts:      opts.normalized(),
		now:       time.Now,
		phase:     PhaseIdle,
	}
}

// Load seeds ActiveParameters from the server. It is the startup read.
func (c *Controller) Load(ctx context.Context) (model.HyperparameterSet, error) {
	h, err := c.reader.ReadConfig(ctx)
	if err != nil {
		logging.Warn("config_load_error", map[string]any{"error": err.Error()})
		return h, err
	}
	c.mu.Lock()
	c.setActiveLocked(h)
	c.mu.Unlock()
	logging.Info("config_loaded", map[string]any{"active": h.String()})
	return h, nil
}

// Active returns the last known-good server hyperparameters.
func (c *Controller) Active() (model.HyperparameterSet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return model.HyperparameterSet{}, false
	}
	return *c.active, true
}

// Phase returns the current machine phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// State returns a copy of the current run's poll state, if any.
func (c *Controller) State() (PollState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		return PollState{}, false
	}
	return copyState(c.run.state), true
}

// Retrain submits target and, once the server acknowledges it, starts the
// poll loop in the background. It returns after the acknowledgment; the
// returned Run reports the outcome. Any run still in flight is superseded.
func (c *Controller) Retrain(ctx context.Context, target model.HyperparameterSet) (*Run, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.supersedeLocked(ErrSuperseded)
	gen := c.gen
	// the poll loop outlives the caller; the submission does not
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	submitCtx, stopSubmit := context.WithCancel(ctx)
	stopAfter := context.AfterFunc(runCtx, stopSubmit)
	run := newRun(uuid.NewString(), gen, target)
	run.state = PollState{RunID: run.ID, Generation: gen, Target: target, Status: RunRunning}
	c.run = run
	c.phase = PhaseSubmitting
	c.publishLocked(run, PhaseSubmitting, "Starting training job...", nil)
	c.mu.Unlock()

	metrics.RetrainSubmissions.Inc()
	ack, err := c.submitter.SubmitRetrain(submitCtx, target)
	stopAfter()
	stopSubmit()
	if err != nil {
		c.apply(gen, func() bool {
			c.phase = PhaseSubmissionFailed
			run.phase = PhaseSubmissionFailed
			run.err = err
			c.publishLocked(run, PhaseSubmissionFailed, "Error: "+err.Error(), err)
			metrics.IncOutcome(string(PhaseSubmissionFailed))
			logging.Error("retrain_submit_error", map[string]any{"run_id": run.ID, "error": err.Error()})
			return false
		})
		run.close()
		return run, err
	}

	started := c.apply(gen, func() bool {
		now := c.now()
		run.state.StartedAt = now
		run.state.Deadline = c.window().Deadline(now)
		c.phase = PhasePolling
		run.phase = PhasePolling
		msg := strings.TrimSpace(ack.Message)
		if msg == "" {
			msg = "Retrain accepted."
		}
		c.publishLocked(run, PhasePolling, msg+" Waiting for update...", nil)
		logging.Info("retrain_submitted", map[string]any{
			"run_id": run.ID, "target": target.String(), "ack_status": ack.Status,
			"deadline": run.state.Deadline,
		})
		c.wg.Add(1)
		return true
	})
	if !started {
		run.close()
		_, err := run.Result()
		return run, err
	}
	go c.poll(runCtx, run)
	return run, nil
}

// Close stops any active run and rejects further submissions. It waits for
// the poll goroutine to exit.
func (c *Controller) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		c.supersedeLocked(ErrClosed)
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Controller) poll(ctx context.Context, run *Run) {
	ticker := time.NewTicker(c.opts.Interval)
	defer func() {
		ticker.Stop()
		run.close()
		c.wg.Done()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		readCtx, cancelRead := context.WithTimeout(ctx, c.opts.ReadTimeout)
		observed, err := c.reader.ReadConfig(readCtx)
		cancelRead()
		if ctx.Err() != nil {
			return
		}
		matched, more := c.tick(run, observed, err)
		if matched && c.opts.Reconfirm {
			c.reconfirm(ctx, run)
		}
		if !more {
			return
		}
	}
}

// tick applies one sample to run. It reports whether the sample matched and
// whether the loop should keep sampling.
func (c *Controller) tick(run *Run, observed model.HyperparameterSet, readErr error) (matched, more bool) {
	more = c.apply(run.Generation, func() bool {
		st := &run.state
		st.Ticks++
		metrics.PollTicks.Inc()

		if readErr != nil {
			st.ReadFailures++
			metrics.PollReadErrors.Inc()
			logging.Warn("poll_read_error", map[string]any{
				"run_id": run.ID, "tick": st.Ticks, "failures": st.ReadFailures, "error": readErr.Error(),
			})
			if st.ReadFailures >= c.opts.MaxReadFailures || c.pastDeadlineLocked(st) {
				c.timeOutLocked(run, fmt.Errorf("%w: last read failed: %w", ErrTimedOut, readErr))
				return false
			}
			return true
		}

		obs := observed
		st.LastObserved = &obs
		logging.Debug("poll_tick", map[string]any{"run_id": run.ID, "tick": st.Ticks, "observed": obs.String()})

		if model.MatchesWithin(observed, st.Target, c.opts.Tolerance) {
			st.Status = RunMatched
			c.phase = PhaseMatched
			run.phase = PhaseMatched
			c.setActiveLocked(observed)
			c.publishLocked(run, PhaseMatched, "Model successfully updated!", nil)
			metrics.IncOutcome(string(PhaseMatched))
			metrics.ObserveReconcileDuration(st.StartedAt)
			logging.Info("poll_matched", map[string]any{"run_id": run.ID, "attempts": st.AttemptsMade, "active": obs.String()})
			matched = true
			return false
		}

		if st.AttemptsMade+1 >= c.opts.MaxAttempts {
			st.AttemptsMade++
			c.timeOutLocked(run, ErrTimedOut)
			return false
		}
		st.AttemptsMade++
		c.publishLocked(run, PhasePolling, fmt.Sprintf("Waiting for update... (attempt %d/%d)", st.AttemptsMade, c.opts.MaxAttempts), nil)
		return true
	})
	return matched, more
}

// reconfirm re-reads the server after a match. It is best effort: the match
// already came from a read.
func (c *Controller) reconfirm(ctx context.Context, run *Run) {
	readCtx, cancel := context.WithTimeout(ctx, c.opts.ReadTimeout)
	defer cancel()
	h, err := c.reader.ReadConfig(readCtx)
	if err != nil {
		logging.Warn("reconfirm_error", map[string]any{"run_id": run.ID, "error": err.Error()})
		return
	}
	c.apply(run.Generation, func() bool {
		changed := c.active == nil || *c.active != h
		c.setActiveLocked(h)
		if changed {
			obs := h
			run.state.LastObserved = &obs
			c.publishLocked(run, PhaseMatched, "Active parameters refreshed from server.", nil)
		}
		logging.Debug("reconfirm_ok", map[string]any{"run_id": run.ID, "active": h.String(), "changed": changed})
		return false
	})
}

// apply is the single entry point for mutations that resume after a
// suspension point. fn runs under the lock only if gen is still current;
// apply returns false for a stale generation, otherwise whatever fn returns.
func (c *Controller) apply(gen uint64, fn func() bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		logging.Debug("stale_generation_dropped", map[string]any{"generation": gen, "current": c.gen})
		return false
	}
	return fn()
}

func (c *Controller) window() schedule.Window {
	return schedule.Window{Interval: c.opts.Interval, MaxAttempts: c.opts.MaxAttempts}
}

// pastDeadlineLocked reports whether the run has outlived its window by more
// than one read timeout. Failed reads do not consume attempts, so without
// this a flaky server could stretch a run to twice its window.
func (c *Controller) pastDeadlineLocked(st *PollState) bool {
	return !st.Deadline.IsZero() && c.now().After(st.Deadline.Add(c.opts.ReadTimeout))
}

func (c *Controller) timeOutLocked(run *Run, err error) {
	st := &run.state
	st.Status = RunTimedOut
	c.phase = PhaseTimedOut
	run.phase = PhaseTimedOut
	run.err = err
	c.publishLocked(run, PhaseTimedOut, "Update taking too long. Refresh to check.", err)
	metrics.IncOutcome(string(PhaseTimedOut))
	metrics.ObserveReconcileDuration(st.StartedAt)
	logging.Warn("poll_timed_out", map[string]any{
		"run_id": run.ID, "attempts": st.AttemptsMade, "failures": st.ReadFailures, "error": err.Error(),
	})
}

// supersedeLocked invalidates the current run: its context is cancelled and
// the generation moves on so late responses are dropped.
func (c *Controller) supersedeLocked(reason error) {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.run != nil && !c.run.phase.Terminal() {
		c.run.err = reason
		logging.Info("run_superseded", map[string]any{"run_id": c.run.ID, "phase": string(c.run.phase), "reason": reason.Error()})
	}
	c.gen++
}

func (c *Controller) setActiveLocked(h model.HyperparameterSet) {
	v := h
	c.active = &v
}

func (c *Controller) publishLocked(run *Run, phase Phase, msg string, err error) {
	st := copyState(run.state)
	s := Status{
		RunID:      run.ID,
		Generation: run.Generation,
		Phase:      phase,
		Message:    msg,
		Loading:    !phase.Terminal(),
		Attempt:    st.AttemptsMade,
		Target:     st.Target,
		Observed:   st.LastObserved,
		Deadline:   st.Deadline,
		Err:        err,
		At:         c.now(),
	}
	if !st.StartedAt.IsZero() {
		s.Remaining = c.window().Remaining(st.StartedAt, s.At)
	}
	if c.active != nil {
		a := *c.active
		s.Active = &a
	}
	c.sink.Publish(s)
}

func copyState(st PollState) PollState {
	if st.LastObserved != nil {
		obs := *st.LastObserved
		st.LastObserved = &obs
	}
	return st
}
