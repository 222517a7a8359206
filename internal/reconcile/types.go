package reconcile

import (
	"context"
	"errors"
	"time"

	"salescast/internal/config"
	"salescast/internal/model"
)

var (
	// ErrTimedOut means no sample matched the target within the window.
	// The remote job may still be running.
	ErrTimedOut = errors.New("update not observed within the poll window")
	// ErrSuperseded ends a run replaced by a newer retrain request.
	ErrSuperseded = errors.New("superseded by a newer retrain request")
	// ErrClosed is returned once the controller has been torn down.
	ErrClosed = errors.New("controller closed")
)

// Phase is a state of the retrain state machine.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseSubmitting       Phase = "submitting"
	PhasePolling          Phase = "polling"
	PhaseMatched          Phase = "matched"
	PhaseTimedOut         Phase = "timed_out"
	PhaseSubmissionFailed Phase = "submission_failed"
)

// Terminal reports whether the machine never leaves p on its own.
func (p Phase) Terminal() bool {
	return p == PhaseMatched || p == PhaseTimedOut || p == PhaseSubmissionFailed
}

// RunStatus is the outcome of one reconciliation attempt.
type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunMatched  RunStatus = "matched"
	RunTimedOut RunStatus = "timed_out"
)

// ConfigReader samples the server's current hyperparameters.
type ConfigReader interface {
	ReadConfig(ctx context.Context) (model.HyperparameterSet, error)
}

// RetrainSubmitter starts a background retrain on the server.
type RetrainSubmitter interface {
	SubmitRetrain(ctx context.Context, target model.HyperparameterSet) (model.Acknowledgment, error)
}

// PollState is the mutable state of one reconciliation attempt.
type PollState struct {
	RunID        string
	Generation   uint64
	Target       model.HyperparameterSet
	AttemptsMade int
	ReadFailures int
	Ticks        int
	Status       RunStatus
	LastObserved *model.HyperparameterSet
	StartedAt    time.Time
	Deadline     time.Time
}

// Status is one transition as seen by the operator.
type Status struct {
	RunID      string
	Generation uint64
	Phase      Phase
	Message    string
	Loading    bool
	Attempt    int
	Target     model.HyperparameterSet
	Observed   *model.HyperparameterSet
	// Active is the ActiveParameters snapshot at the time of the transition.
	Active   *model.HyperparameterSet
	Deadline time.Time
	// Remaining is the time left in the poll window, zero before polling.
	Remaining time.Duration
	Err       error
	At        time.Time
}

// Sink consumes status transitions. Publish is called with the controller
// lock held and must not call back into the Controller.
type Sink interface {
	Publish(Status)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Status)

func (f SinkFunc) Publish(s Status) { f(s) }

// Sinks fans a transition out to every sink in order.
type Sinks []Sink

func (m Sinks) Publish(s Status) {
	for _, sink := range m {
		if sink != nil {
			sink.Publish(s)
		}
	}
}

// Options tunes the poll cadence.
type Options struct {
	Interval    time.Duration
	MaxAttempts int
	// MaxReadFailures bounds failed samples; zero means MaxAttempts.
	MaxReadFailures int
	Tolerance       float64
	// ReadTimeout bounds each sample; zero means Interval.
	ReadTimeout time.Duration
	// Reconfirm issues one more read after a match.
	Reconfirm bool
}

// DefaultOptions samples every 2s for at most 15 attempts.
func DefaultOptions() Options {
	return Options{
		Interval:        2 * time.Second,
		MaxAttempts:     15,
		MaxReadFailures: 15,
		Tolerance:       model.LearningRateTolerance,
		Reconfirm:       true,
	}
}

// OptionsFromConfig maps the poll section of the config file.
func OptionsFromConfig(cfg config.PollConfig) Options {
	return Options{
		Interval:        cfg.Interval,
		MaxAttempts:     cfg.MaxAttempts,
		MaxReadFailures: cfg.MaxReadFailures,
		Tolerance:       cfg.Tolerance,
		ReadTimeout:     cfg.ReadTimeout,
		Reconfirm:       cfg.Reconfirm,
	}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.Interval <= 0 {
		o.Interval = d.Interval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.MaxReadFailures <= 0 {
		o.MaxReadFailures = o.MaxAttempts
	}
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = o.Interval
	}
	return o
}
