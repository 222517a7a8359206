package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidInput marks operator input or a payload that cannot be submitted.
var ErrInvalidInput = errors.New("invalid input")

// HyperparameterSet is the tunable configuration of the trained sales model.
type HyperparameterSet struct {
	TreeCount    int     `json:"n_estimators" yaml:"treeCount"`
	LearningRate float64 `json:"learning_rate" yaml:"learningRate"`
	RandomSeed   int     `json:"random_state" yaml:"randomSeed"`
}

// Validate reports whether the set can be sent to or trusted from the server.
func (h HyperparameterSet) Validate() error {
	if h.TreeCount <= 0 {
		return fmt.Errorf("%w: tree count must be positive, got %d", ErrInvalidInput, h.TreeCount)
	}
	if math.IsNaN(h.LearningRate) || math.IsInf(h.LearningRate, 0) || h.LearningRate <= 0 {
		return fmt.Errorf("%w: learning rate must be a positive number, got %v", ErrInvalidInput, h.LearningRate)
	}
	return nil
}

func (h HyperparameterSet) String() string {
	return fmt.Sprintf("{trees=%d lr=%g seed=%d}", h.TreeCount, h.LearningRate, h.RandomSeed)
}

// Acknowledgment is the server's reply to an accepted retrain request.
type Acknowledgment struct {
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

// Health is the server's liveness report.
type Health struct {
	Status       string `json:"status"`
	ModelVersion string `json:"model_version"`
}

// ForecastPoint is the predicted total sales of one week.
type ForecastPoint struct {
	Date  time.Time
	Sales float64
}
