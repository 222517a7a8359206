package model

import "math"

// LearningRateTolerance absorbs rounding the server applies when it echoes
// the learning rate back.
const LearningRateTolerance = 1e-4

// Matches reports whether observed reflects target: integer fields must be
// equal and the learning rate must differ by strictly less than
// LearningRateTolerance.
func Matches(observed, target HyperparameterSet) bool {
	return MatchesWithin(observed, target, LearningRateTolerance)
}

// MatchesWithin is Matches with a caller supplied learning rate tolerance.
func MatchesWithin(observed, target HyperparameterSet, tol float64) bool {
	if observed.TreeCount != target.TreeCount {
		return false
	}
	if observed.RandomSeed != target.RandomSeed {
		return false
	}
	return math.Abs(observed.LearningRate-target.LearningRate) < tol
}
