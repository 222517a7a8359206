package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salescast/internal/journal"
	"salescast/internal/model"
	"salescast/internal/reconcile"
	"salescast/internal/theme"
)

func TestToneFor(t *testing.T) {
	assert.Equal(t, theme.Success, toneFor(reconcile.PhaseMatched))
	assert.Equal(t, theme.Warning, toneFor(reconcile.PhaseTimedOut))
	assert.Equal(t, theme.Failure, toneFor(reconcile.PhaseSubmissionFailed))
	assert.Equal(t, theme.Pending, toneFor(reconcile.PhasePolling))
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, "100", orDefault("", "100"))
	assert.Equal(t, "150", orDefault("150", "100"))
}

func TestBuildTarget(t *testing.T) {
	current := model.HyperparameterSet{TreeCount: 100, LearningRate: 0.05, RandomSeed: 42}

	got, err := buildTarget(&current, "150", "", "")
	require.NoError(t, err)
	assert.Equal(t, model.HyperparameterSet{TreeCount: 150, LearningRate: 0.05, RandomSeed: 42}, got)

	got, err = buildTarget(nil, "150", "0.1", "7")
	require.NoError(t, err)
	assert.Equal(t, model.HyperparameterSet{TreeCount: 150, LearningRate: 0.1, RandomSeed: 7}, got)

	_, err = buildTarget(nil, "150", "", "7")
	assert.ErrorIs(t, err, errMissingFlags)

	_, err = buildTarget(&current, "many", "", "")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestConsoleSinkAndHistory(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	var buf bytes.Buffer
	consoleSink(&buf).Publish(reconcile.Status{Phase: reconcile.PhaseMatched, Message: "Model successfully updated!"})
	assert.Equal(t, "✅ Model successfully updated!\n", buf.String())
	buf.Reset()
	consoleSink(&buf).Publish(reconcile.Status{Phase: reconcile.PhasePolling, Message: "Waiting for update... (attempt 2/15)", Remaining: 26 * time.Second})
	assert.Equal(t, "⏳ Waiting for update... (attempt 2/15) (26s left)\n", buf.String())

	db, err := journal.Open()
	require.NoError(t, err)
	defer db.Close()
	obs := model.HyperparameterSet{TreeCount: 150, LearningRate: 0.1, RandomSeed: 7}
	require.NoError(t, db.Record(context.Background(), reconcile.Status{RunID: "r1", Phase: reconcile.PhaseMatched, Message: "done", Observed: &obs, At: time.Now()}))

	buf.Reset()
	printHistory(&buf, db, "r1")
	out := buf.String()
	assert.True(t, strings.Contains(out, "Run r1"), out)
	assert.True(t, strings.Contains(out, "{trees=150 lr=0.1 seed=7}"), out)
}
