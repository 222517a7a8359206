package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salescast/internal/model"
	"salescast/internal/reconcile"
)

type fixedReader struct{ h model.HyperparameterSet }

func (r fixedReader) ReadConfig(ctx context.Context) (model.HyperparameterSet, error) { return r.h, nil }

type okSubmitter struct{}

func (okSubmitter) SubmitRetrain(ctx context.Context, t model.HyperparameterSet) (model.Acknowledgment, error) {
	return model.Acknowledgment{Message: "queued"}, nil
}

func TestRecordAndHistory(t *testing.T) {
	db, err := Open()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	obs := model.HyperparameterSet{TreeCount: 100, LearningRate: 0.05, RandomSeed: 42}

	require.NoError(t, db.Record(ctx, reconcile.Status{RunID: "a", Generation: 1, Phase: reconcile.PhaseSubmitting, Message: "start", At: now}))
	require.NoError(t, db.Record(ctx, reconcile.Status{RunID: "b", Generation: 2, Phase: reconcile.PhaseSubmitting, Message: "other", At: now}))
	require.NoError(t, db.Record(ctx, reconcile.Status{RunID: "a", Generation: 1, Phase: reconcile.PhaseTimedOut, Attempt: 15, Message: "late", Observed: &obs, Err: errors.New("window"), At: now.Add(30 * time.Second)}))

	h, err := db.History(ctx, "a")
	require.NoError(t, err)
	require.Len(t, h, 2)
	assert.Equal(t, reconcile.PhaseSubmitting, h[0].Phase)
	assert.Equal(t, reconcile.PhaseTimedOut, h[1].Phase)
	assert.Equal(t, 15, h[1].Attempt)
	assert.Equal(t, "window", h[1].Error)
	require.NotNil(t, h[1].Observed)
	assert.Equal(t, obs, *h[1].Observed)
	assert.True(t, h[1].At.Equal(now.Add(30*time.Second)))
}

func TestJournalAsControllerSink(t *testing.T) {
	db, err := Open()
	require.NoError(t, err)
	defer db.Close()

	target := model.HyperparameterSet{TreeCount: 150, LearningRate: 0.1, RandomSeed: 7}
	c := reconcile.New(fixedReader{h: target}, okSubmitter{}, db, reconcile.Options{Interval: time.Millisecond, MaxAttempts: 3})
	defer c.Close()

	run, err := c.Retrain(context.Background(), target)
	require.NoError(t, err)
	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}

	h, err := db.History(context.Background(), run.ID)
	require.NoError(t, err)
	phases := make([]reconcile.Phase, 0, len(h))
	for _, e := range h {
		phases = append(phases, e.Phase)
	}
	assert.Equal(t, []reconcile.Phase{reconcile.PhaseSubmitting, reconcile.PhasePolling, reconcile.PhaseMatched}, phases)
}
