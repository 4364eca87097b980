package job

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelscribe/backend/internal/db"
	"github.com/reelscribe/backend/internal/notify"
	"github.com/reelscribe/backend/internal/pipeline"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	database, err := db.NewSQLite(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	q := NewQueue(database.DB(), 2)
	t.Cleanup(q.Stop)
	return q
}

func testParams() Params {
	return Params{Targets: []notify.Target{{Channel: notify.ChannelEmail, Address: "user@example.com"}}}
}

func TestEnqueueAndGet(t *testing.T) {
	q := newTestQueue(t)

	j, err := q.Enqueue(1, "https://instagram.com/reel/ABC", testParams())
	require.NoError(t, err)
	assert.NotEmpty(t, j.ID)
	assert.Equal(t, pipeline.StatusReceived, j.Status)

	got, err := q.GetJob(j.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, j.ID, got.ID)
	assert.Equal(t, "https://instagram.com/reel/ABC", got.SourceURL)

	var params Params
	require.NoError(t, json.Unmarshal(got.Params, &params))
	assert.Len(t, params.Targets, 1)

	// jobs are scoped to their owner
	_, err = q.GetJob(j.ID, 2)
	assert.Error(t, err)
}

func TestEnqueueResubmissionIsIndependent(t *testing.T) {
	q := newTestQueue(t)

	a, err := q.Enqueue(1, "https://instagram.com/reel/ABC", testParams())
	require.NoError(t, err)
	b, err := q.Enqueue(1, "https://instagram.com/reel/ABC", testParams())
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestProcessJobSuccess(t *testing.T) {
	q := newTestQueue(t)

	var seen []pipeline.Status
	q.SetHandler(func(ctx context.Context, j *Job, onStatus func(pipeline.Status)) error {
		for _, s := range []pipeline.Status{
			pipeline.StatusFetching, pipeline.StatusExtracting,
			pipeline.StatusTranscribing, pipeline.StatusDelivering,
		} {
			onStatus(s)
			seen = append(seen, s)
		}
		j.Result = json.RawMessage(`{"transcript":"hello world"}`)
		return nil
	})

	j, err := q.Enqueue(1, "https://instagram.com/reel/ABC", testParams())
	require.NoError(t, err)

	q.processJob(j.ID)

	got, err := q.GetJob(j.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusCompleted, got.Status)
	assert.JSONEq(t, `{"transcript":"hello world"}`, string(got.Result))
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)
	assert.Len(t, seen, 4)
}

func TestProcessJobStageError(t *testing.T) {
	q := newTestQueue(t)

	q.SetHandler(func(ctx context.Context, j *Job, onStatus func(pipeline.Status)) error {
		onStatus(pipeline.StatusFetching)
		return &pipeline.StageError{
			Stage: pipeline.StatusFetching,
			Kind:  pipeline.KindFetch,
			Err:   errors.New("content unavailable or private"),
		}
	})

	j, err := q.Enqueue(1, "https://instagram.com/reel/PRIVATE", testParams())
	require.NoError(t, err)

	q.processJob(j.ID)

	got, err := q.GetJob(j.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusFailed, got.Status)
	assert.Equal(t, "fetch", got.ErrorKind)
	assert.Equal(t, "fetching", got.FailedStage)
	assert.Contains(t, got.Error, "unavailable")
}

func TestProcessJobIgnoresRegression(t *testing.T) {
	q := newTestQueue(t)

	q.SetHandler(func(ctx context.Context, j *Job, onStatus func(pipeline.Status)) error {
		onStatus(pipeline.StatusTranscribing)
		onStatus(pipeline.StatusFetching) // must be dropped
		return nil
	})

	j, err := q.Enqueue(1, "https://instagram.com/reel/ABC", testParams())
	require.NoError(t, err)

	q.processJob(j.ID)

	got, err := q.GetJob(j.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusCompleted, got.Status)
}

func TestCancelJob(t *testing.T) {
	q := newTestQueue(t)

	j, err := q.Enqueue(1, "https://instagram.com/reel/ABC", testParams())
	require.NoError(t, err)
	require.NoError(t, q.CancelJob(j.ID, 1))

	got, err := q.GetJob(j.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusCancelled, got.Status)

	// processing a cancelled job is a no-op
	q.SetHandler(func(ctx context.Context, j *Job, onStatus func(pipeline.Status)) error {
		t.Error("handler must not run for a cancelled job")
		return nil
	})
	q.processJob(j.ID)
}

func TestCancelDuringProcessingStaysCancelled(t *testing.T) {
	q := newTestQueue(t)

	q.SetHandler(func(ctx context.Context, j *Job, onStatus func(pipeline.Status)) error {
		onStatus(pipeline.StatusFetching)
		require.NoError(t, q.CancelJob(j.ID, 1))
		// The pipeline only notices a cancel at its next external call, so a
		// stage transition can still arrive after the cancel landed. It must
		// not overwrite the terminal state.
		onStatus(pipeline.StatusExtracting)
		return ctx.Err()
	})

	j, err := q.Enqueue(1, "https://instagram.com/reel/ABC", testParams())
	require.NoError(t, err)

	q.processJob(j.ID)

	got, err := q.GetJob(j.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusCancelled, got.Status)

	// a restart must not revive the cancelled job
	q.resumeJobs()
	got, err = q.GetJob(j.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusCancelled, got.Status)
}

func TestEnqueueReceivedRequeuesBackloggedJobs(t *testing.T) {
	q := newTestQueue(t)

	j, err := q.Enqueue(1, "https://instagram.com/reel/ABC", testParams())
	require.NoError(t, err)

	// drain the send Enqueue made, simulating a job dropped because the
	// channel was full
	<-q.pending

	assert.Equal(t, 1, q.enqueueReceived())
	assert.Equal(t, j.ID, <-q.pending)

	// a job a worker already holds is not queued twice
	require.True(t, q.claim(j.ID))
	assert.Equal(t, 0, q.enqueueReceived())
	q.release(j.ID)
}

func TestCancelJobWrongUser(t *testing.T) {
	q := newTestQueue(t)

	j, err := q.Enqueue(1, "https://instagram.com/reel/ABC", testParams())
	require.NoError(t, err)
	require.NoError(t, q.CancelJob(j.ID, 2))

	got, err := q.GetJob(j.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusReceived, got.Status, "another user's cancel must not touch the job")
}

func TestResumeInterruptedJobs(t *testing.T) {
	q := newTestQueue(t)

	j, err := q.Enqueue(1, "https://instagram.com/reel/ABC", testParams())
	require.NoError(t, err)

	// simulate a crash mid-stage
	_, err = q.db.Exec("UPDATE jobs SET status = ? WHERE id = ?", pipeline.StatusExtracting, j.ID)
	require.NoError(t, err)

	q.resumeJobs()

	got, err := q.GetJob(j.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusReceived, got.Status)
}
