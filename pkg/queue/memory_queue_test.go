package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueueFIFO(t *testing.T) {
	q := NewInMemoryQueue(0)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Evaluation, []byte(`{"signalId":"a"}`)))
	require.NoError(t, q.Enqueue(ctx, Evaluation, []byte(`{"signalId":"b"}`)))

	depth, err := q.Depth(ctx, Evaluation)
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth)

	first, err := q.Dequeue(ctx, Evaluation)
	require.NoError(t, err)
	assert.JSONEq(t, `{"signalId":"a"}`, string(first.Payload))

	second, err := q.Dequeue(ctx, Evaluation)
	require.NoError(t, err)
	assert.JSONEq(t, `{"signalId":"b"}`, string(second.Payload))

	_, err = q.Dequeue(ctx, Evaluation)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestInMemoryQueueFailRetainsBoundedHistory(t *testing.T) {
	q := NewInMemoryQueue(2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(ctx, Evaluation, []byte(`{}`)))
		job, err := q.Dequeue(ctx, Evaluation)
		require.NoError(t, err)
		require.NoError(t, q.Fail(ctx, Evaluation, job, errors.New("boom")))
	}

	failures := q.Failures(Evaluation)
	assert.Len(t, failures, 2)
	for _, f := range failures {
		assert.Equal(t, "boom", f.Error)
	}
}

func TestInMemoryQueueRegisterRepeatableIdempotent(t *testing.T) {
	q := NewInMemoryQueue(0)
	ctx := context.Background()

	registered, err := q.RegisterRepeatable(ctx, Scheduler, 30*time.Second)
	require.NoError(t, err)
	assert.True(t, registered)

	registered, err = q.RegisterRepeatable(ctx, Scheduler, 30*time.Second)
	require.NoError(t, err)
	assert.False(t, registered, "identical interval should not re-register")

	registered, err = q.RegisterRepeatable(ctx, Scheduler, 60*time.Second)
	require.NoError(t, err)
	assert.True(t, registered, "changed interval forces re-registration")
}

func TestInMemoryQueueCompleteIsNoop(t *testing.T) {
	q := NewInMemoryQueue(0)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, Evaluation, []byte(`{}`)))
	job, err := q.Dequeue(ctx, Evaluation)
	require.NoError(t, err)
	assert.NoError(t, q.Complete(ctx, Evaluation, job))

	depth, err := q.Depth(ctx, Evaluation)
	require.NoError(t, err)
	assert.Equal(t, int64(0), depth)
}
