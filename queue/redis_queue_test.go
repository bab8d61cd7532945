package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*Queue, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewQueueFromClient(client, "campaign_jobs"), client
}

func TestQueueCompleteRemovesProcessingEntry(t *testing.T) {
	q, client := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, JobTypeFinalizeCampaign, map[string]interface{}{"campaign_id": int64(42)}))

	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, JobTypeFinalizeCampaign, job.Type)
	id, err := job.Int64("campaign_id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	assert.Equal(t, int64(0), client.LLen(ctx, "campaign_jobs").Val())
	assert.Equal(t, int64(1), client.LLen(ctx, "campaign_jobs:processing").Val())

	// The decoded job must re-encode to the stored bytes for LREM to match.
	require.NoError(t, q.CompleteJob(ctx, job))
	assert.Equal(t, int64(0), client.LLen(ctx, "campaign_jobs:processing").Val())
}

func TestQueueDequeueEmpty(t *testing.T) {
	q, _ := newTestQueue(t)

	job, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestQueueFailSchedulesRetry(t *testing.T) {
	q, client := newTestQueue(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return now }

	require.NoError(t, q.Enqueue(ctx, JobTypeFinalizeCampaign, map[string]interface{}{"campaign_id": int64(7)}))
	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)

	require.NoError(t, q.FailJob(ctx, job, errors.New("deadlock")))
	assert.Equal(t, int64(0), client.LLen(ctx, "campaign_jobs:processing").Val())

	delayed, err := client.ZRangeWithScores(ctx, "campaign_jobs:delayed", 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, delayed, 1)
	assert.Equal(t, float64(now.Add(RetryDelay(1)).Unix()), delayed[0].Score)

	// Not due yet.
	require.NoError(t, q.ProcessDelayedJobs(ctx))
	assert.Equal(t, int64(0), client.LLen(ctx, "campaign_jobs").Val())

	now = now.Add(RetryDelay(1))
	require.NoError(t, q.ProcessDelayedJobs(ctx))
	assert.Equal(t, int64(0), client.ZCard(ctx, "campaign_jobs:delayed").Val())

	retried, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, retried)
	assert.Equal(t, job.ID, retried.ID)
	assert.Equal(t, 1, retried.RetryCount)
	assert.Equal(t, "deadlock", retried.Data["last_error"])
}

func TestQueueFailExhaustedMovesToFailedList(t *testing.T) {
	q, client := newTestQueue(t)
	ctx := context.Background()

	// A job on its last attempt.
	last := NewJob(JobTypeExpireCampaigns, nil)
	last.RetryCount = MaxRetries
	payload, err := json.Marshal(last)
	require.NoError(t, err)
	require.NoError(t, client.RPush(ctx, "campaign_jobs", payload).Err())

	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)

	require.NoError(t, q.FailJob(ctx, job, errors.New("still failing")))
	assert.Equal(t, int64(0), client.LLen(ctx, "campaign_jobs:processing").Val())
	assert.Equal(t, int64(0), client.ZCard(ctx, "campaign_jobs:delayed").Val())

	failed, err := client.LRange(ctx, "campaign_jobs:failed", 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, failed, 1)

	var stored Job
	require.NoError(t, json.Unmarshal([]byte(failed[0]), &stored))
	assert.Equal(t, MaxRetries+1, stored.RetryCount)
	assert.Equal(t, true, stored.Data["all_retries_exhausted"])
}
