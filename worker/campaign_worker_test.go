package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bastaku-campaign-api/models"
	"bastaku-campaign-api/queue"
)

type fakeStore struct {
	finalized []int64
	expiredAt []time.Time
	achieved  []int64
	expired   []int64
	err       error
}

type fakeCache struct {
	mu          sync.Mutex
	invalidated []int64
	err         error
}

func (c *fakeCache) Invalidate(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, id)
	return c.err
}

func (s *fakeStore) FinalizeCampaign(_ context.Context, id int64) ([]models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.finalized = append(s.finalized, id)
	return []models.Order{{ID: "o-1"}}, nil
}

func (s *fakeStore) ExpireCampaigns(_ context.Context, now time.Time) ([]int64, error) {
	s.expiredAt = append(s.expiredAt, now)
	return s.expired, nil
}

func (s *fakeStore) ListCampaignIDsByStatus(_ context.Context, status models.CampaignStatus) ([]int64, error) {
	if status != models.CampaignStatusAchieved {
		return nil, nil
	}
	return s.achieved, nil
}

// fakeJobs hands out queued jobs once and records outcomes.
type fakeJobs struct {
	mu        sync.Mutex
	pending   []*queue.Job
	completed []string
	failed    []string
}

func (f *fakeJobs) Enqueue(_ context.Context, jobType queue.JobType, data map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, queue.NewJob(jobType, data))
	return nil
}

func (f *fakeJobs) Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error) {
	f.mu.Lock()
	if len(f.pending) > 0 {
		job := f.pending[0]
		f.pending = f.pending[1:]
		f.mu.Unlock()
		return job, nil
	}
	f.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
	return nil, nil
}

func (f *fakeJobs) CompleteJob(_ context.Context, job *queue.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, job.ID)
	return nil
}

func (f *fakeJobs) FailJob(_ context.Context, job *queue.Job, _ error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, job.ID)
	return nil
}

func (f *fakeJobs) ProcessDelayedJobs(context.Context) error { return nil }

func (f *fakeJobs) outcomes() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.completed), len(f.failed)
}

func TestProcessFinalizeJob(t *testing.T) {
	store := &fakeStore{}
	w := NewWorker(&fakeJobs{}, store, &fakeCache{}, time.Minute)

	job := queue.NewJob(queue.JobTypeFinalizeCampaign, map[string]interface{}{"campaign_id": float64(3)})
	require.NoError(t, w.ProcessJob(context.Background(), job))
	assert.Equal(t, []int64{3}, store.finalized)

	missing := queue.NewJob(queue.JobTypeFinalizeCampaign, nil)
	assert.Error(t, w.ProcessJob(context.Background(), missing))
}

func TestProcessExpireJobFinalizesAchieved(t *testing.T) {
	store := &fakeStore{achieved: []int64{4, 9}, expired: []int64{2}}
	cache := &fakeCache{}
	w := NewWorker(&fakeJobs{}, store, cache, time.Minute)
	fixed := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	require.NoError(t, w.ProcessJob(context.Background(), queue.NewJob(queue.JobTypeExpireCampaigns, nil)))
	assert.Equal(t, []time.Time{fixed}, store.expiredAt)
	assert.Equal(t, []int64{4, 9}, store.finalized)
	assert.Equal(t, []int64{2, 4, 9}, cache.invalidated)
}

func TestFinalizeInvalidatesCache(t *testing.T) {
	store := &fakeStore{}
	cache := &fakeCache{err: errors.New("redis down")}
	w := NewWorker(&fakeJobs{}, store, cache, time.Minute)

	job := queue.NewJob(queue.JobTypeFinalizeCampaign, map[string]interface{}{"campaign_id": float64(3)})
	require.NoError(t, w.ProcessJob(context.Background(), job))
	assert.Equal(t, []int64{3}, cache.invalidated)

	// A failed finalization changed nothing, so the entry stays.
	store.err = errors.New("deadlock")
	assert.Error(t, w.ProcessJob(context.Background(), job))
	assert.Equal(t, []int64{3}, cache.invalidated)
}

func TestProcessUnknownJob(t *testing.T) {
	w := NewWorker(&fakeJobs{}, &fakeStore{}, &fakeCache{}, time.Minute)
	assert.Error(t, w.ProcessJob(context.Background(), queue.NewJob("send_newsletter", nil)))
}

func TestWorkerLoop(t *testing.T) {
	jobs := &fakeJobs{}
	store := &fakeStore{}
	ctx := context.Background()
	require.NoError(t, jobs.Enqueue(ctx, queue.JobTypeFinalizeCampaign, map[string]interface{}{"campaign_id": int64(1)}))
	require.NoError(t, jobs.Enqueue(ctx, "bogus", nil))

	w := NewWorker(jobs, store, &fakeCache{}, time.Hour)
	w.Start(2)
	assert.Eventually(t, func() bool {
		completed, failed := jobs.outcomes()
		return completed == 1 && failed == 1
	}, 2*time.Second, 10*time.Millisecond)
	w.Stop()
	w.Stop()
}

func TestFinalizeErrorIsWrapped(t *testing.T) {
	store := &fakeStore{err: errors.New("deadlock")}
	w := NewWorker(&fakeJobs{}, store, &fakeCache{}, time.Minute)

	err := w.ProcessJob(context.Background(), queue.NewJob(queue.JobTypeFinalizeCampaign, map[string]interface{}{"campaign_id": 3}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "campaign 3")
}
