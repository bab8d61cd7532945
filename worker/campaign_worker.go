package worker

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"bastaku-campaign-api/logger"
	"bastaku-campaign-api/models"
	"bastaku-campaign-api/queue"
)

// Store is the part of the database the worker mutates.
type Store interface {
	FinalizeCampaign(ctx context.Context, campaignID int64) ([]models.Order, error)
	ExpireCampaigns(ctx context.Context, now time.Time) ([]int64, error)
	ListCampaignIDsByStatus(ctx context.Context, status models.CampaignStatus) ([]int64, error)
}

// Jobs is the queue surface the worker consumes. *queue.Queue implements it.
type Jobs interface {
	Enqueue(ctx context.Context, jobType queue.JobType, data map[string]interface{}) error
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	CompleteJob(ctx context.Context, job *queue.Job) error
	FailJob(ctx context.Context, job *queue.Job, err error) error
	ProcessDelayedJobs(ctx context.Context) error
}

// Cache drops stale campaign entries after the worker changes a campaign's
// status. cache.CampaignCache implements it.
type Cache interface {
	Invalidate(ctx context.Context, id int64) error
}

// Worker finalizes achieved campaigns and expires stale ones in the
// background.
type Worker struct {
	jobs       Jobs
	store      Store
	cache      Cache
	sweepEvery time.Duration
	shutdown   chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	isRunning  bool
	now        func() time.Time
}

func NewWorker(jobs Jobs, store Store, cache Cache, sweepEvery time.Duration) *Worker {
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	return &Worker{
		jobs:       jobs,
		store:      store,
		cache:      cache,
		sweepEvery: sweepEvery,
		shutdown:   make(chan struct{}),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start launches concurrency job processors plus the scheduler loop.
func (w *Worker) Start(concurrency int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return
	}
	w.isRunning = true

	if concurrency < 1 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go w.processJobs(i)
	}
	w.wg.Add(1)
	go w.schedule()

	logger.Get().Infow("worker started", "concurrency", concurrency, "sweep_every", w.sweepEvery.String())
}

// Stop signals every goroutine and waits for in-flight jobs.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	close(w.shutdown)
	w.mu.Unlock()

	logger.Get().Info("stopping worker")
	w.wg.Wait()
}

func (w *Worker) schedule() {
	defer w.wg.Done()

	promote := time.NewTicker(time.Second)
	defer promote.Stop()
	sweep := time.NewTicker(w.sweepEvery)
	defer sweep.Stop()

	for {
		select {
		case <-w.shutdown:
			return
		case <-promote.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := w.jobs.ProcessDelayedJobs(ctx); err != nil {
				logger.Get().Warnw("failed to promote delayed jobs", "error", err)
			}
			cancel()
		case <-sweep.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := w.jobs.Enqueue(ctx, queue.JobTypeExpireCampaigns, nil); err != nil {
				logger.Get().Warnw("failed to schedule expiry sweep", "error", err)
			}
			cancel()
		}
	}
}

func (w *Worker) processJobs(workerID int) {
	defer w.wg.Done()
	log := logger.Get().With("worker_id", workerID)

	for {
		select {
		case <-w.shutdown:
			log.Info("worker shutting down")
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		job, err := w.jobs.Dequeue(ctx, 5*time.Second)
		cancel()

		if err != nil {
			log.Warnw("failed to dequeue job", "error", err)
			w.pause(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		log.Infow("processing job", "job_id", job.ID, "type", job.Type, "retry", job.RetryCount)

		ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
		jobErr := w.ProcessJob(ctx, job)
		cancel()

		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		if jobErr != nil {
			log.Warnw("job failed", "job_id", job.ID, "error", jobErr)
			if err := w.jobs.FailJob(ctx, job, jobErr); err != nil {
				log.Errorw("failed to mark job as failed", "job_id", job.ID, "error", err)
			}
		} else if err := w.jobs.CompleteJob(ctx, job); err != nil {
			log.Warnw("failed to mark job as complete", "job_id", job.ID, "error", err)
		}
		cancel()
	}
}

func (w *Worker) pause(d time.Duration) {
	select {
	case <-w.shutdown:
	case <-time.After(d):
	}
}

func (w *Worker) ProcessJob(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeFinalizeCampaign:
		return w.finalizeCampaign(ctx, job)
	case queue.JobTypeExpireCampaigns:
		return w.expireCampaigns(ctx)
	default:
		return errors.Errorf("unknown job type: %s", job.Type)
	}
}

func (w *Worker) finalizeCampaign(ctx context.Context, job *queue.Job) error {
	campaignID, err := job.Int64("campaign_id")
	if err != nil {
		return err
	}

	return w.finalize(ctx, campaignID)
}

func (w *Worker) finalize(ctx context.Context, campaignID int64) error {
	orders, err := w.store.FinalizeCampaign(ctx, campaignID)
	if err != nil {
		return errors.Wrapf(err, "failed to finalize campaign %d", campaignID)
	}
	w.invalidate(ctx, campaignID)

	logger.Get().Infow("campaign orders created", "campaign_id", campaignID, "orders", len(orders))
	return nil
}

// invalidate drops a cached campaign. A failure only leaves the entry to
// expire on its TTL.
func (w *Worker) invalidate(ctx context.Context, campaignID int64) {
	if err := w.cache.Invalidate(ctx, campaignID); err != nil {
		logger.Get().Warnw("failed to invalidate cached campaign", "campaign_id", campaignID, "error", err)
	}
}

// expireCampaigns closes campaigns past their window and retries the
// finalization of achieved campaigns still waiting for it.
func (w *Worker) expireCampaigns(ctx context.Context) error {
	expired, err := w.store.ExpireCampaigns(ctx, w.now())
	if err != nil {
		return err
	}
	for _, id := range expired {
		w.invalidate(ctx, id)
	}
	if len(expired) > 0 {
		logger.Get().Infow("campaigns expired", "count", len(expired))
	}

	pending, err := w.store.ListCampaignIDsByStatus(ctx, models.CampaignStatusAchieved)
	if err != nil {
		return err
	}
	for _, id := range pending {
		if err := w.finalize(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
