package queue

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"bastaku-campaign-api/logger"
)

type JobType string

const (
	// JobTypeFinalizeCampaign turns an achieved campaign into orders.
	JobTypeFinalizeCampaign JobType = "finalize_campaign"
	// JobTypeExpireCampaigns closes active campaigns past their end time.
	JobTypeExpireCampaigns JobType = "expire_campaigns"
)

const MaxRetries = 5

type Job struct {
	ID         string                 `json:"id"`
	Type       JobType                `json:"type"`
	Data       map[string]interface{} `json:"data"`
	CreatedAt  time.Time              `json:"created_at"`
	RetryCount int                    `json:"retry_count"`
}

func NewJob(jobType JobType, data map[string]interface{}) *Job {
	if data == nil {
		data = map[string]interface{}{}
	}
	return &Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
}

// Int64 reads a numeric field. Values decoded from JSON arrive as float64.
func (j *Job) Int64(key string) (int64, error) {
	switch v := j.Data[key].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, errors.Wrapf(err, "job %s: invalid %s", j.ID, key)
	default:
		return 0, errors.Errorf("job %s: missing %s", j.ID, key)
	}
}

// RetryDelay is the backoff before retry n (1-based): 15s, 30s, 60s, ...
func RetryDelay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	return time.Duration(15*(1<<(n-1))) * time.Second
}

type Queue struct {
	client     *redis.Client
	queueName  string
	processing string
	delayed    string
	failed     string
	now        func() time.Time
}

func NewQueue(redisURL, queueName string) (*Queue, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid Redis URL")
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return NewQueueFromClient(client, queueName), nil
}

func NewQueueFromClient(client *redis.Client, queueName string) *Queue {
	return &Queue{
		client:     client,
		queueName:  queueName,
		processing: queueName + ":processing",
		delayed:    queueName + ":delayed",
		failed:     queueName + ":failed",
		now:        time.Now,
	}
}

func (q *Queue) Enqueue(ctx context.Context, jobType JobType, data map[string]interface{}) error {
	job := NewJob(jobType, data)

	jobJSON, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "failed to marshal job")
	}

	if err := q.client.RPush(ctx, q.queueName, jobJSON).Err(); err != nil {
		return errors.Wrap(err, "failed to push job to queue")
	}

	logger.Get().Infow("enqueued job", "job_id", job.ID, "type", job.Type)
	return nil
}

// Dequeue blocks up to timeout for a job and parks it on the processing
// list. It returns nil, nil when nothing arrived.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, q.queueName).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get job from queue")
	}

	if len(result) < 2 {
		return nil, errors.New("unexpected BLPOP result format")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal job")
	}

	if err := q.client.RPush(ctx, q.processing, result[1]).Err(); err != nil {
		logger.Get().Warnw("failed to move job to processing list", "job_id", job.ID, "error", err)
	}

	return &job, nil
}

func (q *Queue) CompleteJob(ctx context.Context, job *Job) error {
	jobJSON, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "failed to marshal job")
	}

	if err := q.client.LRem(ctx, q.processing, 1, jobJSON).Err(); err != nil {
		return errors.Wrap(err, "failed to remove job from processing list")
	}

	logger.Get().Infow("completed job", "job_id", job.ID, "type", job.Type)
	return nil
}

// FailJob reschedules a job with exponential backoff, or moves it to the
// failed list once MaxRetries is exceeded.
func (q *Queue) FailJob(ctx context.Context, job *Job, jobErr error) error {
	// The processing entry was stored before this attempt mutated the job.
	original, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "failed to marshal job")
	}
	if err := q.client.LRem(ctx, q.processing, 1, original).Err(); err != nil {
		logger.Get().Warnw("failed to remove job from processing list", "job_id", job.ID, "error", err)
	}

	job.RetryCount++
	job.Data["last_error"] = jobErr.Error()

	if job.RetryCount <= MaxRetries {
		delay := RetryDelay(job.RetryCount)
		retryAt := q.now().Add(delay)

		payload, err := json.Marshal(job)
		if err != nil {
			return errors.Wrap(err, "failed to marshal job")
		}

		err = q.client.ZAdd(ctx, q.delayed, &redis.Z{
			Score:  float64(retryAt.Unix()),
			Member: payload,
		}).Err()
		if err != nil {
			logger.Get().Warnw("failed to schedule retry, moving job to failed list", "job_id", job.ID, "error", err)
			return errors.Wrap(q.client.RPush(ctx, q.failed, payload).Err(), "failed to push job to failed list")
		}

		logger.Get().Infow("job scheduled for retry",
			"job_id", job.ID, "type", job.Type, "attempt", job.RetryCount, "max", MaxRetries, "delay", delay.String())
		return nil
	}

	job.Data["all_retries_exhausted"] = true
	payload, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "failed to marshal job")
	}
	if err := q.client.RPush(ctx, q.failed, payload).Err(); err != nil {
		return errors.Wrap(err, "failed to push job to failed list")
	}

	logger.Get().Errorw("job moved to failed list", "job_id", job.ID, "type", job.Type, "retries", job.RetryCount)
	return nil
}

// ProcessDelayedJobs promotes every delayed job whose time has come.
func (q *Queue) ProcessDelayedJobs(ctx context.Context) error {
	now := q.now().Unix()

	jobs, err := q.client.ZRangeByScore(ctx, q.delayed, &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(now, 10),
	}).Result()
	if err != nil {
		return errors.Wrap(err, "failed to get delayed jobs")
	}

	for _, jobJSON := range jobs {
		// Only the caller that removes the member may push it.
		removed, err := q.client.ZRem(ctx, q.delayed, jobJSON).Result()
		if err != nil {
			logger.Get().Warnw("failed to remove job from delayed set", "error", err)
			continue
		}
		if removed == 0 {
			continue
		}
		if err := q.client.RPush(ctx, q.queueName, jobJSON).Err(); err != nil {
			logger.Get().Warnw("failed to move delayed job to main queue", "error", err)
			continue
		}
	}

	if len(jobs) > 0 {
		logger.Get().Debugw("promoted delayed jobs", "count", len(jobs))
	}
	return nil
}

func (q *Queue) Client() *redis.Client {
	return q.client
}

func (q *Queue) Close() error {
	return q.client.Close()
}
