package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"bastaku-campaign-api/models"
)

var ErrMiss = errors.New("cache miss")

// CampaignCache holds recently read campaigns keyed by id.
type CampaignCache interface {
	Get(ctx context.Context, id int64) (*models.Campaign, error)
	Set(ctx context.Context, campaign *models.Campaign) error
	Invalidate(ctx context.Context, id int64) error
}

func Key(id int64) string {
	return "campaign:" + strconv.FormatInt(id, 10)
}

type RedisCampaignCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCampaignCache(client *redis.Client, ttl time.Duration) *RedisCampaignCache {
	return &RedisCampaignCache{client: client, ttl: ttl}
}

func (c *RedisCampaignCache) Get(ctx context.Context, id int64) (*models.Campaign, error) {
	data, err := c.client.Get(ctx, Key(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read campaign %d from cache", id)
	}
	return decode(data)
}

func (c *RedisCampaignCache) Set(ctx context.Context, campaign *models.Campaign) error {
	data, err := json.Marshal(campaign)
	if err != nil {
		return errors.Wrap(err, "failed to marshal campaign")
	}
	return errors.Wrapf(c.client.Set(ctx, Key(campaign.ID), data, c.ttl).Err(),
		"failed to cache campaign %d", campaign.ID)
}

func (c *RedisCampaignCache) Invalidate(ctx context.Context, id int64) error {
	return errors.Wrapf(c.client.Del(ctx, Key(id)).Err(), "failed to invalidate campaign %d", id)
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryCampaignCache is a process-local CampaignCache with the same TTL
// semantics as RedisCampaignCache. Entries are not shared between replicas.
type MemoryCampaignCache struct {
	mu      sync.RWMutex
	entries map[int64]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryCampaignCache(ttl time.Duration) *MemoryCampaignCache {
	return &MemoryCampaignCache{
		entries: make(map[int64]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCampaignCache) Get(_ context.Context, id int64) (*models.Campaign, error) {
	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()

	if !ok || !c.now().Before(entry.expires) {
		return nil, ErrMiss
	}
	return decode(entry.data)
}

func (c *MemoryCampaignCache) Set(_ context.Context, campaign *models.Campaign) error {
	data, err := json.Marshal(campaign)
	if err != nil {
		return errors.Wrap(err, "failed to marshal campaign")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[campaign.ID] = memoryEntry{data: data, expires: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryCampaignCache) Invalidate(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	return nil
}

func decode(data []byte) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := json.Unmarshal(data, &campaign); err != nil {
		return nil, errors.Wrap(err, "failed to decode cached campaign")
	}
	return &campaign, nil
}
