package campaign

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bastaku-campaign-api/cache"
	"bastaku-campaign-api/database"
	"bastaku-campaign-api/models"
	"bastaku-campaign-api/queue"
	"bastaku-campaign-api/services/pricing"
)

var now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fakeRepo struct {
	campaigns      map[int64]*models.Campaign
	variants       map[int64]*models.Variant
	participations map[int64]map[int64]models.Participation
	getCalls       int
	nextID         int64
}

func newFakeRepo() *fakeRepo {
	variant := &models.Variant{
		ID:                           7,
		ProductName:                  "Basmati rice 5kg",
		Price:                        decimal.RequireFromString("10"),
		CampaignDiscountPercentage:   decimal.RequireFromString("20"),
		MinimumOrderQuantityForOffer: 50,
		Stock:                        40,
	}
	return &fakeRepo{
		campaigns: map[int64]*models.Campaign{
			3: {
				ID:                  3,
				Title:               "Rice run",
				Variant:             *variant,
				CurrentQuantity:     30,
				CurrentParticipants: 4,
				Status:              models.CampaignStatusActive,
				StartTime:           now.Add(-24 * time.Hour),
				EndTime:             now.Add(24 * time.Hour),
			},
		},
		variants:       map[int64]*models.Variant{7: variant},
		participations: map[int64]map[int64]models.Participation{3: {}},
		nextID:         100,
	}
}

func (f *fakeRepo) GetCampaign(_ context.Context, id int64) (*models.Campaign, error) {
	f.getCalls++
	c, ok := f.campaigns[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (f *fakeRepo) ListActiveCampaigns(context.Context) ([]models.Campaign, error) {
	var out []models.Campaign
	for _, c := range f.campaigns {
		if c.Status.Open() {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListUserCampaigns(_ context.Context, userID int64) ([]models.UserCampaign, error) {
	var out []models.UserCampaign
	for id, ps := range f.participations {
		if p, ok := ps[userID]; ok {
			out = append(out, models.UserCampaign{Campaign: *f.campaigns[id], Participation: p})
		}
	}
	return out, nil
}

func (f *fakeRepo) GetVariant(_ context.Context, id int64) (*models.Variant, error) {
	v, ok := f.variants[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *v
	return &copied, nil
}

func (f *fakeRepo) StartCampaign(_ context.Context, c *models.Campaign, starter *models.Participation) (int64, error) {
	f.nextID++
	stored := *c
	stored.ID = f.nextID
	f.campaigns[stored.ID] = &stored
	starter.CampaignID = stored.ID
	f.participations[stored.ID] = map[int64]models.Participation{starter.UserID: *starter}
	return stored.ID, nil
}

func (f *fakeRepo) JoinCampaign(_ context.Context, p *models.Participation, at time.Time) (*database.JoinResult, error) {
	c, ok := f.campaigns[p.CampaignID]
	if !ok {
		return nil, database.ErrNotFound
	}
	if !c.Status.Open() || !at.Before(c.EndTime) {
		return nil, database.ErrCampaignClosed
	}
	existing, joined := f.participations[c.ID][p.UserID]
	if joined {
		existing.Quantity += p.Quantity
		f.participations[c.ID][p.UserID] = existing
	} else {
		f.participations[c.ID][p.UserID] = *p
		c.CurrentParticipants++
	}
	c.CurrentQuantity += p.Quantity
	if c.CurrentQuantity >= c.Variant.MinimumOrderQuantityForOffer {
		c.Status = models.CampaignStatusAchieved
	}
	return &database.JoinResult{
		CampaignID:          c.ID,
		CurrentQuantity:     c.CurrentQuantity,
		CurrentParticipants: c.CurrentParticipants,
		Status:              c.Status,
	}, nil
}

func (f *fakeRepo) CancelParticipation(_ context.Context, campaignID, userID int64) (*database.JoinResult, error) {
	c, ok := f.campaigns[campaignID]
	if !ok {
		return nil, database.ErrNotFound
	}
	p, ok := f.participations[campaignID][userID]
	if !ok {
		return nil, database.ErrNotFound
	}
	delete(f.participations[campaignID], userID)
	c.CurrentQuantity -= p.Quantity
	c.CurrentParticipants--
	if c.CurrentParticipants == 0 {
		c.Status = models.CampaignStatusCancelled
	}
	return &database.JoinResult{
		CampaignID:          c.ID,
		CurrentQuantity:     c.CurrentQuantity,
		CurrentParticipants: c.CurrentParticipants,
		Status:              c.Status,
	}, nil
}

type fakeQueue struct {
	jobs []map[string]interface{}
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, jobType queue.JobType, data map[string]interface{}) error {
	if q.err != nil {
		return q.err
	}
	data["type"] = jobType
	q.jobs = append(q.jobs, data)
	return nil
}

func newTestService() (*Service, *fakeRepo, *fakeQueue) {
	repo := newFakeRepo()
	jobs := &fakeQueue{}
	s := NewService(repo, cache.NewMemoryCampaignCache(time.Minute), jobs, 0)
	s.now = func() time.Time { return now }
	return s, repo, jobs
}

var shopper = &models.AuthUser{ID: 11, Email: "sara@example.com"}

func TestDetailQuotesCampaign(t *testing.T) {
	s, _, _ := newTestService()

	d, err := s.Detail(context.Background(), 3, "vip_deal", 5)
	require.NoError(t, err)
	assert.True(t, d.Quote.EffectiveUnitPrice.Equal(decimal.RequireFromString("6")))
	assert.True(t, d.Quote.Total.Equal(decimal.RequireFromString("30")))
	assert.Equal(t, 15, d.Quote.Progress.Remaining)
	assert.Equal(t, pricing.BandHalfway, d.Quote.Progress.Band)

	d, err = s.Detail(context.Background(), 3, "", 1)
	require.NoError(t, err)
	assert.Equal(t, pricing.TierFree, d.Quote.Tier)

	_, err = s.Detail(context.Background(), 3, "platinum", 1)
	assert.ErrorIs(t, err, pricing.ErrInvalidInput)
}

func TestGetUsesCache(t *testing.T) {
	s, repo, _ := newTestService()
	ctx := context.Background()

	_, err := s.Get(ctx, 3)
	require.NoError(t, err)
	_, err = s.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.getCalls)

	_, err = s.Get(ctx, 404)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestJoinStoresEffectivePrice(t *testing.T) {
	s, repo, jobs := newTestService()

	out, err := s.Join(context.Background(), shopper, 3, models.JoinCampaignRequest{Quantity: 5, PaymentOption: "early_bird"})
	require.NoError(t, err)
	assert.True(t, out.Participation.DiscountedPrice.Equal(decimal.RequireFromString("7.6")))
	assert.Equal(t, 35, out.Campaign.CurrentQuantity)
	assert.Equal(t, 5, repo.participations[3][shopper.ID].Quantity)
	assert.Empty(t, jobs.jobs)
}

func TestJoinReachingTargetSchedulesFinalize(t *testing.T) {
	s, _, jobs := newTestService()

	out, err := s.Join(context.Background(), shopper, 3, models.JoinCampaignRequest{Quantity: 20})
	require.NoError(t, err)
	assert.True(t, out.Campaign.Achieved())
	assert.True(t, out.Quote.Progress.Achieved)
	require.Len(t, jobs.jobs, 1)
	assert.Equal(t, queue.JobTypeFinalizeCampaign, jobs.jobs[0]["type"])
	assert.Equal(t, int64(3), jobs.jobs[0]["campaign_id"])
}

func TestJoinSurvivesQueueFailure(t *testing.T) {
	s, _, jobs := newTestService()
	jobs.err = errors.New("redis down")

	out, err := s.Join(context.Background(), shopper, 3, models.JoinCampaignRequest{Quantity: 20})
	require.NoError(t, err)
	assert.True(t, out.Campaign.Achieved())
}

func TestJoinInvalidatesCache(t *testing.T) {
	s, _, _ := newTestService()
	ctx := context.Background()

	before, err := s.Get(ctx, 3)
	require.NoError(t, err)
	_, err = s.Join(ctx, shopper, 3, models.JoinCampaignRequest{Quantity: 2})
	require.NoError(t, err)

	after, err := s.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, before.CurrentQuantity+2, after.CurrentQuantity)
}

func TestJoinRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("wholesaler", func(t *testing.T) {
		s, _, _ := newTestService()
		_, err := s.Join(ctx, &models.AuthUser{ID: 2, IsWholesaler: true}, 3, models.JoinCampaignRequest{Quantity: 1})
		assert.ErrorIs(t, err, ErrWholesaler)
	})
	t.Run("zero quantity", func(t *testing.T) {
		s, _, _ := newTestService()
		_, err := s.Join(ctx, shopper, 3, models.JoinCampaignRequest{Quantity: 0})
		assert.ErrorIs(t, err, pricing.ErrInvalidInput)
	})
	t.Run("over stock", func(t *testing.T) {
		s, _, _ := newTestService()
		_, err := s.Join(ctx, shopper, 3, models.JoinCampaignRequest{Quantity: 41})
		assert.ErrorIs(t, err, ErrExceedsStock)
	})
	t.Run("unknown tier", func(t *testing.T) {
		s, _, _ := newTestService()
		_, err := s.Join(ctx, shopper, 3, models.JoinCampaignRequest{Quantity: 1, PaymentOption: "gold"})
		assert.ErrorIs(t, err, pricing.ErrInvalidInput)
	})
	t.Run("ended", func(t *testing.T) {
		s, repo, _ := newTestService()
		repo.campaigns[3].EndTime = now
		_, err := s.Join(ctx, shopper, 3, models.JoinCampaignRequest{Quantity: 1})
		assert.ErrorIs(t, err, database.ErrCampaignClosed)
	})
	t.Run("missing", func(t *testing.T) {
		s, _, _ := newTestService()
		_, err := s.Join(ctx, shopper, 99, models.JoinCampaignRequest{Quantity: 1})
		assert.ErrorIs(t, err, database.ErrNotFound)
	})
}

func TestStartCampaign(t *testing.T) {
	s, repo, jobs := newTestService()

	c, q, err := s.Start(context.Background(), shopper, models.StartCampaignRequest{
		VariantID: 7,
		DealType:  "vip_deal",
		Quantity:  10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(101), c.ID)
	assert.Equal(t, "Basmati rice 5kg", c.Title)
	assert.Equal(t, models.CampaignStatusActive, c.Status)
	assert.Equal(t, now.Add(7*24*time.Hour), c.EndTime)
	assert.Equal(t, pricing.TierVIP, q.Tier)
	assert.True(t, repo.participations[101][shopper.ID].DiscountedPrice.Equal(decimal.RequireFromString("6")))
	assert.Empty(t, jobs.jobs)
}

func TestStartCampaignValidation(t *testing.T) {
	ctx := context.Background()
	s, repo, _ := newTestService()

	_, _, err := s.Start(ctx, shopper, models.StartCampaignRequest{VariantID: 7, Quantity: 41})
	assert.ErrorIs(t, err, ErrExceedsStock)

	_, _, err = s.Start(ctx, shopper, models.StartCampaignRequest{VariantID: 7, Quantity: 1, EndTime: "next week"})
	var inputErr *pricing.InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "end_time", inputErr.Field)

	_, _, err = s.Start(ctx, shopper, models.StartCampaignRequest{
		VariantID: 7, Quantity: 1,
		StartTime: "2026-03-05T00:00:00Z", EndTime: "2026-03-04T00:00:00Z",
	})
	assert.ErrorIs(t, err, pricing.ErrInvalidInput)

	_, _, err = s.Start(ctx, shopper, models.StartCampaignRequest{VariantID: 8, Quantity: 1})
	assert.ErrorIs(t, err, database.ErrNotFound)

	repo.variants[7].Stock = 0
	_, _, err = s.Start(ctx, shopper, models.StartCampaignRequest{VariantID: 7, Quantity: 1})
	assert.ErrorIs(t, err, ErrExceedsStock)
}

func TestStartCampaignMeetingTargetAlone(t *testing.T) {
	s, repo, jobs := newTestService()
	repo.variants[7].MinimumOrderQuantityForOffer = 5

	c, _, err := s.Start(context.Background(), shopper, models.StartCampaignRequest{VariantID: 7, Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusAchieved, c.Status)
	require.Len(t, jobs.jobs, 1)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestService()

	_, err := s.Cancel(ctx, shopper, 3)
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = s.Cancel(ctx, shopper, 99)
	assert.ErrorIs(t, err, database.ErrNotFound)

	_, err = s.Join(ctx, shopper, 3, models.JoinCampaignRequest{Quantity: 3})
	require.NoError(t, err)

	result, err := s.Cancel(ctx, shopper, 3)
	require.NoError(t, err)
	assert.Equal(t, 30, result.CurrentQuantity)
	assert.Equal(t, 4, result.CurrentParticipants)

	campaigns, err := s.UserCampaigns(ctx, shopper)
	require.NoError(t, err)
	assert.Empty(t, campaigns)
}
