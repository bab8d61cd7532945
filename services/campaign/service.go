// Package campaign coordinates joining, starting and withdrawing from group
// buying campaigns on top of the pricing engine and the campaign store.
package campaign

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"bastaku-campaign-api/cache"
	"bastaku-campaign-api/database"
	"bastaku-campaign-api/logger"
	"bastaku-campaign-api/models"
	"bastaku-campaign-api/queue"
	"bastaku-campaign-api/services/pricing"
	"bastaku-campaign-api/utils"
)

var (
	ErrWholesaler     = errors.New("wholesale accounts cannot take part in campaigns")
	ErrExceedsStock   = errors.New("requested quantity exceeds available stock")
	ErrNotParticipant = errors.New("user is not part of this campaign")
)

// Repository is the campaign store. *database.Connection implements it.
type Repository interface {
	GetCampaign(ctx context.Context, id int64) (*models.Campaign, error)
	ListActiveCampaigns(ctx context.Context) ([]models.Campaign, error)
	ListUserCampaigns(ctx context.Context, userID int64) ([]models.UserCampaign, error)
	GetVariant(ctx context.Context, id int64) (*models.Variant, error)
	StartCampaign(ctx context.Context, campaign *models.Campaign, starter *models.Participation) (int64, error)
	JoinCampaign(ctx context.Context, p *models.Participation, now time.Time) (*database.JoinResult, error)
	CancelParticipation(ctx context.Context, campaignID, userID int64) (*database.JoinResult, error)
}

type JobQueue interface {
	Enqueue(ctx context.Context, jobType queue.JobType, data map[string]interface{}) error
}

type Service struct {
	repo     Repository
	cache    cache.CampaignCache
	jobs     JobQueue
	duration time.Duration
	now      func() time.Time
}

func NewService(repo Repository, c cache.CampaignCache, jobs JobQueue, duration time.Duration) *Service {
	if duration <= 0 {
		duration = utils.DefaultCampaignDuration
	}
	return &Service{
		repo:     repo,
		cache:    c,
		jobs:     jobs,
		duration: duration,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Detail is a campaign priced for one prospective participation.
type Detail struct {
	Campaign *models.Campaign
	Quote    pricing.Quote
}

// JoinOutcome is what a participant committed to and where the campaign
// stands afterwards.
type JoinOutcome struct {
	Participation models.Participation
	Quote         pricing.Quote
	Campaign      database.JoinResult
}

// ParseTierOrFree parses a payment option, treating an empty value as the
// free tier.
func ParseTierOrFree(s string) (pricing.PaymentTier, error) {
	if strings.TrimSpace(s) == "" {
		return pricing.TierFree, nil
	}
	return pricing.ParseTier(s)
}

func quoteFor(v models.Variant, current, requested int, tier pricing.PaymentTier) (pricing.Quote, error) {
	return pricing.BuildQuote(pricing.QuoteRequest{
		BasePrice:          v.Price,
		DiscountPercentage: v.CampaignDiscountPercentage,
		Tier:               tier,
		CurrentQuantity:    current,
		RequestedQuantity:  requested,
		TargetQuantity:     v.MinimumOrderQuantityForOffer,
	})
}

func checkQuantity(quantity, stock int) error {
	if quantity < 1 {
		return &pricing.InputError{Field: "quantity", Reason: "must be at least 1"}
	}
	if quantity > pricing.StockBounds(stock).Upper {
		return ErrExceedsStock
	}
	return nil
}

// Get reads a campaign through the cache.
func (s *Service) Get(ctx context.Context, id int64) (*models.Campaign, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, id)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			logger.Get().Warnw("campaign cache read failed", "campaign_id", id, "error", err)
		}
	}

	c, err := s.repo.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, c); err != nil {
			logger.Get().Warnw("campaign cache write failed", "campaign_id", id, "error", err)
		}
	}
	return c, nil
}

func (s *Service) List(ctx context.Context) ([]models.Campaign, error) {
	return s.repo.ListActiveCampaigns(ctx)
}

// Detail prices requested units of a campaign at the given tier and shows
// the progress the campaign would make with them.
func (s *Service) Detail(ctx context.Context, id int64, tierName string, requested int) (*Detail, error) {
	tier, err := ParseTierOrFree(tierName)
	if err != nil {
		return nil, err
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	q, err := quoteFor(c.Variant, c.CurrentQuantity, requested, tier)
	if err != nil {
		return nil, err
	}
	return &Detail{Campaign: c, Quote: q}, nil
}

func (s *Service) Join(ctx context.Context, user *models.AuthUser, id int64, req models.JoinCampaignRequest) (*JoinOutcome, error) {
	if user.IsWholesaler {
		return nil, ErrWholesaler
	}
	tier, err := ParseTierOrFree(req.PaymentOption)
	if err != nil {
		return nil, err
	}

	// Stock and counters must be current, so this skips the cache.
	c, err := s.repo.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !c.Status.Open() || !now.Before(c.EndTime) {
		return nil, database.ErrCampaignClosed
	}
	if err := checkQuantity(req.Quantity, c.Variant.Stock); err != nil {
		return nil, err
	}

	q, err := quoteFor(c.Variant, c.CurrentQuantity, req.Quantity, tier)
	if err != nil {
		return nil, err
	}

	p := models.Participation{
		CampaignID:      id,
		UserID:          user.ID,
		Quantity:        req.Quantity,
		Tier:            tier,
		DiscountedPrice: utils.RoundKD(q.EffectiveUnitPrice),
		JoinedAt:        now,
	}
	result, err := s.repo.JoinCampaign(ctx, &p, now)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)

	logger.Get().Infow("joined campaign",
		"campaign_id", id, "user_id", user.ID, "quantity", req.Quantity, "tier", tier.String(),
		"current_quantity", result.CurrentQuantity, "status", result.Status)

	if result.Achieved() {
		s.enqueueFinalize(ctx, id)
	}
	return &JoinOutcome{Participation: p, Quote: q, Campaign: *result}, nil
}

// Start opens a campaign on a variant with the caller as its first
// participant.
func (s *Service) Start(ctx context.Context, user *models.AuthUser, req models.StartCampaignRequest) (*models.Campaign, *pricing.Quote, error) {
	if user.IsWholesaler {
		return nil, nil, ErrWholesaler
	}

	option := req.PaymentOption
	if strings.TrimSpace(option) == "" {
		option = req.DealType
	}
	tier, err := ParseTierOrFree(option)
	if err != nil {
		return nil, nil, err
	}

	variant, err := s.repo.GetVariant(ctx, req.VariantID)
	if err != nil {
		return nil, nil, err
	}
	if err := checkQuantity(req.Quantity, variant.Stock); err != nil {
		return nil, nil, err
	}

	start, end, err := s.window(req.StartTime, req.EndTime)
	if err != nil {
		return nil, nil, err
	}

	q, err := quoteFor(*variant, 0, req.Quantity, tier)
	if err != nil {
		return nil, nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = variant.ProductName
	}
	c := &models.Campaign{
		Title:               title,
		Variant:             *variant,
		StartedBy:           user.ID,
		CurrentQuantity:     req.Quantity,
		CurrentParticipants: 1,
		Status:              models.CampaignStatusActive,
		StartTime:           start,
		EndTime:             end,
	}
	if q.Progress.Achieved {
		c.Status = models.CampaignStatusAchieved
	}

	starter := &models.Participation{
		UserID:          user.ID,
		Quantity:        req.Quantity,
		Tier:            tier,
		DiscountedPrice: utils.RoundKD(q.EffectiveUnitPrice),
		JoinedAt:        s.now(),
	}
	id, err := s.repo.StartCampaign(ctx, c, starter)
	if err != nil {
		return nil, nil, err
	}
	c.ID = id

	if c.Status == models.CampaignStatusAchieved {
		s.enqueueFinalize(ctx, id)
	}
	return c, &q, nil
}

func (s *Service) window(startValue, endValue string) (time.Time, time.Time, error) {
	start, err := utils.ParseTimestamp(startValue)
	if err != nil {
		return time.Time{}, time.Time{}, &pricing.InputError{Field: "start_time", Reason: "must be an RFC 3339 timestamp"}
	}
	end, err := utils.ParseTimestamp(endValue)
	if err != nil {
		return time.Time{}, time.Time{}, &pricing.InputError{Field: "end_time", Reason: "must be an RFC 3339 timestamp"}
	}

	if start.IsZero() {
		start = s.now()
	}
	if end.IsZero() {
		_, end = utils.CampaignWindow(start, s.duration)
	}
	if !end.After(start) || !end.After(s.now()) {
		return time.Time{}, time.Time{}, &pricing.InputError{Field: "end_time", Reason: "must be after the start time and in the future"}
	}
	return start, end, nil
}

// Cancel withdraws the user's participation.
func (s *Service) Cancel(ctx context.Context, user *models.AuthUser, id int64) (*database.JoinResult, error) {
	result, err := s.repo.CancelParticipation(ctx, id, user.ID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// Distinguish a missing campaign from a missing participation.
			if _, getErr := s.repo.GetCampaign(ctx, id); getErr == nil {
				return nil, ErrNotParticipant
			}
		}
		return nil, err
	}
	s.invalidate(ctx, id)

	logger.Get().Infow("left campaign", "campaign_id", id, "user_id", user.ID, "status", result.Status)
	return result, nil
}

func (s *Service) UserCampaigns(ctx context.Context, user *models.AuthUser) ([]models.UserCampaign, error) {
	return s.repo.ListUserCampaigns(ctx, user.ID)
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		logger.Get().Warnw("campaign cache invalidation failed", "campaign_id", id, "error", err)
	}
}

// enqueueFinalize never fails the request; the expiry sweep picks up
// achieved campaigns whose job was lost.
func (s *Service) enqueueFinalize(ctx context.Context, id int64) {
	if s.jobs == nil {
		return
	}
	err := s.jobs.Enqueue(ctx, queue.JobTypeFinalizeCampaign, map[string]interface{}{"campaign_id": id})
	if err != nil {
		logger.Get().Errorw("failed to enqueue campaign finalization", "campaign_id", id, "error", err)
	}
}
