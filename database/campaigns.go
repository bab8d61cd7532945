package database

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"bastaku-campaign-api/logger"
	"bastaku-campaign-api/models"
	"bastaku-campaign-api/services/pricing"
)

const campaignSelect = `
	SELECT c.id, c.title, c.started_by, c.current_quantity, c.current_participants,
	       c.status, c.start_time, c.end_time,` + variantColumns + `
	FROM campaigns c
	JOIN variants v ON v.id = c.variant_id
	JOIN products p ON p.id = v.product_id`

func campaignDest(c *models.Campaign) []interface{} {
	return []interface{}{
		&c.ID,
		&c.Title,
		&c.StartedBy,
		&c.CurrentQuantity,
		&c.CurrentParticipants,
		&c.Status,
		&c.StartTime,
		&c.EndTime,
		&c.Variant.ID,
		&c.Variant.ProductID,
		&c.Variant.ProductName,
		&c.Variant.Brand,
		&c.Variant.Size,
		&c.Variant.Weight,
		&c.Variant.Price,
		&c.Variant.CampaignDiscountPercentage,
		&c.Variant.MinimumOrderQuantityForOffer,
		&c.Variant.Stock,
	}
}

// JoinResult is the campaign state right after a participation change.
type JoinResult struct {
	CampaignID          int64
	CurrentQuantity     int
	CurrentParticipants int
	Status              models.CampaignStatus
}

func (r JoinResult) Achieved() bool {
	return r.Status == models.CampaignStatusAchieved
}

func (c *Connection) GetCampaign(ctx context.Context, id int64) (*models.Campaign, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var campaign models.Campaign
	err := c.db.QueryRowContext(ctx, campaignSelect+` WHERE c.id = ?`, id).Scan(campaignDest(&campaign)...)
	if err != nil {
		return nil, translate(err, "failed to get campaign")
	}
	return &campaign, nil
}

func (c *Connection) ListActiveCampaigns(ctx context.Context) ([]models.Campaign, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, campaignSelect+`
		WHERE c.status = ?
		ORDER BY c.end_time ASC`, models.CampaignStatusActive)
	if err != nil {
		return nil, translate(err, "failed to list campaigns")
	}
	defer rows.Close()

	campaigns := []models.Campaign{}
	for rows.Next() {
		var campaign models.Campaign
		if err := rows.Scan(campaignDest(&campaign)...); err != nil {
			return nil, translate(err, "failed to scan campaign")
		}
		campaigns = append(campaigns, campaign)
	}
	return campaigns, translate(rows.Err(), "failed to iterate campaigns")
}

// ListUserCampaigns returns every campaign the user takes part in, newest
// participation first.
func (c *Connection) ListUserCampaigns(ctx context.Context, userID int64) ([]models.UserCampaign, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `
	SELECT c.id, c.title, c.started_by, c.current_quantity, c.current_participants,
	       c.status, c.start_time, c.end_time,`+variantColumns+`,
	       cp.id, cp.quantity, cp.payment_option, cp.discounted_price, cp.joined_at
	FROM campaign_participants cp
	JOIN campaigns c ON c.id = cp.campaign_id
	JOIN variants v ON v.id = c.variant_id
	JOIN products p ON p.id = v.product_id
	WHERE cp.user_id = ?
	ORDER BY cp.joined_at DESC`, userID)
	if err != nil {
		return nil, translate(err, "failed to list user campaigns")
	}
	defer rows.Close()

	result := []models.UserCampaign{}
	for rows.Next() {
		var (
			uc   models.UserCampaign
			tier string
		)
		dest := append(campaignDest(&uc.Campaign),
			&uc.Participation.ID,
			&uc.Participation.Quantity,
			&tier,
			&uc.Participation.DiscountedPrice,
			&uc.Participation.JoinedAt,
		)
		if err := rows.Scan(dest...); err != nil {
			return nil, translate(err, "failed to scan user campaign")
		}
		if uc.Participation.Tier, err = pricing.ParseTier(tier); err != nil {
			return nil, errors.Wrapf(err, "participation %d", uc.Participation.ID)
		}
		uc.Participation.CampaignID = uc.Campaign.ID
		uc.Participation.UserID = userID
		result = append(result, uc)
	}
	return result, translate(rows.Err(), "failed to iterate user campaigns")
}

func (c *Connection) ListParticipations(ctx context.Context, campaignID int64) ([]models.Participation, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, campaign_id, user_id, quantity, payment_option, discounted_price, joined_at
		FROM campaign_participants
		WHERE campaign_id = ?
		ORDER BY id ASC`, campaignID)
	if err != nil {
		return nil, translate(err, "failed to list participations")
	}
	defer rows.Close()
	return scanParticipations(rows)
}

func scanParticipations(rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}) ([]models.Participation, error) {
	result := []models.Participation{}
	for rows.Next() {
		var (
			p    models.Participation
			tier string
		)
		if err := rows.Scan(&p.ID, &p.CampaignID, &p.UserID, &p.Quantity, &tier, &p.DiscountedPrice, &p.JoinedAt); err != nil {
			return nil, translate(err, "failed to scan participation")
		}
		parsed, err := pricing.ParseTier(tier)
		if err != nil {
			return nil, errors.Wrapf(err, "participation %d", p.ID)
		}
		p.Tier = parsed
		result = append(result, p)
	}
	return result, translate(rows.Err(), "failed to iterate participations")
}

// StartCampaign opens a campaign for a variant with its starter as the
// first participant, returning the new campaign id.
func (c *Connection) StartCampaign(ctx context.Context, campaign *models.Campaign, starter *models.Participation) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var campaignID int64
	err := c.withTransaction(ctx, func(tx *Transaction) error {
		result, err := tx.tx.ExecContext(ctx, `
			INSERT INTO campaigns
				(variant_id, title, started_by, current_quantity, current_participants, status, start_time, end_time)
			VALUES (?, ?, ?, ?, 1, ?, ?, ?)`,
			campaign.Variant.ID, campaign.Title, campaign.StartedBy, starter.Quantity,
			campaign.Status, campaign.StartTime, campaign.EndTime)
		if err != nil {
			return translate(err, "failed to save campaign")
		}
		if campaignID, err = result.LastInsertId(); err != nil {
			return translate(err, "failed to read campaign id")
		}

		starter.CampaignID = campaignID
		return tx.insertParticipation(ctx, starter)
	})
	if err != nil {
		return 0, err
	}

	logger.Get().Infow("campaign started", "campaign_id", campaignID, "variant_id", campaign.Variant.ID, "user_id", campaign.StartedBy)
	return campaignID, nil
}

// JoinCampaign adds a participation to an open campaign under a row lock,
// marking the campaign achieved once the target quantity is reached. The
// committed quantity plus the request may not exceed the variant's stock.
func (c *Connection) JoinCampaign(ctx context.Context, p *models.Participation, now time.Time) (*JoinResult, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var result JoinResult
	err := c.withTransaction(ctx, func(tx *Transaction) error {
		lock, err := tx.lockCampaign(ctx, p.CampaignID)
		if err != nil {
			return err
		}
		if !lock.Status.Open() || !now.Before(lock.EndTime) {
			return ErrCampaignClosed
		}
		if lock.CurrentQuantity+p.Quantity > lock.Stock {
			return ErrInsufficientStock
		}

		inserted, err := tx.addParticipation(ctx, p)
		if err != nil {
			return err
		}
		if inserted {
			lock.CurrentParticipants++
		}

		progress, err := pricing.ComputeProgress(lock.CurrentQuantity, p.Quantity, lock.TargetQuantity)
		if err != nil {
			return errors.Wrapf(err, "campaign %d", lock.ID)
		}
		lock.CurrentQuantity = progress.Combined
		if progress.Achieved {
			lock.Status = models.CampaignStatusAchieved
		}
		if err := tx.updateCampaignCounters(ctx, lock); err != nil {
			return err
		}

		result = JoinResult{
			CampaignID:          lock.ID,
			CurrentQuantity:     lock.CurrentQuantity,
			CurrentParticipants: lock.CurrentParticipants,
			Status:              lock.Status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelParticipation withdraws a user's participation from an open
// campaign. A campaign left without participants is cancelled.
func (c *Connection) CancelParticipation(ctx context.Context, campaignID, userID int64) (*JoinResult, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var result JoinResult
	err := c.withTransaction(ctx, func(tx *Transaction) error {
		lock, err := tx.lockCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		if !lock.Status.Open() {
			return ErrCampaignClosed
		}

		var quantity int
		err = tx.tx.QueryRowContext(ctx, `
			SELECT quantity FROM campaign_participants
			WHERE campaign_id = ? AND user_id = ?
			FOR UPDATE`, campaignID, userID).Scan(&quantity)
		if err != nil {
			return translate(err, "failed to lock participation")
		}

		_, err = tx.tx.ExecContext(ctx, `
			DELETE FROM campaign_participants WHERE campaign_id = ? AND user_id = ?`, campaignID, userID)
		if err != nil {
			return translate(err, "failed to delete participation")
		}

		lock.CurrentQuantity -= quantity
		if lock.CurrentQuantity < 0 {
			lock.CurrentQuantity = 0
		}
		lock.CurrentParticipants--
		if lock.CurrentParticipants <= 0 {
			lock.CurrentParticipants = 0
			lock.Status = models.CampaignStatusCancelled
		}
		if err := tx.updateCampaignCounters(ctx, lock); err != nil {
			return err
		}

		result = JoinResult{
			CampaignID:          lock.ID,
			CurrentQuantity:     lock.CurrentQuantity,
			CurrentParticipants: lock.CurrentParticipants,
			Status:              lock.Status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ExpireCampaigns closes every active campaign whose window ended before
// now and returns the ids it closed.
func (c *Connection) ExpireCampaigns(ctx context.Context, now time.Time) ([]int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	ids := []int64{}
	err := c.withTransaction(ctx, func(tx *Transaction) error {
		rows, err := tx.tx.QueryContext(ctx, `
			SELECT id FROM campaigns
			WHERE status = ? AND end_time <= ?
			ORDER BY id ASC
			FOR UPDATE`, models.CampaignStatusActive, now)
		if err != nil {
			return translate(err, "failed to lock stale campaigns")
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return translate(err, "failed to scan campaign id")
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return translate(err, "failed to iterate stale campaigns")
		}
		if len(ids) == 0 {
			return nil
		}

		args := make([]interface{}, 0, len(ids)+1)
		args = append(args, models.CampaignStatusExpired)
		for _, id := range ids {
			args = append(args, id)
		}
		_, err = tx.tx.ExecContext(ctx,
			`UPDATE campaigns SET status = ? WHERE id IN (`+placeholders(len(ids))+`)`, args...)
		return translate(err, "failed to expire campaigns")
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListCampaignIDsByStatus returns the ids of every campaign in status.
func (c *Connection) ListCampaignIDsByStatus(ctx context.Context, status models.CampaignStatus) ([]int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `SELECT id FROM campaigns WHERE status = ? ORDER BY id ASC`, status)
	if err != nil {
		return nil, translate(err, "failed to list campaign ids")
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, translate(err, "failed to scan campaign id")
		}
		ids = append(ids, id)
	}
	return ids, translate(rows.Err(), "failed to iterate campaign ids")
}
