package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"bastaku-campaign-api/models"
)

type Transaction struct {
	tx *sql.Tx
}

func (t *Transaction) Commit() error {
	return t.tx.Commit()
}

func (t *Transaction) Rollback() error {
	return t.tx.Rollback()
}

// campaignLock is the mutable part of a campaign row read under FOR UPDATE.
type campaignLock struct {
	ID                  int64
	VariantID           int64
	Status              models.CampaignStatus
	CurrentQuantity     int
	CurrentParticipants int
	EndTime             time.Time
	TargetQuantity      int
	Stock               int
}

func (t *Transaction) lockCampaign(ctx context.Context, campaignID int64) (*campaignLock, error) {
	var l campaignLock
	err := t.tx.QueryRowContext(ctx, `
		SELECT c.id, c.variant_id, c.status, c.current_quantity, c.current_participants,
		       c.end_time, v.minimum_order_quantity_for_offer, v.stock
		FROM campaigns c
		JOIN variants v ON v.id = c.variant_id
		WHERE c.id = ?
		FOR UPDATE`, campaignID).Scan(
		&l.ID,
		&l.VariantID,
		&l.Status,
		&l.CurrentQuantity,
		&l.CurrentParticipants,
		&l.EndTime,
		&l.TargetQuantity,
		&l.Stock,
	)
	if err != nil {
		return nil, translate(err, "failed to lock campaign")
	}
	return &l, nil
}

func (t *Transaction) updateCampaignCounters(ctx context.Context, l *campaignLock) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE campaigns
		SET current_quantity = ?, current_participants = ?, status = ?
		WHERE id = ?`,
		l.CurrentQuantity, l.CurrentParticipants, l.Status, l.ID)
	return translate(err, "failed to update campaign")
}

func (t *Transaction) setCampaignStatus(ctx context.Context, campaignID int64, status models.CampaignStatus) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE campaigns SET status = ? WHERE id = ?`, status, campaignID)
	return translate(err, "failed to update campaign status")
}

func (t *Transaction) insertParticipation(ctx context.Context, p *models.Participation) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO campaign_participants
			(campaign_id, user_id, quantity, payment_option, discounted_price, joined_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.CampaignID, p.UserID, p.Quantity, p.Tier.String(), p.DiscountedPrice, p.JoinedAt)
	return translate(err, "failed to save participation")
}

// addParticipation records a join. A first join inserts a row; a repeat
// join adds units only when its tier and unit price match the committed
// ones, so earlier units are never repriced. It reports whether a new
// participant row was inserted.
func (t *Transaction) addParticipation(ctx context.Context, p *models.Participation) (bool, error) {
	var (
		tier  string
		price decimal.Decimal
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT payment_option, discounted_price FROM campaign_participants
		WHERE campaign_id = ? AND user_id = ?
		FOR UPDATE`, p.CampaignID, p.UserID).Scan(&tier, &price)
	if errors.Is(err, sql.ErrNoRows) {
		return true, t.insertParticipation(ctx, p)
	}
	if err != nil {
		return false, translate(err, "failed to lock participation")
	}

	if tier != p.Tier.String() || !price.Equal(p.DiscountedPrice) {
		return false, ErrParticipationConflict
	}

	_, err = t.tx.ExecContext(ctx, `
		UPDATE campaign_participants SET quantity = quantity + ?
		WHERE campaign_id = ? AND user_id = ?`,
		p.Quantity, p.CampaignID, p.UserID)
	return false, translate(err, "failed to update participation")
}

func (t *Transaction) insertOrder(ctx context.Context, o *models.Order) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, campaign_id, total_amount, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.CampaignID, o.TotalAmount, o.Status, o.CreatedAt)
	if err != nil {
		return translate(err, "failed to save order")
	}

	for _, item := range o.Items {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, variant_id, quantity, price)
			VALUES (?, ?, ?, ?)`,
			o.ID, item.VariantID, item.Quantity, item.Price)
		if err != nil {
			return translate(err, "failed to save order item")
		}
	}
	return nil
}

// reserveStock decrements stock for a variant, failing when fewer than
// quantity units remain.
func (t *Transaction) reserveStock(ctx context.Context, variantID int64, quantity int) error {
	var stock int
	err := t.tx.QueryRowContext(ctx, `SELECT stock FROM variants WHERE id = ? FOR UPDATE`, variantID).Scan(&stock)
	if err != nil {
		return translate(err, "failed to lock variant stock")
	}
	if stock < quantity {
		return ErrInsufficientStock
	}
	_, err = t.tx.ExecContext(ctx, `UPDATE variants SET stock = stock - ? WHERE id = ?`, quantity, variantID)
	return translate(err, "failed to update stock")
}
