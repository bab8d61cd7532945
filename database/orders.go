package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bastaku-campaign-api/logger"
	"bastaku-campaign-api/models"
)

// CreateOrder reserves stock for every line and stores the order. The whole
// checkout fails with ErrInsufficientStock if any line cannot be served.
func (c *Connection) CreateOrder(ctx context.Context, order *models.Order) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}

	err := c.withTransaction(ctx, func(tx *Transaction) error {
		for _, item := range order.Items {
			if err := tx.reserveStock(ctx, item.VariantID, item.Quantity); err != nil {
				return err
			}
		}
		return tx.insertOrder(ctx, order)
	})
	if err != nil {
		return err
	}

	logger.Get().Infow("order created", "order_id", order.ID, "user_id", order.UserID, "total", order.TotalAmount.String())
	return nil
}

func (c *Connection) ListOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, user_id, campaign_id, total_amount, status, created_at
		FROM orders
		WHERE user_id = ?
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, translate(err, "failed to list orders")
	}

	orders := []models.Order{}
	for rows.Next() {
		var (
			o          models.Order
			campaignID *int64
		)
		if err := rows.Scan(&o.ID, &o.UserID, &campaignID, &o.TotalAmount, &o.Status, &o.CreatedAt); err != nil {
			rows.Close()
			return nil, translate(err, "failed to scan order")
		}
		o.CampaignID = campaignID
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, translate(err, "failed to iterate orders")
	}

	for i := range orders {
		items, err := c.orderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (c *Connection) orderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT oi.variant_id, p.name, oi.quantity, oi.price
		FROM order_items oi
		JOIN variants v ON v.id = oi.variant_id
		JOIN products p ON p.id = v.product_id
		WHERE oi.order_id = ?
		ORDER BY oi.id ASC`, orderID)
	if err != nil {
		return nil, translate(err, "failed to list order items")
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.VariantID, &item.ProductName, &item.Quantity, &item.Price); err != nil {
			return nil, translate(err, "failed to scan order item")
		}
		items = append(items, item)
	}
	return items, translate(rows.Err(), "failed to iterate order items")
}

// FinalizeCampaign turns every participation of an achieved campaign into a
// confirmed order at the price locked in when the participant joined, then
// marks the campaign completed. Finalizing a completed campaign is a no-op.
func (c *Connection) FinalizeCampaign(ctx context.Context, campaignID int64) ([]models.Order, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var orders []models.Order
	err := c.withTransaction(ctx, func(tx *Transaction) error {
		lock, err := tx.lockCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		switch lock.Status {
		case models.CampaignStatusCompleted:
			return nil
		case models.CampaignStatusAchieved:
		default:
			return ErrCampaignClosed
		}

		rows, err := tx.tx.QueryContext(ctx, `
			SELECT id, campaign_id, user_id, quantity, payment_option, discounted_price, joined_at
			FROM campaign_participants
			WHERE campaign_id = ?
			ORDER BY id ASC`, campaignID)
		if err != nil {
			return translate(err, "failed to list participations")
		}
		participations, err := scanParticipations(rows)
		rows.Close()
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, p := range participations {
			id := campaignID
			order := models.Order{
				ID:          uuid.NewString(),
				UserID:      p.UserID,
				CampaignID:  &id,
				TotalAmount: p.DiscountedPrice.Mul(decimal.NewFromInt(int64(p.Quantity))),
				Status:      models.OrderStatusConfirmed,
				CreatedAt:   now,
				Items: []models.OrderItem{{
					VariantID: lock.VariantID,
					Quantity:  p.Quantity,
					Price:     p.DiscountedPrice,
				}},
			}
			if err := tx.insertOrder(ctx, &order); err != nil {
				return err
			}
			orders = append(orders, order)
		}

		// Checkout orders may have consumed stock since the joins were accepted.
		_, err = tx.tx.ExecContext(ctx, `
			UPDATE variants SET stock = GREATEST(stock - ?, 0) WHERE id = ?`, lock.CurrentQuantity, lock.VariantID)
		if err != nil {
			return translate(err, "failed to update stock")
		}
		return tx.setCampaignStatus(ctx, campaignID, models.CampaignStatusCompleted)
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Infow("campaign finalized", "campaign_id", campaignID, "orders", len(orders))
	return orders, nil
}
