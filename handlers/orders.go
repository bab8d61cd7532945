package handlers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"bastaku-campaign-api/database"
	"bastaku-campaign-api/logger"
	"bastaku-campaign-api/models"
	"bastaku-campaign-api/services/pricing"
	"bastaku-campaign-api/utils"
)

type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	ListOrders(ctx context.Context, userID int64) ([]models.Order, error)
}

type OrderHandler struct {
	orders   OrderStore
	variants VariantLookup
	carts    *CartStore
}

func NewOrderHandler(orders OrderStore, variants VariantLookup, carts *CartStore) *OrderHandler {
	return &OrderHandler{orders: orders, variants: variants, carts: carts}
}

// Checkout turns the session cart into a pending order and empties the cart.
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	session, items, err := h.carts.Load(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(items) == 0 {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Cart is empty")
		return
	}

	variants, err := lookupVariants(r.Context(), h.variants, items)
	if err != nil {
		writeError(w, r, err)
		return
	}

	order := &models.Order{UserID: user.ID}
	total := decimal.Zero
	for _, item := range items {
		v, ok := variants[item.VariantID]
		if !ok {
			writeError(w, r, database.ErrNotFound)
			return
		}
		line, err := pricing.Total(v.Price, item.Quantity)
		if err != nil {
			writeError(w, r, err)
			return
		}
		total = total.Add(line)
		order.Items = append(order.Items, models.OrderItem{
			VariantID:   v.ID,
			ProductName: v.ProductName,
			Quantity:    item.Quantity,
			Price:       v.Price,
		})
	}
	order.TotalAmount = utils.RoundKD(total)

	if err := h.orders.CreateOrder(r.Context(), order); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.carts.Save(w, r, session, []models.CartItem{}); err != nil {
		logger.Get().Warnw("failed to clear cart after checkout", "order_id", order.ID, "error", err)
	}

	utils.SendJSON(w, http.StatusCreated, models.APIResponse{
		Status:  models.StatusSuccess,
		Message: "Order placed",
		Data:    order,
	})
}

func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.ListOrders(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.SendSuccessResponse(w, models.APIResponse{Data: orders})
}
