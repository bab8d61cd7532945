package handlers

import (
	"context"
	"encoding/gob"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/shopspring/decimal"

	"bastaku-campaign-api/logger"
	"bastaku-campaign-api/models"
	"bastaku-campaign-api/services/campaign"
	"bastaku-campaign-api/services/pricing"
	"bastaku-campaign-api/utils"
)

func init() {
	gob.Register([]models.CartItem{})
}

const (
	cartSessionName = "cart-session"
	cartKey         = "cart"
)

type VariantLookup interface {
	GetVariant(ctx context.Context, id int64) (*models.Variant, error)
	GetVariants(ctx context.Context, ids []int64) (map[int64]models.Variant, error)
}

// CartStore keeps the cart in a signed session cookie.
type CartStore struct {
	store sessions.Store
}

func NewCartStore(store sessions.Store) *CartStore {
	return &CartStore{store: store}
}

func NewCookieCartStore(secret, domain string, maxAge int, secure bool) *CartStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		Domain:   domain,
		MaxAge:   maxAge,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return NewCartStore(store)
}

// Load returns the session and its cart. A cookie that no longer decodes
// is replaced by an empty cart.
func (c *CartStore) Load(r *http.Request) (*sessions.Session, []models.CartItem, error) {
	session, err := c.store.Get(r, cartSessionName)
	if err != nil {
		if session == nil {
			return nil, nil, err
		}
		logger.Get().Debugw("discarding unreadable cart session", "error", err)
	}

	items, ok := session.Values[cartKey].([]models.CartItem)
	if !ok {
		items = []models.CartItem{}
	}
	return session, items, nil
}

func (c *CartStore) Save(w http.ResponseWriter, r *http.Request, session *sessions.Session, items []models.CartItem) error {
	session.Values[cartKey] = items
	return session.Save(r, w)
}

type CartHandler struct {
	variants VariantLookup
	carts    *CartStore
}

func NewCartHandler(variants VariantLookup, carts *CartStore) *CartHandler {
	return &CartHandler{variants: variants, carts: carts}
}

func findItem(items []models.CartItem, variantID int64) int {
	for i, item := range items {
		if item.VariantID == variantID {
			return i
		}
	}
	return -1
}

func (h *CartHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	session, items, err := h.carts.Load(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var item models.CartItem
	if !decodeJSON(w, r, &item) {
		return
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	if item.Quantity < 0 {
		writeError(w, r, &pricing.InputError{Field: "quantity", Reason: "must be at least 1"})
		return
	}

	variant, err := h.variants.GetVariant(r.Context(), item.VariantID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	idx := findItem(items, item.VariantID)
	total := item.Quantity
	if idx >= 0 {
		total += items[idx].Quantity
	}
	if total > pricing.StockBounds(variant.Stock).Upper {
		writeError(w, r, campaign.ErrExceedsStock)
		return
	}

	if idx >= 0 {
		items[idx].Quantity = total
	} else {
		items = append(items, item)
	}

	if err := h.carts.Save(w, r, session, items); err != nil {
		writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, items)
}

// UpdateCart steps one line up ("more") or down ("less") within the
// variant's stock.
func (h *CartHandler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	session, items, err := h.carts.Load(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var update models.CartUpdate
	if !decodeJSON(w, r, &update) {
		return
	}

	var delta int
	switch update.Action {
	case "more":
		delta = 1
	case "less":
		delta = -1
	default:
		utils.SendErrorResponse(w, http.StatusBadRequest, `Action must be "more" or "less"`)
		return
	}

	idx := findItem(items, update.VariantID)
	if idx < 0 {
		utils.SendErrorResponse(w, http.StatusNotFound, "Item is not in the cart")
		return
	}

	variant, err := h.variants.GetVariant(r.Context(), update.VariantID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	next := pricing.AdjustRequestedQuantity(items[idx].Quantity, delta, pricing.StockBounds(variant.Stock))
	if next < 1 {
		// Out of stock.
		items = append(items[:idx], items[idx+1:]...)
	} else {
		items[idx].Quantity = next
	}

	if err := h.carts.Save(w, r, session, items); err != nil {
		writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, items)
}

func (h *CartHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	session, items, err := h.carts.Load(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req struct {
		VariantID int64 `json:"variant_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if idx := findItem(items, req.VariantID); idx >= 0 {
		items = append(items[:idx], items[idx+1:]...)
	}

	if err := h.carts.Save(w, r, session, items); err != nil {
		writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, items)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	_, items, err := h.carts.Load(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, items)
}

func (h *CartHandler) respond(w http.ResponseWriter, r *http.Request, status int, items []models.CartItem) {
	variants, err := lookupVariants(r.Context(), h.variants, items)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.SendJSON(w, status, models.APIResponse{
		Status: models.StatusSuccess,
		Data:   cartResponse(items, variants),
	})
}

func lookupVariants(ctx context.Context, variants VariantLookup, items []models.CartItem) (map[int64]models.Variant, error) {
	if len(items) == 0 {
		return map[int64]models.Variant{}, nil
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.VariantID)
	}
	return variants.GetVariants(ctx, ids)
}

// cartResponse prices the cart at base prices. Lines whose variant has
// disappeared from the catalog are left out.
func cartResponse(items []models.CartItem, variants map[int64]models.Variant) models.CartResponse {
	resp := models.CartResponse{Items: []models.CartItemResponse{}}
	total := decimal.Zero

	for _, item := range items {
		v, ok := variants[item.VariantID]
		if !ok {
			continue
		}
		line, err := pricing.Total(v.Price, item.Quantity)
		if err != nil {
			continue
		}
		total = total.Add(line)
		resp.ItemCount += item.Quantity
		resp.Items = append(resp.Items, models.CartItemResponse{
			VariantID:   v.ID,
			ProductName: v.ProductName,
			Brand:       v.Brand,
			Quantity:    item.Quantity,
			Stock:       v.Stock,
			UnitPrice:   utils.FormatKD(v.Price),
			LineTotal:   utils.FormatKD(line),
		})
	}

	resp.CartTotal = utils.FormatKD(total)
	return resp
}
