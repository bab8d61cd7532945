package handlers

import (
	"net/http"

	"bastaku-campaign-api/models"
	"bastaku-campaign-api/services/campaign"
	"bastaku-campaign-api/services/pricing"
	"bastaku-campaign-api/utils"
)

type PricingHandler struct{}

func NewPricingHandler() *PricingHandler {
	return &PricingHandler{}
}

// Quote prices explicit inputs without touching stored campaigns.
func (h *PricingHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var in models.QuoteInput
	if !decodeJSON(w, r, &in) {
		return
	}

	tier, err := campaign.ParseTierOrFree(in.Tier)
	if err != nil {
		writeError(w, r, err)
		return
	}

	q, err := pricing.BuildQuote(pricing.QuoteRequest{
		BasePrice:          in.BasePrice,
		DiscountPercentage: in.DiscountPercentage,
		Tier:               tier,
		CurrentQuantity:    in.CurrentQuantity,
		RequestedQuantity:  in.RequestedQuantity,
		TargetQuantity:     in.TargetQuantity,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{Data: quoteView(q)})
}
