package handlers

import (
	"context"
	"net/http"

	"bastaku-campaign-api/database"
	"bastaku-campaign-api/middleware"
	"bastaku-campaign-api/models"
	"bastaku-campaign-api/services/campaign"
	"bastaku-campaign-api/services/pricing"
	"bastaku-campaign-api/utils"
)

// CampaignService is implemented by *campaign.Service.
type CampaignService interface {
	List(ctx context.Context) ([]models.Campaign, error)
	Detail(ctx context.Context, id int64, tier string, requested int) (*campaign.Detail, error)
	Join(ctx context.Context, user *models.AuthUser, id int64, req models.JoinCampaignRequest) (*campaign.JoinOutcome, error)
	Start(ctx context.Context, user *models.AuthUser, req models.StartCampaignRequest) (*models.Campaign, *pricing.Quote, error)
	Cancel(ctx context.Context, user *models.AuthUser, id int64) (*database.JoinResult, error)
	UserCampaigns(ctx context.Context, user *models.AuthUser) ([]models.UserCampaign, error)
}

type CampaignHandler struct {
	campaigns CampaignService
}

func NewCampaignHandler(campaigns CampaignService) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns}
}

type campaignCard struct {
	models.Campaign
	CampaignUnitPrice string               `json:"campaign_unit_price"`
	Progress          *models.ProgressView `json:"progress,omitempty"`
}

type campaignState struct {
	ID                  int64                 `json:"id"`
	CurrentQuantity     int                   `json:"current_quantity"`
	CurrentParticipants int                   `json:"current_participants"`
	Status              models.CampaignStatus `json:"status"`
}

type joinResponse struct {
	Participation models.Participation `json:"participation"`
	Quote         models.QuoteView     `json:"quote"`
	Campaign      campaignState        `json:"campaign"`
}

type startResponse struct {
	Campaign models.Campaign  `json:"campaign"`
	Quote    models.QuoteView `json:"quote"`
}

func stateOf(r database.JoinResult) campaignState {
	return campaignState{
		ID:                  r.CampaignID,
		CurrentQuantity:     r.CurrentQuantity,
		CurrentParticipants: r.CurrentParticipants,
		Status:              r.Status,
	}
}

func card(c models.Campaign) campaignCard {
	out := campaignCard{Campaign: c}
	if price, err := pricing.CampaignUnitPrice(c.Variant.Price, c.Variant.CampaignDiscountPercentage); err == nil {
		out.CampaignUnitPrice = utils.FormatKD(price)
	}
	if p, err := pricing.ComputeProgress(c.CurrentQuantity, 0, c.Variant.MinimumOrderQuantityForOffer); err == nil {
		out.Progress = &models.ProgressView{
			Percentage: utils.FormatPercent(p.Percentage),
			Remaining:  p.Remaining,
			Achieved:   p.Achieved,
			Band:       string(p.Band),
			Combined:   p.Combined,
			Target:     p.Target,
		}
	}
	return out
}

func (h *CampaignHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.campaigns.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	cards := make([]campaignCard, 0, len(campaigns))
	for _, c := range campaigns {
		cards = append(cards, card(c))
	}
	utils.SendSuccessResponse(w, models.APIResponse{Data: cards})
}

// GetCampaign shows a campaign priced for ?tier= and ?quantity= (default 1).
func (h *CampaignHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	quantity, err := queryInt(r, "quantity", 1)
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid quantity")
		return
	}

	detail, err := h.campaigns.Detail(r.Context(), id, r.URL.Query().Get("tier"), quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{Data: models.CampaignDetail{
		Campaign: *detail.Campaign,
		Quote:    quoteView(detail.Quote),
	}})
}

func (h *CampaignHandler) JoinCampaign(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.JoinCampaignRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	out, err := h.campaigns.Join(r.Context(), user, id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	message := "Joined campaign"
	if out.Campaign.Achieved() {
		message = "Joined campaign. The target has been reached"
	}
	utils.SendSuccessResponse(w, models.APIResponse{
		Message: message,
		Data: joinResponse{
			Participation: out.Participation,
			Quote:         quoteView(out.Quote),
			Campaign:      stateOf(out.Campaign),
		},
	})
}

func (h *CampaignHandler) StartCampaign(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req models.StartCampaignRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, q, err := h.campaigns.Start(r.Context(), user, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.SendJSON(w, http.StatusCreated, models.APIResponse{
		Status:  models.StatusSuccess,
		Message: "Campaign started",
		Data:    startResponse{Campaign: *c, Quote: quoteView(*q)},
	})
}

func (h *CampaignHandler) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	result, err := h.campaigns.Cancel(r.Context(), user, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.SendSuccessResponse(w, models.APIResponse{
		Message: "Left campaign",
		Data:    stateOf(*result),
	})
}

func (h *CampaignHandler) UserCampaigns(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	campaigns, err := h.campaigns.UserCampaigns(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.SendSuccessResponse(w, models.APIResponse{Data: campaigns})
}

func requireUser(w http.ResponseWriter, r *http.Request) (*models.AuthUser, bool) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		utils.SendErrorResponse(w, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}
	return user, true
}
