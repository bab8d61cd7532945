package models

import (
	"time"

	"github.com/shopspring/decimal"

	"bastaku-campaign-api/services/pricing"
)

type CampaignStatus string

const (
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusAchieved  CampaignStatus = "achieved"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
	CampaignStatusExpired   CampaignStatus = "expired"
)

// Open reports whether participants may still join.
func (s CampaignStatus) Open() bool {
	return s == CampaignStatusActive
}

type Campaign struct {
	ID                  int64          `json:"id"`
	Title               string         `json:"title"`
	Variant             Variant        `json:"variant"`
	StartedBy           int64          `json:"started_by"`
	CurrentQuantity     int            `json:"current_quantity"`
	CurrentParticipants int            `json:"current_participants"`
	Status              CampaignStatus `json:"status"`
	StartTime           time.Time      `json:"start_time"`
	EndTime             time.Time      `json:"end_time"`
}

// Participation is one user's commitment to a campaign, priced at the
// moment they joined.
type Participation struct {
	ID              int64               `json:"id"`
	CampaignID      int64               `json:"campaign_id"`
	UserID          int64               `json:"user_id"`
	Quantity        int                 `json:"quantity"`
	Tier            pricing.PaymentTier `json:"payment_option"`
	DiscountedPrice decimal.Decimal     `json:"discounted_price"`
	JoinedAt        time.Time           `json:"joined_at"`
}

type JoinCampaignRequest struct {
	Quantity      int    `json:"participant_quantity"`
	PaymentOption string `json:"payment_option"`
}

type StartCampaignRequest struct {
	VariantID     int64  `json:"variant"`
	Title         string `json:"title"`
	PaymentOption string `json:"payment_option"`
	DealType      string `json:"deal_type"`
	Quantity      int    `json:"quantity"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

// QuoteInput is the body of the stateless pricing endpoint.
type QuoteInput struct {
	BasePrice          decimal.Decimal `json:"base_price"`
	DiscountPercentage decimal.Decimal `json:"campaign_discount_percentage"`
	Tier               string          `json:"tier"`
	CurrentQuantity    int             `json:"current_quantity"`
	RequestedQuantity  int             `json:"requested_quantity"`
	TargetQuantity     int             `json:"minimum_order_quantity_for_offer"`
}

// QuoteView is a pricing.Quote rounded for display.
type QuoteView struct {
	Tier               string       `json:"tier"`
	Quantity           int          `json:"quantity"`
	BaseUnitPrice      string       `json:"base_unit_price"`
	CampaignUnitPrice  string       `json:"campaign_unit_price"`
	EffectiveUnitPrice string       `json:"effective_unit_price"`
	Total              string       `json:"total"`
	Savings            string       `json:"savings"`
	Progress           ProgressView `json:"progress"`
}

type ProgressView struct {
	Percentage string `json:"percentage"`
	Remaining  int    `json:"remaining"`
	Achieved   bool   `json:"achieved"`
	Band       string `json:"band"`
	Combined   int    `json:"combined_quantity"`
	Target     int    `json:"target_quantity"`
}

type CampaignDetail struct {
	Campaign Campaign  `json:"campaign"`
	Quote    QuoteView `json:"quote"`
}

type UserCampaign struct {
	Campaign      Campaign      `json:"campaign"`
	Participation Participation `json:"participation"`
}
