package pricing

import "github.com/shopspring/decimal"

// QuoteRequest carries everything needed to price one participation.
type QuoteRequest struct {
	BasePrice          decimal.Decimal
	DiscountPercentage decimal.Decimal
	Tier               PaymentTier
	CurrentQuantity    int
	RequestedQuantity  int
	TargetQuantity     int
}

// Quote is the full campaign economics for a QuoteRequest.
type Quote struct {
	Tier               PaymentTier
	Quantity           int
	BaseUnitPrice      decimal.Decimal
	CampaignUnitPrice  decimal.Decimal
	EffectiveUnitPrice decimal.Decimal
	Total              decimal.Decimal
	Progress           Progress
}

// Savings is what the quoted quantity saves against the base price.
func (q Quote) Savings() decimal.Decimal {
	return q.BaseUnitPrice.Mul(decimal.NewFromInt(int64(q.Quantity))).Sub(q.Total)
}

// BuildQuote prices a participation and measures campaign progress with it.
func BuildQuote(req QuoteRequest) (Quote, error) {
	campaignPrice, err := CampaignUnitPrice(req.BasePrice, req.DiscountPercentage)
	if err != nil {
		return Quote{}, err
	}
	effective, err := EffectiveUnitPrice(req.BasePrice, req.DiscountPercentage, req.Tier)
	if err != nil {
		return Quote{}, err
	}
	total, err := Total(effective, req.RequestedQuantity)
	if err != nil {
		return Quote{}, err
	}
	progress, err := ComputeProgress(req.CurrentQuantity, req.RequestedQuantity, req.TargetQuantity)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		Tier:               req.Tier,
		Quantity:           req.RequestedQuantity,
		BaseUnitPrice:      req.BasePrice,
		CampaignUnitPrice:  campaignPrice,
		EffectiveUnitPrice: effective,
		Total:              total,
		Progress:           progress,
	}, nil
}
