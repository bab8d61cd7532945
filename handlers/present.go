package handlers

import (
	"bastaku-campaign-api/models"
	"bastaku-campaign-api/services/pricing"
	"bastaku-campaign-api/utils"
)

// quoteView rounds a quote for display.
func quoteView(q pricing.Quote) models.QuoteView {
	return models.QuoteView{
		Tier:               q.Tier.String(),
		Quantity:           q.Quantity,
		BaseUnitPrice:      utils.FormatKD(q.BaseUnitPrice),
		CampaignUnitPrice:  utils.FormatKD(q.CampaignUnitPrice),
		EffectiveUnitPrice: utils.FormatKD(q.EffectiveUnitPrice),
		Total:              utils.FormatKD(q.Total),
		Savings:            utils.FormatKD(q.Savings()),
		Progress: models.ProgressView{
			Percentage: utils.FormatPercent(q.Progress.Percentage),
			Remaining:  q.Progress.Remaining,
			Achieved:   q.Progress.Achieved,
			Band:       string(q.Progress.Band),
			Combined:   q.Progress.Combined,
			Target:     q.Progress.Target,
		},
	}
}
