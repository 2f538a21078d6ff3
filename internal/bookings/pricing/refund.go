package pricing

import (
	"sort"
	"time"

	"courtbook/pkg/model"

	"github.com/shopspring/decimal"
)

type Refund struct {
	Fraction float64
	Amount   model.Money
	Penalty  model.Money
}

// RefundFor applies the first tier, by hours_before descending, whose threshold the
// remaining time meets. Thresholds are inclusive. An empty policy uses the default tiers.
func RefundFor(policy []model.RefundTier, paid model.Money, now, start time.Time) Refund {
	if len(policy) == 0 {
		policy = model.DefaultCancellationPolicy()
	}
	tiers := make([]model.RefundTier, len(policy))
	copy(tiers, policy)
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].HoursBefore > tiers[j].HoursBefore
	})

	remaining := start.Sub(now)
	fraction := 0.0
	for _, tier := range tiers {
		if remaining >= time.Duration(tier.HoursBefore*float64(time.Hour)) {
			fraction = tier.RefundFraction
			break
		}
	}

	amount := model.MoneyFromDecimal(paid.Decimal().Mul(decimal.NewFromFloat(fraction)))
	if amount > paid {
		amount = paid
	}
	return Refund{
		Fraction: fraction,
		Amount:   amount,
		Penalty:  paid - amount,
	}
}
