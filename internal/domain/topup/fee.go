package topup

import (
	"github.com/shopspring/decimal"

	"github.com/adspend-finance-core/internal/domain/money"
)

// FlatPercentFee returns a fee policy charging a flat percentage of the
// top-up amount, rounded to cents.
func FlatPercentFee(percent float64) FeePolicy {
	p := decimal.NewFromFloat(percent)
	return func(amount money.Amount) money.Amount {
		return amount.Percent(p)
	}
}
