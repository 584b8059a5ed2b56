package rates

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidRate is returned when a source quotes a zero or negative rate.
var ErrInvalidRate = errors.New("exchange rate must be positive")

var (
	onRampFeeRate  = decimal.RequireFromString("0.02")
	offRampFeeRate = decimal.RequireFromString("0.015")
)

// Quote is the priced result of an exchange request.
type Quote struct {
	Rate     decimal.Decimal
	Fees     decimal.Decimal
	ToAmount decimal.Decimal
}

// QuoteOnRamp prices a fiat to crypto purchase. The fee is taken in the source
// currency and subtracted from the converted amount unchanged, so large fiat
// fees can drive ToAmount negative.
func QuoteOnRamp(amount, rate decimal.Decimal) (Quote, error) {
	if !rate.IsPositive() {
		return Quote{}, ErrInvalidRate
	}
	fees := amount.Mul(onRampFeeRate)
	return Quote{Rate: rate, Fees: fees, ToAmount: amount.Div(rate).Sub(fees)}, nil
}

// QuoteOffRamp prices a crypto to fiat sale.
func QuoteOffRamp(amount, rate decimal.Decimal) (Quote, error) {
	if !rate.IsPositive() {
		return Quote{}, ErrInvalidRate
	}
	fees := amount.Mul(offRampFeeRate)
	return Quote{Rate: rate, Fees: fees, ToAmount: amount.Mul(rate).Sub(fees)}, nil
}
