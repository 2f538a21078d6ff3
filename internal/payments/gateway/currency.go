package gateway

import (
	"strings"

	"courtbook/pkg/model"

	"github.com/shopspring/decimal"
)

const defaultExponent = 2

// currencyExponents lists currencies whose smallest gateway unit is not the hundredth.
var currencyExponents = map[string]int32{
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
}

func currencyExponent(currency string) int32 {
	if exp, ok := currencyExponents[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return exp
	}
	return defaultExponent
}

// toGatewayUnits converts an amount in hundredths to the currency's smallest unit,
// rounding half away from zero.
func toGatewayUnits(amount model.Money, currency string) int64 {
	return amount.Decimal().Shift(currencyExponent(currency)).Round(0).IntPart()
}

func fromGatewayUnits(units int64, currency string) model.Money {
	return model.MoneyFromDecimal(decimal.New(units, -currencyExponent(currency)))
}

// AmountsMatch compares two amounts at the precision the gateway charges in.
func AmountsMatch(a, b model.Money, currency string) bool {
	return toGatewayUnits(a, currency) == toGatewayUnits(b, currency)
}
