package pricing

import "math"

// Registrar list prices are quoted in EUR; customers are billed in AED.
const (
	EURToAED  = 3.97
	CreditAED = 50.0
)

// FullPriceAED converts a EUR registrar price to AED, rounded to fils.
func FullPriceAED(priceEUR float64) float64 {
	return round2(priceEUR * EURToAED)
}

// ChargeAED returns the amount owed after the plan credit is applied.
// Never negative: the credit covers at most the full price.
func ChargeAED(priceEUR float64) float64 {
	owed := FullPriceAED(priceEUR) - CreditAED
	if owed < 0 {
		return 0
	}
	return round2(owed)
}

// CoveredByCredit reports whether the plan credit fully covers the price.
func CoveredByCredit(priceEUR float64) bool {
	return ChargeAED(priceEUR) == 0
}

// MinorUnits converts an AED amount to fils for the payment API.
func MinorUnits(amountAED float64) int64 {
	return int64(math.Round(amountAED * 100))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
