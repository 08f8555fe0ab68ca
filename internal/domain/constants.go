package domain

// Currencies the catalog may price reports in. Checkout refuses anything else.
var SupportedCurrencies = []string{"USD", "EUR", "GBP", "KES"}

func CurrencySupported(code string) bool {
	for _, c := range SupportedCurrencies {
		if c == code {
			return true
		}
	}
	return false
}

// IdentityCookie stores the buyer's signed email between visits. It is a
// convenience hint for prefilling forms, never an authorization credential:
// every entitlement decision re-checks the purchase ledger.
const IdentityCookie = "rg_identity"
