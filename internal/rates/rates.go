// Package rates holds the static market FX reference table used to judge how
// far a settlement's applied rate deviates from market. Rates are quoted as
// local currency units per 1 USD. The table is configuration handed to the
// engine, not market data fetched at runtime.
package rates

import "github.com/shopspring/decimal"

// Table maps currency codes to the reference local-per-USD rate.
type Table map[string]decimal.Decimal

// Default returns the built-in reference table for the corridors this service
// audits.
func Default() Table {
	return Table{
		"MXN": decimal.NewFromFloat(17.50),
		"BRL": decimal.NewFromFloat(5.00),
		"IDR": decimal.NewFromFloat(15500.0),
		"KES": decimal.NewFromFloat(130.0),
		"COP": decimal.NewFromFloat(4000.0),
	}
}

// Lookup returns the reference rate for a currency. A currency missing from
// the table, or configured with a non-positive rate, reports ok=false: FX
// deviation is simply not computed for it.
func (t Table) Lookup(currency string) (decimal.Decimal, bool) {
	rate, ok := t[currency]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, false
	}
	return rate, true
}

// Merge returns a copy of the table with the given overrides applied.
// Overrides with non-positive rates remove the currency from deviation checks.
func (t Table) Merge(overrides Table) Table {
	merged := make(Table, len(t)+len(overrides))
	for currency, rate := range t {
		merged[currency] = rate
	}
	for currency, rate := range overrides {
		merged[currency] = rate
	}
	return merged
}
