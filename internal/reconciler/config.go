package reconciler

import (
	"fmt"

	"zephyr-reconciliation-service/internal/rates"

	"github.com/shopspring/decimal"
)

// Config holds the tunable thresholds and reference data for the engine.
// Thresholds are injected here rather than read from package constants so a
// deployment (or a test) can override them per call.
type Config struct {
	// DiscrepancyThresholdUSD flags a matched pair when the absolute
	// expected-vs-actual difference strictly exceeds it.
	DiscrepancyThresholdUSD decimal.Decimal

	// LargeDiscrepancyUSD selects the "large discrepancy" reason tier.
	LargeDiscrepancyUSD decimal.Decimal

	// HighDeviationPct selects the "high % deviation" reason tier.
	HighDeviationPct decimal.Decimal

	// MarketRates is the reference table for FX deviation. A currency absent
	// from the table yields a null deviation, never an error.
	MarketRates rates.Table
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() *Config {
	return &Config{
		DiscrepancyThresholdUSD: decimal.NewFromFloat(0.50),
		LargeDiscrepancyUSD:     decimal.NewFromInt(100),
		HighDeviationPct:        decimal.NewFromInt(5),
		MarketRates:             rates.Default(),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DiscrepancyThresholdUSD.IsNegative() {
		return fmt.Errorf("discrepancy threshold cannot be negative, got %s", c.DiscrepancyThresholdUSD)
	}

	if c.LargeDiscrepancyUSD.IsNegative() {
		return fmt.Errorf("large discrepancy tier cannot be negative, got %s", c.LargeDiscrepancyUSD)
	}

	if c.HighDeviationPct.IsNegative() {
		return fmt.Errorf("high deviation tier cannot be negative, got %s", c.HighDeviationPct)
	}

	if c.MarketRates == nil {
		return fmt.Errorf("market rate table is required (use rates.Default())")
	}

	return nil
}
