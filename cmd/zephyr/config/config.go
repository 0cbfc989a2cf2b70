// Package config assembles the pipeline-stage configurations from CLI flags
// and viper settings, keeping flag plumbing out of the core packages.
package config

import (
	"fmt"

	"zephyr-reconciliation-service/internal/detector"
	"zephyr-reconciliation-service/internal/parsers"
	"zephyr-reconciliation-service/internal/rates"
	"zephyr-reconciliation-service/internal/reconciler"
	"zephyr-reconciliation-service/internal/reporter"

	"github.com/shopspring/decimal"
)

// CreateOrdersParserConfig creates the orders parser configuration.
func CreateOrdersParserConfig() *parsers.OrdersParserConfig {
	return parsers.DefaultOrdersParserConfig()
}

// CreateSettlementsParserConfig creates the settlements parser configuration.
func CreateSettlementsParserConfig() *parsers.SettlementsParserConfig {
	return parsers.DefaultSettlementsParserConfig()
}

// CreateEngineConfig creates an engine configuration with CLI overrides. A
// negative discrepancyThreshold means "use the default". rateOverrides adds to
// or replaces entries of the built-in market-rate table.
func CreateEngineConfig(discrepancyThreshold float64, rateOverrides map[string]float64) (*reconciler.Config, error) {
	cfg := reconciler.DefaultConfig()

	if discrepancyThreshold >= 0 {
		cfg.DiscrepancyThresholdUSD = decimal.NewFromFloat(discrepancyThreshold)
	}

	if len(rateOverrides) > 0 {
		overrides := make(rates.Table, len(rateOverrides))
		for currency, rate := range rateOverrides {
			overrides[currency] = decimal.NewFromFloat(rate)
		}
		cfg.MarketRates = cfg.MarketRates.Merge(overrides)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	return cfg, nil
}

// CreateDetectorConfig creates a detector configuration with CLI overrides. A
// negative fxAlertPct means "use the default".
func CreateDetectorConfig(fxAlertPct float64) (*detector.Config, error) {
	cfg := detector.DefaultConfig()

	if fxAlertPct >= 0 {
		cfg.FXDeviationAlertPct = decimal.NewFromFloat(fxAlertPct)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}
	return cfg, nil
}

// ParseOutputFormat validates a CLI-supplied output format.
func ParseOutputFormat(format string) (reporter.OutputFormat, error) {
	f := reporter.OutputFormat(format)
	if !f.IsValid() {
		return "", fmt.Errorf("invalid output format '%s'. Valid formats: console, json", format)
	}
	return f, nil
}
