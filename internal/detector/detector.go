// Package detector scans the reconciled transaction set for aggregate
// anomalies and emits ranked alerts. Four independent rules run in a fixed
// order: per-processor discrepancy clustering, per-currency discrepancy
// clustering, large individual discrepancies, and adverse FX rates.
//
// Only matched transactions participate in the aggregate statistics; unmatched
// records contribute to no rate or dollar total. Alerts are emitted in rule
// order, and group keys keep the order of their first appearance in the input,
// so the output is deterministic.
package detector

import (
	"fmt"

	"zephyr-reconciliation-service/internal/models"
	"zephyr-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// Config holds the detection rule thresholds. All comparisons are strict.
type Config struct {
	// MinFlagged is the minimum flagged count before a processor or currency
	// group is considered at all.
	MinFlagged int

	// FlaggedRateThreshold and HighRateThreshold gate emission and the high
	// severity tier for the grouping rules (fractions, not percentages).
	FlaggedRateThreshold decimal.Decimal
	HighRateThreshold    decimal.Decimal

	// TotalDiffThresholdUSD and HighTotalDiffUSD are the dollar-total
	// alternatives for the processor rule only.
	TotalDiffThresholdUSD decimal.Decimal
	HighTotalDiffUSD      decimal.Decimal

	// LargeTransactionUSD selects transactions for the large-discrepancy rule.
	LargeTransactionUSD decimal.Decimal

	// FXDeviationAlertPct flags FX rates more than this far above market.
	FXDeviationAlertPct decimal.Decimal

	// MaxExampleIDs caps the example transaction identifiers carried on an
	// alert.
	MaxExampleIDs int
}

// DefaultConfig returns the standard detection thresholds.
func DefaultConfig() *Config {
	return &Config{
		MinFlagged:            2,
		FlaggedRateThreshold:  decimal.NewFromFloat(0.15),
		HighRateThreshold:     decimal.NewFromFloat(0.25),
		TotalDiffThresholdUSD: decimal.NewFromInt(15),
		HighTotalDiffUSD:      decimal.NewFromInt(40),
		LargeTransactionUSD:   decimal.NewFromInt(50),
		FXDeviationAlertPct:   decimal.NewFromFloat(3.0),
		MaxExampleIDs:         5,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.MinFlagged < 1 {
		return fmt.Errorf("minimum flagged count must be at least 1, got %d", c.MinFlagged)
	}

	if c.FlaggedRateThreshold.IsNegative() || c.HighRateThreshold.IsNegative() {
		return fmt.Errorf("rate thresholds cannot be negative")
	}

	if c.MaxExampleIDs < 1 {
		return fmt.Errorf("max example IDs must be at least 1, got %d", c.MaxExampleIDs)
	}

	return nil
}

// Detector applies the pattern-detection rules.
type Detector struct {
	config *Config
	logger logger.Logger
}

// NewDetector creates a detector with the given configuration.
func NewDetector(config *Config) (*Detector, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector configuration: %w", err)
	}

	return &Detector{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("detector"),
	}, nil
}

// groupStats accumulates per-key counts for the grouping rules.
type groupStats struct {
	total     int
	flagged   int
	totalDiff decimal.Decimal
}

// Detect evaluates every rule over the reconciled set and returns the alerts
// in detection order.
func (d *Detector) Detect(transactions []*models.ReconciledTransaction) []models.Alert {
	matched := make([]*models.ReconciledTransaction, 0, len(transactions))
	for _, tx := range transactions {
		if tx.IsMatched() {
			matched = append(matched, tx)
		}
	}

	alerts := make([]models.Alert, 0)
	alerts = append(alerts, d.detectProcessorIssues(matched)...)
	alerts = append(alerts, d.detectCurrencyAnomalies(matched)...)
	alerts = append(alerts, d.detectLargeDiscrepancies(matched)...)
	alerts = append(alerts, d.detectAdverseFXRates(matched)...)

	d.logger.WithFields(logger.Fields{
		"matched": len(matched),
		"alerts":  len(alerts),
	}).Debug("Pattern detection complete")

	return alerts
}

// groupBy accumulates stats per key, preserving first-appearance key order.
func groupBy(matched []*models.ReconciledTransaction, key func(*models.ReconciledTransaction) string) ([]string, map[string]*groupStats) {
	order := make([]string, 0)
	groups := make(map[string]*groupStats)

	for _, tx := range matched {
		k := key(tx)
		stats, ok := groups[k]
		if !ok {
			stats = &groupStats{totalDiff: decimal.Zero}
			groups[k] = stats
			order = append(order, k)
		}
		stats.total++
		if tx.IsDiscrepancy {
			stats.flagged++
			stats.totalDiff = stats.totalDiff.Add(tx.AbsDifference())
		}
	}

	return order, groups
}

// flaggedRate returns flagged/total as a fraction, zero for an empty group.
func flaggedRate(stats *groupStats) decimal.Decimal {
	if stats.total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(stats.flagged)).Div(decimal.NewFromInt(int64(stats.total)))
}

// detectProcessorIssues flags processors whose matched transactions show a
// high discrepancy rate or a large summed dollar discrepancy.
func (d *Detector) detectProcessorIssues(matched []*models.ReconciledTransaction) []models.Alert {
	order, groups := groupBy(matched, func(tx *models.ReconciledTransaction) string {
		return *tx.PaymentProcessor
	})

	alerts := make([]models.Alert, 0)
	for _, processor := range order {
		stats := groups[processor]
		if stats.flagged < d.config.MinFlagged {
			continue
		}

		rate := flaggedRate(stats)
		if !rate.GreaterThan(d.config.FlaggedRateThreshold) && !stats.totalDiff.GreaterThan(d.config.TotalDiffThresholdUSD) {
			continue
		}

		severity := models.SeverityMedium
		if rate.GreaterThan(d.config.HighRateThreshold) || stats.totalDiff.GreaterThan(d.config.HighTotalDiffUSD) {
			severity = models.SeverityHigh
		}

		alerts = append(alerts, models.Alert{
			Type:     models.AlertProcessor,
			Severity: severity,
			Title:    fmt.Sprintf("Processor Issue: %s", processor),
			Message: fmt.Sprintf("%d of %d transactions flagged (%s%% rate) - $%s total discrepancy",
				stats.flagged, stats.total, rate.Mul(decimal.NewFromInt(100)).StringFixed(0), stats.totalDiff.StringFixed(2)),
			Processor:          processor,
			FlaggedCount:       stats.flagged,
			TotalCount:         stats.total,
			DiscrepancyRatePct: models.DecimalPtr(rate.Mul(decimal.NewFromInt(100)).Round(1)),
			TotalDifferenceUSD: models.DecimalPtr(stats.totalDiff.Round(2)),
		})
	}

	return alerts
}

// detectCurrencyAnomalies is the same grouping as the processor rule keyed by
// currency, but with no dollar-total alternative trigger.
func (d *Detector) detectCurrencyAnomalies(matched []*models.ReconciledTransaction) []models.Alert {
	order, groups := groupBy(matched, func(tx *models.ReconciledTransaction) string {
		return *tx.CustomerCurrency
	})

	alerts := make([]models.Alert, 0)
	for _, currency := range order {
		stats := groups[currency]
		if stats.flagged < d.config.MinFlagged {
			continue
		}

		rate := flaggedRate(stats)
		if !rate.GreaterThan(d.config.FlaggedRateThreshold) {
			continue
		}

		severity := models.SeverityMedium
		if rate.GreaterThan(d.config.HighRateThreshold) {
			severity = models.SeverityHigh
		}

		alerts = append(alerts, models.Alert{
			Type:     models.AlertCurrency,
			Severity: severity,
			Title:    fmt.Sprintf("Currency Anomaly: %s", currency),
			Message: fmt.Sprintf("%d of %d %s transactions flagged (%s%% rate) - $%s total discrepancy",
				stats.flagged, stats.total, currency, rate.Mul(decimal.NewFromInt(100)).StringFixed(0), stats.totalDiff.StringFixed(2)),
			Currency:           currency,
			FlaggedCount:       stats.flagged,
			TotalCount:         stats.total,
			DiscrepancyRatePct: models.DecimalPtr(rate.Mul(decimal.NewFromInt(100)).Round(1)),
			TotalDifferenceUSD: models.DecimalPtr(stats.totalDiff.Round(2)),
		})
	}

	return alerts
}

// detectLargeDiscrepancies emits a single critical alert when any flagged
// transaction's absolute difference exceeds the large-transaction threshold.
func (d *Detector) detectLargeDiscrepancies(matched []*models.ReconciledTransaction) []models.Alert {
	var ids []string
	count := 0
	totalDiff := decimal.Zero

	for _, tx := range matched {
		if !tx.IsDiscrepancy || !tx.AbsDifference().GreaterThan(d.config.LargeTransactionUSD) {
			continue
		}
		count++
		totalDiff = totalDiff.Add(tx.AbsDifference())
		if len(ids) < d.config.MaxExampleIDs {
			ids = append(ids, tx.TransactionID)
		}
	}

	if count == 0 {
		return nil
	}

	return []models.Alert{{
		Type:     models.AlertLargeDiscrepancy,
		Severity: models.SeverityCritical,
		Title:    "Large Discrepancies Detected",
		Message: fmt.Sprintf("%d transaction(s) with discrepancy > $%s USD",
			count, d.config.LargeTransactionUSD.StringFixed(0)),
		Count:              count,
		TransactionIDs:     ids,
		TotalDifferenceUSD: models.DecimalPtr(totalDiff.Round(2)),
	}}
}

// detectAdverseFXRates emits a single high alert for settlements whose FX rate
// deviated above market by more than the alert threshold.
func (d *Detector) detectAdverseFXRates(matched []*models.ReconciledTransaction) []models.Alert {
	var ids []string
	count := 0

	for _, tx := range matched {
		if tx.FXDeviationPct == nil || !tx.FXDeviationPct.GreaterThan(d.config.FXDeviationAlertPct) {
			continue
		}
		count++
		if len(ids) < d.config.MaxExampleIDs {
			ids = append(ids, tx.TransactionID)
		}
	}

	if count == 0 {
		return nil
	}

	return []models.Alert{{
		Type:     models.AlertFXRate,
		Severity: models.SeverityHigh,
		Title:    "Adverse FX Rates Detected",
		Message: fmt.Sprintf("%d transaction(s) settled at FX rates more than %s%% worse than market reference",
			count, d.config.FXDeviationAlertPct.StringFixed(0)),
		Count:          count,
		TransactionIDs: ids,
	}}
}
