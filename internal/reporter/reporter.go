// Package reporter summarizes a reconciled transaction set into the result
// object consumed by the CLI and the HTTP layer: overall totals, the full
// transaction list, pattern alerts, and per-currency / per-processor breakdown
// tables. It consumes the engine's and detector's output only and performs no
// reconciliation logic of its own.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"

	"zephyr-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

// DimensionStats is one row of a breakdown table, restricted to matched
// transactions.
type DimensionStats struct {
	VolumeCount      int             `json:"volume_count"`
	DiscrepancyCount int             `json:"discrepancy_count"`
	DiscrepancyUSD   decimal.Decimal `json:"discrepancy_usd"`
}

// Report is the full contract surface exposed to consumers. The HTTP layer
// serializes it as-is; the console renderer reads from it.
type Report struct {
	TotalOrders          int             `json:"total_orders"`
	TotalSettlements     int             `json:"total_settlements"`
	Matched              int             `json:"matched"`
	UnmatchedOrders      int             `json:"unmatched_orders"`
	UnmatchedSettlements int             `json:"unmatched_settlements"`
	FlaggedCount         int             `json:"flagged_count"`
	TotalDiscrepancyUSD  decimal.Decimal `json:"total_discrepancy_usd"`

	Transactions  []*models.ReconciledTransaction `json:"transactions"`
	PatternAlerts []models.Alert                  `json:"pattern_alerts"`

	CurrencyStats  map[string]*DimensionStats `json:"currency_stats"`
	ProcessorStats map[string]*DimensionStats `json:"processor_stats"`
}

// BuildReport aggregates the reconciled set into a Report. Order and
// settlement counts are taken from the raw input sizes, not the joined set, so
// duplicate identifiers stay visible in the totals.
func BuildReport(
	totalOrders, totalSettlements int,
	transactions []*models.ReconciledTransaction,
	alerts []models.Alert,
) *Report {
	report := &Report{
		TotalOrders:         totalOrders,
		TotalSettlements:    totalSettlements,
		TotalDiscrepancyUSD: decimal.Zero,
		Transactions:        transactions,
		PatternAlerts:       alerts,
		CurrencyStats:       make(map[string]*DimensionStats),
		ProcessorStats:      make(map[string]*DimensionStats),
	}

	totalDiscrepancy := decimal.Zero

	for _, tx := range transactions {
		switch tx.Status {
		case models.StatusMatched:
			report.Matched++
		case models.StatusUnmatchedOrder:
			report.UnmatchedOrders++
		case models.StatusUnmatchedSettlement:
			report.UnmatchedSettlements++
		}

		if tx.IsDiscrepancy {
			report.FlaggedCount++
			totalDiscrepancy = totalDiscrepancy.Add(tx.AbsDifference())
		}

		if !tx.IsMatched() {
			continue
		}

		if tx.CustomerCurrency != nil {
			accumulate(report.CurrencyStats, *tx.CustomerCurrency, tx)
		}
		if tx.PaymentProcessor != nil {
			accumulate(report.ProcessorStats, *tx.PaymentProcessor, tx)
		}
	}

	report.TotalDiscrepancyUSD = totalDiscrepancy.Round(2)
	for _, stats := range report.CurrencyStats {
		stats.DiscrepancyUSD = stats.DiscrepancyUSD.Round(2)
	}
	for _, stats := range report.ProcessorStats {
		stats.DiscrepancyUSD = stats.DiscrepancyUSD.Round(2)
	}

	return report
}

func accumulate(table map[string]*DimensionStats, key string, tx *models.ReconciledTransaction) {
	stats, ok := table[key]
	if !ok {
		stats = &DimensionStats{DiscrepancyUSD: decimal.Zero}
		table[key] = stats
	}
	stats.VolumeCount++
	if tx.IsDiscrepancy {
		stats.DiscrepancyCount++
		stats.DiscrepancyUSD = stats.DiscrepancyUSD.Add(tx.AbsDifference())
	}
}

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	return f == FormatConsole || f == FormatJSON
}

// WriteJSON serializes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// WriteConsole renders a human-readable summary: totals, breakdown tables,
// alerts, and the flagged transactions.
func (r *Report) WriteConsole(w io.Writer) error {
	var err error
	p := func(format string, args ...interface{}) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	p("Reconciliation Summary\n")
	p("======================\n")
	p("Orders:                %d\n", r.TotalOrders)
	p("Settlements:           %d\n", r.TotalSettlements)
	p("Matched:               %d\n", r.Matched)
	p("Unmatched orders:      %d\n", r.UnmatchedOrders)
	p("Unmatched settlements: %d\n", r.UnmatchedSettlements)
	p("Flagged:               %d\n", r.FlaggedCount)
	p("Total discrepancy:     $%s\n", r.TotalDiscrepancyUSD.StringFixed(2))

	if len(r.PatternAlerts) > 0 {
		p("\nAlerts\n")
		p("------\n")
		for _, alert := range r.PatternAlerts {
			p("[%s] %s: %s\n", alert.Severity, alert.Title, alert.Message)
		}
	}

	flagged := 0
	for _, tx := range r.Transactions {
		if tx.IsDiscrepancy {
			flagged++
		}
	}
	if flagged > 0 {
		p("\nFlagged Transactions\n")
		p("--------------------\n")
		for _, tx := range r.Transactions {
			if !tx.IsDiscrepancy {
				continue
			}
			reason := ""
			if tx.DiscrepancyReason != nil {
				reason = *tx.DiscrepancyReason
			}
			p("%-16s $%-10s %s\n", tx.TransactionID, tx.AbsDifference().StringFixed(2), reason)
		}
	}

	return err
}

// Write renders the report in the requested format.
func (r *Report) Write(w io.Writer, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return r.WriteJSON(w)
	case FormatConsole:
		return r.WriteConsole(w)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
