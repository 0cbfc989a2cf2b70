// Package reconciler implements the reconciliation engine: the join of the
// order and settlement record sets by transaction identifier and the
// per-transaction financial-correctness computation.
//
// The engine is a pure function of its inputs. Every order and every
// settlement appears in exactly one output record, so the set of transaction
// identifiers across the output equals the union of identifiers across the
// inputs. Discrepancies and unmatched records are normal, representable
// outputs, never error signals.
package reconciler

import (
	"fmt"

	"zephyr-reconciliation-service/internal/models"
	"zephyr-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// Fixed reason strings for non-computed outcomes.
const (
	ReasonNoSettlement  = "No matching settlement record"
	ReasonNoOrder       = "No matching order record"
	ReasonInvalidFXRate = "Invalid FX rate applied"
)

var (
	oneHundred = decimal.NewFromInt(100)
)

// Engine joins orders with settlements and classifies each pair.
type Engine struct {
	config *Config
	logger logger.Logger
}

// NewEngine creates a reconciliation engine with the given configuration.
func NewEngine(config *Config) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine configuration: %w", err)
	}

	return &Engine{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("reconciler"),
	}, nil
}

// Reconcile produces one ReconciledTransaction per distinct transaction
// identifier. Output order is deterministic: orders in input order, then
// leftover settlements in order of each identifier's first appearance.
//
// Duplicate settlement identifiers are last-write-wins in the lookup;
// duplicate order identifiers each produce their own output row and may match
// the same settlement.
func (e *Engine) Reconcile(orders []*models.Order, settlements []*models.Settlement) []*models.ReconciledTransaction {
	lookup := make(map[string]*models.Settlement, len(settlements))
	for _, settlement := range settlements {
		lookup[settlement.TransactionID] = settlement
	}

	matched := make(map[string]bool, len(orders))
	transactions := make([]*models.ReconciledTransaction, 0, len(orders)+len(settlements))

	for _, order := range orders {
		settlement, found := lookup[order.TransactionID]
		if !found {
			transactions = append(transactions, e.unmatchedOrder(order))
			continue
		}
		matched[order.TransactionID] = true
		transactions = append(transactions, e.reconcilePair(order, settlement))
	}

	// Leftover settlements, in order of each id's first appearance.
	emitted := make(map[string]bool, len(settlements))
	for _, settlement := range settlements {
		id := settlement.TransactionID
		if matched[id] || emitted[id] {
			continue
		}
		emitted[id] = true
		transactions = append(transactions, e.unmatchedSettlement(lookup[id]))
	}

	e.logger.WithFields(logger.Fields{
		"orders":      len(orders),
		"settlements": len(settlements),
		"reconciled":  len(transactions),
	}).Debug("Reconciliation complete")

	return transactions
}

// reconcilePair computes the financial correctness of a matched pair.
func (e *Engine) reconcilePair(order *models.Order, settlement *models.Settlement) *models.ReconciledTransaction {
	tx := &models.ReconciledTransaction{
		TransactionID:    order.TransactionID,
		OrderDate:        models.StringPtr(order.OrderDate),
		SettlementDate:   models.StringPtr(settlement.SettlementDate),
		CustomerCurrency: models.StringPtr(order.CustomerCurrency),
		OriginalAmount:   models.DecimalPtr(order.OriginalAmount),
		PaymentProcessor: models.StringPtr(order.PaymentProcessor),
		FXRateApplied:    models.DecimalPtr(settlement.FXRateApplied),
		FeesDeducted:     models.DecimalPtr(settlement.FeesDeducted.Round(4)),
		ActualUSD:        models.DecimalPtr(settlement.USDAmountReceived.Round(4)),
		Status:           models.StatusMatched,
	}

	tx.FXDeviationPct = e.fxDeviation(order.CustomerCurrency, settlement.FXRateApplied)

	// A zero or negative FX rate makes the expected amount undefined. The pair
	// is flagged with an explanatory reason and excluded from percentage math.
	if !settlement.FXRateApplied.IsPositive() {
		tx.IsDiscrepancy = true
		tx.DiscrepancyReason = models.StringPtr(ReasonInvalidFXRate)
		return tx
	}

	expected := order.OriginalAmount.Div(settlement.FXRateApplied).Sub(settlement.FeesDeducted)
	actual := settlement.USDAmountReceived
	difference := actual.Sub(expected)

	differencePct := decimal.Zero
	if expected.IsPositive() {
		differencePct = difference.Abs().Div(expected).Mul(oneHundred)
	}

	tx.ExpectedUSD = models.DecimalPtr(expected.Round(4))
	tx.Difference = models.DecimalPtr(difference.Round(4))
	tx.DifferencePct = models.DecimalPtr(differencePct.Round(2))
	tx.IsDiscrepancy = difference.Abs().GreaterThan(e.config.DiscrepancyThresholdUSD)

	if tx.IsDiscrepancy {
		tx.DiscrepancyReason = models.StringPtr(e.discrepancyReason(difference, differencePct))
	}

	return tx
}

// discrepancyReason applies the tiered classification: large dollar amount
// first, then high percentage, else a generic mismatch.
func (e *Engine) discrepancyReason(difference, differencePct decimal.Decimal) string {
	absDiff := difference.Abs()
	switch {
	case absDiff.GreaterThan(e.config.LargeDiscrepancyUSD):
		return fmt.Sprintf("Large discrepancy ($%s)", absDiff.StringFixed(2))
	case differencePct.GreaterThan(e.config.HighDeviationPct):
		return fmt.Sprintf("High %% deviation (%s%%)", differencePct.StringFixed(1))
	default:
		return fmt.Sprintf("Settlement mismatch ($%s)", absDiff.StringFixed(2))
	}
}

// fxDeviation compares the applied FX rate against the market reference.
// Positive means the merchant received a worse (higher local-per-USD) rate
// than market. Returns nil when no reference rate exists for the currency.
func (e *Engine) fxDeviation(currency string, applied decimal.Decimal) *decimal.Decimal {
	market, ok := e.config.MarketRates.Lookup(currency)
	if !ok {
		return nil
	}

	deviation := applied.Sub(market).Div(market).Mul(oneHundred).Round(2)
	return models.DecimalPtr(deviation)
}

func (e *Engine) unmatchedOrder(order *models.Order) *models.ReconciledTransaction {
	return &models.ReconciledTransaction{
		TransactionID:     order.TransactionID,
		OrderDate:         models.StringPtr(order.OrderDate),
		CustomerCurrency:  models.StringPtr(order.CustomerCurrency),
		OriginalAmount:    models.DecimalPtr(order.OriginalAmount),
		PaymentProcessor:  models.StringPtr(order.PaymentProcessor),
		Status:            models.StatusUnmatchedOrder,
		IsDiscrepancy:     false,
		DiscrepancyReason: models.StringPtr(ReasonNoSettlement),
	}
}

func (e *Engine) unmatchedSettlement(settlement *models.Settlement) *models.ReconciledTransaction {
	return &models.ReconciledTransaction{
		TransactionID:     settlement.TransactionID,
		SettlementDate:    models.StringPtr(settlement.SettlementDate),
		FXRateApplied:     models.DecimalPtr(settlement.FXRateApplied),
		FeesDeducted:      models.DecimalPtr(settlement.FeesDeducted.Round(4)),
		ActualUSD:         models.DecimalPtr(settlement.USDAmountReceived.Round(4)),
		Status:            models.StatusUnmatchedSettlement,
		IsDiscrepancy:     false,
		DiscrepancyReason: models.StringPtr(ReasonNoOrder),
	}
}
