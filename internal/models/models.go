// Package models defines the domain records flowing through the reconciliation
// pipeline: merchant orders placed in local currency, processor settlements
// received in USD, the reconciled transaction produced by joining the two, and
// the aggregate alerts raised over the reconciled set.
//
// All monetary values use decimal.Decimal to avoid floating-point drift in
// financial arithmetic. Fields that are only defined for one side of the join
// are pointers and stay nil on the other side.
package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MatchStatus classifies a reconciled transaction by join outcome.
type MatchStatus string

const (
	// StatusMatched means the transaction id was present in both record sets.
	StatusMatched MatchStatus = "matched"
	// StatusUnmatchedOrder means an order had no settlement.
	StatusUnmatchedOrder MatchStatus = "unmatched_order"
	// StatusUnmatchedSettlement means a settlement had no order.
	StatusUnmatchedSettlement MatchStatus = "unmatched_settlement"
)

// String returns the string representation of MatchStatus
func (s MatchStatus) String() string {
	return string(s)
}

// IsValid checks if the match status is one of the known values
func (s MatchStatus) IsValid() bool {
	return s == StatusMatched || s == StatusUnmatchedOrder || s == StatusUnmatchedSettlement
}

// AlertType identifies which pattern-detection rule produced an alert.
type AlertType string

const (
	AlertProcessor        AlertType = "processor"
	AlertCurrency         AlertType = "currency"
	AlertLargeDiscrepancy AlertType = "large_discrepancy"
	AlertFXRate           AlertType = "fx_rate"
)

// AlertSeverity ranks how urgently an alert needs attention.
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "critical"
	SeverityHigh     AlertSeverity = "high"
	SeverityMedium   AlertSeverity = "medium"
)

// Order represents a merchant order recorded in the customer's local currency
// before settlement.
type Order struct {
	TransactionID    string          `json:"transaction_id" csv:"transaction_id"`
	OrderDate        string          `json:"order_date" csv:"order_date"`
	CustomerCurrency string          `json:"customer_currency" csv:"customer_currency"`
	OriginalAmount   decimal.Decimal `json:"original_amount" csv:"original_amount"`
	PaymentProcessor string          `json:"payment_processor" csv:"payment_processor"`
}

// NewOrder creates a new Order with normalized identifier and currency code.
func NewOrder(trxID, orderDate, currency string, amount decimal.Decimal, processor string) *Order {
	return &Order{
		TransactionID:    strings.TrimSpace(trxID),
		OrderDate:        strings.TrimSpace(orderDate),
		CustomerCurrency: NormalizeCurrency(currency),
		OriginalAmount:   amount,
		PaymentProcessor: strings.TrimSpace(processor),
	}
}

// Validate performs structural validation on the Order. Degenerate numeric
// values (a negative amount, for example) are not rejected here: the engine
// classifies them, per the error-handling policy.
func (o *Order) Validate() error {
	if strings.TrimSpace(o.TransactionID) == "" {
		return fmt.Errorf("order transaction ID cannot be empty")
	}

	if strings.TrimSpace(o.OrderDate) == "" {
		return fmt.Errorf("order date cannot be empty")
	}

	if len(o.CustomerCurrency) != 3 {
		return fmt.Errorf("invalid currency code: %q", o.CustomerCurrency)
	}

	return nil
}

// String returns a string representation of the Order
func (o *Order) String() string {
	return fmt.Sprintf("Order{ID: %s, Amount: %s %s, Processor: %s, Date: %s}",
		o.TransactionID, o.OriginalAmount.String(), o.CustomerCurrency, o.PaymentProcessor, o.OrderDate)
}

// Settlement represents the USD payout record from a payment processor after
// foreign-exchange conversion and fee deduction.
type Settlement struct {
	TransactionID     string          `json:"transaction_id" csv:"transaction_id"`
	SettlementDate    string          `json:"settlement_date" csv:"settlement_date"`
	USDAmountReceived decimal.Decimal `json:"usd_amount_received" csv:"usd_amount_received"`
	FXRateApplied     decimal.Decimal `json:"fx_rate_applied" csv:"fx_rate_applied"`
	FeesDeducted      decimal.Decimal `json:"fees_deducted" csv:"fees_deducted"`
}

// NewSettlement creates a new Settlement with a normalized identifier.
func NewSettlement(trxID, settlementDate string, usdReceived, fxRate, fees decimal.Decimal) *Settlement {
	return &Settlement{
		TransactionID:     strings.TrimSpace(trxID),
		SettlementDate:    strings.TrimSpace(settlementDate),
		USDAmountReceived: usdReceived,
		FXRateApplied:     fxRate,
		FeesDeducted:      fees,
	}
}

// Validate performs structural validation on the Settlement. A zero or
// negative FX rate is deliberately allowed through: the engine flags it as a
// discrepancy instead of rejecting the row.
func (s *Settlement) Validate() error {
	if strings.TrimSpace(s.TransactionID) == "" {
		return fmt.Errorf("settlement transaction ID cannot be empty")
	}

	if strings.TrimSpace(s.SettlementDate) == "" {
		return fmt.Errorf("settlement date cannot be empty")
	}

	return nil
}

// String returns a string representation of the Settlement
func (s *Settlement) String() string {
	return fmt.Sprintf("Settlement{ID: %s, USD: %s, FX: %s, Fees: %s, Date: %s}",
		s.TransactionID, s.USDAmountReceived.String(), s.FXRateApplied.String(),
		s.FeesDeducted.String(), s.SettlementDate)
}

// ReconciledTransaction is the joined record produced by the engine. Exactly
// one is emitted per distinct transaction identifier across both input sets.
// For matched pairs every field is populated (the derived money fields may
// still be nil when the FX rate was invalid); for unmatched records only the
// present side's fields are set.
type ReconciledTransaction struct {
	TransactionID     string           `json:"transaction_id"`
	OrderDate         *string          `json:"order_date"`
	SettlementDate    *string          `json:"settlement_date"`
	CustomerCurrency  *string          `json:"customer_currency"`
	OriginalAmount    *decimal.Decimal `json:"original_amount"`
	PaymentProcessor  *string          `json:"payment_processor"`
	FXRateApplied     *decimal.Decimal `json:"fx_rate_applied"`
	FeesDeducted      *decimal.Decimal `json:"fees_deducted"`
	ExpectedUSD       *decimal.Decimal `json:"expected_usd"`
	ActualUSD         *decimal.Decimal `json:"actual_usd"`
	Difference        *decimal.Decimal `json:"difference"`
	DifferencePct     *decimal.Decimal `json:"difference_pct"`
	FXDeviationPct    *decimal.Decimal `json:"fx_deviation_pct"`
	Status            MatchStatus      `json:"status"`
	IsDiscrepancy     bool             `json:"is_discrepancy"`
	DiscrepancyReason *string          `json:"discrepancy_reason"`
}

// AbsDifference returns the absolute settled-vs-expected difference, or zero
// when the difference is undefined (unmatched records, invalid FX rate).
func (t *ReconciledTransaction) AbsDifference() decimal.Decimal {
	if t.Difference == nil {
		return decimal.Zero
	}
	return t.Difference.Abs()
}

// IsMatched returns true if both sides of the join were present.
func (t *ReconciledTransaction) IsMatched() bool {
	return t.Status == StatusMatched
}

// Alert is one aggregate anomaly finding. The type-specific fields are only
// populated for the rules that compute them and are omitted from JSON
// otherwise.
type Alert struct {
	Type     AlertType     `json:"type"`
	Severity AlertSeverity `json:"severity"`
	Title    string        `json:"title"`
	Message  string        `json:"message"`

	Processor          string           `json:"processor,omitempty"`
	Currency           string           `json:"currency,omitempty"`
	FlaggedCount       int              `json:"flagged_count,omitempty"`
	TotalCount         int              `json:"total_count,omitempty"`
	DiscrepancyRatePct *decimal.Decimal `json:"discrepancy_rate_pct,omitempty"`
	TotalDifferenceUSD *decimal.Decimal `json:"total_difference_usd,omitempty"`
	Count              int              `json:"count,omitempty"`
	TransactionIDs     []string         `json:"transaction_ids,omitempty"`
}

// Utility functions shared by the CSV parsers

// ParseDecimalFromString parses a decimal value from string with validation
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	// Strip currency symbols and thousand separators seen in exported reports
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// NormalizeCurrency trims and uppercases an ISO-like 3-letter currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// StringPtr returns a pointer to the given string.
func StringPtr(s string) *string {
	return &s
}

// DecimalPtr returns a pointer to the given decimal.
func DecimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
