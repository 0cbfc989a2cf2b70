package reconciler

import (
	"encoding/json"
	"fmt"
	"testing"

	"zephyr-reconciliation-service/internal/models"
	"zephyr-reconciliation-service/internal/rates"

	"github.com/shopspring/decimal"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func order(id, currency string, amount float64, processor string) *models.Order {
	return models.NewOrder(id, "2024-03-01", currency, decimal.NewFromFloat(amount), processor)
}

func settlement(id string, usd, fx, fees float64) *models.Settlement {
	return models.NewSettlement(id, "2024-03-03",
		decimal.NewFromFloat(usd), decimal.NewFromFloat(fx), decimal.NewFromFloat(fees))
}

func TestReconcile_MatchedPairWithinTolerance(t *testing.T) {
	engine := newTestEngine(t)

	// expected_usd = 1000/17.50 - 2.00 = 55.1429 (4dp)
	result := engine.Reconcile(
		[]*models.Order{order("T1", "MXN", 1000, "X")},
		[]*models.Settlement{settlement("T1", 55.14, 17.50, 2.00)},
	)

	if len(result) != 1 {
		t.Fatalf("expected 1 reconciled transaction, got %d", len(result))
	}

	tx := result[0]
	if tx.Status != models.StatusMatched {
		t.Fatalf("status = %s, want matched", tx.Status)
	}
	if tx.ExpectedUSD.String() != "55.1429" {
		t.Errorf("expected_usd = %s, want 55.1429", tx.ExpectedUSD.String())
	}
	if tx.Difference.String() != "-0.0029" {
		t.Errorf("difference = %s, want -0.0029", tx.Difference.String())
	}
	if tx.IsDiscrepancy {
		t.Errorf("a 0.0029 difference must not be flagged")
	}
	if tx.DiscrepancyReason != nil {
		t.Errorf("unflagged pair should have nil reason, got %q", *tx.DiscrepancyReason)
	}
	if tx.FXDeviationPct == nil || !tx.FXDeviationPct.IsZero() {
		t.Errorf("fx_deviation_pct should be 0 at market rate, got %v", tx.FXDeviationPct)
	}
}

func TestReconcile_LargeDiscrepancyReason(t *testing.T) {
	engine := newTestEngine(t)

	result := engine.Reconcile(
		[]*models.Order{order("T1", "MXN", 1000, "X")},
		[]*models.Settlement{settlement("T1", 200.00, 17.50, 2.00)},
	)

	tx := result[0]
	if !tx.IsDiscrepancy {
		t.Fatalf("a $144.86 difference must be flagged")
	}
	if tx.Difference.String() != "144.8571" {
		t.Errorf("difference = %s, want 144.8571", tx.Difference.String())
	}
	if tx.DiscrepancyReason == nil || *tx.DiscrepancyReason != "Large discrepancy ($144.86)" {
		t.Errorf("reason = %v, want Large discrepancy ($144.86)", tx.DiscrepancyReason)
	}
}

func TestReconcile_DiscrepancyThresholdIsStrict(t *testing.T) {
	engine := newTestEngine(t)

	// expected_usd = 500/5 - 0 = 100 exactly
	tests := []struct {
		usd     float64
		flagged bool
	}{
		{100.50, false},     // exactly at threshold: not flagged
		{100.5000001, true}, // just over: flagged
	}

	for _, tt := range tests {
		result := engine.Reconcile(
			[]*models.Order{order("T1", "BRL", 500, "X")},
			[]*models.Settlement{settlement("T1", tt.usd, 5.0, 0)},
		)
		if result[0].IsDiscrepancy != tt.flagged {
			t.Errorf("usd=%v: flagged = %v, want %v", tt.usd, result[0].IsDiscrepancy, tt.flagged)
		}
	}
}

func TestReconcile_ReasonTiering(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name   string
		amount float64
		usd    float64
		reason string
	}{
		// difference = 150: dollar tier wins even though pct also exceeds 5%
		{"large dollar wins", 500, 250, "Large discrepancy ($150.00)"},
		// expected = 10, difference = 1 (10%): percentage tier
		{"high percentage", 50, 11, "High % deviation (10.0%)"},
		// expected = 100, difference = 0.75 (0.75%): generic tier
		{"generic mismatch", 500, 100.75, "Settlement mismatch ($0.75)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Reconcile(
				[]*models.Order{order("T1", "BRL", tt.amount, "X")},
				[]*models.Settlement{settlement("T1", tt.usd, 5.0, 0)},
			)
			tx := result[0]
			if !tx.IsDiscrepancy {
				t.Fatalf("pair should be flagged")
			}
			if tx.DiscrepancyReason == nil || *tx.DiscrepancyReason != tt.reason {
				t.Errorf("reason = %v, want %q", tx.DiscrepancyReason, tt.reason)
			}
		})
	}
}

func TestReconcile_FXDeviationSign(t *testing.T) {
	engine := newTestEngine(t)

	// 19.25 is 10% above the 17.50 MXN market rate: worse for the merchant.
	result := engine.Reconcile(
		[]*models.Order{order("T1", "MXN", 1000, "X")},
		[]*models.Settlement{settlement("T1", 49.95, 19.25, 2.00)},
	)

	tx := result[0]
	if tx.FXDeviationPct == nil {
		t.Fatalf("fx_deviation_pct should be set for MXN")
	}
	if !tx.FXDeviationPct.Equal(decimal.NewFromInt(10)) {
		t.Errorf("fx_deviation_pct = %s, want 10 (positive, not -10)", tx.FXDeviationPct.String())
	}
}

func TestReconcile_UnknownCurrencyHasNullDeviation(t *testing.T) {
	engine := newTestEngine(t)

	result := engine.Reconcile(
		[]*models.Order{order("T1", "XYZ", 100, "X")},
		[]*models.Settlement{settlement("T1", 20, 5.0, 0)},
	)

	if result[0].FXDeviationPct != nil {
		t.Errorf("unknown currency must yield nil fx_deviation_pct, got %s", result[0].FXDeviationPct.String())
	}
}

func TestReconcile_ZeroFXRatePolicy(t *testing.T) {
	engine := newTestEngine(t)

	result := engine.Reconcile(
		[]*models.Order{order("T1", "MXN", 1000, "X")},
		[]*models.Settlement{settlement("T1", 55.14, 0, 2.00)},
	)

	tx := result[0]
	if tx.Status != models.StatusMatched {
		t.Fatalf("zero-rate pair stays matched, got %s", tx.Status)
	}
	if !tx.IsDiscrepancy {
		t.Errorf("zero FX rate must be flagged")
	}
	if tx.DiscrepancyReason == nil || *tx.DiscrepancyReason != ReasonInvalidFXRate {
		t.Errorf("reason = %v, want %q", tx.DiscrepancyReason, ReasonInvalidFXRate)
	}
	if tx.ExpectedUSD != nil || tx.Difference != nil || tx.DifferencePct != nil {
		t.Errorf("expected/difference/difference_pct must stay undefined for a zero FX rate")
	}
	if tx.ActualUSD == nil {
		t.Errorf("actual_usd is known and should be populated")
	}
}

func TestReconcile_NegativeExpectedHasZeroPct(t *testing.T) {
	engine := newTestEngine(t)

	// expected = 10/5 - 50 = -48: percentage math is skipped when expected <= 0
	result := engine.Reconcile(
		[]*models.Order{order("T1", "BRL", 10, "X")},
		[]*models.Settlement{settlement("T1", 2, 5.0, 50)},
	)

	tx := result[0]
	if tx.DifferencePct == nil || !tx.DifferencePct.IsZero() {
		t.Errorf("difference_pct = %v, want 0 for non-positive expected", tx.DifferencePct)
	}
	if !tx.IsDiscrepancy {
		t.Errorf("difference of 50 must still be flagged")
	}
}

func TestReconcile_UnmatchedPartition(t *testing.T) {
	engine := newTestEngine(t)

	result := engine.Reconcile(
		[]*models.Order{
			order("O1", "MXN", 100, "X"),
			order("O2", "BRL", 200, "Y"),
		},
		[]*models.Settlement{settlement("S1", 50, 5.0, 1)},
	)

	if len(result) != 3 {
		t.Fatalf("expected 3 records (2 unmatched orders + 1 unmatched settlement), got %d", len(result))
	}

	counts := map[models.MatchStatus]int{}
	for _, tx := range result {
		counts[tx.Status]++
	}
	if counts[models.StatusMatched] != 0 ||
		counts[models.StatusUnmatchedOrder] != 2 ||
		counts[models.StatusUnmatchedSettlement] != 1 {
		t.Errorf("partition = %v, want 0 matched / 2 unmatched_order / 1 unmatched_settlement", counts)
	}

	for _, tx := range result {
		if tx.IsDiscrepancy {
			t.Errorf("unmatched records must never be flagged: %s", tx.TransactionID)
		}
		switch tx.Status {
		case models.StatusUnmatchedOrder:
			if tx.DiscrepancyReason == nil || *tx.DiscrepancyReason != ReasonNoSettlement {
				t.Errorf("unmatched order reason = %v", tx.DiscrepancyReason)
			}
			if tx.SettlementDate != nil || tx.ActualUSD != nil {
				t.Errorf("settlement-side fields must be nil for unmatched order %s", tx.TransactionID)
			}
		case models.StatusUnmatchedSettlement:
			if tx.DiscrepancyReason == nil || *tx.DiscrepancyReason != ReasonNoOrder {
				t.Errorf("unmatched settlement reason = %v", tx.DiscrepancyReason)
			}
			if tx.OrderDate != nil || tx.OriginalAmount != nil || tx.PaymentProcessor != nil {
				t.Errorf("order-side fields must be nil for unmatched settlement %s", tx.TransactionID)
			}
		}
	}
}

func TestReconcile_CoverageInvariant(t *testing.T) {
	engine := newTestEngine(t)

	orders := []*models.Order{
		order("A", "MXN", 100, "X"),
		order("B", "BRL", 200, "Y"),
		order("C", "KES", 300, "X"),
	}
	settlements := []*models.Settlement{
		settlement("B", 40, 5.0, 0),
		settlement("C", 2.3, 130.0, 0),
		settlement("D", 10, 4000.0, 0),
		settlement("E", 11, 4000.0, 0),
	}

	result := engine.Reconcile(orders, settlements)

	ids := map[string]int{}
	for _, tx := range result {
		ids[tx.TransactionID]++
	}

	union := []string{"A", "B", "C", "D", "E"}
	if len(result) != len(union) {
		t.Fatalf("len(result) = %d, want %d (union of ids)", len(result), len(union))
	}
	for _, id := range union {
		if ids[id] != 1 {
			t.Errorf("id %s appears %d times, want exactly 1", id, ids[id])
		}
	}
}

func TestReconcile_DuplicateIdentifiers(t *testing.T) {
	engine := newTestEngine(t)

	// Duplicate settlement ids: last write wins in the lookup.
	result := engine.Reconcile(
		[]*models.Order{order("T1", "BRL", 500, "X")},
		[]*models.Settlement{
			settlement("T1", 90, 5.0, 0),
			settlement("T1", 100, 5.0, 0),
		},
	)
	if len(result) != 1 {
		t.Fatalf("duplicate settlement ids must collapse to one record, got %d", len(result))
	}
	if !result[0].ActualUSD.Equal(decimal.NewFromInt(100)) {
		t.Errorf("actual_usd = %s, want 100 (last write wins)", result[0].ActualUSD.String())
	}

	// Duplicate order ids: each produces its own row against the same settlement.
	result = engine.Reconcile(
		[]*models.Order{
			order("T2", "BRL", 500, "X"),
			order("T2", "BRL", 500, "X"),
		},
		[]*models.Settlement{settlement("T2", 100, 5.0, 0)},
	)
	if len(result) != 2 {
		t.Fatalf("duplicate order ids produce one row each, got %d", len(result))
	}
	for _, tx := range result {
		if tx.Status != models.StatusMatched {
			t.Errorf("both duplicate orders should match, got %s", tx.Status)
		}
	}
}

func TestReconcile_LeftoverSettlementOrdering(t *testing.T) {
	engine := newTestEngine(t)

	settlements := make([]*models.Settlement, 0, 10)
	for i := 0; i < 10; i++ {
		settlements = append(settlements, settlement(fmt.Sprintf("S%02d", i), 10, 5.0, 0))
	}

	result := engine.Reconcile(nil, settlements)
	for i, tx := range result {
		want := fmt.Sprintf("S%02d", i)
		if tx.TransactionID != want {
			t.Fatalf("leftover settlements out of order: position %d = %s, want %s", i, tx.TransactionID, want)
		}
	}
}

func TestReconcile_Deterministic(t *testing.T) {
	engine := newTestEngine(t)

	orders := []*models.Order{
		order("A", "MXN", 1000, "X"),
		order("B", "BRL", 500, "Y"),
		order("Z", "IDR", 100000, "X"),
	}
	settlements := []*models.Settlement{
		settlement("B", 98, 5.0, 2),
		settlement("Q", 5, 130.0, 0.5),
		settlement("A", 55.14, 17.5, 2),
		settlement("R", 6, 130.0, 0.5),
	}

	first, err := json.Marshal(engine.Reconcile(orders, settlements))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := json.Marshal(engine.Reconcile(orders, settlements))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if string(first) != string(second) {
		t.Errorf("two runs on identical input produced different output")
	}
}

func TestReconcile_EmptyInputs(t *testing.T) {
	engine := newTestEngine(t)

	result := engine.Reconcile(nil, nil)
	if len(result) != 0 {
		t.Errorf("two empty inputs should produce an empty result, got %d records", len(result))
	}
}

func TestNewEngine_ConfigValidation(t *testing.T) {
	bad := DefaultConfig()
	bad.DiscrepancyThresholdUSD = decimal.NewFromInt(-1)
	if _, err := NewEngine(bad); err == nil {
		t.Errorf("negative threshold must be rejected")
	}

	noRates := DefaultConfig()
	noRates.MarketRates = nil
	if _, err := NewEngine(noRates); err == nil {
		t.Errorf("nil market rate table must be rejected")
	}
}

func TestReconcile_ThresholdOverride(t *testing.T) {
	config := DefaultConfig()
	config.DiscrepancyThresholdUSD = decimal.NewFromInt(10)
	config.MarketRates = rates.Default()

	engine, err := NewEngine(config)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	// difference = 5: flagged at the default 0.50 threshold, not at 10.
	result := engine.Reconcile(
		[]*models.Order{order("T1", "BRL", 500, "X")},
		[]*models.Settlement{settlement("T1", 105, 5.0, 0)},
	)
	if result[0].IsDiscrepancy {
		t.Errorf("a $5 difference must not be flagged at a $10 threshold")
	}
}
