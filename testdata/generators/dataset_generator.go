// Command dataset_generator produces paired orders/settlements CSV fixtures
// for exercising the reconciliation pipeline. The generator is seeded so a
// dataset can be regenerated exactly.
//
// Usage:
//
//	go run dataset_generator.go -count 500 -seed 42 -output-dir ../generated
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
)

type currencyProfile struct {
	Code       string
	MarketRate decimal.Decimal
}

var currencies = []currencyProfile{
	{"MXN", decimal.NewFromFloat(17.50)},
	{"BRL", decimal.NewFromFloat(5.00)},
	{"IDR", decimal.NewFromFloat(15500)},
	{"KES", decimal.NewFromFloat(130)},
	{"COP", decimal.NewFromFloat(4000)},
}

var processors = []string{"PayFlow", "GlobalPay", "SwiftSettle", "TransactPro"}

type orderRecord struct {
	TransactionID  string
	OrderDate      time.Time
	Currency       string
	OriginalAmount decimal.Decimal
	Processor      string
}

type settlementRecord struct {
	TransactionID  string
	SettlementDate time.Time
	USDReceived    decimal.Decimal
	FXRate         decimal.Decimal
	Fees           decimal.Decimal
}

func main() {
	var (
		count         = flag.Int("count", 200, "number of orders to generate")
		seed          = flag.Int64("seed", 42, "random seed")
		outputDir     = flag.String("output-dir", ".", "directory for orders.csv and settlements.csv")
		feeMismatch   = flag.Float64("fee-mismatch-rate", 0.10, "fraction of settlements with an inflated fee")
		largeGap      = flag.Float64("large-gap-rate", 0.03, "fraction of settlements short by more than $100")
		adverseFX     = flag.Float64("adverse-fx-rate", 0.08, "fraction of settlements with an above-market FX rate")
		missingOrders = flag.Float64("missing-order-rate", 0.04, "fraction of orders with no settlement")
		orphans       = flag.Int("orphan-settlements", 5, "settlements with no matching order")
	)
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	orders := make([]orderRecord, 0, *count)
	settlements := make([]settlementRecord, 0, *count+*orphans)

	for i := 0; i < *count; i++ {
		currency := currencies[rng.Intn(len(currencies))]
		orderDate := start.AddDate(0, 0, rng.Intn(28))

		// Local amounts scale with the market rate so USD values stay in a
		// plausible range.
		usdValue := decimal.NewFromFloat(20 + rng.Float64()*480)
		amount := usdValue.Mul(currency.MarketRate).Round(2)

		order := orderRecord{
			TransactionID:  fmt.Sprintf("TX%05d", i+1),
			OrderDate:      orderDate,
			Currency:       currency.Code,
			OriginalAmount: amount,
			Processor:      processors[rng.Intn(len(processors))],
		}
		orders = append(orders, order)

		if rng.Float64() < *missingOrders {
			continue
		}

		fxRate := currency.MarketRate
		if rng.Float64() < *adverseFX {
			// 4-8% above market, enough to trip the deviation alert.
			markup := 1.04 + rng.Float64()*0.04
			fxRate = fxRate.Mul(decimal.NewFromFloat(markup)).Round(4)
		}

		fees := decimal.NewFromFloat(1.50 + rng.Float64()*2.50).Round(2)
		expected := amount.Div(fxRate).Sub(fees)

		received := expected
		switch {
		case rng.Float64() < *largeGap:
			received = expected.Sub(decimal.NewFromFloat(110 + rng.Float64()*90))
		case rng.Float64() < *feeMismatch:
			received = expected.Sub(decimal.NewFromFloat(1 + rng.Float64()*9))
		}

		settlements = append(settlements, settlementRecord{
			TransactionID:  order.TransactionID,
			SettlementDate: orderDate.AddDate(0, 0, 1+rng.Intn(3)),
			USDReceived:    received.Round(2),
			FXRate:         fxRate,
			Fees:           fees,
		})
	}

	for i := 0; i < *orphans; i++ {
		currency := currencies[rng.Intn(len(currencies))]
		settlements = append(settlements, settlementRecord{
			TransactionID:  fmt.Sprintf("TXORPHAN%03d", i+1),
			SettlementDate: start.AddDate(0, 0, rng.Intn(28)),
			USDReceived:    decimal.NewFromFloat(10 + rng.Float64()*200).Round(2),
			FXRate:         currency.MarketRate,
			Fees:           decimal.NewFromFloat(2).Round(2),
		})
	}

	if err := writeOrders(filepath.Join(*outputDir, "orders.csv"), orders); err != nil {
		log.Fatalf("write orders: %v", err)
	}
	if err := writeSettlements(filepath.Join(*outputDir, "settlements.csv"), settlements); err != nil {
		log.Fatalf("write settlements: %v", err)
	}

	fmt.Printf("Generated %d orders and %d settlements (seed %d) in %s\n",
		len(orders), len(settlements), *seed, *outputDir)
}

func writeOrders(path string, orders []orderRecord) error {
	return writeCSV(path,
		[]string{"transaction_id", "order_date", "customer_currency", "original_amount", "payment_processor"},
		len(orders),
		func(i int) []string {
			o := orders[i]
			return []string{
				o.TransactionID,
				o.OrderDate.Format("2006-01-02"),
				o.Currency,
				o.OriginalAmount.StringFixed(2),
				o.Processor,
			}
		})
}

func writeSettlements(path string, settlements []settlementRecord) error {
	return writeCSV(path,
		[]string{"transaction_id", "settlement_date", "usd_amount_received", "fx_rate_applied", "fees_deducted"},
		len(settlements),
		func(i int) []string {
			s := settlements[i]
			return []string{
				s.TransactionID,
				s.SettlementDate.Format("2006-01-02"),
				s.USDReceived.StringFixed(2),
				s.FXRate.String(),
				s.Fees.StringFixed(2),
			}
		})
}

func writeCSV(path string, header []string, rows int, row func(i int) []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for i := 0; i < rows; i++ {
		if err := w.Write(row(i)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
