package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"zephyr-reconciliation-service/cmd/zephyr/config"
	"zephyr-reconciliation-service/internal/detector"
	"zephyr-reconciliation-service/internal/parsers"
	"zephyr-reconciliation-service/internal/reconciler"
	"zephyr-reconciliation-service/internal/reporter"
	"zephyr-reconciliation-service/pkg/errors"
	"zephyr-reconciliation-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	ordersFile           string
	settlementsFile      string
	outputFormat         string
	outputFile           string
	discrepancyThreshold float64
	fxAlertThreshold     float64
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile an orders CSV against a settlements CSV",
	Long: `Reconcile matches merchant orders against processor settlements by
transaction ID, computes the expected USD payout from the applied FX rate and
deducted fees, flags settlement discrepancies, and scans the result for
systemic patterns (processor issues, currency anomalies, adverse FX pricing).

The report is written to stdout by default; use --output-file to write it to
disk instead.`,
	Example: `  zephyr reconcile --orders-file orders.csv --settlements-file settlements.csv
  zephyr reconcile -O orders.csv -S settlements.csv --output-format json
  zephyr reconcile -O orders.csv -S settlements.csv --discrepancy-threshold 1.00 --output-file report.json`,
	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVarP(&ordersFile, "orders-file", "O", "", "path to the orders CSV (required)")
	reconcileCmd.Flags().StringVarP(&settlementsFile, "settlements-file", "S", "", "path to the settlements CSV (required)")
	reconcileCmd.Flags().StringVar(&outputFormat, "output-format", "console", "output format: console, json")
	reconcileCmd.Flags().StringVar(&outputFile, "output-file", "", "write the report to a file instead of stdout")
	reconcileCmd.Flags().Float64Var(&discrepancyThreshold, "discrepancy-threshold", -1, "per-transaction USD difference above which a match is flagged (default 0.50)")
	reconcileCmd.Flags().Float64Var(&fxAlertThreshold, "fx-alert-threshold", -1, "FX deviation percentage above which rates are alerted (default 3.0)")

	reconcileCmd.MarkFlagRequired("orders-file")
	reconcileCmd.MarkFlagRequired("settlements-file")

	viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("discrepancy-threshold", reconcileCmd.Flags().Lookup("discrepancy-threshold"))
	viper.BindPFlag("fx-alert-threshold", reconcileCmd.Flags().Lookup("fx-alert-threshold"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	for _, path := range []string{ordersFile, settlementsFile} {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return errors.FileError(errors.CodeFileNotFound, path, err)
			}
			return errors.FileError(errors.CodeFileUnreadable, path, err)
		}
	}

	if _, err := config.ParseOutputFormat(outputFormat); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output-format", outputFormat, err).
			WithSuggestion("use one of: console, json")
	}

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	log := logger.GetGlobalLogger().WithComponent("reconcile")
	start := time.Now()

	format, _ := config.ParseOutputFormat(outputFormat)

	report, err := executeReconciliation(ordersFile, settlementsFile, discrepancyThreshold, fxAlertThreshold, log)
	if err != nil {
		return err
	}

	out, cleanup, err := openOutput(outputFile)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := report.Write(out, format); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, errors.CodeUnexpectedError, "failed to write report")
	}

	log.WithFields(logger.Fields{
		"matched":  report.Matched,
		"flagged":  report.FlaggedCount,
		"alerts":   len(report.PatternAlerts),
		"duration": time.Since(start).String(),
	}).Info("Reconciliation completed")

	return nil
}

// executeReconciliation runs the parse, match, detect, and aggregate stages.
// Threshold arguments below zero fall back to the built-in defaults.
func executeReconciliation(
	ordersPath, settlementsPath string,
	discrepancyThreshold, fxAlertThreshold float64,
	log logger.Logger,
) (*reporter.Report, error) {
	engineConfig, err := config.CreateEngineConfig(discrepancyThreshold, marketRateOverrides())
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "discrepancy-threshold", discrepancyThreshold, err)
	}
	detectorConfig, err := config.CreateDetectorConfig(fxAlertThreshold)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "fx-alert-threshold", fxAlertThreshold, err)
	}

	ordersParser, err := parsers.NewOrdersParser(config.CreateOrdersParserConfig())
	if err != nil {
		return nil, err
	}
	settlementsParser, err := parsers.NewSettlementsParser(config.CreateSettlementsParserConfig())
	if err != nil {
		return nil, err
	}

	orders, orderStats, err := ordersParser.ParseFile(ordersPath)
	if err != nil {
		return nil, err
	}
	settlements, settlementStats, err := settlementsParser.ParseFile(settlementsPath)
	if err != nil {
		return nil, err
	}

	log.WithFields(logger.Fields{
		"orders":                  orderStats.RecordsParsed,
		"settlements":             settlementStats.RecordsParsed,
		"skipped_order_rows":      orderStats.RowsSkipped,
		"skipped_settlement_rows": settlementStats.RowsSkipped,
	}).Debug("Input files parsed")

	engine, err := reconciler.NewEngine(engineConfig)
	if err != nil {
		return nil, err
	}
	det, err := detector.NewDetector(detectorConfig)
	if err != nil {
		return nil, err
	}

	transactions := engine.Reconcile(orders, settlements)
	alerts := det.Detect(transactions)

	return reporter.BuildReport(len(orders), len(settlements), transactions, alerts), nil
}

// marketRateOverrides reads per-currency market rates from the config file,
// e.g. `market-rates: {MXN: 17.80}`. Unparseable entries are ignored.
func marketRateOverrides() map[string]float64 {
	raw := viper.GetStringMapString("market-rates")
	if len(raw) == 0 {
		return nil
	}

	overrides := make(map[string]float64, len(raw))
	for currency, value := range raw {
		rate, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}
		overrides[currency] = rate
	}
	return overrides
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.FileError(errors.CodeFileUnreadable, path, err).
			WithSuggestion("check the output path is writable")
	}
	return f, func() {
		if err := f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to close output file: %v\n", err)
		}
	}, nil
}
