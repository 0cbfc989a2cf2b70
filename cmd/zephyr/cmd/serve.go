package cmd

import (
	"net/http"

	"zephyr-reconciliation-service/cmd/zephyr/config"
	"zephyr-reconciliation-service/internal/api"
	"zephyr-reconciliation-service/internal/detector"
	"zephyr-reconciliation-service/internal/parsers"
	"zephyr-reconciliation-service/internal/reconciler"
	"zephyr-reconciliation-service/pkg/errors"
	"zephyr-reconciliation-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reconciliation HTTP API",
	Long: `Serve exposes the reconciliation pipeline over HTTP. Clients upload an
orders CSV and a settlements CSV as a multipart form to POST /api/reconcile and
receive the full report as JSON. GET /api/health reports liveness.`,
	Example: `  zephyr serve
  zephyr serve --addr :9090
  ZEPHYR_ADDR=:9090 zephyr serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.GetGlobalLogger().WithComponent("serve")

	handlers, err := buildHandlers()
	if err != nil {
		return err
	}

	addr := viper.GetString("addr")
	log.WithField("addr", addr).Info("Starting HTTP server")

	if err := http.ListenAndServe(addr, api.NewRouter(handlers)); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, errors.CodeUnexpectedError, "HTTP server failed").
			WithContext("addr", addr)
	}
	return nil
}

func buildHandlers() (*api.Handlers, error) {
	ordersParser, err := parsers.NewOrdersParser(config.CreateOrdersParserConfig())
	if err != nil {
		return nil, err
	}
	settlementsParser, err := parsers.NewSettlementsParser(config.CreateSettlementsParserConfig())
	if err != nil {
		return nil, err
	}

	engineConfig, err := config.CreateEngineConfig(-1, marketRateOverrides())
	if err != nil {
		return nil, err
	}
	engine, err := reconciler.NewEngine(engineConfig)
	if err != nil {
		return nil, err
	}

	det, err := detector.NewDetector(nil)
	if err != nil {
		return nil, err
	}

	return api.NewHandlers(ordersParser, settlementsParser, engine, det), nil
}
