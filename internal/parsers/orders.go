package parsers

import (
	"io"

	"zephyr-reconciliation-service/internal/models"
	"zephyr-reconciliation-service/pkg/errors"
	"zephyr-reconciliation-service/pkg/logger"
)

// ordersSource names the input in row-level error messages.
const ordersSource = "orders CSV"

// orderColumns are the required canonical columns of the orders file.
var orderColumns = []string{
	"transaction_id",
	"order_date",
	"customer_currency",
	"original_amount",
	"payment_processor",
}

// OrdersParser parses merchant order CSV exports.
type OrdersParser struct {
	config *OrdersParserConfig
	logger logger.Logger
}

// NewOrdersParser creates a new OrdersParser with the given configuration.
func NewOrdersParser(config *OrdersParserConfig) (*OrdersParser, error) {
	if config == nil {
		config = DefaultOrdersParserConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "orders_parser_config", config, err)
	}

	return &OrdersParser{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("orders_parser"),
	}, nil
}

// Parse reads orders from r. It fails on the first malformed row, reporting
// the row number as it appears in the file (header = row 1).
func (p *OrdersParser) Parse(r io.Reader) ([]*models.Order, *ParseStats, error) {
	reader := newCSVReader(r, p.config.Delimiter)
	stats := &ParseStats{}

	index, err := resolveHeaders(reader, ordersSource, orderColumns, p.config.ColumnAliases)
	if err != nil {
		return nil, stats, err
	}

	var orders []*models.Order
	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, stats, errors.ParseError(errors.CodeInvalidFormat, ordersSource, row, "", "", err)
		}
		if isEmptyRow(record) {
			stats.RowsSkipped++
			continue
		}

		order, err := p.parseRow(index, record, row)
		if err != nil {
			return nil, stats, err
		}

		orders = append(orders, order)
		stats.RecordsParsed++
	}

	p.logger.WithFields(logger.Fields{
		"records": stats.RecordsParsed,
		"skipped": stats.RowsSkipped,
	}).Debug("Parsed orders")

	return orders, stats, nil
}

// ParseFile parses orders from a CSV file on disk.
func (p *OrdersParser) ParseFile(path string) ([]*models.Order, *ParseStats, error) {
	file, err := openFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	return p.Parse(file)
}

func (p *OrdersParser) parseRow(index headerIndex, record []string, row int) (*models.Order, error) {
	values := make(map[string]string, len(orderColumns))
	for _, column := range orderColumns {
		value, ok := index.field(record, column)
		if !ok {
			return nil, rowError(ordersSource, row, column, "",
				errors.ValidationError(errors.CodeMissingField, column, nil, nil))
		}
		values[column] = value
	}

	amount, err := models.ParseDecimalFromString(values["original_amount"])
	if err != nil {
		return nil, rowError(ordersSource, row, "original_amount", values["original_amount"], err)
	}

	order := models.NewOrder(
		values["transaction_id"],
		values["order_date"],
		values["customer_currency"],
		amount,
		values["payment_processor"],
	)

	if err := order.Validate(); err != nil {
		return nil, rowError(ordersSource, row, "transaction_id", values["transaction_id"], err)
	}

	return order, nil
}
