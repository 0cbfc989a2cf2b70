package parsers

import (
	"io"

	"zephyr-reconciliation-service/internal/models"
	"zephyr-reconciliation-service/pkg/errors"
	"zephyr-reconciliation-service/pkg/logger"
)

const settlementsSource = "settlements CSV"

var settlementColumns = []string{
	"transaction_id",
	"settlement_date",
	"usd_amount_received",
	"fx_rate_applied",
	"fees_deducted",
}

// SettlementsParser parses processor settlement CSV reports.
type SettlementsParser struct {
	config *SettlementsParserConfig
	logger logger.Logger
}

// NewSettlementsParser creates a new SettlementsParser with the given
// configuration.
func NewSettlementsParser(config *SettlementsParserConfig) (*SettlementsParser, error) {
	if config == nil {
		config = DefaultSettlementsParserConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "settlements_parser_config", config, err)
	}

	return &SettlementsParser{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("settlements_parser"),
	}, nil
}

// Parse reads settlements from r, failing on the first malformed row with its
// row number. Degenerate values (zero FX rate, negative USD) are not rejected
// here; the engine owns that policy.
func (p *SettlementsParser) Parse(r io.Reader) ([]*models.Settlement, *ParseStats, error) {
	reader := newCSVReader(r, p.config.Delimiter)
	stats := &ParseStats{}

	index, err := resolveHeaders(reader, settlementsSource, settlementColumns, p.config.ColumnAliases)
	if err != nil {
		return nil, stats, err
	}

	var settlements []*models.Settlement
	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, stats, errors.ParseError(errors.CodeInvalidFormat, settlementsSource, row, "", "", err)
		}
		if isEmptyRow(record) {
			stats.RowsSkipped++
			continue
		}

		settlement, err := p.parseRow(index, record, row)
		if err != nil {
			return nil, stats, err
		}

		settlements = append(settlements, settlement)
		stats.RecordsParsed++
	}

	p.logger.WithFields(logger.Fields{
		"records": stats.RecordsParsed,
		"skipped": stats.RowsSkipped,
	}).Debug("Parsed settlements")

	return settlements, stats, nil
}

// ParseFile parses settlements from a CSV file on disk.
func (p *SettlementsParser) ParseFile(path string) ([]*models.Settlement, *ParseStats, error) {
	file, err := openFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	return p.Parse(file)
}

func (p *SettlementsParser) parseRow(index headerIndex, record []string, row int) (*models.Settlement, error) {
	values := make(map[string]string, len(settlementColumns))
	for _, column := range settlementColumns {
		value, ok := index.field(record, column)
		if !ok {
			return nil, rowError(settlementsSource, row, column, "",
				errors.ValidationError(errors.CodeMissingField, column, nil, nil))
		}
		values[column] = value
	}

	usdReceived, err := models.ParseDecimalFromString(values["usd_amount_received"])
	if err != nil {
		return nil, rowError(settlementsSource, row, "usd_amount_received", values["usd_amount_received"], err)
	}

	fxRate, err := models.ParseDecimalFromString(values["fx_rate_applied"])
	if err != nil {
		return nil, rowError(settlementsSource, row, "fx_rate_applied", values["fx_rate_applied"], err)
	}

	fees, err := models.ParseDecimalFromString(values["fees_deducted"])
	if err != nil {
		return nil, rowError(settlementsSource, row, "fees_deducted", values["fees_deducted"], err)
	}

	settlement := models.NewSettlement(
		values["transaction_id"],
		values["settlement_date"],
		usdReceived,
		fxRate,
		fees,
	)

	if err := settlement.Validate(); err != nil {
		return nil, rowError(settlementsSource, row, "transaction_id", values["transaction_id"], err)
	}

	return settlement, nil
}
