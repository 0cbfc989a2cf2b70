package parsers

import "fmt"

// OrdersParserConfig configures how the orders CSV is read.
type OrdersParserConfig struct {
	Delimiter     rune              `json:"delimiter"`
	ColumnAliases map[string]string `json:"column_aliases,omitempty"`
}

// DefaultOrdersParserConfig returns the standard configuration, including
// aliases for header variants seen in merchant platform exports.
func DefaultOrdersParserConfig() *OrdersParserConfig {
	return &OrdersParserConfig{
		Delimiter: ',',
		ColumnAliases: map[string]string{
			"txn_id":    "transaction_id",
			"trx_id":    "transaction_id",
			"id":        "transaction_id",
			"date":      "order_date",
			"currency":  "customer_currency",
			"amount":    "original_amount",
			"processor": "payment_processor",
		},
	}
}

// Validate validates the configuration
func (c *OrdersParserConfig) Validate() error {
	if c.Delimiter == 0 {
		return fmt.Errorf("delimiter cannot be empty")
	}
	return nil
}

// SettlementsParserConfig configures how the settlements CSV is read.
type SettlementsParserConfig struct {
	Delimiter     rune              `json:"delimiter"`
	ColumnAliases map[string]string `json:"column_aliases,omitempty"`
}

// DefaultSettlementsParserConfig returns the standard configuration with
// aliases for processor report header variants.
func DefaultSettlementsParserConfig() *SettlementsParserConfig {
	return &SettlementsParserConfig{
		Delimiter: ',',
		ColumnAliases: map[string]string{
			"txn_id":       "transaction_id",
			"trx_id":       "transaction_id",
			"id":           "transaction_id",
			"date":         "settlement_date",
			"usd_amount":   "usd_amount_received",
			"usd_received": "usd_amount_received",
			"fx_rate":      "fx_rate_applied",
			"fees":         "fees_deducted",
			"fee":          "fees_deducted",
		},
	}
}

// Validate validates the configuration
func (c *SettlementsParserConfig) Validate() error {
	if c.Delimiter == 0 {
		return fmt.Errorf("delimiter cannot be empty")
	}
	return nil
}
