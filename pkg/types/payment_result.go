package types

import (
	"database/sql/driver"
	"encoding/json"
)

// PaymentResult records the provider-side outcome of a capture, stored as
// JSONB on the order once payment converges.
type PaymentResult struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	EmailAddress string `json:"email_address"`
	PricePaid    string `json:"price_paid"`
}

// Value serializes the payment result to JSON.
func (p *PaymentResult) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

// Scan decodes JSONB into the payment result struct.
func (p *PaymentResult) Scan(value interface{}) error {
	if value == nil {
		*p = PaymentResult{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, p)
}
