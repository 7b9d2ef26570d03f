package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Address is the shipping destination captured at checkout, stored as JSONB
// on both users (default address) and orders (frozen snapshot).
type Address struct {
	FullName   string  `json:"full_name"`
	Street     string  `json:"street"`
	City       string  `json:"city"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
	Lat        float64 `json:"lat,omitempty"`
	Lng        float64 `json:"lng,omitempty"`
}

// Validate reports whether the address carries the fields checkout requires.
func (a Address) Validate() error {
	switch {
	case strings.TrimSpace(a.FullName) == "":
		return fmt.Errorf("address: missing full_name")
	case strings.TrimSpace(a.Street) == "":
		return fmt.Errorf("address: missing street")
	case strings.TrimSpace(a.City) == "":
		return fmt.Errorf("address: missing city")
	case strings.TrimSpace(a.PostalCode) == "":
		return fmt.Errorf("address: missing postal_code")
	case strings.TrimSpace(a.Country) == "":
		return fmt.Errorf("address: missing country")
	}
	return nil
}

// Value serializes the address to JSON.
func (a Address) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan decodes JSONB into the address struct.
func (a *Address) Scan(value interface{}) error {
	if value == nil {
		*a = Address{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, a)
}

func asJSON(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported scan type %T", value)
	}
}
