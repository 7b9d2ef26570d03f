package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/davidruizdev/storefront-backend/pkg/config"
	"github.com/davidruizdev/storefront-backend/pkg/db/models"
)

// Breakdown is the derived price set recomputed on every cart mutation and
// frozen onto the order at checkout.
type Breakdown struct {
	ItemsPrice    decimal.Decimal
	ShippingPrice decimal.Decimal
	TaxPrice      decimal.Decimal
	TotalPrice    decimal.Decimal
}

// Calculator derives the price breakdown from cart lines.
type Calculator struct {
	freeShippingThreshold decimal.Decimal
	flatShippingPrice     decimal.Decimal
	taxRate               decimal.Decimal
}

// NewCalculator parses the configured checkout amounts.
func NewCalculator(cfg config.CheckoutConfig) (*Calculator, error) {
	threshold, err := decimal.NewFromString(cfg.FreeShippingThreshold)
	if err != nil {
		return nil, fmt.Errorf("parse free shipping threshold %q: %w", cfg.FreeShippingThreshold, err)
	}
	flat, err := decimal.NewFromString(cfg.FlatShippingPrice)
	if err != nil {
		return nil, fmt.Errorf("parse flat shipping price %q: %w", cfg.FlatShippingPrice, err)
	}
	rate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		return nil, fmt.Errorf("parse tax rate %q: %w", cfg.TaxRate, err)
	}
	return &Calculator{
		freeShippingThreshold: threshold,
		flatShippingPrice:     flat,
		taxRate:               rate,
	}, nil
}

// Calculate derives the breakdown for the given cart items. Shipping is free
// strictly above the threshold; tax applies to the item subtotal only.
func (c *Calculator) Calculate(items []models.CartItem) Breakdown {
	itemsPrice := decimal.Zero
	for _, item := range items {
		itemsPrice = itemsPrice.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Qty))))
	}
	itemsPrice = Round2(itemsPrice)

	shipping := c.flatShippingPrice
	if itemsPrice.GreaterThan(c.freeShippingThreshold) {
		shipping = decimal.Zero
	}
	shipping = Round2(shipping)

	tax := Round2(c.taxRate.Mul(itemsPrice))
	total := Round2(itemsPrice.Add(shipping).Add(tax))

	return Breakdown{
		ItemsPrice:    itemsPrice,
		ShippingPrice: shipping,
		TaxPrice:      tax,
		TotalPrice:    total,
	}
}

// Round2 rounds half away from zero to two decimal places.
func Round2(value decimal.Decimal) decimal.Decimal {
	return value.Round(2)
}
