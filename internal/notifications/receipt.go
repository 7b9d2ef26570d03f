package notifications

import (
	"bytes"
	"html/template"

	"github.com/davidruizdev/storefront-backend/pkg/db/models"
)

var receiptTemplate = template.Must(template.New("receipt").Parse(`
<h1>Thanks for your order</h1>
<p>Order <strong>{{.Order.ID}}</strong>, placed {{.PlacedAt}}.</p>
<table cellpadding="4">
  <tr><th align="left">Item</th><th align="right">Qty</th><th align="right">Price</th></tr>
  {{range .Order.Items}}
  <tr><td>{{.Name}}</td><td align="right">{{.Qty}}</td><td align="right">${{.Price.StringFixed 2}}</td></tr>
  {{end}}
</table>
<p>
  Items: ${{.Order.ItemsPrice.StringFixed 2}}<br>
  Shipping: ${{.Order.ShippingPrice.StringFixed 2}}<br>
  Tax: ${{.Order.TaxPrice.StringFixed 2}}<br>
  <strong>Total: ${{.Order.TotalPrice.StringFixed 2}}</strong>
</p>
<p>
  Shipping to {{.Order.ShippingAddress.FullName}},
  {{.Order.ShippingAddress.Street}}, {{.Order.ShippingAddress.City}}
  {{.Order.ShippingAddress.PostalCode}}, {{.Order.ShippingAddress.Country}}.
</p>
`))

type receiptData struct {
	Order    *models.Order
	PlacedAt string
}

func renderReceipt(order *models.Order) (string, error) {
	var buf bytes.Buffer
	err := receiptTemplate.Execute(&buf, receiptData{
		Order:    order,
		PlacedAt: order.CreatedAt.Format("January 2, 2006"),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
