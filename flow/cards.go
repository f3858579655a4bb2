package flow

import (
	"fmt"
	"strconv"
	"strings"

	"hostel-market/models"

	"github.com/shopspring/decimal"
)

// Callback payloads. Telegram caps callback data at 64 bytes; every payload
// here is a short prefix plus a product code or order id.
const (
	cbDialogCancel = "dialog:cancel"
	cbConfirmYes   = "confirm:yes"
	cbConfirmNo    = "confirm:no"
	cbAddrSaved    = "addr:saved"
	cbAddrNew      = "addr:new"
	cbPayCOD       = "pay:cod"
	cbPayOnline    = "pay:online"
	cbCurrency     = "currency:toggle"

	cbShop    = "shop:"
	cbInfo    = "info:"
	cbBuy     = "buy:"
	cbStatus  = "status:"
	cbReject  = "reject:"
	cbUCancel = "ucancel:"
	cbOrders  = "orders:open"
	cbUsers   = "users:"

	cbDelete = "del:"
	cbProfit = "profit:"
	cbOrder  = "order:"
	cbCancel = "acancel:"
)

func cancelRow() []models.Button {
	return []models.Button{{Text: "✖ Cancel", Data: cbDialogCancel}}
}

// prompt is a dialog question with the cancel button attached.
func prompt(text string, rows ...[]models.Button) models.Message {
	return models.Text(text).WithButtons(append(rows, cancelRow())...)
}

func confirmPrompt(text string) models.Message {
	return models.Text(text).WithButtons(
		[]models.Button{{Text: "✅ Yes", Data: cbConfirmYes}, {Text: "↩ No", Data: cbConfirmNo}},
	)
}

var mdReplacer = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// md escapes user-provided text for Telegram's legacy Markdown.
func md(s string) string { return mdReplacer.Replace(s) }

type moneyFunc func(decimal.Decimal) string

func priceLine(p models.Product, money moneyFunc) string {
	if p.Discount.IsPositive() {
		return fmt.Sprintf("%s (was %s, %s%% off)", money(p.Price), money(p.OriginalPrice), p.Discount.StringFixed(1))
	}
	return money(p.Price)
}

func stockLine(p models.Product) string {
	if p.Stock <= 0 {
		return "sold out"
	}
	return strconv.Itoa(p.Stock) + " left"
}

// productCard is the /info view: photo (if any) with the details as caption.
func productCard(p models.Product, money moneyFunc) models.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "🛍 *%s*\n", md(p.Name))
	fmt.Fprintf(&b, "Code: `%s`\n", p.Code)
	fmt.Fprintf(&b, "Price: %s\n", priceLine(p, money))
	fmt.Fprintf(&b, "Stock: %s", stockLine(p))
	if p.Location != "" {
		fmt.Fprintf(&b, "\n📍 Delivery: %s", md(p.Location))
	}
	if p.PaymentMethods != "" {
		fmt.Fprintf(&b, "\n💳 Payment: %s", md(p.PaymentMethods))
	}
	m := models.Message{Text: b.String(), Markdown: true, PhotoID: p.ImageID}
	if p.Available() {
		m = m.WithButtons([]models.Button{{Text: "🛒 Buy", Data: cbBuy + p.Code}})
	}
	return m
}

func orderLine(o models.Order, money moneyFunc) string {
	return fmt.Sprintf("%s · %s × %d · %s · %s", o.ID, o.ProductName, o.Quantity, money(o.Total), o.Status.Label())
}

// adminOrderCard is what admins get for a new order and from /pending. The
// buttons offer the next lifecycle move plus cancellation.
func adminOrderCard(o models.Order, customer models.User, variant Variant) models.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "🆕 Order %s\n", o.ID)
	fmt.Fprintf(&b, "Product: %s × %d\n", o.ProductName, o.Quantity)
	fmt.Fprintf(&b, "Total: %s\n", inr(o.Total))
	fmt.Fprintf(&b, "Profit: %s\n", inr(o.Profit))
	who := customer.DisplayName
	if customer.Username != "" {
		who += " @" + customer.Username
	}
	fmt.Fprintf(&b, "Customer: %s (id %d)\n", strings.TrimSpace(who), o.UserID)
	if variant == VariantHostel {
		fmt.Fprintf(&b, "Name: %s\nPhone: %s\nRoom: %s\n", o.CustomerName, o.CustomerPhone, o.CustomerRoom)
	} else {
		fmt.Fprintf(&b, "Address: %s\nPayment: %s\n", o.Address, o.Payment.Label())
	}
	fmt.Fprintf(&b, "Status: %s", o.Status.Label())

	var row []models.Button
	switch o.Status {
	case models.OrderStatusPending:
		row = append(row, models.Button{Text: "✅ Accept", Data: statusData(o.ID, models.OrderStatusAccepted)})
	case models.OrderStatusAccepted:
		row = append(row, models.Button{Text: "🚚 Out for delivery", Data: statusData(o.ID, models.OrderStatusOutForDelivery)})
	case models.OrderStatusOutForDelivery:
		row = append(row, models.Button{Text: "📦 Delivered", Data: statusData(o.ID, models.OrderStatusDelivered)})
	}
	if !o.Status.Terminal() {
		row = append(row, models.Button{Text: "❌ Cancel", Data: cbReject + o.ID})
	}
	m := models.Text(b.String())
	if len(row) > 0 {
		m = m.WithButtons(row)
	}
	return m
}

func statusData(id string, to models.OrderStatus) string {
	return cbStatus + id + ":" + string(to)
}

func parseStatusData(arg string) (string, models.OrderStatus, bool) {
	i := strings.LastIndex(arg, ":")
	if i <= 0 {
		return "", "", false
	}
	st, ok := models.ParseOrderStatus(arg[i+1:])
	return arg[:i], st, ok
}
