package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hostel-market/metrics"
	"hostel-market/models"
	"hostel-market/services"
	"hostel-market/session"

	log "github.com/sirupsen/logrus"
)

// place order, shared start: pick product (or /buy <code>, or a Buy button) -> quantity
// hostel: -> name -> phone -> room -> commit
// market: -> saved or new address -> payment -> commit

func (k *Kernel) cmdBuy(ctx context.Context, r *request, args []string) error {
	if len(args) > 0 {
		return k.startOrder(ctx, r, args[0])
	}
	products, err := services.ListAll(ctx, k.store.Catalog())
	if err != nil {
		return err
	}
	var rows [][]models.Button
	for _, p := range products {
		if !p.Available() {
			continue
		}
		rows = append(rows, []models.Button{{
			Text: fmt.Sprintf("%s · %s (%d left)", p.Name, k.money(r, p.Price), p.Stock),
			Data: cbOrder + p.Code,
		}})
	}
	if len(rows) == 0 {
		r.say("Nothing is available right now. Check back soon!")
		return nil
	}
	return k.start(ctx, r, &session.PlaceOrderDraft{}, StepOrderSelect, prompt("🛒 What would you like to order?", rows...))
}

func (k *Kernel) startOrder(ctx context.Context, r *request, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	p, err := k.store.Catalog().Get(ctx, code)
	if errors.Is(err, services.ErrProductNotFound) || (err == nil && !p.Available()) {
		r.say("😔 That product is not available right now.")
		return nil
	}
	if err != nil {
		return err
	}
	return k.start(ctx, r, &session.PlaceOrderDraft{Code: p.Code}, StepOrderQty, k.quantityPrompt(r, p))
}

func (k *Kernel) quantityPrompt(r *request, p models.Product) models.Message {
	return prompt(fmt.Sprintf("🧮 How many %s? %s each, %d available.", p.Name, k.money(r, p.Price), p.Stock))
}

func (k *Kernel) stepPlaceOrder(ctx context.Context, r *request, s *session.Session, in Input) error {
	d := s.Draft.(*session.PlaceOrderDraft)
	switch s.Step {
	case StepOrderSelect:
		code, ok := callbackArg(in, cbOrder)
		if !ok {
			return invalid("product", "Pick a product from the list.")
		}
		p, err := k.store.Catalog().Get(ctx, code)
		if err != nil {
			return err
		}
		if !p.Available() {
			return invalid("product", p.Name+" just sold out. Pick another product.")
		}
		d.Code = p.Code
		return k.advance(ctx, r, s, in.Kind, StepOrderQty, k.quantityPrompt(r, p))

	case StepOrderQty:
		n, err := positiveInt(in, "Quantity")
		if err != nil {
			return err
		}
		p, err := k.store.Catalog().Get(ctx, d.Code)
		if err != nil {
			return err
		}
		if !p.Active {
			return services.ErrProductNotFound
		}
		if p.Stock <= 0 {
			return services.ErrInsufficientStock
		}
		if n > p.Stock {
			return invalid("quantity", fmt.Sprintf("Only %d left. Send a number from 1 to %d.", p.Stock, p.Stock))
		}
		d.Quantity = n
		if k.opts.Variant == VariantHostel {
			return k.advance(ctx, r, s, in.Kind, StepOrderName, prompt("👤 What's your name?"))
		}
		if r.user.Address != "" {
			return k.advance(ctx, r, s, in.Kind, StepOrderAddress, prompt(
				"🏠 Deliver to your saved address?\n"+r.user.Address,
				[]models.Button{{Text: "📍 Use saved address", Data: cbAddrSaved}},
				[]models.Button{{Text: "✏️ New address", Data: cbAddrNew}},
			))
		}
		return k.advance(ctx, r, s, in.Kind, StepOrderNewAddress, prompt("🏠 Send your delivery address."))

	case StepOrderName:
		name, err := textInput(in, "name", "Send your name as text.")
		if err != nil {
			return err
		}
		d.CustomerName = name
		return k.advance(ctx, r, s, in.Kind, StepOrderPhone, prompt("📞 Your phone number?"))

	case StepOrderPhone:
		phone, err := phoneInput(in)
		if err != nil {
			return err
		}
		d.CustomerPhone = phone
		return k.advance(ctx, r, s, in.Kind, StepOrderRoom, prompt("🚪 Your room number?"))

	case StepOrderRoom:
		room, err := textInput(in, "room", "Send your room number, e.g. A-101.")
		if err != nil {
			return err
		}
		d.CustomerRoom = room
		d.Payment = models.PaymentCOD
		return k.placeOrder(ctx, r, s, in.Kind, d)

	case StepOrderAddress:
		switch {
		case in.Kind == KindCallback && in.Data == cbAddrSaved:
			if r.user.Address == "" {
				return invalid("address", "You have no saved address. Press New address.")
			}
			d.Address = r.user.Address
			return k.advance(ctx, r, s, in.Kind, StepOrderPayment, paymentPrompt())
		case in.Kind == KindCallback && in.Data == cbAddrNew:
			return k.advance(ctx, r, s, in.Kind, StepOrderNewAddress, prompt("🏠 Send your delivery address."))
		}
		return invalid("address", "Press one of the buttons above.")

	case StepOrderNewAddress:
		addr, err := textInput(in, "address", "Send the address as text.")
		if err != nil {
			return err
		}
		if err := k.store.Users().SetAddress(ctx, r.ev.UserID, addr); err != nil {
			return err
		}
		d.Address = addr
		return k.advance(ctx, r, s, in.Kind, StepOrderPayment, paymentPrompt())

	case StepOrderPayment:
		switch {
		case in.Kind == KindCallback && in.Data == cbPayCOD:
			d.Payment = models.PaymentCOD
		case in.Kind == KindCallback && in.Data == cbPayOnline:
			d.Payment = models.PaymentOnline
		default:
			return invalid("payment", "Choose a payment method with the buttons.")
		}
		return k.placeOrder(ctx, r, s, in.Kind, d)
	}
	return fmt.Errorf("place order: unexpected step %s", s.Step)
}

func paymentPrompt() models.Message {
	return prompt("💳 How will you pay?",
		[]models.Button{{Text: "💵 Cash on delivery", Data: cbPayCOD}, {Text: "💳 Online", Data: cbPayOnline}},
	)
}

// placeOrder commits the draft: stock decrement and ledger insert happen
// together, then the customer gets a receipt and admins get the order card.
func (k *Kernel) placeOrder(ctx context.Context, r *request, s *session.Session, kind InputKind, d *session.PlaceOrderDraft) error {
	var o models.Order
	err := k.commit(ctx, s, kind, func() error {
		var err error
		o, err = services.PlaceOrder(ctx, k.store, services.PlaceOrderInput{
			UserID:        r.ev.UserID,
			ProductCode:   d.Code,
			Quantity:      d.Quantity,
			Payment:       d.Payment,
			Currency:      r.user.Currency,
			Address:       d.Address,
			CustomerName:  d.CustomerName,
			CustomerPhone: d.CustomerPhone,
			CustomerRoom:  d.CustomerRoom,
		})
		return err
	})
	if err != nil {
		result := "failed"
		if errors.Is(err, services.ErrInsufficientStock) {
			result = "insufficient_stock"
		}
		metrics.OrdersTotal.WithLabelValues(result).Inc()
		return err
	}
	metrics.OrdersTotal.WithLabelValues("placed").Inc()
	log.WithFields(log.Fields{
		"order_id": o.ID,
		"user_id":  o.UserID,
		"product":  o.ProductCode,
		"quantity": o.Quantity,
		"total":    o.Total.String(),
	}).Info("Order placed")

	var b strings.Builder
	fmt.Fprintf(&b, "✅ Order %s placed!\n%s × %d = %s", o.ID, o.ProductName, o.Quantity, k.money(r, o.Total))
	if k.opts.Variant == VariantHostel {
		fmt.Fprintf(&b, "\nWe'll bring it to room %s.", o.CustomerRoom)
	} else {
		fmt.Fprintf(&b, "\nDeliver to: %s\nPayment: %s", o.Address, o.Payment.Label())
		if o.Payment == models.PaymentOnline {
			fmt.Fprintf(&b, "\nTo pay online, message %s with your order id %s.", k.opts.SupportContact, o.ID)
		}
	}
	r.reply(models.Text(b.String()).WithButtons(
		[]models.Button{{Text: "📦 My orders", Data: cbOrders}},
	))

	if k.opts.Variant == VariantHostel && k.exporter != nil {
		// The sales log lags on failure; the order itself is already committed.
		_, _ = k.exportSalesLog(ctx)
	}
	k.notifyAdmins(ctx, r, adminOrderCard(o, r.user, k.opts.Variant))
	return nil
}
