package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"hostel-market/metrics"
	"hostel-market/models"
	"hostel-market/services"
	"hostel-market/session"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

func (k *Kernel) cmdStart(_ context.Context, r *request, _ []string) error {
	name := r.user.DisplayName
	if name == "" {
		name = "there"
	}
	place := "hostel shop"
	if k.opts.Variant == VariantMarket {
		place = "market"
	}
	text := fmt.Sprintf("👋 Hi %s, welcome to the %s!\nBrowse with /shop, order with /buy and track with /orders.", name, place)
	if r.admin {
		text += "\nYou are an admin: see /admin."
	}
	r.reply(models.Text(text).WithButtons(
		[]models.Button{{Text: "🛍 Shop", Data: cbShop + "1"}, {Text: "📦 My orders", Data: cbOrders}},
	))
	return nil
}

func (k *Kernel) cmdHelp(_ context.Context, r *request, _ []string) error {
	r.say(k.helpText(r.admin))
	return nil
}

func (k *Kernel) cmdShop(ctx context.Context, r *request, args []string) error {
	page := 1
	if len(args) > 0 {
		page, _ = strconv.Atoi(args[0])
	}
	return k.showShop(ctx, r, page)
}

func (k *Kernel) showShop(ctx context.Context, r *request, page int) error {
	if page < 1 {
		page = 1
	}
	pg, err := k.store.Catalog().ListActive(ctx, page, k.opts.PageSize)
	if err != nil {
		return err
	}
	if pg.Total == 0 {
		r.say("The shop is empty right now. Check back soon!")
		return nil
	}
	if len(pg.Items) == 0 {
		return k.showShop(ctx, r, pg.Pages())
	}
	money := func(d decimal.Decimal) string { return k.money(r, d) }

	var b strings.Builder
	fmt.Fprintf(&b, "🛍 Products (page %d/%d)", pg.Page, pg.Pages())
	rows := make([][]models.Button, 0, len(pg.Items)+1)
	for _, p := range pg.Items {
		fmt.Fprintf(&b, "\n\n%s · %s\n%s · %s", p.Name, p.Code, priceLine(p, money), stockLine(p))
		row := []models.Button{{Text: "ℹ️ " + p.Name, Data: cbInfo + p.Code}}
		if p.Available() {
			row = append(row, models.Button{Text: "🛒 Buy", Data: cbBuy + p.Code})
		}
		rows = append(rows, row)
	}
	var nav []models.Button
	if pg.Page > 1 {
		nav = append(nav, models.Button{Text: "◀ Prev", Data: cbShop + strconv.Itoa(pg.Page-1)})
	}
	if pg.Page < pg.Pages() {
		nav = append(nav, models.Button{Text: "Next ▶", Data: cbShop + strconv.Itoa(pg.Page+1)})
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	r.reply(models.Text(b.String()).WithButtons(rows...))
	return nil
}

func (k *Kernel) cmdInfo(ctx context.Context, r *request, args []string) error {
	if len(args) == 0 || args[0] == "" {
		r.say("Usage: /info <code>")
		return nil
	}
	code := strings.ToUpper(args[0])
	p, err := k.store.Catalog().Get(ctx, code)
	if errors.Is(err, services.ErrProductNotFound) || (err == nil && !p.Active) {
		r.say(fmt.Sprintf("No product with code %s.", code))
		return nil
	}
	if err != nil {
		return err
	}
	r.reply(productCard(p, func(d decimal.Decimal) string { return k.money(r, d) }))
	return nil
}

func (k *Kernel) cmdOrders(ctx context.Context, r *request, _ []string) error {
	orders, err := k.store.Ledger().List(ctx, models.OrderFilter{
		UserID:   r.ev.UserID,
		Statuses: models.OpenStatuses,
	})
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		r.say("You have no active orders. Browse with /shop.")
		return nil
	}
	money := func(d decimal.Decimal) string { return k.money(r, d) }
	var b strings.Builder
	b.WriteString("📦 Your active orders:")
	var rows [][]models.Button
	for _, o := range orders {
		b.WriteString("\n" + orderLine(o, money))
		if models.CanTransition(o.Status, models.OrderStatusCancelled, false) {
			rows = append(rows, []models.Button{{Text: "❌ Cancel " + o.ID, Data: cbUCancel + o.ID}})
		}
	}
	r.reply(models.Text(b.String()).WithButtons(rows...))
	return nil
}

func (k *Kernel) cmdHistory(ctx context.Context, r *request, _ []string) error {
	orders, err := k.store.Ledger().List(ctx, models.OrderFilter{
		UserID:   r.ev.UserID,
		Page:     1,
		PageSize: k.opts.RecentOrders,
	})
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		r.say("You haven't ordered anything yet.")
		return nil
	}
	money := func(d decimal.Decimal) string { return k.money(r, d) }
	var b strings.Builder
	b.WriteString("🧾 Your recent orders:")
	for _, o := range orders {
		fmt.Fprintf(&b, "\n%s · %s", o.CreatedAt.Format("02 Jan 15:04"), orderLine(o, money))
	}
	r.say(b.String())
	return nil
}

// customerCancel is the one-tap cancel from /orders. Only the owner of a
// pending order gets anywhere; everyone else sees "not found".
func (k *Kernel) customerCancel(ctx context.Context, r *request, id string) error {
	o, err := services.CancelOrder(ctx, k.store, services.CancelOrderInput{
		OrderID: id,
		ActorID: r.ev.UserID,
		Reason:  "cancelled by customer",
	})
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		r.say("Order not found.")
		return nil
	case errors.Is(err, services.ErrInvalidTransition):
		r.say(fmt.Sprintf("Order %s can't be cancelled any more. Contact %s if you need help.", id, k.opts.SupportContact))
		return nil
	case err != nil:
		return err
	}
	log.WithFields(log.Fields{"user_id": r.ev.UserID, "order_id": o.ID}).Info("Order cancelled by customer")
	r.say(fmt.Sprintf("❌ Order %s cancelled.", o.ID))
	k.notifyAdmins(ctx, r, models.Text(fmt.Sprintf("↩ Customer %d cancelled %s (%s × %d).", o.UserID, o.ID, o.ProductName, o.Quantity)))
	return nil
}

func profileText(p services.CustomerProfile) string {
	u := p.User
	var b strings.Builder
	fmt.Fprintf(&b, "👤 %s", u.DisplayName)
	if u.Username != "" {
		b.WriteString(" @" + u.Username)
	}
	fmt.Fprintf(&b, "\nID: %d\nJoined: %s", u.ID, u.JoinedAt.Format("2006-01-02"))
	addr := u.Address
	if addr == "" {
		addr = "not set"
	}
	fmt.Fprintf(&b, "\nAddress: %s\nCurrency: %s", addr, u.Currency)
	fmt.Fprintf(&b, "\nOrders: %d (active %d, delivered %d, cancelled %d)", p.Total, p.Active, p.Completed, p.Cancelled)
	return b.String()
}

func (k *Kernel) cmdProfile(ctx context.Context, r *request, _ []string) error {
	p, err := services.GetCustomerProfile(ctx, k.store, r.ev.UserID)
	if err != nil {
		return err
	}
	next := p.User.Currency.Toggle()
	r.reply(models.Text(profileText(p)).WithButtons(
		[]models.Button{{Text: "💱 Show prices in " + string(next), Data: cbCurrency}},
	))
	return nil
}

func (k *Kernel) cmdCurrency(ctx context.Context, r *request, _ []string) error {
	c, err := services.ToggleCurrency(ctx, k.store.Users(), r.ev.UserID)
	if err != nil {
		return err
	}
	r.user.Currency = c
	r.say(fmt.Sprintf("💱 Prices are now shown in %s.", c))
	return nil
}

func (k *Kernel) cmdAddress(ctx context.Context, r *request, _ []string) error {
	cur := r.user.Address
	if cur == "" {
		cur = "not set"
	}
	return k.start(ctx, r, &session.UpdateAddressDraft{}, StepAddressEnter,
		prompt(fmt.Sprintf("🏠 Current address: %s\nSend the new delivery address.", cur)))
}

func (k *Kernel) stepUpdateAddress(ctx context.Context, r *request, s *session.Session, in Input) error {
	addr, err := textInput(in, "address", "Send the address as text.")
	if err != nil {
		return err
	}
	err = k.commit(ctx, s, in.Kind, func() error {
		return k.store.Users().SetAddress(ctx, r.ev.UserID, addr)
	})
	if err != nil {
		return err
	}
	r.say("✅ Address saved.")
	return nil
}

func (k *Kernel) cmdLogin(_ context.Context, r *request, args []string) error {
	if r.admin {
		r.say("You are already an admin.")
		return nil
	}
	if len(args) == 0 {
		r.say("Usage: /login <password>")
		return nil
	}
	wait, err := k.admins.Login(r.ev.UserID, strings.Join(args, " "))
	switch {
	case errors.Is(err, services.ErrLoginDisabled):
		r.say("Admin login is not enabled.")
	case errors.Is(err, services.ErrLoginThrottled):
		metrics.AuthorizationDenied.WithLabelValues("bad_login").Inc()
		r.say(fmt.Sprintf("⏳ Too many attempts. Try again in %d s.", wait))
	case errors.Is(err, services.ErrBadPassword):
		metrics.AuthorizationDenied.WithLabelValues("bad_login").Inc()
		r.say("❌ Wrong password.")
	case err != nil:
		return err
	default:
		log.WithField("user_id", r.ev.UserID).Info("Admin login")
		r.say("🔑 Logged in as admin. See /admin.")
	}
	return nil
}
