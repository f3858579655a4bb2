package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"hostel-market/models"
	"hostel-market/services"
	"hostel-market/session"

	log "github.com/sirupsen/logrus"
)

func (k *Kernel) cmdAdmin(_ context.Context, r *request, _ []string) error {
	state := "open"
	if k.paused.Load() {
		state = "paused"
	}
	r.say(fmt.Sprintf("🛠 Admin panel (%s shop, %s)\n\n%s", k.opts.Variant, state, k.helpText(true)))
	return nil
}

// add product: name -> original price -> selling price -> [market: payment methods -> location] -> stock -> image

func (k *Kernel) cmdAddItem(ctx context.Context, r *request, _ []string) error {
	return k.start(ctx, r, &session.AddProductDraft{}, StepAddName, prompt("📝 Send the product name."))
}

func (k *Kernel) stepAddProduct(ctx context.Context, r *request, s *session.Session, in Input) error {
	d := s.Draft.(*session.AddProductDraft)
	switch s.Step {
	case StepAddName:
		name, err := textInput(in, "name", "Send the product name as text.")
		if err != nil {
			return err
		}
		d.Name = name
		return k.advance(ctx, r, s, in.Kind, StepAddOrigPrice, prompt("💰 Send the original price (MRP), e.g. 50."))

	case StepAddOrigPrice:
		v, err := positiveAmount(in, "The original price")
		if err != nil {
			return err
		}
		d.OriginalPrice = v
		return k.advance(ctx, r, s, in.Kind, StepAddPrice, prompt("🏷 Send the selling price."))

	case StepAddPrice:
		v, err := positiveAmount(in, "The selling price")
		if err != nil {
			return err
		}
		d.Price = v
		if k.opts.Variant == VariantMarket {
			return k.advance(ctx, r, s, in.Kind, StepAddPayment, prompt("💳 Which payment methods are accepted? e.g. UPI, Card, COD"))
		}
		return k.advance(ctx, r, s, in.Kind, StepAddStock, prompt("📦 How many are in stock?"))

	case StepAddPayment:
		methods, err := textInput(in, "payment methods", "Send the accepted payment methods as text, e.g. UPI, Card, COD.")
		if err != nil {
			return err
		}
		d.PaymentMethods = methods
		return k.advance(ctx, r, s, in.Kind, StepAddLocation, prompt("📍 Where is it delivered or available?"))

	case StepAddLocation:
		loc, err := textInput(in, "location", "Send the delivery location as text.")
		if err != nil {
			return err
		}
		d.Location = loc
		return k.advance(ctx, r, s, in.Kind, StepAddStock, prompt("📦 How many are in stock?"))

	case StepAddStock:
		n, err := positiveInt(in, "Stock")
		if err != nil {
			return err
		}
		d.Stock = n
		return k.advance(ctx, r, s, in.Kind, StepAddImage, prompt("🖼 Send a photo of the product, or /skip."))

	case StepAddImage:
		var imageID string
		switch in.Kind {
		case KindImage:
			imageID = LargestImage(in.Images)
			if imageID == "" {
				return invalid("image", "That photo could not be read. Send another one or /skip.")
			}
		case KindSkip:
		default:
			return invalid("image", "Send a photo of the product, or /skip.")
		}
		var p models.Product
		err := k.commit(ctx, s, in.Kind, func() error {
			var err error
			p, err = services.AddProduct(ctx, k.store.Catalog(), services.NewProduct{
				Name:           d.Name,
				OriginalPrice:  d.OriginalPrice,
				Price:          d.Price,
				Stock:          d.Stock,
				ImageID:        imageID,
				PaymentMethods: d.PaymentMethods,
				Location:       d.Location,
			})
			return err
		})
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{"admin_id": r.ev.UserID, "code": p.Code, "name": p.Name}).Info("Product added")
		r.say(fmt.Sprintf("✅ Added %s with code %s.\nPrice %s (was %s), discount %s%%, stock %d.",
			p.Name, p.Code, inr(p.Price), inr(p.OriginalPrice), p.Discount.StringFixed(1), p.Stock))
		return nil
	}
	return fmt.Errorf("add product: unexpected step %s", s.Step)
}

// delete product: pick from list (or /delist <code>) -> confirm

func (k *Kernel) productButtons(ctx context.Context, prefix string, label func(models.Product) string) ([][]models.Button, error) {
	products, err := services.ListAll(ctx, k.store.Catalog())
	if err != nil {
		return nil, err
	}
	rows := make([][]models.Button, 0, len(products))
	for _, p := range products {
		rows = append(rows, []models.Button{{Text: label(p), Data: prefix + p.Code}})
	}
	return rows, nil
}

func (k *Kernel) cmdDeleteItem(ctx context.Context, r *request, _ []string) error {
	rows, err := k.productButtons(ctx, cbDelete, func(p models.Product) string {
		return fmt.Sprintf("🗑 %s (%s)", p.Name, p.Code)
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		r.say("The catalog is empty, nothing to remove.")
		return nil
	}
	return k.start(ctx, r, &session.DeleteProductDraft{}, StepDelSelect, prompt("Which product should be removed?", rows...))
}

func (k *Kernel) cmdDelist(ctx context.Context, r *request, args []string) error {
	if len(args) == 0 {
		r.say("Usage: /delist <code>")
		return nil
	}
	p, err := k.store.Catalog().Get(ctx, strings.ToUpper(args[0]))
	if errors.Is(err, services.ErrProductNotFound) || (err == nil && !p.Active) {
		r.say(fmt.Sprintf("No product with code %s.", args[0]))
		return nil
	}
	if err != nil {
		return err
	}
	return k.start(ctx, r, &session.DeleteProductDraft{Code: p.Code, Name: p.Name}, StepDelConfirm, k.deleteConfirm(p))
}

func (k *Kernel) deleteConfirm(p models.Product) models.Message {
	verb := "Delete"
	if k.opts.Variant == VariantMarket {
		verb = "Delist"
	}
	return confirmPrompt(fmt.Sprintf("%s %s (%s)? %d in stock.", verb, p.Name, p.Code, p.Stock))
}

func (k *Kernel) stepDeleteProduct(ctx context.Context, r *request, s *session.Session, in Input) error {
	d := s.Draft.(*session.DeleteProductDraft)
	switch s.Step {
	case StepDelSelect:
		code, ok := callbackArg(in, cbDelete)
		if !ok {
			return invalid("product", "Pick a product from the list.")
		}
		p, err := k.store.Catalog().Get(ctx, code)
		if err != nil {
			return err
		}
		if !p.Active {
			return services.ErrProductNotFound
		}
		d.Code, d.Name = p.Code, p.Name
		return k.advance(ctx, r, s, in.Kind, StepDelConfirm, k.deleteConfirm(p))

	case StepDelConfirm:
		yes, err := confirmAnswer(in)
		if err != nil {
			return err
		}
		err = k.commit(ctx, s, in.Kind, func() error {
			if !yes {
				return nil
			}
			if k.opts.Variant == VariantMarket {
				return k.store.Catalog().Delist(ctx, d.Code)
			}
			return k.store.Catalog().Delete(ctx, d.Code)
		})
		if err != nil {
			return err
		}
		if !yes {
			r.say(fmt.Sprintf("↩ Kept %s.", d.Name))
			return nil
		}
		log.WithFields(log.Fields{"admin_id": r.ev.UserID, "code": d.Code}).Info("Product removed")
		r.say(fmt.Sprintf("🗑 Removed %s (%s).", d.Name, d.Code))
		return nil
	}
	return fmt.Errorf("delete product: unexpected step %s", s.Step)
}

// set profit: pick product -> amount

func (k *Kernel) cmdSetProfit(ctx context.Context, r *request, _ []string) error {
	rows, err := k.productButtons(ctx, cbProfit, func(p models.Product) string {
		return fmt.Sprintf("%s · margin %s", p.Name, inr(p.ProfitMargin))
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		r.say("The catalog is empty.")
		return nil
	}
	return k.start(ctx, r, &session.SetProfitDraft{}, StepProfitSelect, prompt("Set the profit for which product?", rows...))
}

func (k *Kernel) stepSetProfit(ctx context.Context, r *request, s *session.Session, in Input) error {
	d := s.Draft.(*session.SetProfitDraft)
	switch s.Step {
	case StepProfitSelect:
		code, ok := callbackArg(in, cbProfit)
		if !ok {
			return invalid("product", "Pick a product from the list.")
		}
		p, err := k.store.Catalog().Get(ctx, code)
		if err != nil {
			return err
		}
		if !p.Active {
			return services.ErrProductNotFound
		}
		d.Code, d.Name = p.Code, p.Name
		return k.advance(ctx, r, s, in.Kind, StepProfitAmount, prompt(fmt.Sprintf(
			"Send the profit per unit for %s (now %s, price %s). Zero or negative is allowed.",
			p.Name, inr(p.ProfitMargin), inr(p.Price))))

	case StepProfitAmount:
		margin, err := anyAmount(in, "Profit")
		if err != nil {
			return err
		}
		err = k.commit(ctx, s, in.Kind, func() error {
			return k.store.Catalog().SetProfit(ctx, d.Code, margin)
		})
		if err != nil {
			return err
		}
		r.say(fmt.Sprintf("✅ Profit for %s set to %s per unit.", d.Name, inr(margin)))
		return nil
	}
	return fmt.Errorf("set profit: unexpected step %s", s.Step)
}

// admin cancel: pick order (or /cancel_order <id>, or the card's cancel button) -> reason -> confirm

func (k *Kernel) cmdCancelOrder(ctx context.Context, r *request, args []string) error {
	if len(args) > 0 {
		return k.startAdminCancel(ctx, r, strings.ToUpper(args[0]))
	}
	orders, err := k.store.Ledger().List(ctx, models.OrderFilter{
		Statuses: models.OpenStatuses,
		Page:     1,
		PageSize: k.opts.RecentOrders,
	})
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		r.say("No open orders.")
		return nil
	}
	rows := make([][]models.Button, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, []models.Button{{Text: orderLine(o, inr), Data: cbCancel + o.ID}})
	}
	return k.start(ctx, r, &session.CancelOrderDraft{}, StepCancelSelect, prompt("Which order should be cancelled?", rows...))
}

func (k *Kernel) startAdminCancel(ctx context.Context, r *request, id string) error {
	o, err := k.store.Ledger().Get(ctx, id)
	if errors.Is(err, services.ErrOrderNotFound) {
		r.say(fmt.Sprintf("Order %s not found.", id))
		return nil
	}
	if err != nil {
		return err
	}
	if o.Status.Terminal() {
		r.say(fmt.Sprintf("Order %s is already %s.", o.ID, strings.ToLower(o.Status.Label())))
		return nil
	}
	return k.start(ctx, r, &session.CancelOrderDraft{OrderID: o.ID}, StepCancelReason, reasonPrompt(o))
}

func reasonPrompt(o models.Order) models.Message {
	return prompt(fmt.Sprintf("Why is %s (%s × %d) being cancelled? Send a reason, or /skip.", o.ID, o.ProductName, o.Quantity))
}

func (k *Kernel) stepCancelOrder(ctx context.Context, r *request, s *session.Session, in Input) error {
	d := s.Draft.(*session.CancelOrderDraft)
	switch s.Step {
	case StepCancelSelect:
		id, ok := callbackArg(in, cbCancel)
		if !ok {
			return invalid("order", "Pick an order from the list.")
		}
		o, err := k.store.Ledger().Get(ctx, id)
		if err != nil {
			return err
		}
		if o.Status.Terminal() {
			return services.ErrInvalidTransition
		}
		d.OrderID = o.ID
		return k.advance(ctx, r, s, in.Kind, StepCancelReason, reasonPrompt(o))

	case StepCancelReason:
		switch in.Kind {
		case KindSkip:
			d.Reason = ""
		case KindText:
			reason := strings.TrimSpace(in.Text)
			if reason == "" {
				return invalid("reason", "Send a reason, or /skip.")
			}
			if reason == "-" {
				reason = ""
			}
			d.Reason = reason
		default:
			return invalid("reason", "Send a reason, or /skip.")
		}
		q := fmt.Sprintf("Cancel %s and return its items to stock?", d.OrderID)
		if d.Reason != "" {
			q += "\nReason: " + d.Reason
		}
		return k.advance(ctx, r, s, in.Kind, StepCancelConfirm, confirmPrompt(q))

	case StepCancelConfirm:
		yes, err := confirmAnswer(in)
		if err != nil {
			return err
		}
		var o models.Order
		err = k.commit(ctx, s, in.Kind, func() error {
			if !yes {
				return nil
			}
			var err error
			o, err = services.CancelOrder(ctx, k.store, services.CancelOrderInput{
				OrderID: d.OrderID,
				ActorID: r.ev.UserID,
				ByAdmin: true,
				Reason:  d.Reason,
			})
			return err
		})
		if err != nil {
			return err
		}
		if !yes {
			r.say(fmt.Sprintf("↩ Order %s was not cancelled.", d.OrderID))
			return nil
		}
		log.WithFields(log.Fields{"admin_id": r.ev.UserID, "order_id": o.ID, "reason": o.Reason}).Info("Order cancelled by admin")
		r.say(fmt.Sprintf("❌ Order %s cancelled, %d returned to stock.", o.ID, o.Quantity))
		k.notifyCustomer(ctx, r, o)
		return nil
	}
	return fmt.Errorf("cancel order: unexpected step %s", s.Step)
}

// stateless admin commands

func (k *Kernel) cmdAccept(ctx context.Context, r *request, args []string) error {
	if len(args) == 0 {
		r.say("Usage: /accept <order id>")
		return nil
	}
	return k.moveOrder(ctx, r, strings.ToUpper(args[0]), models.OrderStatusAccepted, "")
}

func (k *Kernel) cmdStatus(ctx context.Context, r *request, args []string) error {
	if len(args) < 2 {
		r.say("Usage: /status <order id> <pending|accepted|out_for_delivery|delivered|cancelled> [reason]")
		return nil
	}
	to, ok := models.ParseOrderStatus(args[1])
	if !ok {
		r.say(fmt.Sprintf("Unknown status %q.", args[1]))
		return nil
	}
	return k.moveOrder(ctx, r, strings.ToUpper(args[0]), to, strings.Join(args[2:], " "))
}

// moveOrder applies an admin status change and tells the customer.
func (k *Kernel) moveOrder(ctx context.Context, r *request, id string, to models.OrderStatus, reason string) error {
	o, err := services.SetOrderStatus(ctx, k.store, id, to, reason)
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		r.say(fmt.Sprintf("Order %s not found.", id))
		return nil
	case errors.Is(err, services.ErrInvalidTransition):
		cur, gerr := k.store.Ledger().Get(ctx, id)
		if gerr != nil {
			return gerr
		}
		r.say(fmt.Sprintf("Order %s is %s and can't move to %s.", id, cur.Status.Label(), to.Label()))
		return nil
	case err != nil:
		return err
	}
	log.WithFields(log.Fields{"admin_id": r.ev.UserID, "order_id": o.ID, "status": o.Status}).Info("Order status changed")
	r.say(fmt.Sprintf("Order %s is now %s.", o.ID, o.Status.Label()))
	k.notifyCustomer(ctx, r, o)
	return nil
}

func (k *Kernel) cmdPending(ctx context.Context, r *request, _ []string) error {
	orders, err := k.store.Ledger().List(ctx, models.OrderFilter{
		Statuses: []models.OrderStatus{models.OrderStatusPending},
		Page:     1,
		PageSize: k.opts.RecentOrders,
	})
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		r.say("No pending orders.")
		return nil
	}
	for _, o := range orders {
		u, err := k.store.Users().Get(ctx, o.UserID)
		if err != nil && !errors.Is(err, services.ErrUserNotFound) {
			return err
		}
		r.reply(adminOrderCard(o, u, k.opts.Variant))
	}
	return nil
}

func (k *Kernel) cmdReport(ctx context.Context, r *request, _ []string) error {
	rep, err := services.GetDailyReport(ctx, k.store.Ledger(), k.now(), k.opts.RecentOrders)
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Report for %s\n", rep.Day.Format("2006-01-02"))
	fmt.Fprintf(&b, "Orders: %d (cancelled %d)\n", rep.Stats.OrdersCount, rep.Stats.CancelledCount)
	fmt.Fprintf(&b, "Revenue: %s\n", inr(rep.Stats.Revenue))
	fmt.Fprintf(&b, "Profit: %s", inr(rep.Stats.Profit))
	if len(rep.Recent) > 0 {
		b.WriteString("\n\nLatest:")
		for _, o := range rep.Recent {
			b.WriteString("\n" + orderLine(o, inr))
		}
	}
	r.say(b.String())

	if k.exporter == nil {
		return nil
	}
	path, err := k.exportSalesLog(ctx)
	if err != nil {
		r.say("⚠️ The sales log could not be generated; see the logs.")
		return nil
	}
	r.reply(models.Message{Document: &models.Document{Path: path, Caption: "Sales log"}})
	return nil
}

// exportSalesLog rewrites the sales log from every order in the ledger.
func (k *Kernel) exportSalesLog(ctx context.Context) (string, error) {
	orders, err := k.store.Ledger().List(ctx, models.OrderFilter{})
	if err == nil {
		var path string
		path, err = k.exporter.Export(ctx, orders)
		if err == nil {
			return path, nil
		}
	}
	log.WithError(err).Error("Failed to export sales log")
	return "", err
}

func (k *Kernel) cmdPause(_ context.Context, r *request, _ []string) error {
	k.paused.Store(true)
	log.WithField("admin_id", r.ev.UserID).Info("Shop paused")
	r.say("⏸ Shop paused. Customers can't use the bot until /resume.")
	return nil
}

func (k *Kernel) cmdResume(_ context.Context, r *request, _ []string) error {
	k.paused.Store(false)
	log.WithField("admin_id", r.ev.UserID).Info("Shop resumed")
	r.say("▶️ Shop resumed.")
	return nil
}

func (k *Kernel) cmdUsers(ctx context.Context, r *request, args []string) error {
	page := 1
	if len(args) > 0 {
		page, _ = strconv.Atoi(args[0])
	}
	if page < 1 {
		page = 1
	}
	users, total, err := k.store.Users().List(ctx, page, k.opts.PageSize)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		r.say("No customers on that page.")
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "👥 Customers (%d total, page %d)", total, page)
	for _, u := range users {
		fmt.Fprintf(&b, "\n%d · %s", u.ID, u.DisplayName)
		if u.Username != "" {
			b.WriteString(" @" + u.Username)
		}
		if u.Banned {
			b.WriteString(" · banned")
		}
	}
	m := models.Text(b.String())
	if page*k.opts.PageSize < total {
		m = m.WithButtons([]models.Button{{Text: "Next ▶", Data: cbUsers + strconv.Itoa(page+1)}})
	}
	r.reply(m)
	return nil
}

func parseUserID(args []string) (int64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	return id, err == nil && id > 0
}

func (k *Kernel) cmdUser(ctx context.Context, r *request, args []string) error {
	id, ok := parseUserID(args)
	if !ok {
		r.say("Usage: /user <id>")
		return nil
	}
	p, err := services.GetCustomerProfile(ctx, k.store, id)
	if errors.Is(err, services.ErrUserNotFound) {
		r.say(fmt.Sprintf("No customer with id %d.", id))
		return nil
	}
	if err != nil {
		return err
	}
	r.say(profileText(p) + fmt.Sprintf("\nBanned: %t", p.User.Banned))
	return nil
}

func (k *Kernel) cmdBan(ctx context.Context, r *request, args []string) error {
	return k.setBanned(ctx, r, args, true)
}

func (k *Kernel) cmdUnban(ctx context.Context, r *request, args []string) error {
	return k.setBanned(ctx, r, args, false)
}

func (k *Kernel) setBanned(ctx context.Context, r *request, args []string, banned bool) error {
	id, ok := parseUserID(args)
	if !ok {
		r.say("Usage: /ban <id> or /unban <id>")
		return nil
	}
	if banned && k.admins.IsAdmin(id) {
		r.say("Admins can't be banned.")
		return nil
	}
	err := k.store.Users().SetBanned(ctx, id, banned)
	if errors.Is(err, services.ErrUserNotFound) {
		r.say(fmt.Sprintf("No customer with id %d.", id))
		return nil
	}
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"admin_id": r.ev.UserID, "user_id": id, "banned": banned}).Info("Ban state changed")
	if banned {
		r.say(fmt.Sprintf("🚫 %d is banned.", id))
	} else {
		r.say(fmt.Sprintf("✅ %d can use the shop again.", id))
	}
	return nil
}
