package flow

import (
	"context"
	"strconv"
	"strings"
)

type command struct {
	name  string
	args  string
	help  string
	admin bool
	run   func(ctx context.Context, r *request, args []string) error
}

// CommandInfo describes a command for the client's command menu.
type CommandInfo struct {
	Name        string
	Description string
	Admin       bool
}

func (k *Kernel) registerCommands() {
	list := []command{
		{name: "start", help: "Welcome message", run: k.cmdStart},
		{name: "help", help: "List commands", run: k.cmdHelp},
		{name: "shop", args: "[page]", help: "Browse products", run: k.cmdShop},
		{name: "info", args: "<code>", help: "Product details", run: k.cmdInfo},
		{name: "buy", args: "[code]", help: "Place an order", run: k.cmdBuy},
		{name: "orders", help: "Your active orders", run: k.cmdOrders},
		{name: "history", help: "Your past orders", run: k.cmdHistory},
		{name: "profile", help: "Your profile", run: k.cmdProfile},
		{name: "address", help: "Change your delivery address", run: k.cmdAddress},
		{name: "currency", help: "Switch between ₹ and $", run: k.cmdCurrency},
		{name: "cancel", help: "Cancel the current dialog"},
		{name: "login", args: "<password>", help: "Admin login", run: k.cmdLogin},

		{name: "admin", help: "Admin commands", admin: true, run: k.cmdAdmin},
		{name: "add_item", help: "Add a product", admin: true, run: k.cmdAddItem},
		{name: "delete_item", help: "Remove a product", admin: true, run: k.cmdDeleteItem},
		{name: "delist", args: "<code>", help: "Remove a product by code", admin: true, run: k.cmdDelist},
		{name: "set_profit", help: "Set a product's profit per unit", admin: true, run: k.cmdSetProfit},
		{name: "report", help: "Today's sales and the sales log", admin: true, run: k.cmdReport},
		{name: "pending", help: "Orders waiting for acceptance", admin: true, run: k.cmdPending},
		{name: "accept", args: "<order id>", help: "Accept an order", admin: true, run: k.cmdAccept},
		{name: "status", args: "<order id> <status> [reason]", help: "Move an order along", admin: true, run: k.cmdStatus},
		{name: "cancel_order", args: "[order id]", help: "Cancel an order", admin: true, run: k.cmdCancelOrder},
		{name: "pause", help: "Stop taking orders", admin: true, run: k.cmdPause},
		{name: "resume", help: "Start taking orders again", admin: true, run: k.cmdResume},
		{name: "users", args: "[page]", help: "List customers", admin: true, run: k.cmdUsers},
		{name: "user", args: "<id>", help: "Customer details", admin: true, run: k.cmdUser},
		{name: "ban", args: "<id>", help: "Ban a customer", admin: true, run: k.cmdBan},
		{name: "unban", args: "<id>", help: "Lift a ban", admin: true, run: k.cmdUnban},
	}
	k.commands = make(map[string]command, len(list))
	k.order = k.order[:0]
	for _, c := range list {
		k.commands[c.name] = c
		k.order = append(k.order, c.name)
	}
}

// Commands lists the commands in menu order.
func (k *Kernel) Commands() []CommandInfo {
	out := make([]CommandInfo, 0, len(k.order))
	for _, name := range k.order {
		c := k.commands[name]
		out = append(out, CommandInfo{Name: c.name, Description: c.help, Admin: c.admin})
	}
	return out
}

func (k *Kernel) command(ctx context.Context, r *request, name string, args []string) error {
	c, ok := k.commands[strings.ToLower(name)]
	if !ok || c.run == nil {
		r.say("Unknown command. See /help.")
		return nil
	}
	if c.admin && !k.requireAdmin(r) {
		return nil
	}
	return c.run(ctx, r, args)
}

// callback handles the buttons that work without a dialog. It reports false
// for payloads that belong to the active dialog.
func (k *Kernel) callback(ctx context.Context, r *request, data string) (bool, error) {
	switch {
	case data == cbCurrency:
		return true, k.cmdCurrency(ctx, r, nil)
	case data == cbOrders:
		return true, k.cmdOrders(ctx, r, nil)
	case strings.HasPrefix(data, cbShop):
		page, _ := strconv.Atoi(strings.TrimPrefix(data, cbShop))
		return true, k.showShop(ctx, r, page)
	case strings.HasPrefix(data, cbInfo):
		return true, k.cmdInfo(ctx, r, []string{strings.TrimPrefix(data, cbInfo)})
	case strings.HasPrefix(data, cbBuy):
		return true, k.startOrder(ctx, r, strings.TrimPrefix(data, cbBuy))
	case strings.HasPrefix(data, cbUCancel):
		return true, k.customerCancel(ctx, r, strings.TrimPrefix(data, cbUCancel))
	case strings.HasPrefix(data, cbStatus):
		if !k.requireAdmin(r) {
			return true, nil
		}
		id, to, ok := parseStatusData(strings.TrimPrefix(data, cbStatus))
		if !ok {
			r.say("This button has expired.")
			return true, nil
		}
		return true, k.moveOrder(ctx, r, id, to, "")
	case strings.HasPrefix(data, cbUsers):
		if !k.requireAdmin(r) {
			return true, nil
		}
		return true, k.cmdUsers(ctx, r, []string{strings.TrimPrefix(data, cbUsers)})
	case strings.HasPrefix(data, cbReject):
		if !k.requireAdmin(r) {
			return true, nil
		}
		return true, k.startAdminCancel(ctx, r, strings.TrimPrefix(data, cbReject))
	}
	return false, nil
}

func (k *Kernel) helpText(admin bool) string {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, name := range k.order {
		c := k.commands[name]
		if c.admin {
			continue
		}
		b.WriteString(usage(c) + " - " + c.help + "\n")
	}
	if admin {
		b.WriteString("\nAdmin:\n")
		for _, name := range k.order {
			c := k.commands[name]
			if !c.admin {
				continue
			}
			b.WriteString(usage(c) + " - " + c.help + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func usage(c command) string {
	if c.args == "" {
		return "/" + c.name
	}
	return "/" + c.name + " " + c.args
}
