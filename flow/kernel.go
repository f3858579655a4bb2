// Package flow is the conversation kernel: it turns one inbound chat event into
// replies, store mutations and notifications, driving the multi-step dialogs.
package flow

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"hostel-market/metrics"
	"hostel-market/models"
	"hostel-market/notify"
	"hostel-market/services"
	"hostel-market/session"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type InputKind string

const (
	KindCommand  InputKind = "command"
	KindText     InputKind = "text"
	KindCallback InputKind = "callback"
	KindImage    InputKind = "image"
	KindSkip     InputKind = "skip"
)

// Input is what the user sent: a command with arguments, free text, a button
// press, or a photo (all resolutions, smallest first).
type Input struct {
	Kind    InputKind
	Command string
	Args    []string
	Text    string
	Data    string
	Images  []string
}

func Command(name string, args ...string) Input {
	return Input{Kind: KindCommand, Command: strings.TrimPrefix(name, "/"), Args: args}
}

func Text(s string) Input { return Input{Kind: KindText, Text: s} }

func Callback(data string) Input { return Input{Kind: KindCallback, Data: data} }

func Image(fileIDs ...string) Input { return Input{Kind: KindImage, Images: fileIDs} }

// Event is one inbound update, already stripped of transport details.
type Event struct {
	UserID   int64
	ChatID   int64
	Name     string
	Username string
	Input    Input
}

// Result is everything the kernel wants delivered back to the sender, plus the
// outcome of any notifications it fanned out to other chats.
type Result struct {
	Replies       []models.Message
	Notifications []notify.Outcome
}

type Variant string

const (
	VariantHostel Variant = "hostel"
	VariantMarket Variant = "market"
)

type Options struct {
	Variant Variant
	// MaxAttempts discards a dialog after that many invalid inputs in a row. 0 disables the cap.
	MaxAttempts    int
	PageSize       int
	RecentOrders   int
	SupportContact string
	// ExchangeRate is INR per USD for displaying prices in dollars.
	ExchangeRate decimal.Decimal
}

func DefaultOptions() Options {
	return Options{
		Variant:        VariantHostel,
		MaxAttempts:    3,
		PageSize:       5,
		RecentOrders:   10,
		SupportContact: "@support",
		ExchangeRate:   decimal.NewFromInt(83),
	}
}

// Exporter regenerates the sales log from the given orders and returns its file path.
type Exporter interface {
	Export(ctx context.Context, orders []models.Order) (string, error)
}

type stepFunc func(ctx context.Context, r *request, s *session.Session, in Input) error

type Kernel struct {
	store    services.Store
	sessions session.Store
	notifier *notify.Notifier
	admins   *services.AdminSet
	exporter Exporter
	opts     Options
	now      func() time.Time
	paused   atomic.Bool

	commands map[string]command
	order    []string
	steps    map[session.FlowKind]stepFunc
}

type Option func(*Kernel)

func WithExporter(e Exporter) Option {
	return func(k *Kernel) { k.exporter = e }
}

func WithClock(now func() time.Time) Option {
	return func(k *Kernel) { k.now = now }
}

func New(store services.Store, sessions session.Store, notifier *notify.Notifier, admins *services.AdminSet, opts Options, extra ...Option) *Kernel {
	def := DefaultOptions()
	if opts.Variant == "" {
		opts.Variant = def.Variant
	}
	if opts.PageSize <= 0 {
		opts.PageSize = def.PageSize
	}
	if opts.RecentOrders <= 0 {
		opts.RecentOrders = def.RecentOrders
	}
	if !opts.ExchangeRate.IsPositive() {
		opts.ExchangeRate = def.ExchangeRate
	}
	if opts.MaxAttempts < 0 {
		opts.MaxAttempts = 0
	}
	k := &Kernel{
		store:    store,
		sessions: sessions,
		notifier: notifier,
		admins:   admins,
		opts:     opts,
		now:      time.Now,
	}
	for _, o := range extra {
		o(k)
	}
	k.registerCommands()
	k.steps = map[session.FlowKind]stepFunc{
		session.FlowAddProduct:       k.stepAddProduct,
		session.FlowDeleteProduct:    k.stepDeleteProduct,
		session.FlowSetProfit:        k.stepSetProfit,
		session.FlowPlaceOrder:       k.stepPlaceOrder,
		session.FlowCancelOrderAdmin: k.stepCancelOrder,
		session.FlowUpdateAddress:    k.stepUpdateAddress,
	}
	return k
}

func (k *Kernel) Paused() bool { return k.paused.Load() }

// request carries per-event state through the handlers.
type request struct {
	ev    Event
	user  models.User
	admin bool
	res   *Result
}

func (r *request) reply(m models.Message) { r.res.Replies = append(r.res.Replies, m) }

func (r *request) say(s string) { r.reply(models.Text(s)) }

func (r *request) notified(out ...notify.Outcome) {
	r.res.Notifications = append(r.res.Notifications, out...)
}

const genericFailure = "⚠️ Something went wrong on our side. Please try again in a moment."

// Handle processes one event. Every user-facing problem becomes a reply; the
// returned error is non-nil only for unexpected failures (store or session
// backend down), and even then Result carries a generic apology to send.
func (k *Kernel) Handle(ctx context.Context, ev Event) (Result, error) {
	start := time.Now()
	kind := string(ev.Input.Kind)
	metrics.UpdatesTotal.WithLabelValues(kind).Inc()
	defer func() {
		metrics.UpdateDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	var res Result
	r := &request{ev: ev, res: &res, admin: k.admins.IsAdmin(ev.UserID)}

	// Gates run on the stored row; nothing is written for a rejected user.
	user, err := k.store.Users().Get(ctx, ev.UserID)
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		user = models.User{ID: ev.UserID}
	case err != nil:
		return k.fail(r, err)
	}
	r.user = user
	if err := k.admit(r); err != nil {
		k.deny(r, err)
		return res, nil
	}

	user, err = k.store.Users().Ensure(ctx, models.User{
		ID:          ev.UserID,
		DisplayName: ev.Name,
		Username:    ev.Username,
	})
	if err != nil {
		return k.fail(r, err)
	}
	r.user = user

	if err := k.dispatch(ctx, r); err != nil {
		return k.fail(r, err)
	}
	return res, nil
}

func (k *Kernel) fail(r *request, err error) (Result, error) {
	log.WithFields(log.Fields{
		"user_id":     r.ev.UserID,
		"input":       r.ev.Input.Kind,
		"persistence": services.IsPersistence(err),
		"error":       err,
	}).Error("Failed to handle update")
	r.say(genericFailure)
	return *r.res, err
}

// admit applies the ban and pause gates. Admins always pass.
func (k *Kernel) admit(r *request) error {
	switch {
	case r.admin:
		return nil
	case r.user.Banned:
		return services.ErrBanned
	case k.paused.Load():
		return services.ErrPaused
	}
	return nil
}

func (k *Kernel) requireAdmin(r *request) bool {
	if r.admin {
		return true
	}
	k.deny(r, services.ErrNotAdmin)
	return false
}

// deny answers an authorization failure. It never touches the stores.
func (k *Kernel) deny(r *request, err error) {
	switch {
	case errors.Is(err, services.ErrBanned):
		metrics.AuthorizationDenied.WithLabelValues("banned").Inc()
		r.say("🚫 You are not allowed to use this shop.")
	case errors.Is(err, services.ErrPaused):
		metrics.AuthorizationDenied.WithLabelValues("paused").Inc()
		r.say("⏸ The shop is paused right now. Please try again later.")
	case errors.Is(err, services.ErrNotAdmin):
		metrics.AuthorizationDenied.WithLabelValues("not_admin").Inc()
		log.WithField("user_id", r.ev.UserID).Warn("Non-admin tried an admin action")
		r.say("⛔ This action is for admins only.")
	}
}

func (k *Kernel) dispatch(ctx context.Context, r *request) error {
	in := r.ev.Input
	switch in.Kind {
	case KindCommand:
		switch in.Command {
		case "cancel":
			return k.cancelDialog(ctx, r)
		case "skip":
			return k.step(ctx, r, Input{Kind: KindSkip})
		}
		return k.command(ctx, r, in.Command, in.Args)
	case KindCallback:
		if in.Data == cbDialogCancel {
			return k.cancelDialog(ctx, r)
		}
		if handled, err := k.callback(ctx, r, in.Data); handled {
			return err
		}
	}
	return k.step(ctx, r, in)
}

func (k *Kernel) cancelDialog(ctx context.Context, r *request) error {
	_, err := k.sessions.Get(ctx, r.ev.UserID)
	if errors.Is(err, session.ErrNotFound) {
		r.say("Nothing to cancel.")
		return nil
	}
	if err != nil {
		return err
	}
	if err := k.sessions.Delete(ctx, r.ev.UserID); err != nil {
		return err
	}
	r.say("✖ Cancelled.")
	return nil
}

// start opens a new dialog, replacing any unfinished one the user had.
func (k *Kernel) start(ctx context.Context, r *request, draft session.Draft, step session.Step, prompt models.Message) error {
	if !isEntry(draft.Flow(), step) {
		return errors.New("flow " + string(draft.Flow()) + ": " + string(step) + " is not an entry step")
	}
	s := session.New(r.ev.UserID, draft, step, k.now())
	if err := k.sessions.Put(ctx, s); err != nil {
		return err
	}
	metrics.DialogSteps.WithLabelValues(string(draft.Flow()), "started").Inc()
	r.reply(prompt)
	return nil
}

// advance moves s along a listed transition and stores it.
func (k *Kernel) advance(ctx context.Context, r *request, s *session.Session, kind InputKind, to session.Step, prompt models.Message) error {
	if err := checkTransition(s, kind, to); err != nil {
		return err
	}
	s.Step = to
	s.Attempts = 0
	s.UpdatedAt = k.now()
	if err := k.sessions.Put(ctx, s); err != nil {
		return err
	}
	metrics.DialogSteps.WithLabelValues(string(s.Flow()), "advanced").Inc()
	r.reply(prompt)
	return nil
}

// commit runs the flow's final mutation and ends the dialog. The transition is
// checked before fn runs so nothing is written on an illegal move.
func (k *Kernel) commit(ctx context.Context, s *session.Session, kind InputKind, fn func() error) error {
	if err := checkTransition(s, kind, StepDone); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	metrics.DialogSteps.WithLabelValues(string(s.Flow()), "committed").Inc()
	return k.sessions.Delete(ctx, s.UserID)
}

func (k *Kernel) step(ctx context.Context, r *request, in Input) error {
	s, err := k.sessions.Get(ctx, r.ev.UserID)
	if errors.Is(err, session.ErrNotFound) {
		if in.Kind == KindCallback {
			r.say("This button has expired. Use /help to see what you can do.")
		} else {
			r.say("I didn't get that. Browse with /shop or see /help.")
		}
		return nil
	}
	if err != nil {
		return err
	}
	handler, ok := k.steps[s.Flow()]
	if !ok {
		_ = k.sessions.Delete(ctx, r.ev.UserID)
		return errors.New("no handler for flow " + string(s.Flow()))
	}

	err = handler(ctx, r, s, in)
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return k.rejectInput(ctx, r, ve)
	}
	return k.abort(ctx, r, s, err)
}

// rejectInput re-prompts without advancing. The stored session is reloaded so
// the handler's partial changes to the draft are dropped.
func (k *Kernel) rejectInput(ctx context.Context, r *request, ve *ValidationError) error {
	s, err := k.sessions.Get(ctx, r.ev.UserID)
	if err != nil {
		return err
	}
	metrics.DialogSteps.WithLabelValues(string(s.Flow()), "invalid").Inc()
	s.Attempts++
	if k.opts.MaxAttempts > 0 && s.Attempts >= k.opts.MaxAttempts {
		if err := k.sessions.Delete(ctx, r.ev.UserID); err != nil {
			return err
		}
		r.say("⚠️ " + ve.Msg + "\nToo many invalid attempts, the dialog was cancelled. Start again when you're ready.")
		return nil
	}
	s.UpdatedAt = k.now()
	if err := k.sessions.Put(ctx, s); err != nil {
		return err
	}
	r.reply(models.Text("⚠️ " + ve.Msg).WithButtons(cancelRow()))
	return nil
}

// abort ends the dialog after a domain failure and explains it. Anything not
// recognized here is passed up as an internal error.
func (k *Kernel) abort(ctx context.Context, r *request, s *session.Session, cause error) error {
	metrics.DialogSteps.WithLabelValues(string(s.Flow()), "aborted").Inc()
	if err := k.sessions.Delete(ctx, s.UserID); err != nil {
		log.WithFields(log.Fields{"user_id": s.UserID, "error": err}).Warn("Failed to discard dialog")
	}
	switch {
	case errors.Is(cause, services.ErrInsufficientStock):
		r.say("😔 Sorry, there isn't enough stock left for that quantity any more. Nothing was ordered.")
	case errors.Is(cause, services.ErrProductNotFound):
		r.say("😔 That product is no longer available.")
	case errors.Is(cause, services.ErrOrderNotFound):
		r.say("That order no longer exists.")
	case errors.Is(cause, services.ErrInvalidTransition):
		r.say("That order can no longer be changed.")
	default:
		return cause
	}
	log.WithFields(log.Fields{
		"user_id": s.UserID,
		"flow":    s.Flow(),
		"step":    s.Step,
		"reason":  cause,
	}).Info("Dialog aborted")
	return nil
}

func (k *Kernel) money(r *request, amount decimal.Decimal) string {
	return services.Money(amount, r.user.Currency, k.opts.ExchangeRate)
}

func inr(amount decimal.Decimal) string {
	return services.Money(amount, models.CurrencyINR, decimal.Zero)
}

// notifyAdmins fans msg out to every admin except the one who caused it.
func (k *Kernel) notifyAdmins(ctx context.Context, r *request, msg models.Message) {
	var ids []int64
	for _, id := range k.admins.IDs() {
		if id != r.ev.UserID {
			ids = append(ids, id)
		}
	}
	r.notified(k.notifier.Broadcast(ctx, ids, msg)...)
}

func (k *Kernel) notifyCustomer(ctx context.Context, r *request, o models.Order) {
	if o.UserID == r.ev.UserID {
		return
	}
	u, err := k.store.Users().Get(ctx, o.UserID)
	cur := models.CurrencyINR
	if err == nil {
		cur = u.Currency
	}
	text := services.CustomerMessageForOrderStatus(o, func(d decimal.Decimal) string {
		return services.Money(d, cur, k.opts.ExchangeRate)
	})
	r.notified(k.notifier.Notify(ctx, o.UserID, models.Text(text)))
}
