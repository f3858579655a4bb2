// Package notify delivers messages to admins and customers and reports a result per recipient.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"hostel-market/metrics"
	"hostel-market/models"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Sender is the transport, implemented by the Telegram adapter.
type Sender interface {
	Send(ctx context.Context, chatID int64, msg models.Message) error
}

// Journal records delivered messages. Optional.
type Journal interface {
	Record(ctx context.Context, chatID int64, msg models.Message, meta map[string]any) error
}

// DeliveryError is the failure to reach one recipient.
type DeliveryError struct {
	Recipient int64
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %d: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Outcome is the result of one send. Err is a *DeliveryError or nil.
type Outcome struct {
	Recipient int64
	Err       error
}

func (o Outcome) Delivered() bool { return o.Err == nil }

// Notifier sends through Sender with one circuit breaker per recipient, so a
// chat that keeps failing (blocked bot, deleted account) stops costing a
// network round trip while the rest of the fan-out is unaffected.
type Notifier struct {
	sender   Sender
	journal  Journal
	mu       sync.Mutex
	breakers map[int64]*gobreaker.CircuitBreaker
	settings gobreaker.Settings
}

type Option func(*Notifier)

func WithJournal(j Journal) Option {
	return func(n *Notifier) { n.journal = j }
}

// WithBreakerTimeout sets how long an open breaker waits before letting a trial send through.
func WithBreakerTimeout(d time.Duration) Option {
	return func(n *Notifier) { n.settings.Timeout = d }
}

const tripAfterConsecutiveFailures = 5

func New(sender Sender, opts ...Option) *Notifier {
	n := &Notifier{
		sender:   sender,
		breakers: make(map[int64]*gobreaker.CircuitBreaker),
		settings: gobreaker.Settings{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= tripAfterConsecutiveFailures
			},
		},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Notifier) breaker(recipient int64) *gobreaker.CircuitBreaker {
	n.mu.Lock()
	defer n.mu.Unlock()
	if cb, ok := n.breakers[recipient]; ok {
		return cb
	}
	st := n.settings
	st.Name = "notify:" + strconv.FormatInt(recipient, 10)
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		state := float64(0)
		switch to {
		case gobreaker.StateOpen:
			state = 1
		case gobreaker.StateHalfOpen:
			state = 2
		}
		metrics.CircuitBreakerState.WithLabelValues(name).Set(state)
		log.WithFields(log.Fields{
			"circuit": name,
			"from":    from.String(),
			"to":      to.String(),
		}).Info("Circuit breaker state changed")
	}
	cb := gobreaker.NewCircuitBreaker(st)
	n.breakers[recipient] = cb
	return cb
}

// Notify sends msg to one recipient. It never panics or returns an error to the
// caller; the outcome carries any failure.
func (n *Notifier) Notify(ctx context.Context, recipient int64, msg models.Message) Outcome {
	_, err := n.breaker(recipient).Execute(func() (interface{}, error) {
		return nil, n.sender.Send(ctx, recipient, msg)
	})
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		log.WithFields(log.Fields{"recipient": recipient, "error": err}).Warn("notification not delivered")
		return Outcome{Recipient: recipient, Err: &DeliveryError{Recipient: recipient, Err: err}}
	}
	metrics.NotificationsTotal.WithLabelValues("delivered").Inc()
	if n.journal != nil {
		if err := n.journal.Record(ctx, recipient, msg, map[string]any{"sent_via": "notifier"}); err != nil {
			log.WithFields(log.Fields{"recipient": recipient, "error": err}).Warn("journal outbound message")
		}
	}
	return Outcome{Recipient: recipient}
}

// Broadcast notifies every recipient in order. One failure never stops the rest.
func (n *Notifier) Broadcast(ctx context.Context, recipients []int64, msg models.Message) []Outcome {
	out := make([]Outcome, 0, len(recipients))
	for _, r := range recipients {
		out = append(out, n.Notify(ctx, r, msg))
	}
	return out
}

// Failed returns the outcomes that were not delivered.
func Failed(outcomes []Outcome) []Outcome {
	var out []Outcome
	for _, o := range outcomes {
		if !o.Delivered() {
			out = append(out, o)
		}
	}
	return out
}
