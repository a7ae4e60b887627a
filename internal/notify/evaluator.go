package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/freshmate/internal/model"
)

// DefaultWindow is the number of days before expiry during which the
// reminder may fire.
const DefaultWindow = 3

type Kind string

const (
	KindReminder Kind = "reminder"
	KindExpired  Kind = "expired"
	KindLogin    Kind = "login"
)

// Message is one outbound notification.
type Message struct {
	Kind    Kind
	To      string
	Subject string
	Body    string
}

// Sink delivers messages. A non-nil error means the message was not delivered.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, msg Message) error

func (f SinkFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Notice records a notification that was delivered during a pass.
type Notice struct {
	Kind     Kind   `json:"kind"`
	Owner    string `json:"owner"`
	Item     string `json:"item"`
	DaysLeft int    `json:"days_left"`
}

// Failure records a notification that could not be delivered. The
// corresponding flag was left unset so a later pass retries it.
type Failure struct {
	Notice
	Err error `json:"-"`
}

type Result struct {
	Sent   []Notice
	Failed []Failure
}

// Changed reports whether any flag was flipped during the pass.
func (r Result) Changed() bool {
	return len(r.Sent) > 0
}

// Evaluator turns elapsed time into at-most-once notifications per item and
// threshold. It keeps no state of its own; the one-shot flags live on the items.
type Evaluator struct {
	sink   Sink
	window int
	policy Policy
	logger *slog.Logger
}

type Option func(*Evaluator)

// WithWindow sets the reminder window in days. Values below 1 are ignored.
func WithWindow(days int) Option {
	return func(e *Evaluator) {
		if days >= 1 {
			e.window = days
		}
	}
}

func WithPolicy(p Policy) Option {
	return func(e *Evaluator) {
		e.policy = p
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = l
	}
}

func NewEvaluator(sink Sink, opts ...Option) *Evaluator {
	e := &Evaluator{
		sink:   sink,
		window: DefaultWindow,
		policy: PolicyRange,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) Window() int    { return e.window }
func (e *Evaluator) Policy() Policy { return e.policy }

// Evaluate scans the items belonging to owner and dispatches every threshold
// that has been crossed and not yet notified. Flags are set in place on items
// only after the sink accepts the message. A dispatch failure is recorded and
// the scan continues with the next threshold.
func (e *Evaluator) Evaluate(ctx context.Context, items []model.Item, owner string, today time.Time) Result {
	today = model.Day(today)
	var res Result

	for i := range items {
		item := &items[i]
		if item.Owner != owner {
			continue
		}
		daysLeft := item.DaysLeft(today)

		if !item.ReminderSent && e.policy.Due(daysLeft, e.window) {
			if e.dispatch(ctx, &res, ReminderMessage(*item, daysLeft), *item, daysLeft) {
				item.ReminderSent = true
			}
		}

		if !item.ExpiredSent && daysLeft <= 0 {
			if e.dispatch(ctx, &res, ExpiredMessage(*item, daysLeft), *item, daysLeft) {
				item.ExpiredSent = true
			}
		}
	}

	return res
}

func (e *Evaluator) dispatch(ctx context.Context, res *Result, msg Message, item model.Item, daysLeft int) bool {
	notice := Notice{Kind: msg.Kind, Owner: item.Owner, Item: item.Name, DaysLeft: daysLeft}

	if err := e.sink.Send(ctx, msg); err != nil {
		terr := &TransportError{Kind: msg.Kind, Owner: item.Owner, Item: item.Name, Err: err}
		e.logger.Warn("notification not delivered",
			"kind", msg.Kind, "owner", item.Owner, "item", item.Name, "error", err)
		res.Failed = append(res.Failed, Failure{Notice: notice, Err: terr})
		return false
	}

	e.logger.Info("notification sent",
		"kind", msg.Kind, "owner", item.Owner, "item", item.Name, "days_left", daysLeft)
	res.Sent = append(res.Sent, notice)
	return true
}

// TransportError wraps a sink failure for one item and threshold.
type TransportError struct {
	Kind  Kind
	Owner string
	Item  string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("deliver %s notification for %q to %s: %v", e.Kind, e.Item, e.Owner, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
