package inventory

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/freshmate/internal/auth"
	"github.com/dukerupert/freshmate/internal/model"
	"github.com/dukerupert/freshmate/internal/notify"
)

// ErrNotLoggedIn is returned when an operation is called without a session.
var ErrNotLoggedIn = errors.New("not logged in")

// ItemInput carries the raw values of an add-item form.
type ItemInput struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
	Expiry   string  `json:"expiry"`
}

// Pass is the outcome of one interaction: the owner's current items and the
// notifications the evaluation produced. SaveErr is set when the updated
// collection could not be persisted; the state is kept in memory and the
// save is retried on the next pass.
type Pass struct {
	Owner   string           `json:"owner"`
	Items   []model.Item     `json:"items"`
	Sent    []notify.Notice  `json:"sent"`
	Failed  []notify.Failure `json:"failed"`
	SaveErr error            `json:"-"`
}

// Listener observes completed passes.
type Listener func(owner string, pass Pass)

// Service runs one synchronous load, mutate, evaluate, save pass per user
// interaction. Passes are serialized within the process; separate processes
// sharing one data file can still overwrite each other.
type Service struct {
	mu        sync.Mutex
	store     *Store
	evaluator *notify.Evaluator
	sessions  *auth.Manager
	sink      notify.Sink
	now       func() time.Time
	logger    *slog.Logger

	notifyOnLogin bool
	listeners     []Listener
}

type ServiceOption func(*Service)

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithLoginNotice toggles the confirmation email sent on login.
func WithLoginNotice(enabled bool) ServiceOption {
	return func(s *Service) {
		s.notifyOnLogin = enabled
	}
}

func WithListener(l Listener) ServiceOption {
	return func(s *Service) {
		s.listeners = append(s.listeners, l)
	}
}

func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

func NewService(store *Store, evaluator *notify.Evaluator, sessions *auth.Manager, sink notify.Sink, opts ...ServiceOption) *Service {
	s := &Service{
		store:         store,
		evaluator:     evaluator,
		sessions:      sessions,
		sink:          sink,
		now:           time.Now,
		logger:        slog.Default(),
		notifyOnLogin: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the calendar date passes are evaluated against.
func (s *Service) Today() time.Time {
	return model.Day(s.now())
}

// Window is the reminder window in days.
func (s *Service) Window() int {
	return s.evaluator.Window()
}

// Sessions returns the session manager used for login and logout.
func (s *Service) Sessions() *auth.Manager {
	return s.sessions
}

// Login starts a session. No credential is checked; any non-empty email is
// accepted and becomes the owner key for the user's items.
func (s *Service) Login(ctx context.Context, name, email string) (auth.Session, Pass, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if email == "" {
		return auth.Session{}, Pass{}, &ValidationError{Field: "email", Reason: "is required"}
	}

	sess := s.sessions.Create(name, email)
	s.logger.Info("login", "owner", email)

	pass, err := s.run(ctx, sess, nil)
	if err != nil {
		return sess, Pass{}, err
	}

	if s.notifyOnLogin {
		msg := notify.LoginMessage(name, email)
		if err := s.sink.Send(ctx, msg); err != nil {
			s.logger.Warn("login confirmation not delivered", "owner", email, "error", err)
			pass.Failed = append(pass.Failed, notify.Failure{
				Notice: notify.Notice{Kind: notify.KindLogin, Owner: email},
				Err:    &notify.TransportError{Kind: notify.KindLogin, Owner: email, Err: err},
			})
		}
	}
	return sess, pass, nil
}

// Logout ends the session identified by token.
func (s *Service) Logout(token string) {
	s.sessions.Delete(token)
}

// View evaluates the owner's items without changing them.
func (s *Service) View(ctx context.Context, sess auth.Session) (Pass, error) {
	return s.run(ctx, sess, nil)
}

// Add records a new item for the session owner and evaluates it in the same
// pass, so an item added already inside its reminder window or past expiry
// is notified immediately.
func (s *Service) Add(ctx context.Context, sess auth.Session, in ItemInput) (Pass, error) {
	expiry, err := model.ParseDate(in.Expiry)
	if err != nil {
		return Pass{}, &ValidationError{Field: "expiry", Reason: "must be a YYYY-MM-DD date"}
	}
	item := model.Item{
		Owner:    sess.Email,
		Name:     in.Name,
		Quantity: in.Quantity,
		Unit:     model.Unit(in.Unit),
		Expiry:   expiry,
	}
	return s.run(ctx, sess, func(st *Store) (bool, error) {
		if err := st.Add(item); err != nil {
			return false, err
		}
		s.logger.Info("item added", "owner", sess.Email, "item", strings.TrimSpace(in.Name))
		return true, nil
	})
}

// Remove deletes the owner's items with the given name. Removing a name that
// does not exist is not an error.
func (s *Service) Remove(ctx context.Context, sess auth.Session, name string) (Pass, error) {
	return s.run(ctx, sess, func(st *Store) (bool, error) {
		n := st.Remove(sess.Email, name)
		s.logger.Info("item removed", "owner", sess.Email, "item", name, "count", n)
		return n > 0, nil
	})
}

func (s *Service) run(ctx context.Context, sess auth.Session, mutate func(*Store) (bool, error)) (Pass, error) {
	if sess.Email == "" {
		return Pass{}, ErrNotLoggedIn
	}
	owner := sess.Email

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Load(ctx); err != nil {
		s.logger.Error("load inventory", "error", err)
		return Pass{}, err
	}

	changed := false
	if mutate != nil {
		c, err := mutate(s.store)
		if err != nil {
			return Pass{}, err
		}
		changed = c
	}

	res := s.evaluator.Evaluate(ctx, s.store.items, owner, s.now())
	if res.Changed() {
		s.store.dirty = true
		changed = true
	}

	pass := Pass{
		Owner:  owner,
		Sent:   res.Sent,
		Failed: res.Failed,
	}
	if changed || s.store.Dirty() {
		if err := s.store.Save(ctx); err != nil {
			s.logger.Error("save inventory", "error", err)
			pass.SaveErr = err
		}
	}
	pass.Items = s.store.ItemsFor(owner)
	if pass.Sent == nil {
		pass.Sent = []notify.Notice{}
	}
	if pass.Failed == nil {
		pass.Failed = []notify.Failure{}
	}

	for _, l := range s.listeners {
		l(owner, pass)
	}
	return pass, nil
}
