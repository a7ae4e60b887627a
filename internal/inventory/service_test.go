package inventory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/freshmate/internal/auth"
	"github.com/dukerupert/freshmate/internal/model"
	"github.com/dukerupert/freshmate/internal/notify"
)

type outbox struct {
	mu   sync.Mutex
	sent []notify.Message
	fail bool
}

func (o *outbox) Send(ctx context.Context, msg notify.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail {
		return errors.New("smtp unavailable")
	}
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) count(kind notify.Kind) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, m := range o.sent {
		if m.Kind == kind {
			n++
		}
	}
	return n
}

type fixture struct {
	svc     *Service
	backend *memBackend
	box     *outbox
	today   time.Time
}

func newFixture(t *testing.T, seed []model.Item, opts ...ServiceOption) *fixture {
	t.Helper()
	f := &fixture{
		backend: &memBackend{items: seed},
		box:     &outbox{},
		today:   day("2026-10-14"),
	}
	store := newTestStore(f.backend)
	eval := notify.NewEvaluator(f.box)
	opts = append([]ServiceOption{
		WithClock(func() time.Time { return f.today }),
		WithLoginNotice(false),
	}, opts...)
	f.svc = NewService(store, eval, auth.NewManager(), f.box, opts...)
	return f
}

const alice = "alice@example.com"

func TestServiceAddInsideWindowRemindsOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	sess, _, err := f.svc.Login(ctx, "Alice", alice)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	pass, err := f.svc.Add(ctx, sess, ItemInput{Name: "Milk", Quantity: 1, Unit: "litre", Expiry: "2026-10-16"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(pass.Sent) != 1 || pass.Sent[0].Kind != notify.KindReminder {
		t.Fatalf("sent = %+v, want one reminder", pass.Sent)
	}
	if len(pass.Items) != 1 || !pass.Items[0].ReminderSent {
		t.Fatalf("items = %+v", pass.Items)
	}
	if !f.backend.items[0].ReminderSent {
		t.Error("reminder flag should be persisted")
	}

	f.today = day("2026-10-15")
	pass, err = f.svc.View(ctx, sess)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if len(pass.Sent) != 0 {
		t.Errorf("second pass sent %+v", pass.Sent)
	}
	if f.box.count(notify.KindReminder) != 1 {
		t.Errorf("reminders = %d, want 1", f.box.count(notify.KindReminder))
	}
}

func TestServiceAddAlreadyExpired(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	sess, _, _ := f.svc.Login(ctx, "Alice", alice)

	pass, err := f.svc.Add(ctx, sess, ItemInput{Name: "Eggs", Quantity: 12, Unit: "piece", Expiry: "2026-10-12"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(pass.Sent) != 1 || pass.Sent[0].Kind != notify.KindExpired {
		t.Fatalf("sent = %+v, want one expiry alert", pass.Sent)
	}
	got := pass.Items[0]
	if got.ReminderSent {
		t.Error("reminder must not fire for an already expired item")
	}
	if !got.ExpiredSent {
		t.Error("expired flag should be set")
	}
}

func TestServiceTransportFailureRetriesNextPass(t *testing.T) {
	seed := []model.Item{{Owner: alice, Name: "Cheese", Quantity: 200, Unit: "g", Expiry: day("2026-10-14")}}
	f := newFixture(t, seed)
	ctx := context.Background()
	f.box.fail = true
	sess, pass, err := f.svc.Login(ctx, "Alice", alice)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if len(pass.Failed) != 1 || len(pass.Sent) != 0 {
		t.Fatalf("failed = %d sent = %d, want 1 and 0", len(pass.Failed), len(pass.Sent))
	}
	var terr *notify.TransportError
	if !errors.As(pass.Failed[0].Err, &terr) {
		t.Errorf("expected TransportError, got %v", pass.Failed[0].Err)
	}
	if pass.Items[0].ExpiredSent {
		t.Error("flag must stay false after failed delivery")
	}

	f.box.fail = false
	pass, err = f.svc.View(ctx, sess)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if len(pass.Sent) != 1 || pass.Sent[0].Kind != notify.KindExpired {
		t.Fatalf("sent = %+v, want one expiry alert", pass.Sent)
	}
	if !f.backend.items[0].ExpiredSent {
		t.Error("expired flag should be persisted")
	}
	if f.backend.items[0].ReminderSent {
		t.Error("reminder never fires on the expiry day")
	}
}

func TestServiceFailedSaveDoesNotResend(t *testing.T) {
	seed := []model.Item{{Owner: alice, Name: "Milk", Quantity: 1, Unit: "litre", Expiry: day("2026-10-16")}}
	f := newFixture(t, seed)
	ctx := context.Background()
	f.backend.failSaves = 10
	sess, pass, err := f.svc.Login(ctx, "Alice", alice)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if pass.SaveErr == nil {
		t.Fatal("expected SaveErr")
	}
	if len(pass.Sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(pass.Sent))
	}

	pass, err = f.svc.View(ctx, sess)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if len(pass.Sent) != 0 {
		t.Errorf("reminder resent after failed save: %+v", pass.Sent)
	}
	if f.box.count(notify.KindReminder) != 1 {
		t.Errorf("reminders = %d, want 1", f.box.count(notify.KindReminder))
	}

	f.backend.failSaves = 0
	if _, err := f.svc.View(ctx, sess); err != nil {
		t.Fatalf("View: %v", err)
	}
	if !f.backend.items[0].ReminderSent {
		t.Error("flag should be persisted once saving recovers")
	}
}

func TestServiceOnlyEvaluatesActiveOwner(t *testing.T) {
	seed := []model.Item{
		{Owner: alice, Name: "Milk", Quantity: 1, Expiry: day("2026-10-15")},
		{Owner: "bob@example.com", Name: "Yogurt", Quantity: 1, Expiry: day("2026-10-15")},
	}
	f := newFixture(t, seed)
	ctx := context.Background()
	_, pass, err := f.svc.Login(ctx, "Alice", alice)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if len(pass.Items) != 1 || pass.Items[0].Name != "Milk" {
		t.Errorf("items = %+v", pass.Items)
	}
	if len(pass.Sent) != 1 || pass.Sent[0].Owner != alice {
		t.Errorf("sent = %+v", pass.Sent)
	}
	for _, it := range f.backend.items {
		if it.Owner == "bob@example.com" && it.ReminderSent {
			t.Error("other owner's item must not be touched")
		}
	}
}

func TestServiceRemove(t *testing.T) {
	seed := []model.Item{
		{Owner: alice, Name: "Milk", Quantity: 1, Expiry: day("2026-10-30")},
		{Owner: alice, Name: "Bread", Quantity: 1, Expiry: day("2026-10-30")},
	}
	f := newFixture(t, seed)
	ctx := context.Background()
	sess, _, _ := f.svc.Login(ctx, "Alice", alice)

	pass, err := f.svc.Remove(ctx, sess, "Milk")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(pass.Items) != 1 || pass.Items[0].Name != "Bread" {
		t.Errorf("items = %+v", pass.Items)
	}
	if len(f.backend.items) != 1 {
		t.Errorf("backend items = %d, want 1", len(f.backend.items))
	}

	saves := f.backend.saves
	if _, err := f.svc.Remove(ctx, sess, "Caviar"); err != nil {
		t.Fatalf("Remove missing: %v", err)
	}
	if f.backend.saves != saves {
		t.Error("removing a missing item should not rewrite the store")
	}
}

func TestServiceAddValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	sess, _, _ := f.svc.Login(ctx, "Alice", alice)

	_, err := f.svc.Add(ctx, sess, ItemInput{Name: "Milk", Quantity: 1, Expiry: "next week"})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "expiry" {
		t.Fatalf("expected expiry ValidationError, got %v", err)
	}

	_, err = f.svc.Add(ctx, sess, ItemInput{Name: "", Quantity: 1, Expiry: "2026-10-20"})
	if !errors.As(err, &verr) || verr.Field != "name" {
		t.Fatalf("expected name ValidationError, got %v", err)
	}
	if len(f.backend.items) != 0 {
		t.Error("rejected items must not be stored")
	}
}

func TestServiceRequiresSession(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.View(context.Background(), auth.Session{})
	if !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("err = %v, want ErrNotLoggedIn", err)
	}
	if _, _, err := f.svc.Login(context.Background(), "Nobody", "  "); err == nil {
		t.Error("expected error for empty email")
	}
}

func TestServiceLoginNotice(t *testing.T) {
	f := newFixture(t, nil, WithLoginNotice(true))
	ctx := context.Background()

	if _, _, err := f.svc.Login(ctx, "Alice", alice); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if f.box.count(notify.KindLogin) != 1 {
		t.Fatalf("login messages = %d, want 1", f.box.count(notify.KindLogin))
	}
	if !strings.Contains(f.box.sent[0].Subject, "Login") {
		t.Errorf("subject = %q", f.box.sent[0].Subject)
	}

	f.box.fail = true
	_, pass, err := f.svc.Login(ctx, "Alice", alice)
	if err != nil {
		t.Fatalf("login must succeed when the confirmation fails: %v", err)
	}
	if len(pass.Failed) != 1 || pass.Failed[0].Kind != notify.KindLogin {
		t.Errorf("failed = %+v", pass.Failed)
	}
}

func TestServiceLoginLoadFailureSendsNoNotice(t *testing.T) {
	f := newFixture(t, nil, WithLoginNotice(true))
	f.backend.failLoad = errors.New("disk unavailable")

	_, _, err := f.svc.Login(context.Background(), "Alice", alice)
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want PersistenceError", err)
	}
	if n := f.box.count(notify.KindLogin); n != 0 {
		t.Errorf("login messages = %d, want 0 when the inventory cannot load", n)
	}
}

func TestServiceListener(t *testing.T) {
	var got []string
	f := newFixture(t, nil, WithListener(func(owner string, p Pass) {
		got = append(got, owner)
	}))
	ctx := context.Background()
	sess, _, _ := f.svc.Login(ctx, "Alice", alice)
	if _, err := f.svc.View(ctx, sess); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != alice {
		t.Errorf("listener calls = %v", got)
	}
}
