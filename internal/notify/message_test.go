package notify

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/dukerupert/freshmate/internal/model"
)

func render(msg Message) []byte {
	return []byte("To: " + msg.To + "\nSubject: " + msg.Subject + "\n\n" + msg.Body)
}

func newGolden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestReminderMessageGolden(t *testing.T) {
	msg := ReminderMessage(model.Item{
		Owner:    "alice@example.com",
		Name:     "Milk",
		Quantity: 2,
		Unit:     model.UnitLitre,
		Expiry:   date(2026, 10, 17),
	}, 3)

	if msg.Kind != KindReminder {
		t.Errorf("kind = %q, want %q", msg.Kind, KindReminder)
	}
	newGolden(t).Assert(t, "reminder", render(msg))
}

func TestExpiredMessageGolden(t *testing.T) {
	msg := ExpiredMessage(model.Item{
		Owner:    "bob@example.com",
		Name:     "Eggs",
		Quantity: 12,
		Unit:     model.UnitPiece,
		Expiry:   date(2026, 10, 13),
	}, -1)

	if msg.Kind != KindExpired {
		t.Errorf("kind = %q, want %q", msg.Kind, KindExpired)
	}
	newGolden(t).Assert(t, "expired", render(msg))
}

func TestExpiresTodayMessageGolden(t *testing.T) {
	msg := ExpiredMessage(model.Item{
		Owner:    "bob@example.com",
		Name:     "Cream",
		Quantity: 250,
		Unit:     model.UnitMl,
		Expiry:   date(2026, 10, 14),
	}, 0)

	newGolden(t).Assert(t, "expires_today", render(msg))
}

func TestLoginMessageGolden(t *testing.T) {
	msg := LoginMessage("Alice", "alice@example.com")
	newGolden(t).Assert(t, "login", render(msg))
}

func TestReminderSingularDay(t *testing.T) {
	msg := ReminderMessage(model.Item{Name: "Fish", Quantity: 0.5, Unit: model.UnitKg, Expiry: date(2026, 10, 15)}, 1)
	want := "FreshMate reminder: Fish expires in 1 day"
	if msg.Subject != want {
		t.Errorf("subject = %q, want %q", msg.Subject, want)
	}
}

func TestAmountWithoutUnit(t *testing.T) {
	got := amount(model.Item{Quantity: 1.5})
	if got != "1.5" {
		t.Errorf("amount = %q, want %q", got, "1.5")
	}
}
