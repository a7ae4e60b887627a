package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used on disk and on the wire.
const DateLayout = "2006-01-02"

type Unit string

const (
	UnitNone  Unit = ""
	UnitKg    Unit = "kg"
	UnitGram  Unit = "g"
	UnitLitre Unit = "litre"
	UnitMl    Unit = "ml"
	UnitPack  Unit = "pack"
	UnitPiece Unit = "piece"
)

var unitAliases = map[string]Unit{
	"":          UnitNone,
	"kg":        UnitKg,
	"kgs":       UnitKg,
	"kilogram":  UnitKg,
	"kilograms": UnitKg,
	"g":         UnitGram,
	"gram":      UnitGram,
	"grams":     UnitGram,
	"l":         UnitLitre,
	"litre":     UnitLitre,
	"litres":    UnitLitre,
	"liter":     UnitLitre,
	"liters":    UnitLitre,
	"ml":        UnitMl,
	"pack":      UnitPack,
	"packs":     UnitPack,
	"piece":     UnitPiece,
	"pieces":    UnitPiece,
	"pcs":       UnitPiece,
}

// ParseUnit normalizes a user-supplied unit. Unknown units are an error.
func ParseUnit(s string) (Unit, error) {
	u, ok := unitAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return UnitNone, fmt.Errorf("unknown unit %q", s)
	}
	return u, nil
}

// Item is one tracked perishable. Owner is the email address that receives
// its notifications.
type Item struct {
	Owner        string    `json:"owner"`
	Name         string    `json:"name"`
	Quantity     float64   `json:"quantity"`
	Unit         Unit      `json:"unit"`
	Category     string    `json:"category"`
	Expiry       time.Time `json:"expiry"`
	ReminderSent bool      `json:"reminder_sent"`
	ExpiredSent  bool      `json:"expired_sent"`
}

// DaysLeft returns the whole calendar days between today and the expiry date.
// Negative means the item has already expired.
func (i Item) DaysLeft(today time.Time) int {
	return DaysBetween(Day(today), i.Expiry)
}

// Freshness is a display label for how close an item is to expiry.
type Freshness string

const (
	FreshnessSafe    Freshness = "safe"
	FreshnessWarning Freshness = "warning"
	FreshnessExpired Freshness = "expired"
)

// Freshness labels the item by days left: expired from the expiry date on,
// warning within window days of it, safe otherwise.
func (i Item) Freshness(today time.Time, window int) Freshness {
	switch d := i.DaysLeft(today); {
	case d <= 0:
		return FreshnessExpired
	case d <= window:
		return FreshnessWarning
	default:
		return FreshnessSafe
	}
}

// Day truncates t to its calendar date, expressed as UTC midnight.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return Day(t).Format(DateLayout)
}
