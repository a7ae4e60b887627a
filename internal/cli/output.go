package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dukerupert/freshmate/internal/inventory"
	"github.com/dukerupert/freshmate/internal/model"
	"github.com/dukerupert/freshmate/internal/notify"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Rejected input or undelivered notifications
	ExitCommandError = 2 // Config, storage or backup errors
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// serviceError maps a service error to an exit code: rejected input is a
// failure, anything else a command error.
func serviceError(message string, err error) error {
	var verr *inventory.ValidationError
	if errors.As(err, &verr) {
		return WrapExitError(ExitFailure, message, err)
	}
	return WrapExitError(ExitCommandError, message, err)
}

type itemRow struct {
	Owner        string  `json:"owner"`
	Name         string  `json:"name"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
	Category     string  `json:"category"`
	Expiry       string  `json:"expiry"`
	DaysLeft     int     `json:"days_left"`
	Freshness    string  `json:"freshness"`
	ReminderSent bool    `json:"reminder_sent"`
	ExpiredSent  bool    `json:"expired_sent"`
}

func itemRows(items []model.Item, today time.Time, window int) []itemRow {
	rows := make([]itemRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, itemRow{
			Owner:        it.Owner,
			Name:         it.Name,
			Quantity:     it.Quantity,
			Unit:         string(it.Unit),
			Category:     it.Category,
			Expiry:       model.FormatDate(it.Expiry),
			DaysLeft:     it.DaysLeft(today),
			Freshness:    string(it.Freshness(today, window)),
			ReminderSent: it.ReminderSent,
			ExpiredSent:  it.ExpiredSent,
		})
	}
	return rows
}

type passOutput struct {
	Owner  string          `json:"owner"`
	Today  string          `json:"today"`
	Items  []itemRow       `json:"items"`
	Sent   []notify.Notice `json:"sent"`
	Failed []failureRow    `json:"failed"`
}

type failureRow struct {
	notify.Notice
	Error string `json:"error"`
}

func newPassOutput(p inventory.Pass, today time.Time, window int) passOutput {
	out := passOutput{
		Owner:  p.Owner,
		Today:  model.FormatDate(today),
		Items:  itemRows(p.Items, today, window),
		Sent:   p.Sent,
		Failed: make([]failureRow, 0, len(p.Failed)),
	}
	for _, f := range p.Failed {
		out.Failed = append(out.Failed, failureRow{Notice: f.Notice, Error: f.Err.Error()})
	}
	return out
}

// printer writes command results as JSON or aligned text.
type printer struct {
	format string
	w      io.Writer
}

func (p printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p printer) items(rows []itemRow) error {
	if p.format == "json" {
		return p.json(rows)
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintln(p.w, "no items")
		return err
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OWNER\tNAME\tQTY\tCATEGORY\tEXPIRY\tDAYS\tSTATUS\tREMINDED\tEXPIRED")
	for _, r := range rows {
		qty := fmt.Sprintf("%g", r.Quantity)
		if r.Unit != "" {
			qty += " " + r.Unit
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.Owner, r.Name, qty, r.Category, r.Expiry, r.DaysLeft, r.Freshness, yesNo(r.ReminderSent), yesNo(r.ExpiredSent))
	}
	return tw.Flush()
}

func (p printer) pass(out passOutput) error {
	if p.format == "json" {
		return p.json(out)
	}
	if err := p.items(out.Items); err != nil {
		return err
	}
	for _, n := range out.Sent {
		fmt.Fprintf(p.w, "sent %s for %s (%s)\n", n.Kind, n.Item, dayPhrase(n.DaysLeft))
	}
	for _, f := range out.Failed {
		fmt.Fprintf(p.w, "failed %s for %s: %s\n", f.Kind, f.Item, f.Error)
	}
	if len(out.Sent) == 0 && len(out.Failed) == 0 {
		fmt.Fprintln(p.w, "no notifications due")
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func dayPhrase(n int) string {
	switch {
	case n == 1:
		return "1 day left"
	case n > 1:
		return fmt.Sprintf("%d days left", n)
	case n == 0:
		return "expires today"
	default:
		return fmt.Sprintf("expired %d day(s) ago", -n)
	}
}
