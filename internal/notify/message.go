package notify

import (
	"fmt"
	"strconv"

	"github.com/dukerupert/freshmate/internal/model"
)

func ReminderMessage(item model.Item, daysLeft int) Message {
	subject := fmt.Sprintf("FreshMate reminder: %s expires in %s", item.Name, days(daysLeft))
	body := fmt.Sprintf(
		"Hi,\n\nYour %s (%s) expires on %s, in %s.\nUse it soon or plan a meal around it.\n\nFreshMate\n",
		item.Name, amount(item), model.FormatDate(item.Expiry), days(daysLeft),
	)
	return Message{Kind: KindReminder, To: item.Owner, Subject: subject, Body: body}
}

func ExpiredMessage(item model.Item, daysLeft int) Message {
	var subject, when string
	if daysLeft == 0 {
		subject = fmt.Sprintf("FreshMate expiry alert: %s expires today", item.Name)
		when = fmt.Sprintf("expires today (%s)", model.FormatDate(item.Expiry))
	} else {
		subject = fmt.Sprintf("FreshMate expiry alert: %s has expired", item.Name)
		when = fmt.Sprintf("expired on %s", model.FormatDate(item.Expiry))
	}
	body := fmt.Sprintf(
		"Hi,\n\nYour %s (%s) %s.\nPlease use or discard it.\n\nFreshMate\n",
		item.Name, amount(item), when,
	)
	return Message{Kind: KindExpired, To: item.Owner, Subject: subject, Body: body}
}

// LoginMessage confirms a login to the address that was typed in.
func LoginMessage(name, email string) Message {
	greeting := "Hi"
	if name != "" {
		greeting = "Hi " + name
	}
	body := fmt.Sprintf("%s,\n\nYou have successfully logged in to FreshMate.\n\nFreshMate\n", greeting)
	return Message{Kind: KindLogin, To: email, Subject: "FreshMate Login Successful", Body: body}
}

func amount(item model.Item) string {
	q := strconv.FormatFloat(item.Quantity, 'f', -1, 64)
	if item.Unit == model.UnitNone {
		return q
	}
	return q + " " + string(item.Unit)
}

func days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
