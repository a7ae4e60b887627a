package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/freshmate/internal/inventory"
	"github.com/dukerupert/freshmate/internal/model"
	"github.com/dukerupert/freshmate/internal/notify"
)

type itemView struct {
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

type failureView struct {
	notify.Notice
	Error string `json:"error"`
}

type passResponse struct {
	Owner   string          `json:"owner"`
	Today   string          `json:"today"`
	Items   []itemView      `json:"items"`
	Sent    []notify.Notice `json:"sent"`
	Failed  []failureView   `json:"failed"`
	Warning string          `json:"warning,omitempty"`
}

func newPassResponse(p inventory.Pass, today time.Time, window int) passResponse {
	resp := passResponse{
		Owner:  p.Owner,
		Today:  model.FormatDate(today),
		Items:  make([]itemView, 0, len(p.Items)),
		Sent:   p.Sent,
		Failed: make([]failureView, 0, len(p.Failed)),
	}
	if resp.Sent == nil {
		resp.Sent = []notify.Notice{}
	}
	for _, it := range p.Items {
		resp.Items = append(resp.Items, itemView{
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
	for _, f := range p.Failed {
		fv := failureView{Notice: f.Notice}
		if f.Err != nil {
			fv.Error = f.Err.Error()
		}
		resp.Failed = append(resp.Failed, fv)
	}
	if p.SaveErr != nil {
		resp.Warning = "changes are kept in memory but could not be saved; they will be retried"
	}
	return resp
}

// writeServiceError maps service errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *inventory.ValidationError
	var perr *inventory.PersistenceError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, inventory.ErrNotLoggedIn):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not logged in"})
	case errors.As(err, &perr):
		logger.Error("inventory unavailable", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "inventory unavailable"})
	default:
		logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
