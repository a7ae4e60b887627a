package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/freshmate/internal/auth"
	"github.com/dukerupert/freshmate/internal/inventory"
)

type InventoryHandler struct {
	svc    *inventory.Service
	logger *slog.Logger
}

func NewInventoryHandler(svc *inventory.Service, logger *slog.Logger) *InventoryHandler {
	return &InventoryHandler{svc: svc, logger: logger}
}

func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	pass, err := h.svc.View(r.Context(), sess)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newPassResponse(pass, h.svc.Today(), h.svc.Window()))
}

func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req inventory.ItemInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	sess, _ := auth.FromContext(r.Context())
	pass, err := h.svc.Add(r.Context(), sess, req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPassResponse(pass, h.svc.Today(), h.svc.Window()))
}

func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	sess, _ := auth.FromContext(r.Context())
	pass, err := h.svc.Remove(r.Context(), sess, name)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newPassResponse(pass, h.svc.Today(), h.svc.Window()))
}
