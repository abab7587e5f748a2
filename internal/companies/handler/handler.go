// Package handler is the HTTP layer over the company service. It owns the
// JSON shapes and status mapping and keeps business logic out of transport.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/desmedtandreas/companions-app-backend/internal/companies/service"
	"github.com/desmedtandreas/companions-app-backend/pkg/platform/sentinel"
	"github.com/desmedtandreas/companions-app-backend/pkg/vat"
)

type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Register mounts the company routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/companies", func(r chi.Router) {
		r.Get("/search", h.handleSearch)
		r.Get("/{number}", h.handleGet)
		r.Get("/{number}/full", h.handleFull)
		r.Get("/{number}/annual-accounts", h.handleAnnualAccounts)
	})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	companies, err := h.service.Search(r.Context(), query, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	results := make([]companyResponse, 0, len(companies))
	for _, c := range companies {
		results = append(results, toCompanyResponse(c))
	}
	h.writeJSON(w, http.StatusOK, searchResponse{Results: results})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	company, err := h.service.Get(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toCompanyResponse(company))
}

func (h *Handler) handleFull(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.Full(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toDetailResponse(detail))
}

func (h *Handler) handleAnnualAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, enqueued, err := h.service.AnnualAccounts(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := accountsResponse{Accounts: make([]accountResponse, 0, len(accounts)), SyncScheduled: enqueued}
	for _, a := range accounts {
		resp.Accounts = append(resp.Accounts, toAccountResponse(a))
	}
	status := http.StatusOK
	if enqueued {
		status = http.StatusAccepted
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, vat.ErrNotANumber):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid enterprise number"})
	case errors.Is(err, sentinel.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "company not found"})
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path), slog.Any("error", err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}
