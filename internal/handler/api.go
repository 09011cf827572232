// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/olegiv/viscend/internal/inquiry"
)

// maxJSONBody bounds API request bodies.
const maxJSONBody = 64 << 10

// APIHandler serves the JSON submission endpoints.
type APIHandler struct {
	inquiries *inquiry.Service
	logger    *slog.Logger
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(inquiries *inquiry.Service, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{inquiries: inquiries, logger: logger}
}

// Contact handles POST /contact.
func (h *APIHandler) Contact(w http.ResponseWriter, r *http.Request) {
	var in inquiry.ContactInput
	if !h.decode(w, r, &in) {
		return
	}

	c, err := h.inquiries.SubmitContact(r.Context(), in)
	if err != nil {
		var ve *inquiry.ValidationError
		if errors.As(err, &ve) {
			writeJSONError(w, http.StatusBadRequest, ve.Message)
			return
		}
		h.logger.Error("contact submission failed", "error", err)
		writeJSONErrorDetails(w, http.StatusInternalServerError, "Failed to submit contact form", err)
		return
	}

	writeJSONSuccess(w, map[string]any{
		"message":   "Contact form submitted successfully",
		"contactId": c.ID,
	})
}

// Newsletter handles POST /newsletter.
func (h *APIHandler) Newsletter(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if !h.decode(w, r, &in) {
		return
	}

	sub, err := h.inquiries.Subscribe(r.Context(), in.Email)
	if err != nil {
		var ve *inquiry.ValidationError
		if errors.As(err, &ve) {
			writeJSONError(w, http.StatusBadRequest, ve.Message)
			return
		}
		h.logger.Error("newsletter subscription failed", "error", err)
		writeJSONErrorDetails(w, http.StatusInternalServerError, "Failed to subscribe to newsletter", err)
		return
	}

	writeJSONSuccess(w, map[string]any{
		"message":      "Newsletter subscription successful",
		"newsletterId": sub.ID,
	})
}

// Contacts handles GET /contacts.
func (h *APIHandler) Contacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.inquiries.ListContacts(r.Context())
	if err != nil {
		h.logger.Error("listing contacts failed", "error", err)
		writeJSONErrorDetails(w, http.StatusInternalServerError, "Failed to fetch contacts", err)
		return
	}
	writeJSONSuccess(w, map[string]any{"contacts": contacts})
}

// decode reads a bounded JSON body into dst, writing a 400 on failure.
func (h *APIHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Debug("invalid request body", "path", r.URL.Path, "error", err)
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
