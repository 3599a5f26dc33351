package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruinabla/auth-api/internal/application/passkey"
	"github.com/ruinabla/auth-api/internal/domain"
	"github.com/ruinabla/auth-api/internal/pkg/validate"
	"github.com/ruinabla/auth-api/internal/transport/http/middleware"
)

// PasskeyHandler handles WebAuthn registration and assertion endpoints.
type PasskeyHandler struct {
	svc passkey.Service
}

func NewPasskeyHandler(svc passkey.Service) *PasskeyHandler { return &PasskeyHandler{svc: svc} }

func (h *PasskeyHandler) RegisterOptions(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	opts, err := h.svc.RegistrationOptions(r.Context(), id.User.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (h *PasskeyHandler) Register(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req passkey.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pk, err := h.svc.CompleteRegistration(r.Context(), id.User.UserID, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Success bool            `json:"success"`
		Passkey *domain.Passkey `json:"passkey"`
	}{Success: true, Passkey: pk})
}

func (h *PasskeyHandler) LoginOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.svc.LoginOptions(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (h *PasskeyHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req passkey.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, u, err := h.svc.CompleteLogin(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{Success: true, SessionID: sess.SessionID, User: u})
}

func (h *PasskeyHandler) SecondFactorOptions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts, err := h.svc.SecondFactorOptions(r.Context(), req.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (h *PasskeyHandler) VerifySecondFactor(w http.ResponseWriter, r *http.Request) {
	var req passkey.SecondFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, u, err := h.svc.CompleteSecondFactor(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{Success: true, SessionID: sess.SessionID, User: u})
}

func (h *PasskeyHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	pks, err := h.svc.List(r.Context(), id.User.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Passkeys []domain.Passkey `json:"passkeys"`
	}{Passkeys: pks})
}

func (h *PasskeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.Delete(r.Context(), id.User.UserID, chi.URLParam(r, "id")); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true})
}
