package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ss14tools/verilink/internal/http/middlewares"
	"github.com/ss14tools/verilink/internal/members"
	"github.com/ss14tools/verilink/internal/observability/logger"
	"github.com/ss14tools/verilink/internal/security/apitoken"
)

// MembersHandler serves the verified-member list. Reads are public; writes
// require an API key or a members:write JWT.
type MembersHandler struct {
	Store members.Store
	Auth  *apitoken.Validator
}

func (h *MembersHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.List(r.Context())
	if err != nil {
		h.log(r).Error("member list failed", logger.Err(err))
		WriteError(w, http.StatusInternalServerError, "storage_error", "could not read member list", ErrCodeStorage)
		return
	}
	if list == nil {
		list = []members.Member{}
	}
	WriteJSON(w, http.StatusOK, list)
}

func (h *MembersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, err := h.Store.Get(r.Context(), id)
	if errors.Is(err, members.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "not_found", "no such member", ErrCodeNotFound)
		return
	}
	if err != nil {
		h.log(r).Error("member get failed", logger.MemberID(id), logger.Err(err))
		WriteError(w, http.StatusInternalServerError, "storage_error", "could not read member", ErrCodeStorage)
		return
	}
	WriteJSON(w, http.StatusOK, m)
}

func (h *MembersHandler) Add(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	var m members.Member
	if !ReadJSON(w, r, &m) {
		return
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if err := members.Validate(m); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_member", err.Error(), ErrCodeInvalidMember)
		return
	}

	err := h.Store.Add(r.Context(), m)
	if errors.Is(err, members.ErrDuplicate) {
		WriteError(w, http.StatusConflict, "duplicate", "game or discord identity already verified", ErrCodeDuplicate)
		return
	}
	if err != nil {
		h.log(r).Error("member add failed", logger.Err(err))
		WriteError(w, http.StatusInternalServerError, "storage_error", "could not store member", ErrCodeStorage)
		return
	}

	h.log(r).Info("member added", logger.MemberID(m.ID))
	WriteJSON(w, http.StatusCreated, m)
}

func (h *MembersHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	id := chi.URLParam(r, "id")
	err := h.Store.Remove(r.Context(), id)
	if errors.Is(err, members.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "not_found", "no such member", ErrCodeNotFound)
		return
	}
	if err != nil {
		h.log(r).Error("member remove failed", logger.MemberID(id), logger.Err(err))
		WriteError(w, http.StatusInternalServerError, "storage_error", "could not remove member", ErrCodeStorage)
		return
	}

	h.log(r).Info("member removed", logger.MemberID(id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *MembersHandler) authorize(w http.ResponseWriter, r *http.Request) bool {
	err := h.Auth.Authorize(r, apitoken.ScopeMembersWrite)
	switch {
	case err == nil:
		return true
	case errors.Is(err, apitoken.ErrScope):
		WriteError(w, http.StatusForbidden, "forbidden", "token lacks members:write scope", ErrCodeUnauthorized)
	default:
		WriteError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid credentials", ErrCodeUnauthorized)
	}
	return false
}

func (h *MembersHandler) log(r *http.Request) *zap.Logger {
	return logger.Named("members").With(logger.RequestID(middlewares.RequestIDFrom(r.Context())))
}
