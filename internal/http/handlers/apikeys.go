package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/gatekeeper/internal/apikey"
	httperrors "github.com/dropDatabas3/gatekeeper/internal/http/errors"
	"github.com/dropDatabas3/gatekeeper/internal/identity"
	"github.com/dropDatabas3/gatekeeper/internal/store/core"
)

type APIKeysHandler struct {
	Service *apikey.Service
}

type createKeyRequest struct {
	Name      string     `json:"name"`
	Scopes    []string   `json:"scopes"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type keyResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"`
	Scopes     []string   `json:"scopes"`
	IsActive   bool       `json:"is_active"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type issuedResponse struct {
	Key    keyResponse `json:"key"`
	RawKey string      `json:"raw_key"`
}

func toKeyResponse(k *core.APIKey) keyResponse {
	return keyResponse{
		ID:         k.ID,
		Name:       k.Name,
		KeyPrefix:  k.KeyPrefix,
		Scopes:     k.Scopes,
		IsActive:   k.IsActive,
		ExpiresAt:  k.ExpiresAt,
		LastUsedAt: k.LastUsedAt,
		CreatedAt:  k.CreatedAt,
	}
}

// Create emite una clave nueva; el valor crudo viaja solo en esta respuesta.
func (h *APIKeysHandler) Create(w http.ResponseWriter, r *http.Request) {
	a, _ := identity.ActorFrom(r.Context())

	var req createKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("name is required"))
		return
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now().UTC()) {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("expires_at must be in the future"))
		return
	}

	issued, err := h.Service.Issue(r.Context(), a.TenantID(), a.ActorID(), req.Name, req.Scopes, req.ExpiresAt)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, issuedResponse{Key: toKeyResponse(issued.Key), RawKey: issued.RawKey})
}

func (h *APIKeysHandler) List(w http.ResponseWriter, r *http.Request) {
	a, _ := identity.ActorFrom(r.Context())

	keys, err := h.Service.List(r.Context(), a.TenantID())
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	out := make([]keyResponse, 0, len(keys))
	for i := range keys {
		out = append(out, toKeyResponse(&keys[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": out})
}

// Rotate devuelve el crudo nuevo; el anterior dejó de valer en el mismo update.
func (h *APIKeysHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	a, _ := identity.ActorFrom(r.Context())
	keyID := chi.URLParam(r, "id")

	issued, err := h.Service.Rotate(r.Context(), a.TenantID(), a.ActorID(), keyID)
	if err != nil {
		if errors.Is(err, apikey.ErrKeyNotFound) {
			httperrors.WriteError(w, httperrors.ErrKeyNotFound)
			return
		}
		httperrors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issuedResponse{Key: toKeyResponse(issued.Key), RawKey: issued.RawKey})
}

func (h *APIKeysHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	a, _ := identity.ActorFrom(r.Context())
	keyID := chi.URLParam(r, "id")

	if err := h.Service.Revoke(r.Context(), a.TenantID(), a.ActorID(), keyID); err != nil {
		if errors.Is(err, apikey.ErrKeyNotFound) {
			httperrors.WriteError(w, httperrors.ErrKeyNotFound)
			return
		}
		httperrors.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
