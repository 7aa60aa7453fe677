package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/gatekeeper/internal/email"
	httperrors "github.com/dropDatabas3/gatekeeper/internal/http/errors"
	"github.com/dropDatabas3/gatekeeper/internal/identity"
	"github.com/dropDatabas3/gatekeeper/internal/magiclink"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
	"github.com/dropDatabas3/gatekeeper/internal/session"
)

type MagicLinksHandler struct {
	Service *magiclink.Service
	Sender  email.Sender // nil -> sin entrega por correo
	BaseURL string

	Codec        *session.Codec
	CookieName   string
	CookieTTL    time.Duration
	SecureCookie bool
}

type issueLinkRequest struct {
	Purpose    string         `json:"purpose"`
	SubjectRef string         `json:"subject_ref"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	TTLSeconds int            `json:"ttl_seconds,omitempty"`
	Email      string         `json:"email,omitempty"` // si viene, se entrega el link por correo
}

// Issue crea un token de un solo uso. El crudo sale en la respuesta (y por
// correo si se pidió); nunca vuelve a ser recuperable.
func (h *MagicLinksHandler) Issue(w http.ResponseWriter, r *http.Request) {
	a, _ := identity.ActorFrom(r.Context())

	var req issueLinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	purpose := magiclink.Purpose(req.Purpose)
	if !purpose.Valid() {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("unknown purpose: "+req.Purpose))
		return
	}
	if strings.TrimSpace(req.SubjectRef) == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("subject_ref is required"))
		return
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second
	raw, tok, err := h.Service.Issue(r.Context(), a.TenantID(), a.ActorID(), purpose, req.SubjectRef, req.Metadata, ttl)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	linkURL := h.linkURL(raw, purpose)
	if req.Email != "" && h.Sender != nil {
		// entrega best effort: el token ya existe, el correo puede reintentar
		if err := h.Sender.SendMagicLink(req.Email, "Your access link", linkURL); err != nil {
			logger.Named("magiclink").Warn("email delivery failed", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"token":      raw,
		"link_url":   linkURL,
		"expires_at": tok.ExpiresAt,
	})
}

type redeemRequest struct {
	Token   string `json:"token"`
	Purpose string `json:"purpose"`
}

// Redeem consume el token. Para portal_invite además instala la cookie de
// sesión firmada del portal.
func (h *MagicLinksHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	purpose := magiclink.Purpose(req.Purpose)
	if !purpose.Valid() || req.Token == "" {
		httperrors.WriteError(w, httperrors.ErrInvalidToken)
		return
	}

	red, err := h.Service.Redeem(r.Context(), req.Token, purpose)
	if err != nil {
		if errors.Is(err, magiclink.ErrInvalidToken) || errors.Is(err, magiclink.ErrUnknownPurpose) {
			httperrors.WriteError(w, httperrors.ErrInvalidToken)
			return
		}
		httperrors.WriteError(w, err)
		return
	}

	if red.Purpose == magiclink.PurposePortalInvite && h.Codec != nil {
		now := time.Now().UTC()
		val, err := h.Codec.Encode(session.Payload{
			SubjectRef: red.SubjectRef,
			TenantID:   red.TenantID,
			Purpose:    string(red.Purpose),
			IssuedAt:   now,
			ExpiresAt:  now.Add(h.CookieTTL),
		})
		if err != nil {
			httperrors.WriteError(w, err)
			return
		}
		http.SetCookie(w, buildSessionCookie(h.CookieName, val, h.SecureCookie, h.CookieTTL))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"subject_ref": red.SubjectRef,
		"tenant_id":   red.TenantID,
		"purpose":     red.Purpose,
		"metadata":    red.Metadata,
	})
}

func (h *MagicLinksHandler) linkURL(raw string, purpose magiclink.Purpose) string {
	if h.BaseURL == "" {
		return ""
	}
	return h.BaseURL + "?token=" + url.QueryEscape(raw) + "&purpose=" + url.QueryEscape(string(purpose))
}
