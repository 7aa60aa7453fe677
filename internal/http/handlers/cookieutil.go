package handlers

import (
	"net/http"
	"time"
)

// buildSessionCookie arma la cookie de sesión del portal con flags seguros.
// Secure solo se apaga en dev para no romper http://localhost.
func buildSessionCookie(name, value string, secure bool, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().UTC().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// buildDeletionCookie sobreescribe la cookie en el browser con una vencida.
func buildDeletionCookie(name string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
