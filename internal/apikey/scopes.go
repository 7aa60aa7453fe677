package apikey

import "strings"

// HasScope decide si la lista de scopes otorgados cubre el requerido.
// "*" otorga todo; "crm:*" cubre cualquier "crm:...".
func HasScope(granted []string, required string) bool {
	for _, s := range granted {
		if s == "*" || s == required {
			return true
		}
		if strings.HasSuffix(s, ":*") && strings.HasPrefix(required, strings.TrimSuffix(s, "*")) {
			return true
		}
	}
	return false
}

// NormalizeScopes deduplica y limpia espacios; el orden de entrada se respeta.
func NormalizeScopes(scopes []string) []string {
	seen := make(map[string]bool, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
