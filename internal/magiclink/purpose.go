package magiclink

import "time"

// Purpose declara para qué sirve un token. Un token solo canjea contra el
// propósito con el que fue emitido.
type Purpose string

const (
	PurposePortalInvite Purpose = "portal_invite"
	PurposeLeaveForm    Purpose = "leave_form"
	PurposeContractSign Purpose = "contract_sign"
	PurposeAccessGrant  Purpose = "access_grant"
)

// defaultTTLs: ningún token se emite sin vencimiento.
var defaultTTLs = map[Purpose]time.Duration{
	PurposePortalInvite: 7 * 24 * time.Hour,
	PurposeLeaveForm:    72 * time.Hour,
	PurposeContractSign: 72 * time.Hour,
	PurposeAccessGrant:  24 * time.Hour,
}

// Valid reporta si el propósito es conocido.
func (p Purpose) Valid() bool {
	_, ok := defaultTTLs[p]
	return ok
}

// DefaultTTL devuelve el vencimiento por defecto del propósito.
func (p Purpose) DefaultTTL() time.Duration {
	return defaultTTLs[p]
}
