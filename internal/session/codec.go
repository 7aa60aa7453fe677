package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// Payload es el contenido firmado de la cookie de sesión del portal.
// Todo lo que viaja acá es visible para el cliente (solo está firmado,
// no cifrado): nunca incluir material sensible.
type Payload struct {
	SubjectRef string    `json:"sub"`
	TenantID   string    `json:"tid"`
	Purpose    string    `json:"pur"`
	IssuedAt   time.Time `json:"iat"`
	ExpiresAt  time.Time `json:"exp"`
}

// Codec firma y verifica payloads de sesión sin estado en el servidor.
type Codec struct {
	secret []byte
}

func NewCodec(secret []byte) *Codec {
	s := make([]byte, len(secret))
	copy(s, secret)
	return &Codec{secret: s}
}

// Encode serializa y firma: base64url(json) + "." + base64url(hmac-sha256).
func (c *Codec) Encode(p Payload) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	enc := base64.RawURLEncoding.EncodeToString(body)
	return enc + "." + c.sign(enc), nil
}

// Decode verifica firma y vigencia. Cualquier malformación, firma inválida
// o vencimiento devuelve (nil, false); el caller no distingue los casos.
func (c *Codec) Decode(s string) (*Payload, bool) {
	i := strings.LastIndexByte(s, '.')
	if i <= 0 || i == len(s)-1 {
		return nil, false
	}
	enc, mac := s[:i], s[i+1:]

	if !hmac.Equal([]byte(c.sign(enc)), []byte(mac)) {
		return nil, false
	}

	body, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return nil, false
	}
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, false
	}
	if p.ExpiresAt.IsZero() || !p.ExpiresAt.After(time.Now().UTC()) {
		return nil, false
	}
	return &p, true
}

func (c *Codec) sign(msg string) string {
	m := hmac.New(sha256.New, c.secret)
	m.Write([]byte(msg))
	return base64.RawURLEncoding.EncodeToString(m.Sum(nil))
}
