package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrBadCredential cubre token ausente, malformado, vencido o con firma
// inválida. El detalle real solo va a logs, nunca al cliente.
var ErrBadCredential = errors.New("bad credential")

// Verifier valida una credencial de portador y devuelve el principal ID
// que afirma. No consulta la base: eso es trabajo del Resolver.
type Verifier interface {
	VerifyBearerToken(ctx context.Context, token string) (string, error)
}

// JWTVerifier valida los access tokens HS256 que emite el IdP upstream.
type JWTVerifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

func NewJWTVerifier(secret []byte, issuer string) *JWTVerifier {
	s := make([]byte, len(secret))
	copy(s, secret)
	return &JWTVerifier{secret: s, issuer: issuer, leeway: 30 * time.Second}
}

func (v *JWTVerifier) VerifyBearerToken(_ context.Context, raw string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !tok.Valid {
		return "", fmt.Errorf("%w: %v", ErrBadCredential, err)
	}

	sub, err := tok.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: missing subject", ErrBadCredential)
	}
	return sub, nil
}
