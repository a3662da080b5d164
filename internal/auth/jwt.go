package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SecretName is the name the token secret is resolved under.
const SecretName = "JWT_SECRET"

var (
	ErrMissingToken      = errors.New("missing authorization token")
	ErrSecretUnavailable = errors.New("token secret unavailable")
	ErrMalformedToken    = errors.New("malformed token")
	ErrInvalidToken      = errors.New("invalid token")
)

// Claims is the payload carried by an operator token.
type Claims struct {
	User string `json:"user"`
	jwt.RegisteredClaims
}

// SecretSource resolves the signing secret by name.
type SecretSource interface {
	Secret(ctx context.Context, name string) (string, error)
}

// Verifier checks bearer tokens against the secret held by the server.
type Verifier struct {
	secrets SecretSource
	parser  *jwt.Parser
}

func NewVerifier(secrets SecretSource) *Verifier {
	return &Verifier{
		secrets: secrets,
		// Tokens carry a single identity; exp/nbf/aud are not enforced.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
}

// Verify validates the raw Authorization header value and returns the embedded
// claims. Structural problems yield ErrMalformedToken, integrity problems and
// a missing user claim yield ErrInvalidToken.
func (v *Verifier) Verify(ctx context.Context, header string) (Claims, error) {
	raw := tokenFromHeader(header)
	if raw == "" {
		return Claims{}, ErrMissingToken
	}

	secret, err := v.secrets.Secret(ctx, SecretName)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrSecretUnavailable, err)
	}
	if secret == "" {
		return Claims{}, ErrSecretUnavailable
	}

	// Any JSON object decodes into MapClaims; claim types are checked only
	// after the signature.
	mapClaims := jwt.MapClaims{}
	_, err = v.parser.ParseWithClaims(raw, mapClaims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return Claims{}, fmt.Errorf("%w: %w", ErrMalformedToken, err)
		}
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	return claimsFromMap(mapClaims)
}

func claimsFromMap(mapClaims jwt.MapClaims) (Claims, error) {
	user, ok := mapClaims["user"].(string)
	if !ok || user == "" {
		return Claims{}, fmt.Errorf("%w: missing user claim", ErrInvalidToken)
	}

	claims := Claims{User: user}
	if iat, err := mapClaims.GetIssuedAt(); err == nil {
		claims.IssuedAt = iat
	}

	return claims, nil
}

func tokenFromHeader(header string) string {
	header = strings.TrimSpace(header)
	if scheme, rest, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(rest)
	}
	if strings.EqualFold(header, "bearer") {
		return ""
	}

	return header
}

// Signer mints operator tokens.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{
		secret: []byte(secret),
	}
}

func (s *Signer) Issue(user string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrSecretUnavailable
	}
	if user == "" {
		return "", errors.New("user is required")
	}

	claims := Claims{
		User: user,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
