package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// MinSigningKeyLength is the minimum HMAC-SHA256 key size (256 bits)
	MinSigningKeyLength = 32
	// DefaultTokenTTL is how long an issued token stays valid
	DefaultTokenTTL = 24 * time.Hour

	roleClaim = "role"
)

// TokenConfig configures a TokenCodec. It is immutable once the codec is built.
type TokenConfig struct {
	// SigningKey is the shared HMAC secret, at least MinSigningKeyLength bytes
	SigningKey []byte
	// TTL defaults to DefaultTokenTTL
	TTL time.Duration
	// Issuer is written to the iss claim when set
	Issuer string
	// Now overrides the clock, mainly for tests
	Now func() time.Time
}

// TokenClaims are the decoded contents of a session token
type TokenClaims struct {
	Subject   string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
	// Signature is the raw third segment of the token
	Signature string
}

// sessionClaims is the JWT payload: sub, role, iat, exp
type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenCodec issues and verifies HS256 session tokens. It keeps no state about
// issued tokens, so a token stays valid until it expires.
type TokenCodec struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenCodec creates a codec. A key shorter than 256 bits is rejected.
func NewTokenCodec(cfg TokenConfig) (*TokenCodec, error) {
	if len(cfg.SigningKey) < MinSigningKeyLength {
		return nil, fmt.Errorf("%w: got %d bytes", ErrWeakSigningKey, len(cfg.SigningKey))
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	key := make([]byte, len(cfg.SigningKey))
	copy(key, cfg.SigningKey)

	return &TokenCodec{
		key:    key,
		ttl:    ttl,
		issuer: cfg.Issuer,
		now:    now,
		// Expiry is checked against the codec clock, not the library's
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// Issue creates a signed token for the principal
func (c *TokenCodec) Issue(p Principal) (string, error) {
	if p.Username == "" {
		return "", fmt.Errorf("cannot issue token: empty username")
	}
	if !p.Role.Valid() {
		return "", fmt.Errorf("cannot issue token: %w", ErrInvalidRole)
	}

	issuedAt := c.now()
	claims := sessionClaims{
		Role: p.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Username,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(c.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse decodes the token and verifies its signature. Expiry is not checked here.
func (c *TokenCodec) Parse(tokenString string) (*TokenClaims, error) {
	if strings.Count(tokenString, ".") != 2 {
		return nil, ErrTokenMalformed
	}

	claims := &sessionClaims{}
	_, err := c.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.key, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("%w: %v", ErrTokenSignatureInvalid, err)
		case errors.Is(err, jwt.ErrTokenUnverifiable):
			// keyfunc refused the algorithm
			return nil, fmt.Errorf("%w: %v", ErrTokenSignatureInvalid, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		}
	}

	if claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing sub or exp claim", ErrTokenMalformed)
	}

	out := &TokenClaims{
		Subject:   claims.Subject,
		Role:      Role(claims.Role),
		ExpiresAt: claims.ExpiresAt.Time,
		Signature: tokenString[strings.LastIndex(tokenString, ".")+1:],
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

// Validate parses the token and additionally rejects it once expired
func (c *TokenCodec) Validate(tokenString string) (*TokenClaims, error) {
	claims, err := c.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	if !c.now().Before(claims.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}

// IsValid reports whether the token verifies, belongs to expectedUsername and has not expired
func (c *TokenCodec) IsValid(tokenString, expectedUsername string) bool {
	claims, err := c.Validate(tokenString)
	if err != nil {
		return false
	}
	return claims.Subject == expectedUsername
}
