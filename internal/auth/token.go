package auth

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// TokenStatus is the outcome of verifying a session token.
type TokenStatus int

const (
	TokenInvalid TokenStatus = iota
	TokenOK
	TokenExpired
)

func (s TokenStatus) String() string {
	switch s {
	case TokenOK:
		return "ok"
	case TokenExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// Claims describes the JWT payload. Subject carries the user's public id.
type Claims struct {
	jwt.RegisteredClaims
}

// VerifyResult carries claims only when Status is TokenOK.
type VerifyResult struct {
	Status TokenStatus
	Claims *Claims
}

// OK reports whether the token verified.
func (r VerifyResult) OK() bool {
	return r.Status == TokenOK && r.Claims != nil
}

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock returns a copy of the manager reading time from now.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	clone := *tm
	clone.now = now
	return &clone
}

// TTL returns the configured session lifetime.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Issue builds and signs a session token for the subject.
func (tm *TokenManager) Issue(subject string) (string, time.Time, error) {
	if len(tm.secret) == 0 {
		return "", time.Time{}, errors.New("token signing secret not configured")
	}
	if strings.TrimSpace(subject) == "" {
		return "", time.Time{}, errors.New("token subject is required")
	}

	issuedAt := tm.now()
	expiresAt := issuedAt.Add(tm.ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Verify validates the token. Expected failures are reported through the
// result status rather than an error.
func (tm *TokenManager) Verify(tokenStr string) VerifyResult {
	if len(tm.secret) == 0 || strings.TrimSpace(tokenStr) == "" {
		return VerifyResult{Status: TokenInvalid}
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(tm.now),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)

	var claims Claims
	parsed, err := parser.ParseWithClaims(tokenStr, &claims, func(_ *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return VerifyResult{Status: TokenExpired}
		}
		return VerifyResult{Status: TokenInvalid}
	}
	if !parsed.Valid || claims.Subject == "" || claims.IssuedAt == nil {
		return VerifyResult{Status: TokenInvalid}
	}
	return VerifyResult{Status: TokenOK, Claims: &claims}
}
