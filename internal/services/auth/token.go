package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/verveo/todo-generator/internal/models"
)

const userIDClaim = "userId"

var (
	// ErrTokenExpired is returned for well-formed tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidToken is returned for malformed, unsigned or tampered tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// TokenService issues and verifies HS256 access tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a token service. ttl defaults to 24 hours.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock returns a copy that reads time from now.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	c := *s
	c.now = now
	return &c
}

// Issue signs a token for userID.
func (s *TokenService) Issue(userID int64) (string, error) {
	now := s.now()
	tok, err := jwt.NewBuilder().
		JwtID(uuid.NewString()).
		IssuedAt(now).
		Expiration(now.Add(s.ttl)).
		Claim(userIDClaim, userID).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}

// Verify checks signature and expiry and returns the claims.
func (s *TokenService) Verify(token string) (*models.JWTClaims, error) {
	tok, err := jwt.ParseString(token,
		jwt.WithKey(jwa.HS256, s.secret),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(s.now)),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	raw, ok := tok.Get(userIDClaim)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s claim", ErrInvalidToken, userIDClaim)
	}
	userID, ok := claimInt(raw)
	if !ok || userID <= 0 {
		return nil, fmt.Errorf("%w: malformed %s claim", ErrInvalidToken, userIDClaim)
	}

	return &models.JWTClaims{
		UserID:    userID,
		IssuedAt:  tok.IssuedAt(),
		ExpiresAt: tok.Expiration(),
	}, nil
}

func claimInt(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

// NewVerificationToken returns an opaque e-mail verification token.
func NewVerificationToken() string {
	return uuid.NewString()
}
