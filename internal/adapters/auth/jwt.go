package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/meetrelay/internal/core"
	"github.com/dkeye/meetrelay/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrExpiredToken      = errors.New("token has expired")
	ErrMissingCredential = errors.New("missing credential")
)

const (
	guestPrefix = "guest:"
	guestName   = "guest"
)

type Config struct {
	Secret         string
	Issuer         string
	Audience       string
	AllowAnonymous bool
}

// Claims is the token payload. Subject carries the user id.
type Claims struct {
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Gate admits connections bearing an HMAC-signed JWT and, when configured, anonymous
// guests identified by their session cookie.
type Gate struct {
	cfg    Config
	parser *jwt.Parser
}

var _ core.AuthGate = (*Gate)(nil)

func NewGate(cfg Config) *Gate {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{
			jwt.SigningMethodHS256.Alg(),
			jwt.SigningMethodHS384.Alg(),
			jwt.SigningMethodHS512.Alg(),
		}),
		jwt.WithLeeway(5 * time.Second),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &Gate{cfg: cfg, parser: jwt.NewParser(opts...)}
}

func (g *Gate) Verify(_ context.Context, cred core.Credential) (*domain.User, error) {
	if cred.Token != "" {
		return g.verifyToken(cred.Token)
	}
	if g.cfg.AllowAnonymous && cred.GuestID != "" {
		u, err := domain.NewUser(domain.UserID(guestPrefix+cred.GuestID), guestName, "")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMissingCredential, err)
		}
		log.Debug().Str("module", "auth").Str("user", string(u.ID)).Msg("guest admitted")
		return u, nil
	}
	return nil, ErrMissingCredential
}

func (g *Gate) verifyToken(raw string) (*domain.User, error) {
	if g.cfg.Secret == "" {
		return nil, ErrInvalidToken
	}
	var claims Claims
	_, err := g.parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(g.cfg.Secret), nil
	})
	if err != nil {
		log.Debug().Err(err).Str("module", "auth").Msg("token rejected")
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	name := claims.Name
	if name == "" {
		name = claims.Subject
	}
	u, err := domain.NewUser(domain.UserID(claims.Subject), name, claims.Picture)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return u, nil
}

// Sign issues a token this gate accepts. Used by tooling and tests.
func (g *Gate) Sign(id domain.UserID, name, picture string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name:    name,
		Picture: picture,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.cfg.Issuer,
			Subject:   string(id),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	if g.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{g.cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(g.cfg.Secret))
}
