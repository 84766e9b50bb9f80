package invitetoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTokenTTL is the default lifetime for invitation tokens.
	DefaultTokenTTL = 72 * time.Hour
	// DefaultLeeway is clock skew tolerance for token validation.
	DefaultLeeway = 30 * time.Second

	defaultIssuer   = "planhub"
	defaultAudience = "planhub-invite"
)

// Claims carries the invitation identity embedded in a token.
type Claims struct {
	InvitationID string
	ProjectID    string
	Email        string
	ExpiresAt    time.Time
}

type inviteClaims struct {
	ProjectID string `json:"projectId"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// Codec signs and verifies invitation tokens (HS256).
type Codec struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	leeway   time.Duration
}

// Options configures invitation token signing and verification.
type Options struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
	Leeway   time.Duration
}

// New creates a codec. The secret is required and must not be short.
func New(opts Options) (*Codec, error) {
	secret := strings.TrimSpace(opts.Secret)
	if len(secret) < 16 {
		return nil, errors.New("invitation token secret must be at least 16 bytes")
	}
	issuer := strings.TrimSpace(opts.Issuer)
	if issuer == "" {
		issuer = defaultIssuer
	}
	audience := strings.TrimSpace(opts.Audience)
	if audience == "" {
		audience = defaultAudience
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	leeway := opts.Leeway
	if leeway <= 0 {
		leeway = DefaultLeeway
	}
	return &Codec{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		leeway:   leeway,
	}, nil
}

// TTL returns the configured token lifetime.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Sign issues a token for an invitation. The jti is the invitation ID so
// acceptance can look up the stored record.
func (c *Codec) Sign(invitationID, projectID, email string) (string, time.Time, error) {
	invitationID = strings.TrimSpace(invitationID)
	if invitationID == "" {
		return "", time.Time{}, errors.New("invitation id required")
	}
	now := time.Now().UTC()
	expires := now.Add(c.ttl)
	claims := inviteClaims{
		ProjectID: projectID,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   email,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        invitationID,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign invitation token: %w", err)
	}
	return signed, expires, nil
}

// Verify validates signature, expiry, audience, and issuer.
func (c *Codec) Verify(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, errors.New("token required")
	}
	claims := inviteClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unsupported signing method")
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(c.audience),
		jwt.WithIssuer(c.issuer),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(c.leeway),
	)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return Claims{}, err
	}
	if claims.ID == "" {
		return Claims{}, errors.New("jti required")
	}
	if strings.TrimSpace(claims.ProjectID) == "" {
		return Claims{}, errors.New("project id required")
	}
	var expires time.Time
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	return Claims{
		InvitationID: claims.ID,
		ProjectID:    claims.ProjectID,
		Email:        claims.Email,
		ExpiresAt:    expires,
	}, nil
}
