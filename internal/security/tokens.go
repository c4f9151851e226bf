package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"repairdesk/backend/internal/platform/clock"
	sessiondomain "repairdesk/backend/internal/session/domain"
	userdomain "repairdesk/backend/internal/user/domain"
)

var (
	// ErrInvalidToken is returned when a token is malformed or invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenBinding is returned when a refresh token does not belong to the session being rotated.
	ErrTokenBinding = errors.New("refresh token not bound to session")
)

// DefaultAccessTTL caps access token lifetime below the session lifetime.
const DefaultAccessTTL = 15 * time.Minute

// AccessClaims holds JWT claims for the access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	SessionID   string          `json:"session_id"`
	Role        userdomain.Role `json:"role"`
	Permissions []string        `json:"permissions,omitempty"`
}

// RefreshClaims holds JWT claims for the refresh token (includes jti for rotation).
type RefreshClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
}

// TokenProvider issues and validates JWT access and refresh tokens using RS256 or ES256 (private/public key).
// It is the session manager's token issuer: refresh tokens live as long as the session, access tokens
// at most accessTTL.
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	method     jwt.SigningMethod
	issuer     string
	audience   string
	accessTTL  time.Duration
	clock      clock.Clock
}

// NewTokenProvider returns a TokenProvider that signs with the given private key (RS256 or ES256).
// issuer and audience are set on claims and validated on parse. A nil clock uses the system clock.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL time.Duration, c clock.Clock) (*TokenProvider, error) {
	var method jwt.SigningMethod
	switch privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return nil, ErrInvalidKey
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if c == nil {
		c = clock.System{}
	}
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		method:     method,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		clock:      c,
	}, nil
}

// Issue mints an access and refresh token for the session. The refresh token expires with the session.
func (p *TokenProvider) Issue(sessionID string, principal userdomain.Principal, expiresAt time.Time) (sessiondomain.Tokens, error) {
	now := p.clock.Now().UTC()
	accessExp := now.Add(p.accessTTL)
	if expiresAt.Before(accessExp) {
		accessExp = expiresAt
	}

	accessJTI, err := generateJTI()
	if err != nil {
		return sessiondomain.Tokens{}, err
	}
	access, err := p.sign(AccessClaims{
		RegisteredClaims: p.registered(accessJTI, principal.ID, now, accessExp),
		SessionID:        sessionID,
		Role:             principal.Role,
		Permissions:      principal.Permissions,
	})
	if err != nil {
		return sessiondomain.Tokens{}, err
	}

	refreshJTI, err := generateJTI()
	if err != nil {
		return sessiondomain.Tokens{}, err
	}
	refresh, err := p.sign(RefreshClaims{
		RegisteredClaims: p.registered(refreshJTI, principal.ID, now, expiresAt),
		SessionID:        sessionID,
	})
	if err != nil {
		return sessiondomain.Tokens{}, err
	}
	return sessiondomain.Tokens{Access: access, Refresh: refresh, RefreshJTI: refreshJTI}, nil
}

// Rotate validates current's refresh token against the session and principal, then issues a fresh pair.
func (p *TokenProvider) Rotate(current sessiondomain.Tokens, sessionID string, principal userdomain.Principal, expiresAt time.Time) (sessiondomain.Tokens, error) {
	claims, err := p.ValidateRefresh(current.Refresh)
	if err != nil {
		return sessiondomain.Tokens{}, err
	}
	if claims.SessionID != sessionID || claims.Subject != principal.ID || claims.ID != current.RefreshJTI {
		return sessiondomain.Tokens{}, ErrTokenBinding
	}
	return p.Issue(sessionID, principal, expiresAt)
}

// ValidateRefresh parses and validates the refresh token (signature, exp, iss, aud).
func (p *TokenProvider) ValidateRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := p.parse(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ValidateAccess parses and validates the access token (signature, exp, iss, aud).
func (p *TokenProvider) ValidateAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := p.parse(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (p *TokenProvider) registered(jti, subject string, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        jti,
		Subject:   subject,
		Issuer:    p.issuer,
		Audience:  jwt.ClaimStrings{p.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(p.method, claims).SignedString(p.privateKey)
}

func (p *TokenProvider) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return p.publicKey, nil
	},
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.clock.Now),
	)
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	if aud, _ := claims.GetAudience(); !slices.Contains(aud, p.audience) {
		return ErrInvalidToken
	}
	return nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
