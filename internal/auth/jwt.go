// Package auth validates the access tokens issued by the data backend's
// auth service and puts the caller's identity on the request context.
//
// Tokens are HS256 JWTs signed with the backend project's secret. The
// subject is the user ID; email and the display name from user_metadata are
// used to seed a new profile. The raw token is forwarded to the backend so
// its row-level policies apply to every query made on the caller's behalf.
//
// REQUEST FLOW:
//  1. The client signs in with the backend's auth service and gets a JWT
//  2. Every API call carries it (Authorization header or "token" cookie)
//  3. RequireAuth validates it locally with the shared secret; no network
//     round trip per request
//  4. The identity goes on the context for handlers; the raw token goes on
//     the context for the backend client
//
// JWT STRUCTURE:
//
//	HEADER.PAYLOAD.SIGNATURE   (each part base64url encoded)
//	- Header:    {"alg":"HS256","typ":"JWT"}
//	- Payload:   {"sub":"<user id>","aud":"authenticated","exp":...,
//	              "email":"...","user_metadata":{"full_name":"..."}}
//	- Signature: HMAC-SHA256(header + "." + payload, secret)
//
// Anyone can read the payload; only a holder of the secret can produce a
// signature that verifies.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAudience is the audience of a signed-in user's token.
const DefaultAudience = "authenticated"

// Identity is who the token was issued to.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// TokenService checks access tokens. Generate exists for local
// development and tests; production tokens come from the backend.
type TokenService struct {
	secret []byte
	issuer string // empty: any issuer
}

// NewTokenService creates a TokenService with the backend's JWT secret.
func NewTokenService(secret, issuer string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), issuer: issuer}, nil
}

type userMetadata struct {
	FullName string `json:"full_name,omitempty"`
	Name     string `json:"name,omitempty"`
}

// claims embeds jwt.RegisteredClaims (sub, aud, exp, iat, iss) and adds the
// backend's own fields. Embedding gives claims the GetExpirationTime etc.
// methods jwt.Claims requires, so the parser can validate it directly.
type claims struct {
	jwt.RegisteredClaims
	Email        string       `json:"email,omitempty"`
	Role         string       `json:"role,omitempty"`
	UserMetadata userMetadata `json:"user_metadata"`
}

// Generate signs a token for id that expires after ttl.
func (s *TokenService) Generate(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Audience:  jwt.ClaimStrings{DefaultAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    s.issuer,
		},
		Email:        id.Email,
		Role:         DefaultAudience,
		UserMetadata: userMetadata{FullName: id.Name},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate verifies signature, algorithm, expiry and, when configured, the
// issuer, and returns the identity in the token.
//
// ALGORITHM PINNING:
// The header names the algorithm, and the header is attacker-controlled.
// WithValidMethods rejects anything but HS256 before the key func runs, so
// an "alg":"none" token or one signed with a public key as HMAC secret
// never verifies.
func (s *TokenService) Validate(tokenStr string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, errors.New("auth: token expired")
		}
		return Identity{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Identity{}, errors.New("auth: invalid token claims")
	}
	if c.Subject == "" {
		return Identity{}, errors.New("auth: token has no subject")
	}

	// OAuth sign-ins fill full_name, email sign-ups may only have name
	name := strings.TrimSpace(c.UserMetadata.FullName)
	if name == "" {
		name = strings.TrimSpace(c.UserMetadata.Name)
	}
	return Identity{UserID: c.Subject, Email: c.Email, Name: name}, nil
}
