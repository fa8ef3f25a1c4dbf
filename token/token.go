// Package token mints and verifies signed session tokens for users who
// completed authentication and opened a session, so other processes can
// trust the outcome without re-driving the authentication service.
package token

import (
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// serviceClaim carries the authentication service name a session was opened
// against.
const serviceClaim = "service"

// minSecretLen is the smallest accepted signing secret. Anything shorter is
// trivially brute-forceable for HS256.
const minSecretLen = 16

// DefaultTTL is the token lifetime used when none is configured.
const DefaultTTL = 5 * time.Minute

// Session is the verified content of a session token.
type Session struct {
	// Username is the authenticated login name.
	Username string

	// Service is the authentication service the session was opened
	// against.
	Service string

	// Expires is when the token stops verifying.
	Expires time.Time
}

// Issuer mints and verifies HS256-signed session tokens.
type Issuer struct {
	key    jwk.Key
	issuer string
	ttl    time.Duration

	// clock supplies the current time; replaced in tests.
	clock func() time.Time
}

// NewIssuer creates an Issuer from a shared signing secret. ttl may be zero
// to use DefaultTTL.
func NewIssuer(secret []byte, issuer string, ttl time.Duration) (*Issuer, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("signing secret too short: %d bytes, need at least %d", len(secret), minSecretLen)
	}
	if issuer == "" {
		return nil, fmt.Errorf("issuer name required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	key, err := jwk.FromRaw(secret)
	if err != nil {
		return nil, fmt.Errorf("build signing key: %w", err)
	}

	return &Issuer{
		key:    key,
		issuer: issuer,
		ttl:    ttl,
		clock:  time.Now,
	}, nil
}

// Issue mints a token for username's session with the named service.
func (i *Issuer) Issue(username, service string) (string, error) {
	if username == "" {
		return "", fmt.Errorf("username required")
	}
	now := i.clock()

	tok, err := jwt.NewBuilder().
		Issuer(i.issuer).
		Subject(username).
		IssuedAt(now).
		Expiration(now.Add(i.ttl)).
		Claim(serviceClaim, service).
		Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, i.key))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return string(signed), nil
}

// Verify checks the signature, issuer, and validity window of a token and
// returns its session content.
func (i *Issuer) Verify(raw string) (*Session, error) {
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, i.key),
		jwt.WithIssuer(i.issuer),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(i.clock)),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}

	session := &Session{
		Username: tok.Subject(),
		Expires:  tok.Expiration(),
	}
	if value, ok := tok.Get(serviceClaim); ok {
		if service, ok := value.(string); ok {
			session.Service = service
		}
	}
	return session, nil
}
