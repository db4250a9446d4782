// Package auth issues and verifies the HS256 session tokens handed out by the API.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest HMAC secret accepted.
const MinSecretLength = 16

var (
	// ErrTokenInvalid is returned for malformed, tampered or foreign tokens.
	ErrTokenInvalid = errors.New("invalid session token")

	// ErrTokenExpired is returned for well-formed tokens past their expiry.
	ErrTokenExpired = errors.New("session token expired")

	// ErrWeakSecret is returned when the signing secret is too short.
	ErrWeakSecret = fmt.Errorf("signing secret must be at least %d bytes", MinSecretLength)
)

// Claims identifies the account a token was issued to.
type Claims struct {
	AccountID int64
	Username  string
	ExpiresAt time.Time
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// Issuer signs and verifies session tokens.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer. now may be nil to use the wall clock.
func NewIssuer(secret, issuer string, ttl time.Duration, now func() time.Time) (*Issuer, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: now}, nil
}

// Issue returns a signed token for the account.
func (i *Issuer) Issue(accountID int64, username string) (string, Claims, error) {
	issuedAt := i.now()
	expiresAt := issuedAt.Add(i.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   strconv.FormatInt(accountID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Username: username,
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, Claims{AccountID: accountID, Username: username, ExpiresAt: expiresAt.Truncate(time.Second)}, nil
}

// Verify checks the signature, issuer and expiry of a token.
func (i *Issuer) Verify(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrTokenInvalid
	}

	var parsed sessionClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	accountID, err := strconv.ParseInt(parsed.Subject, 10, 64)
	if err != nil || accountID <= 0 {
		return Claims{}, fmt.Errorf("%w: bad subject %q", ErrTokenInvalid, parsed.Subject)
	}

	return Claims{
		AccountID: accountID,
		Username:  parsed.Username,
		ExpiresAt: parsed.ExpiresAt.Time,
	}, nil
}
