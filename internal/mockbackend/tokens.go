package mockbackend

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "ereader-mockbackend"

// Issuer signs and verifies the HS256 bearer tokens handed out at login.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration, now func() time.Time) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: now}
}

// Issue returns a token for userID and its lifetime in seconds.
func (i *Issuer) Issue(userID int) (string, int64, error) {
	now := i.now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", 0, fmt.Errorf("sign token: %w", err)
	}
	return token, int64(i.ttl / time.Second), nil
}

// ValidateToken checks signature and expiry and returns the subject.
func (i *Issuer) ValidateToken(token string) (int, error) {
	claims := jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return 0, fmt.Errorf("parse token: %w", err)
	}
	userID, err := strconv.Atoi(claims.Subject)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("token subject %q is not a user id", claims.Subject)
	}
	return userID, nil
}

// googleIdentity reads the email and name claims of a Google ID token. The
// signature is not checked; the fake backend trusts any well-formed token.
func googleIdentity(idToken string) (email, name string, err error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return "", "", fmt.Errorf("parse id token: %w", err)
	}
	email, _ = claims["email"].(string)
	name, _ = claims["name"].(string)
	if email == "" {
		return "", "", fmt.Errorf("id token carries no email")
	}
	return email, name, nil
}
