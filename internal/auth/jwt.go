package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RegistrationClaims are carried by signed registration keys.
type RegistrationClaims struct {
	EventID string `json:"event_id"`
	jwt.RegisteredClaims
}

// UUIDIssuer mints random opaque registration keys.
type UUIDIssuer struct{}

// Issue returns a fresh random key.
func (UUIDIssuer) Issue(string) (string, error) {
	key, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return key.String(), nil
}

// JWTIssuer mints HS256-signed registration keys. The gate still compares keys
// verbatim; the signature lets operators verify where a key came from.
type JWTIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTIssuer constructs a signing issuer.
func NewJWTIssuer(secret []byte, issuer string) (*JWTIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: empty secret")
	}
	if issuer == "" {
		issuer = "statusboard"
	}
	return &JWTIssuer{secret: secret, issuer: issuer, now: time.Now}, nil
}

// Issue signs a key bound to eventID with a random token id.
func (i *JWTIssuer) Issue(eventID string) (string, error) {
	if eventID == "" {
		return "", errors.New("auth: empty event id")
	}
	claims := RegistrationClaims{
		EventID: eventID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   i.issuer,
			Subject:  eventID,
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(i.now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// ParseRegistrationKey validates a signed registration key and returns its claims.
func ParseRegistrationKey(tokenString string, secret []byte) (*RegistrationClaims, error) {
	if tokenString == "" {
		return nil, errors.New("auth: empty token")
	}
	if len(secret) == 0 {
		return nil, errors.New("auth: empty secret")
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &RegistrationClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("auth: invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("auth: invalid token")
	}
	if claims.EventID == "" || claims.EventID != claims.Subject {
		return nil, errors.New("auth: missing event_id")
	}
	return claims, nil
}
