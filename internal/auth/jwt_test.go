package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDIssuer(t *testing.T) {
	first, err := UUIDIssuer{}.Issue("job.a")
	require.NoError(t, err)
	second, err := UUIDIssuer{}.Issue("job.a")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	_, err = uuid.Parse(first)
	assert.NoError(t, err, "expected uuid key, got %q", first)
}

func TestJWTIssuer_RoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	issuer, err := NewJWTIssuer(secret, "")
	require.NoError(t, err)
	issuer.now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }

	key, err := issuer.Issue("job.a")
	require.NoError(t, err)
	claims, err := ParseRegistrationKey(key, secret)
	require.NoError(t, err)

	assert.Equal(t, "job.a", claims.EventID)
	assert.Equal(t, "job.a", claims.Subject)
	assert.Equal(t, "statusboard", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestJWTIssuer_DistinctKeysPerCall(t *testing.T) {
	issuer, err := NewJWTIssuer([]byte("s"), "board")
	require.NoError(t, err)
	a, err := issuer.Issue("job.a")
	require.NoError(t, err)
	b, err := issuer.Issue("job.a")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestParseRegistrationKey_WrongSecret(t *testing.T) {
	issuer, err := NewJWTIssuer([]byte("right"), "")
	require.NoError(t, err)
	key, err := issuer.Issue("job.a")
	require.NoError(t, err)

	_, err = ParseRegistrationKey(key, []byte("wrong"))
	assert.Error(t, err)
}

func TestParseRegistrationKey_RejectsOtherAlgorithms(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, RegistrationClaims{
		EventID:          "job.a",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "job.a"},
	})
	signed, err := token.SignedString([]byte("s"))
	require.NoError(t, err)

	_, err = ParseRegistrationKey(signed, []byte("s"))
	assert.Error(t, err)
}

func TestNewJWTIssuer_EmptySecret(t *testing.T) {
	_, err := NewJWTIssuer(nil, "")
	assert.Error(t, err)
}
