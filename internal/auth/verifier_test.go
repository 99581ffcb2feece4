package auth

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyRoundTrip(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	tok, err := Sign("s3cret", "dashboard", time.Hour, now)
	require.NoError(t, err)

	v := NewVerifier("s3cret")
	v.now = func() time.Time { return now.Add(time.Minute) }
	p, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "dashboard", p.Subject)
	assert.Equal(t, now.Add(time.Hour), p.Expires)

	v.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = v.Verify(tok)
	assert.ErrorIs(t, err, ErrExpiredToken)

	// tokens carry nbf and are rejected before it
	v.now = func() time.Time { return now.Add(-time.Minute) }
	_, err = v.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenNotValidYet)
}

func TestVerifyRejects(t *testing.T) {
	now := time.Now()
	good, err := Sign("s3cret", "x", 0, now)
	require.NoError(t, err)
	segs := strings.Split(good, ".")

	v := NewVerifier("s3cret")
	_, err = v.Verify("")
	assert.ErrorIs(t, err, ErrMissingToken)

	for name, tok := range map[string]string{
		"two segments":  segs[0] + "." + segs[1],
		"wrong secret":  mustSign(t, "other", now),
		"tampered body": segs[0] + ".eyJzdWIiOiJhZG1pbiJ9." + segs[2],
		"alg none":      "eyJhbGciOiJub25lIn0." + segs[1] + ".",
		"garbage":       "a.b.c",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	p, err := v.Verify(good)
	require.NoError(t, err)
	assert.True(t, p.Expires.IsZero())
}

func mustSign(t *testing.T, secret string, now time.Time) string {
	t.Helper()
	tok, err := Sign(secret, "x", 0, now)
	require.NoError(t, err)
	return tok
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/v1/best?access_token=q", nil)
	assert.Equal(t, "q", FromRequest(r))
	r.Header.Set("Authorization", "Bearer h")
	assert.Equal(t, "h", FromRequest(r))
	r.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	assert.Equal(t, "", FromRequest(r))
}
