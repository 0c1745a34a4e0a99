package oauthstate

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParseRoundTrip(t *testing.T) {
	codec := NewCodec("test-secret")

	token, err := codec.Issue("cs_test_abc123")
	require.NoError(t, err)

	sessionID, err := codec.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "cs_test_abc123", sessionID)
}

func TestIssueRequiresSessionAndSecret(t *testing.T) {
	codec := NewCodec("test-secret")
	_, err := codec.Issue("")
	assert.Error(t, err)

	empty := NewCodec("")
	_, err = empty.Issue("cs_test_abc123")
	assert.Error(t, err)
}

func TestParseRejectsTamperedSession(t *testing.T) {
	codec := NewCodec("test-secret")
	token, err := codec.Issue("cs_test_abc123")
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)
	forged := strings.Replace(string(raw), "cs_test_abc123", "cs_test_evil99", 1)
	forgedToken := base64.RawURLEncoding.EncodeToString([]byte(forged))

	_, err = codec.Parse(forgedToken)
	assert.ErrorIs(t, err, ErrTampered)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	issuer := NewCodec("secret-a")
	verifier := NewCodec("secret-b")

	token, err := issuer.Issue("cs_test_abc123")
	require.NoError(t, err)

	_, err = verifier.Parse(token)
	assert.ErrorIs(t, err, ErrTampered)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	codec := NewCodec("test-secret")
	codec.now = func() time.Time { return time.Now().Add(-DefaultTTL - time.Minute) }

	token, err := codec.Issue("cs_test_abc123")
	require.NoError(t, err)

	codec.now = time.Now
	_, err = codec.Parse(token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestParseRejectsGarbage(t *testing.T) {
	codec := NewCodec("test-secret")

	for _, token := range []string{"", "not-base64!!", base64.RawURLEncoding.EncodeToString([]byte("a|b"))} {
		_, err := codec.Parse(token)
		assert.ErrorIs(t, err, ErrMalformed)
	}
}
