package oauthstate

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTTL bounds how long an issued state token stays valid.
const DefaultTTL = 30 * time.Minute

var (
	ErrMalformed = errors.New("oauth state: malformed token")
	ErrTampered  = errors.New("oauth state: signature mismatch")
	ErrExpired   = errors.New("oauth state: token expired")
)

// Codec issues and verifies signed OAuth state tokens carrying a checkout
// session ID. Token layout before base64url encoding:
//
//	sessionID|nonce|issuedAtUnix|hex(HMAC-SHA256(secret, sessionID|nonce|issuedAtUnix))
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec builds a codec with the default TTL.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret), ttl: DefaultTTL, now: time.Now}
}

// Issue signs the session ID into a fresh state token.
func (c *Codec) Issue(sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", errors.New("oauth state: session id is required")
	}
	if len(c.secret) == 0 {
		return "", errors.New("oauth state: signing secret is not configured")
	}

	nonceBytes := make([]byte, 16)
	if _, err := rand.Read(nonceBytes); err != nil {
		return "", err
	}
	nonce := hex.EncodeToString(nonceBytes)

	issuedAt := strconv.FormatInt(c.now().Unix(), 10)
	payload := fmt.Sprintf("%s|%s|%s", sessionID, nonce, issuedAt)
	token := payload + "|" + c.sign(payload)
	return base64.RawURLEncoding.EncodeToString([]byte(token)), nil
}

// Parse verifies the token and returns the embedded session ID. Tampered,
// malformed and expired tokens are all rejected.
func (c *Codec) Parse(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return "", ErrMalformed
	}

	parts := strings.Split(string(raw), "|")
	if len(parts) != 4 {
		return "", ErrMalformed
	}
	sessionID, nonce, issuedAtRaw, sig := parts[0], parts[1], parts[2], parts[3]
	if sessionID == "" || nonce == "" {
		return "", ErrMalformed
	}

	payload := fmt.Sprintf("%s|%s|%s", sessionID, nonce, issuedAtRaw)
	expected := c.sign(payload)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return "", ErrTampered
	}

	issuedAt, err := strconv.ParseInt(issuedAtRaw, 10, 64)
	if err != nil {
		return "", ErrMalformed
	}
	if c.now().Sub(time.Unix(issuedAt, 0)) > c.ttl {
		return "", ErrExpired
	}
	return sessionID, nil
}

func (c *Codec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
