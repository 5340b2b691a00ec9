package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken is returned for malformed or tampered download tokens.
	ErrInvalidToken = errors.New("invalid download token")
	// ErrExpiredToken is returned once a token's expiry has passed.
	ErrExpiredToken = errors.New("download token expired")
)

// Grant is what a verified download token allows: one stored file of one job.
type Grant struct {
	JobID     string
	Key       string
	ExpiresAt time.Time
}

// Signer issues and verifies HMAC-SHA256 signed download tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner constructs a signer. A non-positive ttl defaults to 24h.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL is how long issued tokens stay valid.
func (s *Signer) TTL() time.Duration { return s.ttl }

// Sign returns a URL-safe token for key and its expiry.
func (s *Signer) Sign(jobID, key string) (string, time.Time, error) {
	if jobID == "" || key == "" {
		return "", time.Time{}, errors.New("job id and key are required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("signing secret missing")
	}
	if strings.Contains(jobID, "|") {
		return "", time.Time{}, fmt.Errorf("job id %q contains a separator", jobID)
	}
	expiresAt := s.now().Add(s.ttl).UTC().Truncate(time.Second)
	payload := strings.Join([]string{jobID, strconv.FormatInt(expiresAt.Unix(), 10), key}, "|")
	encoded := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return encoded + "." + s.mac(encoded), expiresAt, nil
}

// Verify checks the signature and expiry of token.
func (s *Signer) Verify(token string) (Grant, error) {
	encoded, signature, ok := strings.Cut(token, ".")
	if !ok || encoded == "" || signature == "" {
		return Grant{}, ErrInvalidToken
	}
	if !hmac.Equal([]byte(signature), []byte(s.mac(encoded))) {
		return Grant{}, ErrInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Grant{}, ErrInvalidToken
	}
	parts := strings.SplitN(string(raw), "|", 3)
	if len(parts) != 3 {
		return Grant{}, ErrInvalidToken
	}
	exp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Grant{}, ErrInvalidToken
	}
	grant := Grant{JobID: parts[0], Key: parts[2], ExpiresAt: time.Unix(exp, 0).UTC()}
	if !s.now().Before(grant.ExpiresAt) {
		return Grant{}, ErrExpiredToken
	}
	return grant, nil
}

func (s *Signer) mac(encoded string) string {
	h := hmac.New(sha256.New, s.secret)
	_, _ = h.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
