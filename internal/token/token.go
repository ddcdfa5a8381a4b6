// Package token issues and validates the signed, time-limited access tokens
// that gate playback of a single segment. Tokens are self-contained: nothing
// is persisted, so validation needs no datastore round-trip.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Wire format: "{segmentID}.{expiryUnix}.{hexSignature}". The segment ID
// must not contain '.' or the token could not be split unambiguously.

// ErrNoSecrets is returned by New when no signing secret is supplied.
var ErrNoSecrets = errors.New("at least one signing secret is required")

// Decision is the outcome of validating a token. Reason is for operator
// diagnostics only and must never be echoed to an untrusted caller.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Service signs and validates access tokens. Secrets are ordered: the first
// signs new tokens, and every secret is tried during validation so that a
// rotated-out secret keeps outstanding tokens valid until they expire.
type Service struct {
	secrets [][]byte
}

// New returns a Service using the given secrets. At least one is required.
func New(secrets ...string) (*Service, error) {
	keys := make([][]byte, 0, len(secrets))
	for _, s := range secrets {
		if s == "" {
			continue
		}
		keys = append(keys, []byte(s))
	}
	if len(keys) == 0 {
		return nil, ErrNoSecrets
	}
	return &Service{secrets: keys}, nil
}

// Issue returns a serialized token granting access to segmentID until
// now + ttl. It is a pure function of its inputs and the signing secret.
func (s *Service) Issue(segmentID string, ttl time.Duration, now time.Time) (string, error) {
	if segmentID == "" {
		return "", errors.New("empty segment id")
	}
	if strings.ContainsRune(segmentID, '.') {
		return "", fmt.Errorf("segment id %q must not contain '.'", segmentID)
	}
	expiry := now.Add(ttl).Unix()
	sig := s.sign(s.secrets[0], segmentID, expiry)
	return fmt.Sprintf("%s.%d.%s", segmentID, expiry, sig), nil
}

// Validate checks a serialized token against the segment ID the caller is
// trying to reach. It fails closed: any parse failure, expired token,
// signature mismatch, or segment mismatch yields a Deny with a reason.
func (s *Service) Validate(serialized, expectedSegmentID string, now time.Time) Decision {
	parts := strings.Split(serialized, ".")
	if len(parts) != 3 {
		return deny("malformed token")
	}
	segmentID, expiryStr, signature := parts[0], parts[1], parts[2]

	expiry, err := strconv.ParseInt(expiryStr, 10, 64)
	if err != nil {
		return deny("malformed expiry")
	}
	if expiry <= now.Unix() {
		return deny("token expired")
	}

	if !s.signatureMatches(segmentID, expiry, signature) {
		return deny("invalid signature")
	}

	if segmentID != expectedSegmentID {
		return deny("segment mismatch")
	}

	return allow()
}

// signatureMatches tries each candidate secret in order with a
// constant-time comparison.
func (s *Service) signatureMatches(segmentID string, expiry int64, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	for _, secret := range s.secrets {
		mac := hmac.New(sha256.New, secret)
		fmt.Fprintf(mac, "%s.%d", segmentID, expiry)
		if hmac.Equal(got, mac.Sum(nil)) {
			return true
		}
	}
	return false
}

func (s *Service) sign(secret []byte, segmentID string, expiry int64) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%s.%d", segmentID, expiry)
	return hex.EncodeToString(mac.Sum(nil))
}
