package eventsub

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
)

// ErrMissingSignature indicates one of the three signature headers is absent.
// Callers must respond 400.
var ErrMissingSignature = errors.New("missing signature header")

// ErrInvalidSignature indicates the HMAC did not match. Callers must
// respond 401.
var ErrInvalidSignature = errors.New("invalid signature")

// VerifySignature checks the authenticity of a webhook delivery. The HMAC is
// computed over message id + timestamp + the raw body bytes exactly as
// received; any re-serialized form would not match. The comparison is
// case-insensitive on the hex digits.
func VerifySignature(secret string, header http.Header, rawBody []byte) error {
	messageID := header.Get(HeaderMessageID)
	timestamp := header.Get(HeaderMessageTimestamp)
	signature := header.Get(HeaderMessageSignature)
	if messageID == "" || timestamp == "" || signature == "" {
		return ErrMissingSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(messageID))
	mac.Write([]byte(timestamp))
	mac.Write(rawBody)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return ErrInvalidSignature
	}
	return nil
}
