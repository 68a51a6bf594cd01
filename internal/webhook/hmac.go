package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// verifySignature verifies a LINE-style HMAC-SHA256 signature against the
// raw request body: the digest is keyed by the channel secret and
// base64-encoded before comparison.
//
// The comparison runs over the encoded forms using crypto/subtle; a length
// mismatch, padding difference, or undecodable header all fail the same
// constant-time check. All errors are generic to prevent information leakage.
//
// Returns nil if the signature is valid, error otherwise.
func verifySignature(body []byte, signature, secret string) error {
	if secret == "" {
		return fmt.Errorf("webhook verification failed")
	}

	if signature == "" {
		return fmt.Errorf("webhook verification failed")
	}

	expected := computeExpectedSignature(body, secret)

	// Constant-time comparison to prevent timing attacks. A truncated or
	// padded claimed signature differs in length and fails here without
	// any decode step that could panic or leak.
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return fmt.Errorf("webhook verification failed")
	}

	return nil
}

// computeExpectedSignature computes the base64-encoded HMAC-SHA256 digest
// of body keyed by secret. Used by verification and by tests.
func computeExpectedSignature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
