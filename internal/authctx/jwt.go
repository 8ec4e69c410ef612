// Package authctx extracts the run-scoped identity (§6): JWT subject
// extraction and event hydration of exposed variables. Profile, shared
// credentials and the OAuth map live in internal/runtime.
package authctx

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultSubject is the fallback subject when extraction fails for any
// reason (§6: "Failure falls back to 'local'").
const DefaultSubject = "local"

type claims struct {
	Sub string `json:"sub"`
}

// ExtractSubject parses the `sub` claim out of a raw or Bearer-prefixed
// JWT, ported from original_source's extract_sub_from_jwt: accepts
// "Bearer "/"bearer " prefixes, requires exactly three dot-separated
// segments, and tolerates both padded and unpadded base64url payloads.
// Any failure yields DefaultSubject rather than an error — this function
// never fails, matching the original's "falls back to local" contract.
func ExtractSubject(token string) string {
	sub, err := extractSubject(token)
	if err != nil {
		return DefaultSubject
	}
	return sub
}

func extractSubject(token string) (string, error) {
	raw := strings.TrimSpace(token)
	if len(raw) >= 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = raw[7:]
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("authctx: invalid JWT: expected 3 segments, got %d", len(parts))
	}
	payload := parts[1]
	if payload == "" {
		return "", fmt.Errorf("authctx: invalid JWT: empty payload segment")
	}

	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		decoded, err = base64.URLEncoding.DecodeString(payload)
		if err != nil {
			return "", fmt.Errorf("authctx: base64url-decode payload: %w", err)
		}
	}

	var c claims
	if err := json.Unmarshal(decoded, &c); err != nil {
		return "", fmt.Errorf("authctx: invalid JWT JSON payload: %w", err)
	}
	if c.Sub == "" {
		return "", fmt.Errorf("authctx: JWT payload missing sub claim")
	}
	return c.Sub, nil
}
