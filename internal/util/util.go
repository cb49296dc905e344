// Package util holds log redaction helpers.
package util

import (
	"net/url"
	"strings"
)

// MaskSecret obscures a PIN, token or key for logging, keeping only the edges.
func MaskSecret(secret string) string {
	if len(secret) > 8 {
		return secret[:4] + "..." + secret[len(secret)-4:]
	} else if len(secret) > 4 {
		return secret[:2] + "..." + secret[len(secret)-2:]
	} else if len(secret) > 2 {
		return secret[:1] + "..." + secret[len(secret)-1:]
	}
	return secret
}

// MaskSensitiveQuery masks sensitive query parameters, e.g. pin or token, within the raw query string.
func MaskSensitiveQuery(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	changed := false
	for i, part := range parts {
		if part == "" {
			continue
		}
		keyPart := part
		valuePart := ""
		if idx := strings.Index(part, "="); idx >= 0 {
			keyPart = part[:idx]
			valuePart = part[idx+1:]
		}
		decodedKey, err := url.QueryUnescape(keyPart)
		if err != nil {
			decodedKey = keyPart
		}
		if !shouldMaskQueryParam(decodedKey) {
			continue
		}
		decodedValue, err := url.QueryUnescape(valuePart)
		if err != nil {
			decodedValue = valuePart
		}
		parts[i] = keyPart + "=" + url.QueryEscape(MaskSecret(strings.TrimSpace(decodedValue)))
		changed = true
	}
	if !changed {
		return raw
	}
	return strings.Join(parts, "&")
}

func shouldMaskQueryParam(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false
	}
	key = strings.TrimSuffix(key, "[]")
	if key == "pin" || key == "device_id" || key == "key" {
		return true
	}
	return strings.Contains(key, "token") || strings.Contains(key, "secret") || strings.Contains(key, "password")
}
