package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateWebhookSecret returns a random URL-safe token suitable for the
// X-Reaniname-Webhook-Secret header.
func GenerateWebhookSecret() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating webhook secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
