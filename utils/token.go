// utils/token.go - Secure token generation
package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateSecureToken returns a cryptographically secure random token used
// as the durable reconnect credential for hosts, players and spectators.
func GenerateSecureToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.URLEncoding.EncodeToString(b)
}
