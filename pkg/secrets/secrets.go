// Package secrets generates API credentials. The plaintext secret is returned
// exactly once at creation time; only its digest is ever persisted.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	keyIDPrefix  = "frk_"
	keyIDBytes   = 12
	secretBytes  = 32
	whsecPrefix  = "whsec_"
	digestLength = sha256.Size * 2
)

// Generated carries a freshly minted credential pair. Secret must be handed
// to the caller and dropped; Digest is what gets stored.
type Generated struct {
	PublicID string
	Secret   string
	Digest   string
}

// NewAPIKey mints a public identifier plus a secret of the form
// "frk_<24 hex>" / "<64 hex>".
func NewAPIKey() (Generated, error) {
	id, err := randomHex(keyIDBytes)
	if err != nil {
		return Generated{}, err
	}
	secret, err := randomHex(secretBytes)
	if err != nil {
		return Generated{}, err
	}
	return Generated{
		PublicID: keyIDPrefix + id,
		Secret:   secret,
		Digest:   Digest(secret),
	}, nil
}

// NewWebhookSecret mints a signing secret of the form "whsec_<64 hex>".
func NewWebhookSecret() (Generated, error) {
	secret, err := randomHex(secretBytes)
	if err != nil {
		return Generated{}, err
	}
	full := whsecPrefix + secret
	return Generated{
		Secret: full,
		Digest: Digest(full),
	}, nil
}

// Digest returns the hex-encoded SHA-256 of the secret.
func Digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the digest of the presented secret and compares it to the
// stored one in constant time.
func Verify(storedDigest, presentedSecret string) bool {
	if len(storedDigest) != digestLength {
		return false
	}
	computed := Digest(presentedSecret)
	return subtle.ConstantTimeCompare([]byte(storedDigest), []byte(computed)) == 1
}

// ValidPublicID reports whether s has the shape of a key identifier this
// package generates.
func ValidPublicID(s string) bool {
	if !strings.HasPrefix(s, keyIDPrefix) {
		return false
	}
	rest := strings.TrimPrefix(s, keyIDPrefix)
	if len(rest) != keyIDBytes*2 {
		return false
	}
	_, err := hex.DecodeString(rest)
	return err == nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("secrets: read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
