// Package apphash derives the short application-identity token that
// SMS senders embed in verification messages by convention. Capture
// sources use it to decide whether a message is addressed to the app;
// the extraction engine itself never reads it.
package apphash

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

// Length is the conventional size of the embedded token.
const Length = 11

// Compute derives the token from the application package name and its
// signing-certificate fingerprint: SHA-256 over "<package> <cert>",
// base64, truncated to Length characters.
func Compute(pkg, certHash string) (string, error) {
	pkg = strings.TrimSpace(pkg)
	certHash = strings.TrimSpace(certHash)
	if pkg == "" || certHash == "" {
		return "", errors.New("package name and certificate hash are required")
	}

	sum := sha256.Sum256([]byte(pkg + " " + certHash))
	return base64.StdEncoding.EncodeToString(sum[:])[:Length], nil
}

// Contains reports whether body carries hash as a standalone
// whitespace-delimited token.
func Contains(body, hash string) bool {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return false
	}
	for _, token := range strings.Fields(body) {
		if token == hash {
			return true
		}
	}
	return false
}
