// Package dedup computes content fingerprints used to detect duplicate
// transactions across repeated imports.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/fintally/fintally/internal/domain"
)

// Fingerprint returns the SHA256 hex digest of
// "{date}|{amount}|{description}|{institution}" with the institution
// lower-cased. The date and amount are the exact text produced upstream,
// not normalized numeric values: a formatting difference is a different
// fingerprint, and that is intentional.
func Fingerprint(date, amount, description, institution string) string {
	input := fmt.Sprintf("%s|%s|%s|%s", date, amount, description, strings.ToLower(institution))
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// ForTransaction fingerprints a parsed transaction using its canonical text
// forms: ISO date and the decimal's own string rendering. Note the decimal
// rendering trims trailing zeros, so source texts like "-5.50" and "-5.5"
// collapse to one fingerprint; what matters is that the rendering is
// self-consistent across runs.
func ForTransaction(txn domain.ParsedTransaction, institution string) string {
	return Fingerprint(txn.Date.Format("2006-01-02"), txn.Amount.String(), txn.Description, institution)
}
