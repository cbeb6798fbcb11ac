package market

import (
	"strings"
	"unicode"

	"github.com/capmatch/marketdata/internal/errors"
)

// NormalizeAddress canonicalizes a user-supplied address into the cache
// key form: lower-cased, punctuation stripped, whitespace collapsed to
// single spaces. Two inputs that normalize identically share one cache
// entry.
func NormalizeAddress(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToLower(raw) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
		// punctuation dropped
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// ValidateAddress rejects inputs that cannot possibly geocode before
// any upstream call is made.
func ValidateAddress(raw string) (string, error) {
	normalized := NormalizeAddress(raw)
	if normalized == "" {
		return "", errors.Newf("address is empty").
			Category(errors.CategoryValidation).
			Component("market").
			Build()
	}
	if len(normalized) < 5 {
		return "", errors.Newf("address %q is too short to geocode", raw).
			Category(errors.CategoryValidation).
			Context("normalized", normalized).
			Component("market").
			Build()
	}
	return normalized, nil
}
