package fetch

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/yourorg/yield-risk-core/internal/model"
)

const unknownToken = "unknown"

// Slugify lowercases s and strips everything but letters and digits
func Slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SplitPool splits a pool name such as "STX/USDA" or "STX-USDA" into tokens
func SplitPool(pool string) []string {
	fields := strings.FieldsFunc(pool, func(r rune) bool {
		return r == '/' || r == '-' || r == ' ' || r == '_'
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// FormatID builds {protocolSlug}-{token-a}-{token-b}. Single-asset pools repeat the token.
func FormatID(protocol string, tokens []string) string {
	a, b := unknownToken, unknownToken
	if len(tokens) > 0 {
		if s := Slugify(tokens[0]); s != "" {
			a = s
		}
		b = a
	}
	if len(tokens) > 1 {
		if s := Slugify(tokens[1]); s != "" {
			b = s
		}
	}
	return Slugify(protocol) + "-" + a + "-" + b
}

// ParseID reverses FormatID. Any deviation from three non-empty alphanumeric parts is ErrInvalidIDFormat.
func ParseID(id string) (slug, tokenA, tokenB string, err error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(id)), "-")
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("%w: %q", model.ErrInvalidIDFormat, id)
	}
	for _, p := range parts {
		if p == "" || Slugify(p) != p {
			return "", "", "", fmt.Errorf("%w: %q", model.ErrInvalidIDFormat, id)
		}
	}
	return parts[0], parts[1], parts[2], nil
}
