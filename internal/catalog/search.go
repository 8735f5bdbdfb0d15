package catalog

import "strings"

// stopwords are query tokens ignored during search, covering casual
// phrasing like "show me usb cables please".
var stopwords = map[string]struct{}{
	"show": {}, "me": {}, "find": {}, "finds": {}, "please": {},
	"items": {}, "item": {}, "matching": {}, "the": {}, "a": {},
	"an": {}, "for": {},
}

// Normalize lowercases s, replaces runs of non-alphanumeric characters
// with single spaces, and trims the result.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastSpace := true // suppress leading space
	for _, r := range strings.ToLower(s) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if alnum {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Tokenize normalizes the query, splits it into tokens, and drops
// stopwords.
func Tokenize(query string) []string {
	norm := Normalize(query)
	if norm == "" {
		return nil
	}

	var tokens []string
	for tok := range strings.SplitSeq(norm, " ") {
		if tok == "" {
			continue
		}
		if _, skip := stopwords[tok]; skip {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// FilterProducts filters products by conjunctive substring matching:
// a product matches iff every query token appears in the normalized
// concatenation of its name, description, and category. Tokens ending
// in "s" also match without the trailing "s" (naive plural fallback).
//
// An empty token list returns all products. Order is catalog order;
// there is no ranking. The function is pure and never errors.
func FilterProducts(products []Product, query string) []Product {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		out := make([]Product, len(products))
		copy(out, products)
		return out
	}

	matched := make([]Product, 0, len(products))
	for _, p := range products {
		hay := Normalize(p.Name + " " + p.Description + " " + p.Category)
		if matchesAll(hay, tokens) {
			matched = append(matched, p)
		}
	}
	return matched
}

// matchesAll reports whether every token is found in the haystack,
// allowing the plural fallback.
func matchesAll(hay string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(hay, tok) {
			continue
		}
		if strings.HasSuffix(tok, "s") && strings.Contains(hay, tok[:len(tok)-1]) {
			continue
		}
		return false
	}
	return true
}
