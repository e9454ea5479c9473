package memory

import (
	"strings"
	"unicode"
)

// ftsSpecials are the characters the FTS5 query parser treats as syntax
// or rejects outright. Each one is flattened to a space before tokenizing.
const ftsSpecials = "\"*(){}[]:^~!&|@#$%+=\\<>,;?/-`.'"

// ftsOperators are reserved words in the FTS5 query grammar. They must
// never reach the engine as standalone tokens.
var ftsOperators = map[string]bool{
	"and":  true,
	"or":   true,
	"not":  true,
	"near": true,
}

// stopWords is the closed set of English function words dropped during
// normalization. Matching happens after lowercasing.
var stopWords = map[string]bool{
	"a": true, "about": true, "an": true, "are": true, "as": true,
	"at": true, "be": true, "been": true, "but": true, "by": true,
	"can": true, "could": true, "did": true, "do": true, "does": true,
	"for": true, "from": true, "had": true, "has": true, "have": true,
	"he": true, "her": true, "his": true, "how": true, "i": true,
	"if": true, "in": true, "into": true, "is": true, "it": true,
	"its": true, "me": true, "my": true, "of": true, "on": true,
	"our": true, "she": true, "should": true, "so": true, "some": true,
	"than": true, "that": true, "the": true, "their": true, "them": true,
	"then": true, "there": true, "these": true, "they": true, "this": true,
	"those": true, "to": true, "was": true, "we": true, "were": true,
	"what": true, "when": true, "where": true, "which": true, "who": true,
	"why": true, "will": true, "with": true, "would": true, "you": true,
	"your": true,
}

// NormalizeQuery sanitizes arbitrary user text into a full-text query
// string. An empty result means "no query"; callers fall back to a
// recent listing rather than passing it to MATCH.
func NormalizeQuery(query string) string {
	stripped := stripSpecials(query)
	fields := strings.Fields(strings.ToLower(stripped))

	kept := make([]string, 0, len(fields))
	for _, tok := range fields {
		if len(tok) <= 1 || stopWords[tok] || ftsOperators[tok] {
			continue
		}
		kept = append(kept, tok)
	}
	if len(kept) > 0 {
		return strings.Join(kept, " ")
	}

	// Everything was filtered. Re-admit multi-character tokens so a
	// query made of stop words still searches for something.
	for _, tok := range fields {
		if len(tok) > 1 && !ftsOperators[tok] {
			kept = append(kept, tok)
		}
	}
	if len(kept) > 0 {
		return strings.Join(kept, " ")
	}

	return alnumResidue(query)
}

func stripSpecials(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(ftsSpecials, r) {
			return ' '
		}
		return r
	}, s)
}

// alnumResidue keeps only letters, digits and spaces from the original
// text. Operator words are still filtered so the invariant that no
// reserved token escapes the normalizer holds on every path.
func alnumResidue(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	kept := make([]string, 0, 4)
	for _, tok := range strings.Fields(b.String()) {
		if !ftsOperators[tok] {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

// ftsQuery turns a normalized query into a MATCH expression. Every
// token is double-quoted so the engine never parses it as syntax;
// adjacent quoted tokens combine as an implicit AND.
func ftsQuery(normalized string) string {
	toks := strings.Fields(normalized)
	quoted := make([]string, len(toks))
	for i, t := range toks {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}
