package query

import (
	"path"
	"strings"
	"unicode"
)

var lexicalStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "to": {}, "was": {}, "were": {}, "with": {},
}

// maxMatchTerms bounds the number of prefix terms sent to the full-text index.
const maxMatchTerms = 16

// buildMatch turns free text into an FTS MATCH expression of prefix terms that
// must all occur. Only letters and digits survive, so the result never carries
// query syntax. Stopwords are dropped unless nothing else remains.
func buildMatch(query string) string {
	tokens := tokenize(query)
	if filtered := filterStopwords(tokens); len(filtered) > 0 {
		tokens = filtered
	}
	if len(tokens) == 0 {
		return ""
	}

	seen := make(map[string]struct{}, len(tokens))
	terms := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		terms = append(terms, token+"*")
		if len(terms) == maxMatchTerms {
			break
		}
	}
	return strings.Join(terms, " ")
}

func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}
	tokens := strings.Fields(builder.String())
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

func filterStopwords(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}

	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := lexicalStopwords[token]; isStop {
			continue
		}
		result = append(result, token)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// displayName returns the file name of relPath without a markdown extension.
func displayName(relPath string) string {
	name := path.Base(relPath)
	ext := path.Ext(name)
	switch strings.ToLower(ext) {
	case ".md", ".markdown":
		return strings.TrimSuffix(name, ext)
	}
	return name
}
