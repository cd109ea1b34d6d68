// Package tokenizer implements the fixed, deterministic token counter that every
// chunk budget in the index is measured against.
//
// The vocabulary is a pre-tokenizer rather than a learned BPE table: whitespace
// separates tokens, letter runs are cut into pieces of at most four runes, digit
// runs into pieces of at most three, and every ideograph, punctuation mark or
// symbol counts as one token. Counts are close to what common embedding models
// report for English prose and never depend on network or model files.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Version identifies the token vocabulary. It is folded into the chunking
// version, so changing the rules below forces a re-chunk of every document.
const Version = "pre-l4d3-v1"

// Reference chunk budgets.
const (
	MaxTokens = 512
	MinTokens = 64
)

const (
	letterPieceRunes = 4
	digitPieceRunes  = 3
)

type class int

const (
	classSpace class = iota
	classLetter
	classDigit
	classSingle
)

// Span is the byte range [Start, End) of one token.
type Span struct {
	Start int
	End   int
}

// Count returns the number of tokens in text.
func Count(text string) int {
	n := 0
	scan(text, func(Span) { n++ })
	return n
}

// Spans returns the byte ranges of every token in text, in order.
// Cutting text at any span start and re-counting the pieces yields exactly the
// number of spans each piece covers.
func Spans(text string) []Span {
	spans := make([]Span, 0, len(text)/4)
	scan(text, func(s Span) { spans = append(spans, s) })
	return spans
}

// Slice cuts text purely on token count into the smallest number of pieces that
// each hold at most maxTokens tokens. Pieces are balanced so that no piece is
// much shorter than the others. Whitespace at piece edges is trimmed.
func Slice(text string, maxTokens int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxTokens <= 0 {
		return []string{text}
	}
	spans := Spans(text)
	n := len(spans)
	if n <= maxTokens {
		return []string{text}
	}

	pieces := (n + maxTokens - 1) / maxTokens
	base, extra := n/pieces, n%pieces

	out := make([]string, 0, pieces)
	first := 0
	for i := 0; i < pieces; i++ {
		size := base
		if i < extra {
			size++
		}
		next := first + size
		end := len(text)
		if next < n {
			end = spans[next].Start
		}
		if piece := strings.TrimSpace(text[spans[first].Start:end]); piece != "" {
			out = append(out, piece)
		}
		first = next
	}
	return out
}

func scan(text string, emit func(Span)) {
	runClass := classSpace
	runStart, runRunes := 0, 0

	flush := func(end int) {
		if runClass != classSpace {
			emit(Span{Start: runStart, End: end})
		}
		runClass = classSpace
		runRunes = 0
	}

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		c := classify(r)

		switch c {
		case classSpace:
			flush(i)
		case classSingle:
			flush(i)
			emit(Span{Start: i, End: i + size})
		default:
			if runClass != c || runRunes == pieceLimit(c) {
				flush(i)
				runClass = c
				runStart = i
			}
			runRunes++
		}
		i += size
	}
	flush(len(text))
}

func classify(r rune) class {
	switch {
	case unicode.IsSpace(r):
		return classSpace
	case isIdeographic(r):
		return classSingle
	case unicode.IsLetter(r) || unicode.IsMark(r):
		return classLetter
	case unicode.IsDigit(r):
		return classDigit
	default:
		return classSingle
	}
}

func pieceLimit(c class) int {
	if c == classDigit {
		return digitPieceRunes
	}
	return letterPieceRunes
}

func isIdeographic(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}
