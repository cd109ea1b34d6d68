package indexer

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"vaultgraph/internal/tokenizer"
)

// segmenterRevision changes whenever the segmentation rules below change.
const segmenterRevision = "md-seg-2"

var (
	atxHeadingRe    = regexp.MustCompile(`^ {0,3}(#{1,6})(?:[ \t]+(.*?))?(?:[ \t]+#+)?[ \t]*$`)
	setextRe        = regexp.MustCompile(`^ {0,3}(=+|-+)[ \t]*$`)
	thematicBreakRe = regexp.MustCompile(`^ {0,3}(?:(?:\*[ \t]*){3,}|(?:-[ \t]*){3,}|(?:_[ \t]*){3,})$`)
	fenceOpenRe     = regexp.MustCompile("^ {0,3}(`{3,}|~{3,})(.*)$")
	tableDelimRe    = regexp.MustCompile(`^ {0,3}\|?[ \t]*:?-+:?[ \t]*(?:\|[ \t]*:?-+:?[ \t]*)*\|?[ \t]*$`)
)

// MarkdownSegmenter splits markdown documents into token-bounded chunks.
type MarkdownSegmenter struct {
	parser    goldmark.Markdown
	maxTokens int
	minTokens int
}

// NewMarkdownSegmenter creates a segmenter with the given token budgets.
func NewMarkdownSegmenter(maxTokens, minTokens int) *MarkdownSegmenter {
	if maxTokens <= 0 {
		maxTokens = tokenizer.MaxTokens
	}
	if minTokens < 0 || minTokens > maxTokens {
		minTokens = 0
	}
	return &MarkdownSegmenter{
		parser: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
		maxTokens: maxTokens,
		minTokens: minTokens,
	}
}

// Segment splits content with the given budgets. It is a convenience wrapper
// around NewMarkdownSegmenter for one-off calls.
func Segment(content string, maxTokens, minTokens int) []Chunk {
	return NewMarkdownSegmenter(maxTokens, minTokens).Segment(content)
}

// Version identifies the chunking algorithm, tokenizer and budgets. Documents
// chunked under a different version are stale.
func (s *MarkdownSegmenter) Version() string {
	return fmt.Sprintf("%s/%s/%d-%d", segmenterRevision, tokenizer.Version, s.maxTokens, s.minTokens)
}

// MaxTokens returns the chunk ceiling.
func (s *MarkdownSegmenter) MaxTokens() int { return s.maxTokens }

// MinTokens returns the chunk floor.
func (s *MarkdownSegmenter) MinTokens() int { return s.minTokens }

// Segment splits content into ordered chunks. Chunk.Index is the segment ordinal.
func (s *MarkdownSegmenter) Segment(content string) []Chunk {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if strings.TrimSpace(content) == "" {
		return []Chunk{}
	}

	sections := s.buildSections(scanBlocks(content))

	var drafts []draft
	for _, sec := range sections {
		drafts = append(drafts, s.splitSection(sec)...)
	}

	drafts = s.mergeSmall(drafts)

	chunks := make([]Chunk, 0, len(drafts))
	for i, d := range drafts {
		chunks = append(chunks, Chunk{
			Index:       i,
			HeadingPath: d.headingPath,
			Text:        d.text,
			Tokens:      d.tokens,
			Hash:        FingerprintOfString(d.text),
		})
	}
	return chunks
}

type blockKind int

const (
	blockParagraph blockKind = iota
	blockHeading
	blockCode
	blockTable
	blockBreak
	blockFrontMatter
)

type block struct {
	kind  blockKind
	level int
	title string
	text  string
}

// scanBlocks performs the structural split. Fenced code and tables are consumed
// whole so blank lines or rule-like lines inside them never cut a section.
func scanBlocks(content string) []block {
	lines := strings.Split(content, "\n")
	var blocks []block
	var para []string

	flushPara := func() {
		if len(para) > 0 {
			blocks = append(blocks, block{kind: blockParagraph, text: strings.Join(para, "\n")})
			para = nil
		}
	}

	i := 0
	if end := frontMatterEnd(lines); end > 0 {
		blocks = append(blocks, block{kind: blockFrontMatter, text: strings.Join(lines[:end+1], "\n")})
		i = end + 1
	}

	for i < len(lines) {
		line := lines[i]

		if strings.TrimSpace(line) == "" {
			flushPara()
			i++
			continue
		}

		if fenceChar, fenceLen, ok := fenceOpen(line); ok {
			flushPara()
			j := i + 1
			for j < len(lines) && !isFenceClose(lines[j], fenceChar, fenceLen) {
				j++
			}
			end := j + 1
			if j >= len(lines) {
				end = len(lines) // unclosed fence runs to end of document
			}
			blocks = append(blocks, block{kind: blockCode, text: strings.Join(lines[i:end], "\n")})
			i = end
			continue
		}

		if m := atxHeadingRe.FindStringSubmatch(line); m != nil {
			flushPara()
			blocks = append(blocks, block{
				kind:  blockHeading,
				level: len(m[1]),
				title: strings.TrimSpace(m[2]),
				text:  strings.TrimSpace(line),
			})
			i++
			continue
		}

		if i+1 < len(lines) && isTableStart(line, lines[i+1]) {
			flushPara()
			j := i + 2
			for j < len(lines) && strings.TrimSpace(lines[j]) != "" && strings.Contains(lines[j], "|") {
				j++
			}
			blocks = append(blocks, block{kind: blockTable, text: strings.Join(lines[i:j], "\n")})
			i = j
			continue
		}

		if len(para) > 0 {
			if m := setextRe.FindStringSubmatch(line); m != nil {
				level := 2
				if strings.HasPrefix(m[1], "=") {
					level = 1
				}
				blocks = append(blocks, block{
					kind:  blockHeading,
					level: level,
					title: strings.TrimSpace(strings.Join(para, " ")),
					text:  strings.Join(para, "\n") + "\n" + strings.TrimSpace(line),
				})
				para = nil
				i++
				continue
			}
		}

		if thematicBreakRe.MatchString(line) {
			flushPara()
			blocks = append(blocks, block{kind: blockBreak})
			i++
			continue
		}

		para = append(para, line)
		i++
	}
	flushPara()

	return blocks
}

// frontMatterEnd returns the index of the closing delimiter of a leading YAML
// front-matter block, or -1.
func frontMatterEnd(lines []string) int {
	if len(lines) < 2 || strings.TrimRight(lines[0], " \t") != "---" {
		return -1
	}
	for j := 1; j < len(lines); j++ {
		l := strings.TrimRight(lines[j], " \t")
		if l == "---" || l == "..." {
			return j
		}
	}
	return -1
}

func fenceOpen(line string) (byte, int, bool) {
	m := fenceOpenRe.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, false
	}
	ch := m[1][0]
	if ch == '`' && strings.Contains(m[2], "`") {
		return 0, 0, false
	}
	return ch, len(m[1]), true
}

func isFenceClose(line string, ch byte, minLen int) bool {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 {
		return false
	}
	n := 0
	for n < len(trimmed) && trimmed[n] == ch {
		n++
	}
	return n >= minLen && strings.TrimSpace(trimmed[n:]) == ""
}

func isTableStart(header, delim string) bool {
	if !strings.Contains(header, "|") || !tableDelimRe.MatchString(delim) {
		return false
	}
	return countCells(header) == countCells(delim)
}

func countCells(row string) int {
	row = strings.TrimSpace(row)
	row = strings.TrimPrefix(row, "|")
	if strings.HasSuffix(row, "|") && !strings.HasSuffix(row, `\|`) {
		row = strings.TrimSuffix(row, "|")
	}
	cells := 1
	for i := 0; i < len(row); i++ {
		if row[i] == '\\' {
			i++
			continue
		}
		if row[i] == '|' {
			cells++
		}
	}
	return cells
}

type section struct {
	headingPath string
	units       []string
}

// buildSections cuts the block sequence at H1-H3 headings, thematic breaks and
// the front-matter boundary, and normalizes tables into sentence-like rows.
func (s *MarkdownSegmenter) buildSections(blocks []block) []section {
	var sections []section
	var current *section
	var headingStack []headingInfo

	startSection := func() {
		if current != nil && len(current.units) > 0 {
			sections = append(sections, *current)
		}
		current = &section{headingPath: buildHeadingPath(headingStack)}
	}
	startSection()

	for _, b := range blocks {
		switch b.kind {
		case blockFrontMatter:
			current.units = append(current.units, b.text)
			startSection()
		case blockBreak:
			startSection()
		case blockHeading:
			for len(headingStack) > 0 && headingStack[len(headingStack)-1].level >= b.level {
				headingStack = headingStack[:len(headingStack)-1]
			}
			headingStack = append(headingStack, headingInfo{level: b.level, text: b.title})
			if b.level <= 3 {
				startSection()
			}
			current.units = append(current.units, b.text)
		case blockTable:
			current.units = append(current.units, s.normalizeTable(b.text))
		default:
			current.units = append(current.units, b.text)
		}
	}
	startSection()

	return sections
}

// headingInfo tracks heading level and text for building heading paths.
type headingInfo struct {
	level int
	text  string
}

// buildHeadingPath builds a heading path string from the heading stack.
// Format: "# Heading1 > ## Heading2 > ### Heading3"
func buildHeadingPath(stack []headingInfo) string {
	if len(stack) == 0 {
		return ""
	}

	parts := make([]string, len(stack))
	for i, h := range stack {
		hashes := strings.Repeat("#", h.level)
		parts[i] = fmt.Sprintf("%s %s", hashes, h.text)
	}

	return strings.Join(parts, " > ")
}

// normalizeTable rewrites a GFM table as one "Header: value | Header2: value2"
// line per body row. Input that goldmark does not parse as a table is kept raw.
func (s *MarkdownSegmenter) normalizeTable(raw string) string {
	src := []byte(raw)
	doc := s.parser.Parser().Parse(text.NewReader(src))

	var rows []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		table, ok := n.(*extast.Table)
		if !ok {
			return ast.WalkContinue, nil
		}
		rows = append(rows, tableRowSentences(table, src)...)
		return ast.WalkSkipChildren, nil
	})

	if len(rows) == 0 {
		return raw
	}
	return strings.Join(rows, "\n")
}

func tableRowSentences(table *extast.Table, src []byte) []string {
	var headers []string
	var out []string
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		cells := extractRowCells(row, src)
		if row.Kind() == extast.KindTableHeader {
			headers = cells
			continue
		}
		if sentence := rowSentence(headers, cells); sentence != "" {
			out = append(out, sentence)
		}
	}
	if len(out) == 0 && len(headers) > 0 {
		out = append(out, strings.Join(headers, " | "))
	}
	return out
}

func extractRowCells(row ast.Node, src []byte) []string {
	var cells []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		cells = append(cells, extractTextFromNode(cell, src))
	}
	return cells
}

func rowSentence(headers, cells []string) string {
	parts := make([]string, 0, len(cells))
	for i, cell := range cells {
		if cell == "" {
			continue
		}
		if i < len(headers) && headers[i] != "" {
			parts = append(parts, headers[i]+": "+cell)
		} else {
			parts = append(parts, cell)
		}
	}
	return strings.Join(parts, " | ")
}

// extractTextFromNode extracts text content from a node and its children.
func extractTextFromNode(n ast.Node, content []byte) string {
	var textBuilder strings.Builder

	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch v := node.(type) {
		case *ast.Text:
			textBuilder.Write(v.Segment.Value(content))
			if v.SoftLineBreak() {
				textBuilder.WriteByte(' ')
			}
		case *ast.String:
			textBuilder.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(textBuilder.String())
}

type draft struct {
	headingPath string
	text        string
	tokens      int
}

// splitSection applies the token ceiling to one section. Units are accumulated
// greedily; a unit that alone exceeds the ceiling is cut on token boundaries.
func (s *MarkdownSegmenter) splitSection(sec section) []draft {
	whole := strings.Join(sec.units, "\n\n")
	if n := tokenizer.Count(whole); n <= s.maxTokens {
		if n == 0 {
			return nil
		}
		return []draft{{headingPath: sec.headingPath, text: whole, tokens: n}}
	}

	var out []draft
	var current *draft
	flush := func() {
		if current != nil {
			out = append(out, *current)
			current = nil
		}
	}

	for _, unit := range sec.units {
		n := tokenizer.Count(unit)
		if n == 0 {
			continue
		}
		if n > s.maxTokens {
			flush()
			for _, piece := range tokenizer.Slice(unit, s.maxTokens) {
				out = append(out, draft{headingPath: sec.headingPath, text: piece, tokens: tokenizer.Count(piece)})
			}
			continue
		}
		if current == nil {
			current = &draft{headingPath: sec.headingPath, text: unit, tokens: n}
			continue
		}
		candidate := current.text + "\n\n" + unit
		if cn := tokenizer.Count(candidate); cn <= s.maxTokens {
			current.text = candidate
			current.tokens = cn
			continue
		}
		flush()
		current = &draft{headingPath: sec.headingPath, text: unit, tokens: n}
	}
	flush()

	return out
}

// mergeSmall folds chunks below the floor into a neighbour: the previous chunk
// first, then the next one. Each undersized chunk gets at most these two
// attempts per sweep, and a merge that would break the ceiling is skipped.
// Sweeps repeat until nothing changes or a single chunk remains.
func (s *MarkdownSegmenter) mergeSmall(chunks []draft) []draft {
	if s.minTokens <= 0 {
		return chunks
	}
	for {
		changed := false
		for i := 0; i < len(chunks) && len(chunks) > 1; i++ {
			if chunks[i].tokens >= s.minTokens {
				continue
			}
			if i > 0 {
				if merged, ok := s.join(chunks[i-1], chunks[i]); ok {
					chunks[i-1] = merged
					chunks = slices.Delete(chunks, i, i+1)
					i--
					changed = true
					if merged.tokens >= s.minTokens {
						continue
					}
				}
			}
			if i+1 < len(chunks) {
				if merged, ok := s.join(chunks[i], chunks[i+1]); ok {
					chunks[i] = merged
					chunks = slices.Delete(chunks, i+1, i+2)
					changed = true
				}
			}
		}
		if !changed || len(chunks) <= 1 {
			return chunks
		}
	}
}

func (s *MarkdownSegmenter) join(a, b draft) (draft, bool) {
	merged := a.text + "\n\n" + b.text
	n := tokenizer.Count(merged)
	if n > s.maxTokens {
		return draft{}, false
	}
	return draft{headingPath: a.headingPath, text: merged, tokens: n}, true
}
