// Package links extracts link references from markdown documents and resolves
// them against the documents of a vault.
package links

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var (
	wikiLinkRe = regexp.MustCompile(`(!?)\[\[([^\[\]\n]+)\]\]`)
	schemeRe   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*:`)
)

// Reference is one link occurrence inside a document.
type Reference struct {
	// Target is the raw target token with anchor and alias removed.
	Target     string
	Anchor     string
	Alias      string
	IsEmbed    bool
	IsWiki     bool
	IsExternal bool
	// Offset is the approximate byte offset of the occurrence, used for ordering.
	Offset int
}

// Parser extracts references from markdown content.
type Parser struct {
	md goldmark.Markdown
}

// NewParser creates a parser using goldmark with GFM tables enabled.
func NewParser() *Parser {
	return &Parser{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough),
		),
	}
}

// Parse returns every reference in content in document order. Wiki links inside
// code spans or code blocks are ignored, as are anchor-only self references.
func (p *Parser) Parse(content string) []Reference {
	src := []byte(content)
	doc := p.md.Parser().Parse(text.NewReader(src))

	var refs []Reference
	var code []byteRange
	lastOffset := 0

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch v := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if r, ok := linesRange(n); ok {
				code = append(code, r)
			}
			return ast.WalkSkipChildren, nil
		case *ast.CodeSpan:
			if r, ok := childrenRange(v); ok {
				code = append(code, r)
			}
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			lastOffset = v.Segment.Start
		case *ast.Link:
			if ref, ok := markdownRef(string(v.Destination), plainText(v, src), false, nodeOffset(v, lastOffset)); ok {
				refs = append(refs, ref)
			}
		case *ast.Image:
			if ref, ok := markdownRef(string(v.Destination), plainText(v, src), true, nodeOffset(v, lastOffset)); ok {
				refs = append(refs, ref)
			}
		case *ast.AutoLink:
			target := string(v.URL(src))
			if v.AutoLinkType == ast.AutoLinkEmail && !strings.HasPrefix(strings.ToLower(target), "mailto:") {
				target = "mailto:" + target
			}
			refs = append(refs, Reference{Target: target, IsExternal: true, Offset: lastOffset})
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	for _, m := range wikiLinkRe.FindAllStringSubmatchIndex(content, -1) {
		if inRanges(code, m[0]) {
			continue
		}
		if ref, ok := wikiRef(content[m[4]:m[5]], m[3] > m[2], m[0]); ok {
			refs = append(refs, ref)
		}
	}

	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].Offset < refs[j].Offset
	})
	return refs
}

// Parse is a convenience wrapper around NewParser().Parse.
func Parse(content string) []Reference {
	return NewParser().Parse(content)
}

func wikiRef(inner string, embed bool, offset int) (Reference, bool) {
	target, alias := inner, ""
	if i := strings.Index(target, "|"); i >= 0 {
		alias = strings.TrimSpace(target[i+1:])
		// Obsidian tables escape the alias pipe as "\|".
		target = strings.TrimSuffix(target[:i], `\`)
	}
	target, anchor := splitAnchor(strings.TrimSpace(target))
	target = strings.TrimSpace(target)
	if target == "" {
		return Reference{}, false
	}
	return Reference{
		Target:     target,
		Anchor:     anchor,
		Alias:      alias,
		IsEmbed:    embed,
		IsWiki:     true,
		IsExternal: IsExternalTarget(target),
		Offset:     offset,
	}, true
}

func markdownRef(dest, label string, embed bool, offset int) (Reference, bool) {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return Reference{}, false
	}
	if IsExternalTarget(dest) {
		return Reference{Target: dest, Alias: label, IsEmbed: embed, IsExternal: true, Offset: offset}, true
	}
	if decoded, err := url.PathUnescape(dest); err == nil {
		dest = decoded
	}
	target, anchor := splitAnchor(dest)
	if i := strings.IndexByte(target, '?'); i >= 0 {
		target = target[:i]
	}
	if target == "" {
		return Reference{}, false
	}
	return Reference{Target: target, Anchor: anchor, Alias: label, IsEmbed: embed, Offset: offset}, true
}

// IsExternalTarget reports whether a target is an absolute URL rather than a vault path.
func IsExternalTarget(target string) bool {
	return schemeRe.MatchString(target) || strings.HasPrefix(target, "//")
}

func splitAnchor(s string) (string, string) {
	if i := strings.IndexByte(s, '#'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

type byteRange struct {
	start, stop int
}

func inRanges(ranges []byteRange, offset int) bool {
	for _, r := range ranges {
		if offset >= r.start && offset < r.stop {
			return true
		}
	}
	return false
}

func linesRange(n ast.Node) (byteRange, bool) {
	lines := n.Lines()
	if lines == nil || lines.Len() == 0 {
		return byteRange{}, false
	}
	return byteRange{start: lines.At(0).Start, stop: lines.At(lines.Len() - 1).Stop}, true
}

func childrenRange(n ast.Node) (byteRange, bool) {
	r := byteRange{start: -1}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		t, ok := c.(*ast.Text)
		if !ok {
			continue
		}
		if r.start < 0 {
			r.start = t.Segment.Start
		}
		r.stop = t.Segment.Stop
	}
	return r, r.start >= 0
}

func nodeOffset(n ast.Node, fallback int) int {
	offset := fallback
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := c.(*ast.Text); ok && entering {
			offset = t.Segment.Start
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return offset
}

func plainText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := c.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(src))
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
