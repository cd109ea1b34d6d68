package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	ghhtml "github.com/yuin/goldmark/renderer/html"

	"vaultgraph/internal/contextutil"
	"vaultgraph/internal/service"
	"vaultgraph/internal/vault"
)

// NoteHandler serves vault documents as rendered HTML pages. It is the
// target of the graph's open-path action.
type NoteHandler struct {
	root         string
	vaultService service.VaultService
	parser       goldmark.Markdown
	template     *template.Template
}

// notePageData holds template data for rendered note pages.
type notePageData struct {
	Title     string
	RelPath   string
	Content   template.HTML
	Backlinks []service.Backlink
}

var noteTemplate = template.Must(template.New("note").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}}</title>
  <style>
    :root { color-scheme: dark; }
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
      margin: 0 auto;
      padding: 2rem;
      max-width: 900px;
      line-height: 1.7;
      background: #050b18;
      color: #e4ecff;
    }
    header { margin-bottom: 2rem; border-bottom: 1px solid rgba(148, 163, 184, 0.2); }
    h1 { margin-top: 0; color: #fff; }
    pre { background: #0f172a; padding: 1rem; overflow-x: auto; border-radius: 10px; }
    code { font-family: 'SFMono-Regular', Consolas, Menlo, monospace; }
    a { color: #60a5fa; text-decoration: none; }
    a:hover { text-decoration: underline; }
    .meta { color: #94a3b8; font-size: 0.95rem; }
  </style>
</head>
<body>
  <header>
    <h1>{{.Title}}</h1>
    <p class="meta">{{.RelPath}}</p>
  </header>
  <article>{{.Content}}</article>
  {{if .Backlinks}}
  <footer>
    <h2>Linked from</h2>
    <ul>
    {{range .Backlinks}}<li><a href="/notes/{{.SourcePath}}">{{.SourcePath}}</a>{{if .Alias}} ({{.Alias}}){{end}}</li>
    {{end}}
    </ul>
  </footer>
  {{end}}
</body>
</html>`))

// NewNoteHandler creates a handler serving documents under root.
func NewNoteHandler(root string, vaultService service.VaultService) *NoteHandler {
	return &NoteHandler{
		root:         root,
		vaultService: vaultService,
		parser: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Typographer,
			),
			goldmark.WithRendererOptions(
				ghhtml.WithUnsafe(),
			),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		),
		template: noteTemplate,
	}
}

// ServeHTTP handles GET /notes/{path}.
func (h *NoteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	decoded, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil {
		http.Error(w, "invalid path encoding", http.StatusBadRequest)
		return
	}
	relPath, err := cleanRelPath(decoded)
	if err != nil {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}
	if !vault.IsMarkdown(relPath) {
		http.Error(w, "not a markdown note", http.StatusNotFound)
		return
	}

	absPath, err := buildAbsPath(h.root, relPath)
	if err != nil {
		logger.WarnContext(ctx, "invalid note path", "rel_path", relPath, "error", err)
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "note not found", http.StatusNotFound)
			return
		}
		logger.ErrorContext(ctx, "failed to read note", "path", absPath, "error", err)
		http.Error(w, "failed to read note", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := h.parser.Convert(data, &buf); err != nil {
		logger.ErrorContext(ctx, "failed to render markdown", "path", absPath, "error", err)
		http.Error(w, "failed to render note", http.StatusInternalServerError)
		return
	}

	// Backlinks are decoration; an unindexed vault still renders the note.
	backlinks, err := h.vaultService.Backlinks(ctx, relPath)
	if err != nil {
		logger.WarnContext(ctx, "failed to load backlinks", "rel_path", relPath, "error", err)
		backlinks = nil
	}

	page := notePageData{
		Title:     inferTitle(relPath),
		RelPath:   relPath,
		Content:   template.HTML(buf.String()),
		Backlinks: backlinks,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.template.Execute(w, page); err != nil {
		logger.ErrorContext(ctx, "failed to execute note template", "path", absPath, "error", err)
	}
}

func cleanRelPath(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("empty path")
	}

	for _, segment := range strings.Split(trimmed, "/") {
		if segment == ".." {
			return "", errors.New("path traversal detected")
		}
	}

	cleaned := strings.TrimPrefix(path.Clean("/"+trimmed), "/")
	if cleaned == "" || cleaned == "." {
		return "", errors.New("invalid path")
	}
	return cleaned, nil
}

func buildAbsPath(root, rel string) (string, error) {
	root = filepath.Clean(root)
	abs := filepath.Join(root, filepath.FromSlash(rel))

	if !strings.HasPrefix(abs, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes vault root", rel)
	}
	return abs, nil
}

func inferTitle(rel string) string {
	base := path.Base(rel)
	if base == "." || base == "" {
		return "Note"
	}
	return strings.TrimSuffix(base, path.Ext(base))
}
