package vault

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
}

func TestScan(t *testing.T) {
	root := t.TempDir()

	writeFile(t, root, "note1.md", "# Test")
	writeFile(t, root, "folder/note2.md", "# Test two")
	writeFile(t, root, "docs/deep/readme.markdown", "# Readme")
	writeFile(t, root, "docs/UPPER.MD", "# Upper")
	writeFile(t, root, ".obsidian/workspace.md", "{}")
	writeFile(t, root, ".git/notes.md", "ref")
	writeFile(t, root, "image.png", "png")
	writeFile(t, root, "code.go", "package main")

	files, err := Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	want := []struct {
		rel    string
		folder string
	}{
		{"docs/UPPER.MD", "docs"},
		{"docs/deep/readme.markdown", "docs/deep"},
		{"folder/note2.md", "folder"},
		{"note1.md", ""},
	}

	if len(files) != len(want) {
		t.Fatalf("Scan() found %d files, want %d: %+v", len(files), len(want), files)
	}
	for i, w := range want {
		if files[i].RelPath != w.rel {
			t.Errorf("files[%d].RelPath = %s, want %s", i, files[i].RelPath, w.rel)
		}
		if files[i].Folder != w.folder {
			t.Errorf("files[%d].Folder = %q, want %q", i, files[i].Folder, w.folder)
		}
		if files[i].AbsPath != filepath.Join(root, filepath.FromSlash(w.rel)) {
			t.Errorf("files[%d].AbsPath = %s", i, files[i].AbsPath)
		}
		if files[i].Size == 0 || files[i].ModTime == 0 {
			t.Errorf("files[%d] missing stat: %+v", i, files[i])
		}
	}
}

func TestScan_MissingRoot(t *testing.T) {
	if _, err := Scan(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Scan() expected error for missing root, got nil")
	}
}

func TestScan_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Scan(ctx, root); !errors.Is(err, context.Canceled) {
		t.Errorf("Scan() error = %v, want context.Canceled", err)
	}
}

func TestStat(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a/b.md", "hello")

	f, err := Stat(root, "a/b.md")
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if f.Size != 5 || f.Folder != "a" {
		t.Errorf("Stat() = %+v", f)
	}

	_, err = Stat(root, "a/missing.md")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat() missing error = %v, want fs.ErrNotExist", err)
	}
}

func TestRelPath(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "vault")

	tests := []struct {
		name   string
		path   string
		want   string
		wantOK bool
	}{
		{name: "root file", path: filepath.Join(root, "a.md"), want: "a.md", wantOK: true},
		{name: "nested", path: filepath.Join(root, "x", "y.md"), want: "x/y.md", wantOK: true},
		{name: "hidden file kept", path: filepath.Join(root, ".draft.md"), want: ".draft.md", wantOK: true},
		{name: "hidden dir", path: filepath.Join(root, ".obsidian", "a.md"), wantOK: false},
		{name: "outside", path: filepath.Join(string(filepath.Separator), "other", "a.md"), wantOK: false},
		{name: "root itself", path: root, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RelPath(root, tt.path)
			if ok != tt.wantOK {
				t.Fatalf("RelPath() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("RelPath() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsMarkdown(t *testing.T) {
	tests := map[string]bool{
		"a.md":       true,
		"a.MD":       true,
		"a.markdown": true,
		"a.txt":      false,
		"a.png":      false,
		"md":         false,
	}
	for name, want := range tests {
		if got := IsMarkdown(name); got != want {
			t.Errorf("IsMarkdown(%q) = %v, want %v", name, got, want)
		}
	}
}
