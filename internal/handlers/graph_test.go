package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"vaultgraph/internal/graph"
	"vaultgraph/internal/service"
	"vaultgraph/internal/service/mocks"
)

func TestGraphHandler_ServeHTTP(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	data := graph.ViewData{
		Nodes: []graph.Node{
			{ID: "a.md", RelPath: "a.md", FileName: "a.md"},
			{ID: "unresolved:b", RelPath: "B", FileName: "B", Unresolved: true},
		},
		Edges: []graph.Edge{{Source: "a.md", Target: "unresolved:b", Unresolved: true}},
	}
	mockService := mocks.NewMockVaultService(ctrl)
	mockService.EXPECT().Graph(gomock.Any()).Return(graph.Plan(data), nil)

	w := httptest.NewRecorder()
	NewGraphHandler(mockService).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/graph", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("ServeHTTP() status = %v, want %v", w.Code, http.StatusOK)
	}
	for _, key := range []string{`"totalEdges":1`, `"isDegraded":false`} {
		if !strings.Contains(w.Body.String(), key) {
			t.Errorf("response missing %s: %s", key, w.Body.String())
		}
	}
	var resp GraphResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Nodes) != 2 || len(resp.Edges) != 1 || resp.TotalEdges != 1 {
		t.Fatalf("ServeHTTP() nodes = %d edges = %d total = %d", len(resp.Nodes), len(resp.Edges), resp.TotalEdges)
	}

	ghost := resp.Nodes[1]
	if ghost.State != graph.StateUnresolved || ghost.Action.Kind != graph.ActionUnresolvedTarget || ghost.Action.RawPath != "B" {
		t.Errorf("ghost node = %+v", ghost)
	}
	if resp.Nodes[0].Degree != 1 || resp.Nodes[0].Action.Path != "a.md" {
		t.Errorf("document node = %+v", resp.Nodes[0])
	}
	if resp.Profile.IsDegraded || resp.Profile.EdgeRenderLimit != 1 {
		t.Errorf("profile = %+v", resp.Profile)
	}
}

func TestGraphHandler_NotIndexed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := mocks.NewMockVaultService(ctrl)
	mockService.EXPECT().Graph(gomock.Any()).
		Return(graph.RenderPlan{}, fmt.Errorf("/v: %w", service.ErrNotIndexed))

	w := httptest.NewRecorder()
	NewGraphHandler(mockService).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/graph", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("ServeHTTP() status = %v, want %v", w.Code, http.StatusNotFound)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error != "Vault is not indexed yet" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestBacklinksHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		target     string
		mockSetup  func(*mocks.MockVaultService)
		wantStatus int
		wantCount  int
	}{
		{
			name:   "lists backlinks",
			method: http.MethodGet,
			target: "/api/backlinks?path=docs/guide.md",
			mockSetup: func(m *mocks.MockVaultService) {
				m.EXPECT().Backlinks(gomock.Any(), "docs/guide.md").Return([]service.Backlink{
					{SourcePath: "index.md", TargetPath: "docs/guide", IsWiki: true},
					{SourcePath: "other.md", TargetPath: "guide.md"},
				}, nil)
			},
			wantStatus: http.StatusOK,
			wantCount:  2,
		},
		{
			name:   "no backlinks",
			method: http.MethodGet,
			target: "/api/backlinks?path=lonely.md",
			mockSetup: func(m *mocks.MockVaultService) {
				m.EXPECT().Backlinks(gomock.Any(), "lonely.md").Return(nil, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "missing path",
			method: http.MethodGet,
			target: "/api/backlinks",
			mockSetup: func(m *mocks.MockVaultService) {
				m.EXPECT().Backlinks(gomock.Any(), "").
					Return(nil, &service.ValidationError{Field: "path", Message: "cannot be empty"})
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "method not allowed",
			method:     http.MethodDelete,
			target:     "/api/backlinks?path=a.md",
			mockSetup:  func(m *mocks.MockVaultService) {},
			wantStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockService := mocks.NewMockVaultService(ctrl)
			tt.mockSetup(mockService)

			w := httptest.NewRecorder()
			NewBacklinksHandler(mockService).ServeHTTP(w, httptest.NewRequest(tt.method, tt.target, nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("ServeHTTP() status = %v, want %v", w.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp BacklinksResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Backlinks == nil || len(resp.Backlinks) != tt.wantCount {
				t.Errorf("ServeHTTP() backlinks = %+v, want %d", resp.Backlinks, tt.wantCount)
			}
		})
	}
}
