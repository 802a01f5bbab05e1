package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func newStaticFixture(t *testing.T) *staticHandler {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"index.html":     "<html>root</html>",
		"style.css":      "body {}",
		"img/sprite.png": "png-bytes",
		"data.bin":       "\x00\x01",
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return newStaticHandler(root)
}

func serveStatic(t *testing.T, handler *staticHandler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "http://example.com/", nil)
	req.URL.Path = target
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestStaticServesFiles(t *testing.T) {
	handler := newStaticFixture(t)

	tests := []struct {
		target      string
		contentType string
	}{
		{"/index.html", "text/html"},
		{"/", "text/html"},
		{"/style.css", "text/css"},
		{"/img/sprite.png", "image/png"},
		{"/data.bin", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := serveStatic(t, handler, http.MethodGet, tt.target)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if got := rec.Header().Get("Content-Type"); got != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", got, tt.contentType)
			}
		})
	}
}

func TestStaticRejectsTraversal(t *testing.T) {
	handler := newStaticFixture(t)

	for _, target := range []string{"/../secret", "/img/../../secret", "/..\\secret"} {
		rec := serveStatic(t, handler, http.MethodGet, target)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s = %d, want 400", target, rec.Code)
		}
	}
}

func TestStaticUnknownFile(t *testing.T) {
	handler := newStaticFixture(t)

	if rec := serveStatic(t, handler, http.MethodGet, "/missing.html"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestStaticHead(t *testing.T) {
	handler := newStaticFixture(t)

	rec := serveStatic(t, handler, http.MethodHead, "/index.html")
	if rec.Code != http.StatusOK {
		t.Errorf("HEAD = %d, want 200", rec.Code)
	}
}

func TestStaticRejectsOtherMethods(t *testing.T) {
	handler := newStaticFixture(t)

	if rec := serveStatic(t, handler, http.MethodPost, "/index.html"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST = %d, want 405", rec.Code)
	}
}
