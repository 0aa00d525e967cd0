package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nikogura/cv-generator/pkg/generator"
	"github.com/nikogura/cv-generator/pkg/renderer"
	"github.com/nikogura/cv-generator/pkg/session"
	"github.com/nikogura/cv-generator/pkg/template"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type stubRewriter struct {
	err error
}

func (s *stubRewriter) Rewrite(ctx context.Context, templateText, userText string) (rewritten string, err error) {
	if s.err != nil {
		err = s.err
		return rewritten, err
	}
	rewritten = strings.Replace(templateText, "PLACEHOLDER", userText, 1)
	return rewritten, err
}

func (s *stubRewriter) Provider() (name string) {
	name = "stub"
	return name
}

type testEnv struct {
	server   *Server
	handler  http.Handler
	sessions *session.Manager
	root     string
}

func newTestEnv(t *testing.T, rewriter generator.Rewriter, compiler *renderer.Compiler) (env testEnv) {
	t.Helper()
	dir := t.TempDir()

	templatePath := filepath.Join(dir, "template.tex")
	err := os.WriteFile(templatePath, []byte("\\documentclass{article}\n\\name{PLACEHOLDER}\n"), 0600)
	if err != nil {
		t.Fatalf("Failed to write template: %v", err)
	}

	templates, err := template.NewProvider(templatePath)
	if err != nil {
		t.Fatalf("Failed to create template provider: %v", err)
	}

	env.root = filepath.Join(dir, "temp_files")
	env.sessions, err = session.NewManager(env.root)
	if err != nil {
		t.Fatalf("Failed to create session manager: %v", err)
	}

	if compiler == nil {
		compiler = renderer.NewCompiler(renderer.Options{Disabled: true})
	}

	svc := generator.New(generator.Options{
		Sessions:       env.sessions,
		Templates:      templates,
		Rewriter:       rewriter,
		Compiler:       compiler,
		RewriteTimeout: 5 * time.Second,
	})

	env.server = New(Options{Generator: svc, Sessions: env.sessions})
	env.handler = env.server.Handler()
	return env
}

func writeFakeCompiler(t *testing.T, body string) (path string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("Shell script compilers are not supported on Windows")
	}

	path = filepath.Join(t.TempDir(), "fake-pdflatex")
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0700) //nolint:gosec // Test helper needs an executable script
	if err != nil {
		t.Fatalf("Failed to write fake compiler: %v", err)
	}
	return path
}

func postGenerate(t *testing.T, handler http.Handler, userInput string) (rec *httptest.ResponseRecorder) {
	t.Helper()
	form := url.Values{"user_input": {userInput}}
	req := httptest.NewRequest(http.MethodPost, "/generate-cv", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) (result generator.Result) {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	err := json.Unmarshal(rec.Body.Bytes(), &result)
	if err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return result
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) (detail string) {
	t.Helper()
	var body errorBody
	err := json.Unmarshal(rec.Body.Bytes(), &body)
	if err != nil {
		t.Fatalf("Failed to decode error body %q: %v", rec.Body.String(), err)
	}
	detail = body.Detail
	return detail
}

func get(handler http.Handler, path string) (rec *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestGenerateThenDownloadSource(t *testing.T) {
	env := newTestEnv(t, &stubRewriter{}, nil)

	result := decodeResult(t, postGenerate(t, env.handler, "Jane Roe"))

	if result.SessionID == "" {
		t.Fatal("Expected a session id")
	}

	rec := get(env.handler, "/download/tex/"+result.SessionID)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	if !strings.Contains(rec.Body.String(), "\\name{Jane Roe}") {
		t.Errorf("Unexpected source: %s", rec.Body.String())
	}

	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS header on responses")
	}
}

func TestCompilerDisabled(t *testing.T) {
	env := newTestEnv(t, &stubRewriter{}, nil)

	result := decodeResult(t, postGenerate(t, env.handler, "Jane Roe"))

	if result.PDFAvailable {
		t.Error("PDF should not be available with the compiler disabled")
	}

	rec := get(env.handler, "/download/pdf/"+result.SessionID)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}

	if !strings.Contains(decodeDetail(t, rec), "PDF file not found") {
		t.Errorf("Unexpected detail: %s", rec.Body.String())
	}
}

func TestCompilerSuccess(t *testing.T) {
	fake := writeFakeCompiler(t, `out="$3"
base=$(basename "$4" .tex)
echo "%PDF-1.4" > "$out/$base.pdf"`)
	env := newTestEnv(t, &stubRewriter{}, renderer.NewCompiler(renderer.Options{Binary: fake}))

	result := decodeResult(t, postGenerate(t, env.handler, "Jane Roe"))

	if !result.PDFAvailable {
		t.Fatal("Expected PDF to be available")
	}

	rec := get(env.handler, "/download/pdf/"+result.SessionID)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	if !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Errorf("Unexpected PDF body: %s", rec.Body.String())
	}
}

func TestCompilerFailureHidesPartialPDF(t *testing.T) {
	fake := writeFakeCompiler(t, `out="$3"
base=$(basename "$4" .tex)
echo "partial" > "$out/$base.pdf"
exit 1`)
	env := newTestEnv(t, &stubRewriter{}, renderer.NewCompiler(renderer.Options{Binary: fake}))

	result := decodeResult(t, postGenerate(t, env.handler, "Jane Roe"))

	if result.PDFAvailable {
		t.Fatal("PDF should not be available after a failed compilation")
	}

	rec := get(env.handler, "/download/pdf/"+result.SessionID)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for the PDF of a failed compilation, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCompilerTimeout(t *testing.T) {
	fake := writeFakeCompiler(t, "sleep 10")
	compiler := renderer.NewCompiler(renderer.Options{Binary: fake, Timeout: 200 * time.Millisecond})
	env := newTestEnv(t, &stubRewriter{}, compiler)

	result := decodeResult(t, postGenerate(t, env.handler, "Jane Roe"))

	if result.PDFAvailable {
		t.Error("PDF should not be available after a compiler timeout")
	}

	rec := get(env.handler, "/download/tex/"+result.SessionID)
	if rec.Code != http.StatusOK {
		t.Errorf("Source should still be downloadable, got %d", rec.Code)
	}
}

func TestDownloadInvalidType(t *testing.T) {
	env := newTestEnv(t, &stubRewriter{}, nil)
	result := decodeResult(t, postGenerate(t, env.handler, "Jane Roe"))

	tests := []struct {
		name      string
		sessionID string
	}{
		{name: "valid session", sessionID: result.SessionID},
		{name: "unknown session", sessionID: "7b0f2c1e-8d4a-4f57-9a3e-2c6b1d0e9f84"},
		{name: "garbage session", sessionID: "garbage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(env.handler, "/download/docx/"+tt.sessionID)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", rec.Code)
			}
		})
	}
}

func TestDownloadUnknownSession(t *testing.T) {
	env := newTestEnv(t, &stubRewriter{}, nil)

	tests := []string{
		"/download/tex/7b0f2c1e-8d4a-4f57-9a3e-2c6b1d0e9f84",
		"/download/tex/not-a-uuid",
		"/download/tex/7B0F2C1E-8D4A-4F57-9A3E-2C6B1D0E9F84",
	}

	for _, path := range tests {
		t.Run(path, func(t *testing.T) {
			rec := get(env.handler, path)
			if rec.Code != http.StatusNotFound {
				t.Errorf("Expected status 404, got %d", rec.Code)
			}
		})
	}
}

func TestGenerateEmptyInput(t *testing.T) {
	env := newTestEnv(t, &stubRewriter{}, nil)

	rec := postGenerate(t, env.handler, "   ")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestGenerateOversizedBody(t *testing.T) {
	env := newTestEnv(t, &stubRewriter{}, nil)

	rec := postGenerate(t, env.handler, strings.Repeat("a", 2<<20))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("Expected status 413, got %d: %s", rec.Code, rec.Body.String())
	}

	detail := decodeDetail(t, rec)
	if !strings.Contains(detail, "1048576 byte limit") {
		t.Errorf("Detail should name the limit, got %q", detail)
	}

	entries, err := os.ReadDir(env.root)
	if err != nil {
		t.Fatalf("Failed to read session root: %v", err)
	}

	if len(entries) != 0 {
		t.Errorf("Rejected request should not allocate a session, found %d", len(entries))
	}
}

func TestGenerateMultipartForm(t *testing.T) {
	env := newTestEnv(t, &stubRewriter{}, nil)

	var body strings.Builder
	writer := multipart.NewWriter(&body)
	err := writer.WriteField("user_input", "Jane Roe")
	if err != nil {
		t.Fatalf("Failed to write field: %v", err)
	}
	err = writer.Close()
	if err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/generate-cv", strings.NewReader(body.String()))
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	result := decodeResult(t, rec)
	if result.SessionID == "" {
		t.Error("Expected a session id")
	}
}

func TestGenerateRewriterFailure(t *testing.T) {
	env := newTestEnv(t, &stubRewriter{err: errors.New("model unavailable")}, nil)

	rec := postGenerate(t, env.handler, "Jane Roe")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", rec.Code)
	}

	detail := decodeDetail(t, rec)
	if !strings.Contains(detail, "AI model error") || !strings.Contains(detail, "model unavailable") {
		t.Errorf("Unexpected detail: %s", detail)
	}

	entries, err := os.ReadDir(env.root)
	if err != nil {
		t.Fatalf("Failed to read session root: %v", err)
	}

	if len(entries) != 0 {
		t.Errorf("Failed request should leave no session behind, found %d", len(entries))
	}
}

func TestConcurrentGenerateUsesDistinctSessions(t *testing.T) {
	env := newTestEnv(t, &stubRewriter{}, nil)

	const requests = 16
	var mu sync.Mutex
	seen := make(map[string]bool)

	var g errgroup.Group
	for i := 0; i < requests; i++ {
		g.Go(func() (err error) {
			form := url.Values{"user_input": {"Jane Roe"}}
			req := httptest.NewRequest(http.MethodPost, "/generate-cv", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()
			env.handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				err = errors.Errorf("unexpected status %d", rec.Code)
				return err
			}

			var result generator.Result
			err = json.Unmarshal(rec.Body.Bytes(), &result)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			if seen[result.SessionID] {
				err = errors.Errorf("session %s issued twice", result.SessionID)
				return err
			}
			seen[result.SessionID] = true
			return err
		})
	}

	err := g.Wait()
	if err != nil {
		t.Fatalf("Concurrent generate failed: %v", err)
	}

	if len(seen) != requests {
		t.Errorf("Expected %d sessions, got %d", requests, len(seen))
	}
}

func TestIndexAndHealth(t *testing.T) {
	env := newTestEnv(t, &stubRewriter{}, nil)

	rec := get(env.handler, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	if !strings.Contains(rec.Body.String(), "user_input") {
		t.Error("Index page should contain the input form")
	}

	rec = get(env.handler, "/healthz")
	var health healthBody
	err := json.Unmarshal(rec.Body.Bytes(), &health)
	if err != nil {
		t.Fatalf("Failed to decode health: %v", err)
	}

	if health.Status != "ok" || health.CompilerAvailable || health.Provider != "stub" {
		t.Errorf("Unexpected health: %+v", health)
	}

	rec = get(env.handler, "/nope")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown path, got %d", rec.Code)
	}
}

func TestPreflight(t *testing.T) {
	env := newTestEnv(t, &stubRewriter{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/generate-cv", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rec.Code)
	}

	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected wildcard origin")
	}
}

func TestRecoverWrapper(t *testing.T) {
	handler := recoverWrapper(slog.New(slog.DiscardHandler), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := get(handler, "/")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", rec.Code)
	}

	if decodeDetail(t, rec) != "internal server error" {
		t.Errorf("Unexpected body: %s", rec.Body.String())
	}
}

func TestStaticDir(t *testing.T) {
	env := newTestEnv(t, &stubRewriter{}, nil)

	static := t.TempDir()
	err := os.WriteFile(filepath.Join(static, "main.js"), []byte("console.log('hi')"), 0600)
	if err != nil {
		t.Fatalf("Failed to write static file: %v", err)
	}

	env.server.staticDir = static
	handler := env.server.Handler()

	rec := get(handler, "/static/main.js")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	if rec.Body.String() != "console.log('hi')" {
		t.Errorf("Unexpected body: %s", rec.Body.String())
	}
}

func TestServeShutdownRemovesSessions(t *testing.T) {
	env := newTestEnv(t, &stubRewriter{}, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- env.server.Serve(ctx, ln)
	}()

	form := url.Values{"user_input": {"Jane Roe"}}
	resp, err := http.PostForm("http://"+ln.Addr().String()+"/generate-cv", form)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	cancel()

	select {
	case err = <-done:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	_, err = os.Stat(env.root)
	if !os.IsNotExist(err) {
		t.Errorf("Session root should be removed after shutdown, stat error: %v", err)
	}
}
