package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/countrychat/internal/identity"
	"github.com/ashureev/countrychat/internal/store"
)

func newTestRouter(t *testing.T) (*chi.Mux, store.Repository) {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	r := chi.NewRouter()
	NewHandler(repo, true).RegisterRoutes(r)
	return r, repo
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleLoginCreatesUser(t *testing.T) {
	t.Parallel()

	r, repo := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/login", `{"username": "alice"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["userId"] != "alice" {
		t.Errorf("unexpected userId %q", body["userId"])
	}

	user, err := repo.GetUser(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if user == nil {
		t.Fatal("login did not create the user record")
	}

	var sawCookie bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == identity.CookieName && c.Value == "alice" {
			sawCookie = true
		}
	}
	if !sawCookie {
		t.Error("login did not set the identity cookie")
	}
}

func TestHandleLoginRejectsBadUsernames(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	for name, body := range map[string]string{
		"empty":        `{"username": ""}`,
		"whitespace":   `{"username": "   "}`,
		"invalid json": `{"username"`,
		"bad chars":    `{"username": "a b!"}`,
	} {
		rec := doJSON(t, r, http.MethodPost, "/api/login", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, rec.Code)
		}
	}
}

func TestHandleLoginIsIdempotent(t *testing.T) {
	t.Parallel()

	r, repo := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/login", `{"username": "bob"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("first login failed: %d", rec.Code)
	}
	first, err := repo.GetUser(context.Background(), "bob")
	if err != nil || first == nil {
		t.Fatalf("GetUser after first login: %v, %v", first, err)
	}

	rec = doJSON(t, r, http.MethodPost, "/api/login", `{"username": "bob"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("second login failed: %d", rec.Code)
	}
	second, err := repo.GetUser(context.Background(), "bob")
	if err != nil {
		t.Fatal(err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Error("second login replaced the existing user record")
	}
}

func TestHandleLogout(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/logout", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == identity.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("logout did not clear the identity cookie")
	}
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	r, repo := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	// A closed store is unhealthy.
	_ = repo.Close()
	rec = doJSON(t, r, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 after close, got %d", rec.Code)
	}
}
