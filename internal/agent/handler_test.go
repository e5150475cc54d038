package agent

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/countrychat/internal/domain"
	"github.com/ashureev/countrychat/internal/identity"
	"github.com/ashureev/countrychat/internal/runtime"
)

func newTestHandler(t *testing.T, llm *scriptedLLM) (*chi.Mux, *Service) {
	t.Helper()
	repo := newTestRepo(t)
	svc := newTestService(t, repo, llm)
	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r)
	return r, svc
}

func postTurn(t *testing.T, r http.Handler, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/agent", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req = req.WithContext(identity.ContextWithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	return body["error"]
}

func TestHandleTurnMissingMessage(t *testing.T) {
	t.Parallel()

	r, _ := newTestHandler(t, &scriptedLLM{})

	for name, body := range map[string]string{
		"empty object":  `{}`,
		"empty message": `{"message": ""}`,
	} {
		rec := postTurn(t, r, "alice", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, rec.Code)
		}
		if msg := decodeError(t, rec); msg != "Message is required" {
			t.Errorf("%s: unexpected error %q", name, msg)
		}
	}
}

func TestHandleTurnMalformedBody(t *testing.T) {
	t.Parallel()

	r, _ := newTestHandler(t, &scriptedLLM{})

	// A body that does not parse is a server-side failure, not a 400.
	rec := postTurn(t, r, "alice", `{"message": `)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for malformed body, got %d", rec.Code)
	}
	if msg := decodeError(t, rec); msg == "" {
		t.Error("expected the decode error in the response body")
	}
}

func TestHandleTurnMissingMessageBeatsMissingIdentity(t *testing.T) {
	t.Parallel()

	r, _ := newTestHandler(t, &scriptedLLM{})

	// No identity AND no message: the message check runs first.
	rec := postTurn(t, r, "", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "Message is required" {
		t.Errorf("unexpected error %q", msg)
	}
}

func TestHandleTurnUnauthenticated(t *testing.T) {
	t.Parallel()

	r, _ := newTestHandler(t, &scriptedLLM{})

	rec := postTurn(t, r, "", `{"message": "hello"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "Authentication required" {
		t.Errorf("unexpected error %q", msg)
	}
}

func TestHandleTurnScenario(t *testing.T) {
	t.Parallel()

	llm := &scriptedLLM{responses: []*runtime.ModelResponse{
		textResponse(`{"message": "The capital of France is Paris.", "status": "success"}`),
		textResponse(`{"message": "The flag of France is 🇫🇷.", "status": "success"}`),
	}}
	r, _ := newTestHandler(t, llm)

	rec := postTurn(t, r, "alice", `{"message": "What is the capital of France?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result TurnResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.UserID != "alice" {
		t.Errorf("unexpected userId %q", result.UserID)
	}
	if result.SessionID == "" {
		t.Error("expected a sessionId")
	}

	// The last agent event with text carries the agent's JSON protocol reply.
	reply := lastAgentText(t, result.Events)
	var payload struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal([]byte(reply), &payload); err != nil {
		t.Fatalf("agent reply is not the JSON protocol: %v", err)
	}
	if payload.Status != "success" {
		t.Errorf("expected success status, got %q", payload.Status)
	}
	if !strings.Contains(payload.Message, "Paris") {
		t.Errorf("unexpected reply %q", payload.Message)
	}

	// A second turn sticks to the same session.
	rec = postTurn(t, r, "alice", `{"message": "And its flag?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var second TurnResult
	if err := json.NewDecoder(rec.Body).Decode(&second); err != nil {
		t.Fatal(err)
	}
	if second.SessionID != result.SessionID {
		t.Errorf("session not reused: %q vs %q", second.SessionID, result.SessionID)
	}
}

func TestHandleTurnOversizedBody(t *testing.T) {
	t.Parallel()

	r, _ := newTestHandler(t, &scriptedLLM{})

	var buf bytes.Buffer
	buf.WriteString(`{"message": "`)
	buf.Write(bytes.Repeat([]byte("a"), maxRequestBodySize+1))
	buf.WriteString(`"}`)

	rec := postTurn(t, r, "alice", buf.String())
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for oversized body, got %d", rec.Code)
	}
}

func lastAgentText(t *testing.T, events []*domain.Event) string {
	t.Helper()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Author == "user" {
			continue
		}
		if text := events[i].Text(); text != "" {
			return text
		}
	}
	t.Fatal("no agent-authored text event in response")
	return ""
}
